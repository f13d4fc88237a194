// Package module wires the trigger role
package module

import (
	"graphpipe/internal/modkit"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/runner"
	"graphpipe/internal/services/trigger/service"
)

// Options holds configuration for the trigger module
type Options struct {
	TriggerQueue string
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	pf := cfg.Prefix("PIPELINE_")
	return Options{
		TriggerQueue: pf.MayString("QUEUE_TRIGGER", "pipeline-trigger"),
	}
}

// Ports exposed by the trigger module
type Ports struct {
	Worker runner.Role
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the trigger module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.Log, service.Config{OutQueue: opts.TriggerQueue})
	return &Module{deps: deps, ports: Ports{Worker: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "trigger" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
