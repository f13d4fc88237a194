// Package module wires the query role
package module

import (
	"graphpipe/internal/modkit"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/runner"
	"graphpipe/internal/services/pipeline/domain"
	"graphpipe/internal/services/query/service"
)

// Options holds configuration for the query module
type Options struct {
	TriggerQueue string
	NewIDsQueue  string
	LookbackDays int
	FanOut       int
	BatchSize    int
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	pf := cfg.Prefix("PIPELINE_")
	return Options{
		TriggerQueue: pf.MayString("QUEUE_TRIGGER", "pipeline-trigger"),
		NewIDsQueue:  pf.MayString("QUEUE_NEWIDS", "pipeline-newids"),
		LookbackDays: pf.MayInt("LOOKBACK_DAYS", 3),
		FanOut:       pf.MayInt("FANOUT", 50),
		BatchSize:    pf.MayInt("BATCH_SIZE", 1000),
	}
}

// Ports exposed by the query module
type Ports struct {
	Worker runner.Role
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the query module
func New(deps modkit.Deps, analysis domain.AnalysisPort, docs domain.DocumentStore) *Module {
	if analysis == nil || docs == nil {
		panic("query module: missing analysis or document store port")
	}
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.Log, service.Config{
		InQueue:      opts.TriggerQueue,
		OutQueue:     opts.NewIDsQueue,
		LookbackDays: opts.LookbackDays,
		FanOut:       opts.FanOut,
		PageSize:     opts.BatchSize,
	}, analysis, docs)
	return &Module{deps: deps, ports: Ports{Worker: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "query" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
