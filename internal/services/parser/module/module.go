// Package module wires the parser role
package module

import (
	"graphpipe/internal/modkit"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/runner"
	"graphpipe/internal/services/parser/service"
	"graphpipe/internal/services/pipeline/domain"
)

// Options holds configuration for the parser module
type Options struct {
	NewIDsQueue       string
	ScoringQueue      string
	SupportedEntities string
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	pf := cfg.Prefix("PIPELINE_")
	return Options{
		NewIDsQueue:       pf.MayString("QUEUE_NEWIDS", "pipeline-newids"),
		ScoringQueue:      pf.MayString("QUEUE_SCORING", "pipeline-scoring"),
		SupportedEntities: pf.MayString("SUPPORTED_ENTITIES", ""),
	}
}

// Ports exposed by the parser module
type Ports struct {
	Worker runner.Role
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the parser module. Panics on an invalid supported-entity
// filter since the worker cannot run with a half-applied allowlist
func New(deps modkit.Deps, analysis domain.AnalysisPort, docs domain.DocumentStore) *Module {
	if analysis == nil || docs == nil {
		panic("parser module: missing analysis or document store port")
	}
	opts := FromConfig(deps.Cfg)
	filter, err := domain.ParseEntityFilter(opts.SupportedEntities)
	if err != nil {
		panic(err)
	}
	svc := service.New(deps.Log, service.Config{
		InQueue:  opts.NewIDsQueue,
		OutQueue: opts.ScoringQueue,
	}, analysis, docs, filter)
	return &Module{deps: deps, ports: Ports{Worker: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "parser" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
