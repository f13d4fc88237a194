// Package module wires the scoring role
package module

import (
	"graphpipe/internal/modkit"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/runner"
	"graphpipe/internal/services/pipeline/domain"
	"graphpipe/internal/services/scoring/service"
)

// Options holds configuration for the scoring module
type Options struct {
	ScoringQueue string
	BatchSize    int
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	pf := cfg.Prefix("PIPELINE_")
	return Options{
		ScoringQueue: pf.MayString("QUEUE_SCORING", "pipeline-scoring"),
		BatchSize:    pf.MayInt("BATCH_SIZE", 1000),
	}
}

// Ports exposed by the scoring module
type Ports struct {
	Worker runner.Role
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the scoring module
func New(deps modkit.Deps, analysis domain.AnalysisPort, docs domain.DocumentStore) *Module {
	if analysis == nil || docs == nil {
		panic("scoring module: missing analysis or document store port")
	}
	opts := FromConfig(deps.Cfg)
	svc := service.New(deps.Log, service.Config{
		InQueue:  opts.ScoringQueue,
		PageSize: opts.BatchSize,
	}, analysis, docs)
	return &Module{deps: deps, ports: Ports{Worker: svc}}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "scoring" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
