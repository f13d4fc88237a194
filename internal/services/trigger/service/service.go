// Package service implements the trigger role, the pipeline's heartbeat
package service

import (
	"context"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

// Config tunes the trigger role
type Config struct {
	// OutQueue is the trigger queue the query role listens on
	OutQueue string
}

// Service fires one TRIGGER message per invocation. It is scheduled
// externally and has no input queue
type Service struct {
	log logger.Logger
	cfg Config
	out queue.Queue
}

// New constructs the trigger service
func New(log logger.Logger, cfg Config) *Service {
	return &Service{log: log, cfg: cfg}
}

// Name implements runner.Role
func (s *Service) Name() string { return "trigger" }

// QueueNames implements runner.Role
func (s *Service) QueueNames() (string, string) { return "", s.cfg.OutQueue }

// BindQueues implements runner.Role
func (s *Service) BindQueues(_, out queue.Queue) { s.out = out }

// Run sends a TRIGGER with no payload; the query role applies the default
// discovery window
func (s *Service) Run(ctx context.Context) error {
	env, err := queue.NewEnvelope(domain.RequestTrigger, nil)
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "send trigger")
	}
	s.log.Info().Str("queue", s.out.Name()).Msg("pipeline triggered")
	return nil
}
