// Package runner hosts pipeline roles: it owns their queues, the receive
// loop and the ack decision. Roles only ever process; the runner is the one
// place a message gets deleted
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
)

// Role is the contract every pipeline role satisfies
type Role interface {
	Name() string

	// QueueNames returns the input and output queue names; either may be empty
	QueueNames() (in, out string)

	// BindQueues hands the role its initialized queues before any work starts
	BindQueues(in, out queue.Queue)
}

// Continuous roles drain their input queue until the runner stops
type Continuous interface {
	Role
	ProcessMessage(ctx context.Context, msg *queue.Message) error
}

// Scheduled roles do one unit of work per invocation and exit
type Scheduled interface {
	Role
	Run(ctx context.Context) error
}

// Config tunes the runner loop
type Config struct {
	// PollInterval is the idle sleep when the input queue is empty and the
	// backoff after a receive error; zero means 5s
	PollInterval time.Duration
}

// QueueOpener builds a transport-specific queue for a name
type QueueOpener func(name string) queue.Queue

// Option mutates a Runner during New
type Option func(*Runner)

// WithQueues injects pre-built queues, bypassing the opener. Used by tests
// and by roles whose queues are shared
func WithQueues(in, out queue.Queue) Option {
	return func(r *Runner) {
		r.in = in
		r.out = out
	}
}

// Runner drives one role
type Runner struct {
	log  logger.Logger
	cfg  Config
	role Role
	open QueueOpener

	in  queue.Queue
	out queue.Queue

	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Runner for role. The opener may be nil when all queues are
// injected via WithQueues
func New(log logger.Logger, cfg Config, role Role, open QueueOpener, opts ...Option) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	r := &Runner{
		log:  log,
		cfg:  cfg,
		role: role,
		open: open,
		stop: make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start initializes the role's queues and runs it. Continuous roles block
// until Stop or context cancellation; scheduled roles return after one run
func (r *Runner) Start(ctx context.Context) error {
	if err := r.initQueues(ctx); err != nil {
		return err
	}
	r.role.BindQueues(r.in, r.out)

	switch role := r.role.(type) {
	case Continuous:
		if r.in == nil {
			return perr.Initf("role %s is continuous but has no input queue", r.role.Name())
		}
		return r.consume(ctx, role)
	case Scheduled:
		return role.Run(ctx)
	default:
		return perr.Initf("role %s implements neither Continuous nor Scheduled", r.role.Name())
	}
}

// Stop asks a continuous runner to exit after the in-flight message
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Runner) initQueues(ctx context.Context) error {
	inName, outName := r.role.QueueNames()

	var err error
	if r.in, err = r.ensureQueue(ctx, r.in, inName); err != nil {
		return err
	}
	if r.out, err = r.ensureQueue(ctx, r.out, outName); err != nil {
		return err
	}
	return nil
}

func (r *Runner) ensureQueue(ctx context.Context, q queue.Queue, name string) (queue.Queue, error) {
	if q == nil {
		if name == "" {
			return nil, nil
		}
		if r.open == nil {
			return nil, perr.Initf("role %s needs queue %s but no opener was provided", r.role.Name(), name)
		}
		q = r.open(name)
	}
	if err := q.Init(ctx); err != nil {
		return nil, perr.WrapIf(err, perr.ErrorCodeInit, "init queue "+q.Name())
	}
	r.log.Info().Str("queue", q.Name()).Msg("queue initialized")
	return q, nil
}

func (r *Runner) consume(ctx context.Context, role Continuous) error {
	r.log.Info().Str("role", role.Name()).Str("queue", r.in.Name()).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			r.log.Info().Str("role", role.Name()).Msg("worker stopped")
			return nil
		default:
		}

		msg, err := r.in.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Error().Err(err).Str("queue", r.in.Name()).Msg("receive failed")
			r.idle(ctx)
			continue
		}
		if msg == nil {
			r.idle(ctx)
			continue
		}

		r.handle(ctx, role, msg)
	}
}

func (r *Runner) handle(ctx context.Context, role Continuous, msg *queue.Message) {
	mctx := logger.WithMessage(ctx, r.in.Name(), msg.ID, msg.RequestType)
	log := logger.C(mctx)

	err := role.ProcessMessage(mctx, msg)
	switch {
	case err == nil:
		if derr := r.in.Delete(ctx, msg); derr != nil {
			log.Error().Err(derr).Msg("ack failed, message will be redelivered")
		}
	case perr.Dropped(err):
		// redelivery can never fix a malformed or unroutable message
		log.Warn().Err(err).Int("deliveries", msg.Deliveries).Msg("dropping unprocessable message")
		if derr := r.in.Delete(ctx, msg); derr != nil {
			log.Error().Err(derr).Msg("drop failed, message will be redelivered")
		}
	default:
		log.Error().Err(err).Int("deliveries", msg.Deliveries).Msg("processing failed, leaving for redelivery")
	}
}

func (r *Runner) idle(ctx context.Context) {
	t := time.NewTimer(r.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-r.stop:
	case <-t.C:
	}
}
