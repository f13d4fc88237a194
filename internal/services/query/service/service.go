// Package service implements the query role: it turns trigger ticks into
// GET_DOCUMENT work items for the parser
package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

// Config tunes the query role
type Config struct {
	// InQueue and OutQueue are the trigger and new-document queue names
	InQueue  string
	OutQueue string

	// LookbackDays is the default discovery window when the trigger carries
	// no explicit bounds; zero means 3
	LookbackDays int

	// FanOut caps concurrent GET_DOCUMENT sends; zero means 50
	FanOut int

	// PageSize is the reprocess cursor page size; zero uses the store default
	PageSize int
}

// Service handles TRIGGER and REPROCESS messages
type Service struct {
	log      logger.Logger
	cfg      Config
	analysis domain.AnalysisPort
	docs     domain.DocumentStore

	in  queue.Queue
	out queue.Queue

	// now is a seam for window tests
	now func() time.Time
}

// New constructs the query service
func New(log logger.Logger, cfg Config, analysis domain.AnalysisPort, docs domain.DocumentStore) *Service {
	if analysis == nil || docs == nil {
		panic("query service: nil analysis or document store")
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 3
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = 50
	}
	return &Service{log: log, cfg: cfg, analysis: analysis, docs: docs, now: time.Now}
}

// Name implements runner.Role
func (s *Service) Name() string { return "query" }

// QueueNames implements runner.Role
func (s *Service) QueueNames() (string, string) { return s.cfg.InQueue, s.cfg.OutQueue }

// BindQueues implements runner.Role
func (s *Service) BindQueues(in, out queue.Queue) { s.in, s.out = in, out }

// ProcessMessage routes the closed set of request types this queue accepts
func (s *Service) ProcessMessage(ctx context.Context, msg *queue.Message) error {
	switch msg.RequestType {
	case domain.RequestTrigger:
		return s.trigger(ctx, msg.Envelope)
	case domain.RequestReprocess:
		return s.reprocess(ctx)
	default:
		return perr.Validationf("request %q does not belong on queue %s", msg.RequestType, s.in.Name())
	}
}

func (s *Service) trigger(ctx context.Context, env queue.Envelope) error {
	from, to, err := s.window(env)
	if err != nil {
		return err
	}

	log := logger.C(ctx)
	log.Info().
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Msg("discovering documents")

	refs, err := s.analysis.DiscoverDocuments(ctx, from, to)
	if err != nil {
		return err
	}

	// one bulk lookup, not a round trip per document
	refs, err = s.docs.FilterUnprocessed(ctx, refs)
	if err != nil {
		return err
	}
	log.Info().Int("documents", len(refs)).Msg("queueing new documents")

	// bounded fan-out; any failed send fails the whole trigger and the window
	// is re-run on redelivery, which is safe because intake is idempotent
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FanOut)
	for _, ref := range refs {
		g.Go(func() error { return s.enqueueDocument(gctx, ref) })
	}
	return g.Wait()
}

// window resolves the discovery bounds: explicit envelope values win, then
// now and now minus the lookback
func (s *Service) window(env queue.Envelope) (from, to time.Time, err error) {
	var p domain.TriggerPayload
	if len(env.Data) > 0 {
		if err := domain.DecodePayload(env, &p); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	to = s.now().UTC()
	if p.To != "" {
		if to, err = parseDate(p.To); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	from = to.AddDate(0, 0, -s.cfg.LookbackDays)
	if p.From != "" {
		if from, err = parseDate(p.From); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, perr.Validationf("unparseable date %q", s)
}

func (s *Service) reprocess(ctx context.Context) error {
	log := logger.C(ctx)
	log.Info().Msg("reprocessing all documents")

	n := 0
	err := s.docs.StreamDocuments(ctx, s.cfg.PageSize, func(ref domain.DocRef) error {
		n++
		return s.enqueueDocument(ctx, ref)
	})
	if err != nil {
		return err
	}
	log.Info().Int("documents", n).Msg("reprocessing queued")
	return nil
}

func (s *Service) enqueueDocument(ctx context.Context, ref domain.DocRef) error {
	env, err := queue.NewEnvelope(domain.RequestGetDocument, domain.GetDocumentPayload{
		SourceID: ref.SourceID,
		DocID:    ref.DocID,
	})
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "queue document "+ref.DocID)
	}
	return nil
}
