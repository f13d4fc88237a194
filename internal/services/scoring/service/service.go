// Package service implements the scoring role: sentence scoring, relation
// persistence and document completion
package service

import (
	"context"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

// Config tunes the scoring role
type Config struct {
	// InQueue is the scoring queue name; the role has no output queue, RESCORE
	// feeds SCORE messages back into its own input
	InQueue string

	// PageSize is the rescore cursor page size; zero uses the store default
	PageSize int
}

// Service handles SCORE, LAST_ITEM_TO_SCORE and RESCORE messages
type Service struct {
	log      logger.Logger
	cfg      Config
	analysis domain.AnalysisPort
	docs     domain.DocumentStore

	in queue.Queue
}

// New constructs the scoring service
func New(log logger.Logger, cfg Config, analysis domain.AnalysisPort, docs domain.DocumentStore) *Service {
	if analysis == nil || docs == nil {
		panic("scoring service: nil analysis or document store")
	}
	return &Service{log: log, cfg: cfg, analysis: analysis, docs: docs}
}

// Name implements runner.Role
func (s *Service) Name() string { return "scoring" }

// QueueNames implements runner.Role
func (s *Service) QueueNames() (string, string) { return s.cfg.InQueue, "" }

// BindQueues implements runner.Role
func (s *Service) BindQueues(in, _ queue.Queue) { s.in = in }

// ProcessMessage routes the closed set of request types this queue accepts
func (s *Service) ProcessMessage(ctx context.Context, msg *queue.Message) error {
	switch msg.RequestType {
	case domain.RequestScore:
		return s.score(ctx, msg.Envelope)
	case domain.RequestLastItemToScore:
		return s.markProcessed(ctx, msg.Envelope)
	case domain.RequestRescore:
		return s.rescore(ctx)
	default:
		return perr.Validationf("request %q does not belong on queue %s", msg.RequestType, s.in.Name())
	}
}

func (s *Service) score(ctx context.Context, env queue.Envelope) error {
	var p domain.ScorePayload
	if err := domain.DecodePayload(env, &p); err != nil {
		return err
	}

	result, err := s.analysis.ScoreSentence(ctx, p)
	if err != nil {
		return err
	}

	if len(result.Relations) == 0 {
		// a sentence may simply yield nothing; ack without persisting
		logger.C(ctx).Info().
			Str("doc_id", p.DocID).
			Int("sentence_index", p.SentenceIndex).
			Msg("no relations scored for sentence")
		return nil
	}

	return s.docs.UpsertSentenceAndRelations(ctx, domain.SentenceScoring{
		StoredSentence: domain.StoredSentence{
			DocRef:        p.Ref(),
			SentenceIndex: p.SentenceIndex,
			Text:          p.Sentence,
			Mentions:      p.Mentions,
		},
		Entities:  result.Entities,
		Relations: result.Relations,
	})
}

// markProcessed handles the end-of-document sentinel. Queue ordering against
// the document's SCORE messages is not guaranteed, so PROCESSED is a
// liveness signal rather than proof that every relation landed
func (s *Service) markProcessed(ctx context.Context, env queue.Envelope) error {
	var p domain.LastItemPayload
	if err := domain.DecodePayload(env, &p); err != nil {
		return err
	}
	return s.docs.UpdateDocumentStatus(ctx, p.Ref(), domain.StatusProcessed)
}

// rescore re-emits every stored sentence as a fresh SCORE message into this
// role's own input queue, for re-scoring after a model upgrade
func (s *Service) rescore(ctx context.Context) error {
	log := logger.C(ctx)
	log.Info().Msg("rescoring all sentences")

	n := 0
	err := s.docs.StreamSentences(ctx, s.cfg.PageSize, func(sent domain.StoredSentence) error {
		env, err := queue.NewEnvelope(domain.RequestScore, domain.ScorePayload{
			SourceID:      sent.SourceID,
			DocID:         sent.DocID,
			SentenceIndex: sent.SentenceIndex,
			Sentence:      sent.Text,
			Mentions:      sent.Mentions,
		})
		if err != nil {
			return err
		}
		if err := s.in.Send(ctx, env); err != nil {
			return perr.WrapIf(err, perr.ErrorCodeUnavailable, "queue sentence for rescoring")
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("sentences", n).Msg("rescoring queued")
	return nil
}
