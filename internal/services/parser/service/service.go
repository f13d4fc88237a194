// Package service implements the parser role: document intake, sentence
// filtering and SCORE dispatch
package service

import (
	"context"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

// Config tunes the parser role
type Config struct {
	// InQueue and OutQueue are the new-document and scoring queue names
	InQueue  string
	OutQueue string
}

// Service handles GET_DOCUMENT messages
type Service struct {
	log      logger.Logger
	cfg      Config
	analysis domain.AnalysisPort
	docs     domain.DocumentStore
	filter   *domain.EntityFilter

	in  queue.Queue
	out queue.Queue
}

// New constructs the parser service. A nil filter keeps every sentence that
// has mentions to score
func New(log logger.Logger, cfg Config, analysis domain.AnalysisPort, docs domain.DocumentStore, filter *domain.EntityFilter) *Service {
	if analysis == nil || docs == nil {
		panic("parser service: nil analysis or document store")
	}
	return &Service{log: log, cfg: cfg, analysis: analysis, docs: docs, filter: filter}
}

// Name implements runner.Role
func (s *Service) Name() string { return "parser" }

// QueueNames implements runner.Role
func (s *Service) QueueNames() (string, string) { return s.cfg.InQueue, s.cfg.OutQueue }

// BindQueues implements runner.Role
func (s *Service) BindQueues(in, out queue.Queue) { s.in, s.out = in, out }

// ProcessMessage routes the closed set of request types this queue accepts
func (s *Service) ProcessMessage(ctx context.Context, msg *queue.Message) error {
	switch msg.RequestType {
	case domain.RequestGetDocument:
		var p domain.GetDocumentPayload
		if err := domain.DecodePayload(msg.Envelope, &p); err != nil {
			return err
		}
		return s.parseDocument(ctx, p.Ref())
	default:
		return perr.Validationf("request %q does not belong on queue %s", msg.RequestType, s.in.Name())
	}
}

// parseDocument runs intake for one document. Redelivery re-runs the whole
// flow from scratch; every step is an upsert or a duplicate-tolerant send,
// so replays are harmless
func (s *Service) parseDocument(ctx context.Context, ref domain.DocRef) error {
	log := logger.C(ctx)
	log.Info().Int("source_id", ref.SourceID).Str("doc_id", ref.DocID).Msg("processing document")

	doc := domain.Document{DocRef: ref, Status: domain.StatusProcessing}
	if err := s.docs.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	sentences, err := s.analysis.FetchSentences(ctx, ref)
	if err != nil {
		if perr.Dropped(err) {
			// the source will never yield this document; mark it terminal so
			// operators can see it, then let the runner ack
			if uerr := s.docs.UpdateDocumentStatus(ctx, ref, domain.StatusNotAccessible); uerr != nil {
				return uerr
			}
		}
		return err
	}

	kept, err := s.filterSentences(ctx, sentences)
	if err != nil {
		return err
	}
	log.Info().Int("sentences", len(kept)).Msg("sentences selected for scoring")

	for i, sent := range kept {
		if err := s.sendScore(ctx, ref, i, sent); err != nil {
			return err
		}
	}

	env, err := queue.NewEnvelope(domain.RequestLastItemToScore, domain.LastItemPayload{
		SourceID: ref.SourceID,
		DocID:    ref.DocID,
	})
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "queue end-of-document mark")
	}

	return s.docs.UpdateDocumentStatus(ctx, ref, domain.StatusScoring)
}

// filterSentences keeps sentences whose extracted entities pass the
// supported-entity filter and that carry mentions to score. The returned
// order is the document order; the slice index becomes the durable
// sentenceIndex downstream
func (s *Service) filterSentences(ctx context.Context, sentences []domain.Sentence) ([]domain.Sentence, error) {
	kept := make([]domain.Sentence, 0, len(sentences))
	for _, sent := range sentences {
		if len(sent.Mentions) == 0 {
			// nothing for the scorer to work with
			continue
		}
		entities, err := s.analysis.ExtractEntities(ctx, sent)
		if err != nil {
			return nil, err
		}
		if _, ok := s.filter.Apply(entities); !ok {
			continue
		}
		kept = append(kept, sent)
	}
	return kept, nil
}

func (s *Service) sendScore(ctx context.Context, ref domain.DocRef, index int, sent domain.Sentence) error {
	env, err := queue.NewEnvelope(domain.RequestScore, domain.ScorePayload{
		SourceID:      ref.SourceID,
		DocID:         ref.DocID,
		SentenceIndex: index,
		Sentence:      sent.Text,
		Mentions:      sent.Mentions,
	})
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return perr.WrapIf(err, perr.ErrorCodeUnavailable, "queue sentence for scoring")
	}
	return nil
}
