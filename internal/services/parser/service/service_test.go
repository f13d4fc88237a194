package service

import (
	"context"
	"testing"
	"time"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

type fakeAnalysis struct {
	sentences func(ref domain.DocRef) ([]domain.Sentence, error)
	entities  func(s domain.Sentence) ([]domain.Mention, error)
}

func (f *fakeAnalysis) DiscoverDocuments(context.Context, time.Time, time.Time) ([]domain.DocRef, error) {
	panic("not used by parser")
}

func (f *fakeAnalysis) FetchSentences(_ context.Context, ref domain.DocRef) ([]domain.Sentence, error) {
	return f.sentences(ref)
}

func (f *fakeAnalysis) ScoreSentence(context.Context, domain.ScorePayload) (domain.Scoring, error) {
	panic("not used by parser")
}

func (f *fakeAnalysis) ExtractEntities(_ context.Context, s domain.Sentence) ([]domain.Mention, error) {
	return f.entities(s)
}

type fakeDocs struct {
	statuses map[domain.DocRef]domain.DocStatus
	upserts  int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{statuses: map[domain.DocRef]domain.DocStatus{}}
}

func (f *fakeDocs) setStatus(ref domain.DocRef, status domain.DocStatus) {
	if status > f.statuses[ref] {
		f.statuses[ref] = status
	}
}

func (f *fakeDocs) UpsertDocument(_ context.Context, doc domain.Document) error {
	f.upserts++
	f.setStatus(doc.DocRef, doc.Status)
	return nil
}

func (f *fakeDocs) UpdateDocumentStatus(_ context.Context, ref domain.DocRef, status domain.DocStatus) error {
	f.setStatus(ref, status)
	return nil
}

func (f *fakeDocs) UpsertSentenceAndRelations(context.Context, domain.SentenceScoring) error {
	panic("not used by parser")
}

func (f *fakeDocs) FilterUnprocessed(context.Context, []domain.DocRef) ([]domain.DocRef, error) {
	panic("not used by parser")
}

func (f *fakeDocs) StreamDocuments(context.Context, int, func(domain.DocRef) error) error {
	panic("not used by parser")
}

func (f *fakeDocs) StreamSentences(context.Context, int, func(domain.StoredSentence) error) error {
	panic("not used by parser")
}

func mention(typ, value string) domain.Mention {
	return domain.Mention{From: "0", To: "4", ID: value, Type: typ, Value: value}
}

func sentence(text string, mentions ...domain.Mention) domain.Sentence {
	return domain.Sentence{Text: text, Mentions: mentions}
}

func newService(t *testing.T, analysis *fakeAnalysis, docs *fakeDocs, filterSpec string) (*Service, *queue.Memory) {
	t.Helper()
	filter, err := domain.ParseEntityFilter(filterSpec)
	if err != nil {
		t.Fatalf("ParseEntityFilter: %v", err)
	}
	s := New(logger.Logger{}, Config{InQueue: "newids", OutQueue: "scoring"}, analysis, docs, filter)
	in := queue.NewMemory("newids", time.Minute)
	out := queue.NewMemory("scoring", time.Minute)
	s.BindQueues(in, out)
	return s, out
}

func getDocumentMessage(t *testing.T, ref domain.DocRef) *queue.Message {
	t.Helper()
	env, err := queue.NewEnvelope(domain.RequestGetDocument, domain.GetDocumentPayload{
		SourceID: ref.SourceID,
		DocID:    ref.DocID,
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return &queue.Message{Envelope: env, ID: "m1", Deliveries: 1}
}

func drain(t *testing.T, q *queue.Memory) []queue.Envelope {
	t.Helper()
	var out []queue.Envelope
	for {
		msg, err := q.Receive(context.Background())
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if msg == nil {
			return out
		}
		out = append(out, msg.Envelope)
		if err := q.Delete(context.Background(), msg); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
}

func TestParserFiltersScoresAndMarksScoring(t *testing.T) {
	t.Parallel()

	ref := domain.DocRef{SourceID: domain.SourceGeneral, DocID: "85500001"}
	gene := mention("Gene", "BRCA1")
	disease := mention("Disease", "cancer")
	city := mention("City", "Boston")

	// three sentences, the middle one lacks the required Gene mention
	analysis := &fakeAnalysis{
		sentences: func(domain.DocRef) ([]domain.Sentence, error) {
			return []domain.Sentence{
				sentence("BRCA1 is linked to cancer.", gene, disease),
				sentence("Boston is rainy.", city),
				sentence("BRCA1 mutations are heritable.", gene),
			}, nil
		},
		entities: func(s domain.Sentence) ([]domain.Mention, error) { return s.Mentions, nil },
	}
	docs := newFakeDocs()
	s, out := newService(t, analysis, docs, "Gene:required;Disease")

	if err := s.ProcessMessage(context.Background(), getDocumentMessage(t, ref)); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	envs := drain(t, out)
	if len(envs) != 3 {
		t.Fatalf("sent %d messages, want 2 score + 1 sentinel", len(envs))
	}

	// scores come first, in document order, re-indexed over the kept set
	for i, env := range envs[:2] {
		if env.RequestType != domain.RequestScore {
			t.Fatalf("message %d type = %q", i, env.RequestType)
		}
		var p domain.ScorePayload
		if err := domain.DecodePayload(env, &p); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		if p.SentenceIndex != i {
			t.Fatalf("sentence index = %d, want %d", p.SentenceIndex, i)
		}
	}

	last := envs[2]
	if last.RequestType != domain.RequestLastItemToScore {
		t.Fatalf("final message type = %q", last.RequestType)
	}
	var sentinel domain.LastItemPayload
	if err := domain.DecodePayload(last, &sentinel); err != nil {
		t.Fatalf("DecodePayload sentinel: %v", err)
	}
	if sentinel.Ref() != ref {
		t.Fatalf("sentinel ref = %+v", sentinel.Ref())
	}

	if docs.statuses[ref] != domain.StatusScoring {
		t.Fatalf("status = %v, want scoring", docs.statuses[ref])
	}
}

func TestParserRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	ref := domain.DocRef{SourceID: 1, DocID: "85500001"}
	analysis := &fakeAnalysis{
		sentences: func(domain.DocRef) ([]domain.Sentence, error) {
			return []domain.Sentence{sentence("BRCA1 is linked to cancer.", mention("Gene", "BRCA1"))}, nil
		},
		entities: func(s domain.Sentence) ([]domain.Mention, error) { return s.Mentions, nil },
	}
	docs := newFakeDocs()
	s, out := newService(t, analysis, docs, "")

	for range 2 {
		if err := s.ProcessMessage(context.Background(), getDocumentMessage(t, ref)); err != nil {
			t.Fatalf("ProcessMessage: %v", err)
		}
	}

	// two runs mean duplicate (harmless) sends, but one document at SCORING
	if docs.upserts != 2 {
		t.Fatalf("upserts = %d, want 2", docs.upserts)
	}
	if len(docs.statuses) != 1 || docs.statuses[ref] != domain.StatusScoring {
		t.Fatalf("statuses = %v", docs.statuses)
	}
	if envs := drain(t, out); len(envs) != 4 {
		t.Fatalf("sent %d messages, want 4", len(envs))
	}
}

func TestParserSkipsSentencesWithoutMentions(t *testing.T) {
	t.Parallel()

	ref := domain.DocRef{SourceID: 1, DocID: "85500001"}
	analysis := &fakeAnalysis{
		sentences: func(domain.DocRef) ([]domain.Sentence, error) {
			return []domain.Sentence{sentence("Nothing annotated here.")}, nil
		},
		entities: func(s domain.Sentence) ([]domain.Mention, error) {
			t.Fatal("extraction should be skipped for mentionless sentences")
			return nil, nil
		},
	}
	docs := newFakeDocs()
	s, out := newService(t, analysis, docs, "")

	if err := s.ProcessMessage(context.Background(), getDocumentMessage(t, ref)); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	envs := drain(t, out)
	if len(envs) != 1 || envs[0].RequestType != domain.RequestLastItemToScore {
		t.Fatalf("envs = %v, want only the sentinel", envs)
	}
}

func TestParserMarksUnfetchableDocuments(t *testing.T) {
	t.Parallel()

	ref := domain.DocRef{SourceID: 1, DocID: "85500001"}
	analysis := &fakeAnalysis{
		sentences: func(domain.DocRef) ([]domain.Sentence, error) {
			return nil, perr.InvalidArgf("document not found at source")
		},
	}
	docs := newFakeDocs()
	s, _ := newService(t, analysis, docs, "")

	err := s.ProcessMessage(context.Background(), getDocumentMessage(t, ref))
	if err == nil || !perr.Dropped(err) {
		t.Fatalf("err = %v, want droppable", err)
	}
	if docs.statuses[ref] != domain.StatusNotAccessible {
		t.Fatalf("status = %v, want not_accessible", docs.statuses[ref])
	}
}

func TestParserRetriesTransientFetchFailures(t *testing.T) {
	t.Parallel()

	ref := domain.DocRef{SourceID: 1, DocID: "85500001"}
	analysis := &fakeAnalysis{
		sentences: func(domain.DocRef) ([]domain.Sentence, error) {
			return nil, perr.Unavailablef("analysis service down")
		},
	}
	docs := newFakeDocs()
	s, _ := newService(t, analysis, docs, "")

	err := s.ProcessMessage(context.Background(), getDocumentMessage(t, ref))
	if err == nil || perr.Dropped(err) {
		t.Fatalf("err = %v, want retryable", err)
	}
	// stays at PROCESSING, never marked terminal for a transient failure
	if docs.statuses[ref] != domain.StatusProcessing {
		t.Fatalf("status = %v, want processing", docs.statuses[ref])
	}
}

func TestParserMalformedPayloadIsDropped(t *testing.T) {
	t.Parallel()

	s, _ := newService(t, &fakeAnalysis{}, newFakeDocs(), "")

	env := queue.Envelope{RequestType: domain.RequestGetDocument, Data: []byte(`{"sourceId": 1}`)}
	err := s.ProcessMessage(context.Background(), &queue.Message{Envelope: env, ID: "m1"})
	if err == nil || !perr.Dropped(err) {
		t.Fatalf("err = %v, want droppable", err)
	}
}
