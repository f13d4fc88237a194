package domain

import (
	"context"
	"time"
)

// AnalysisPort is the external natural-language analysis service consumed by
// the pipeline. All calls are blocking, fallible I/O; transport failures are
// retryable and surface as genuine error values on every path
type AnalysisPort interface {
	// DiscoverDocuments lists document ids published inside the date window
	DiscoverDocuments(ctx context.Context, from, to time.Time) ([]DocRef, error)

	// FetchSentences returns a document's sentences with their mention spans
	FetchSentences(ctx context.Context, ref DocRef) ([]Sentence, error)

	// ScoreSentence scores one sentence for entities and relations.
	// Fails with a data error when the payload lacks sentence/mention data
	ScoreSentence(ctx context.Context, req ScorePayload) (Scoring, error)

	// ExtractEntities extracts entity mentions from a raw sentence
	ExtractEntities(ctx context.Context, s Sentence) ([]Mention, error)
}

// DocumentStore is the relational-store facade consumed by the roles.
// Upserts are idempotent so producer-side retries are safe; status writes
// never regress a document
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc Document) error
	UpdateDocumentStatus(ctx context.Context, ref DocRef, status DocStatus) error
	UpsertSentenceAndRelations(ctx context.Context, rec SentenceScoring) error

	// FilterUnprocessed returns the subset of refs not yet known to the store,
	// in one round trip
	FilterUnprocessed(ctx context.Context, refs []DocRef) ([]DocRef, error)

	// StreamDocuments and StreamSentences page through the full table with the
	// batched cursor, invoking fn synchronously per row
	StreamDocuments(ctx context.Context, pageSize int, fn func(DocRef) error) error
	StreamSentences(ctx context.Context, pageSize int, fn func(StoredSentence) error) error
}
