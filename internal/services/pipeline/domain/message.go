package domain

import (
	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/platform/queue"

	"github.com/go-playground/validator/v10"
)

// Request types routed over the pipeline queues. Each role accepts a closed
// subset; anything else is logged and acked since it can never become
// processable on that queue
const (
	RequestTrigger        = "trigger"
	RequestGetDocument    = "getDocument"
	RequestScore          = "score"
	RequestLastItemToScore = "lastItemToScore"
	RequestRescore        = "rescore"
	RequestReprocess      = "reprocess"
)

// TriggerPayload optionally narrows the discovery date window; both bounds
// default when absent (to = now, from = now - lookback)
type TriggerPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// GetDocumentPayload asks the parser to process one document
type GetDocumentPayload struct {
	SourceID int    `json:"sourceId" validate:"required"`
	DocID    string `json:"docId" validate:"required"`
}

// Ref converts the payload to a DocRef
func (p GetDocumentPayload) Ref() DocRef { return DocRef{SourceID: p.SourceID, DocID: p.DocID} }

// ScorePayload carries one sentence to the scoring role. SentenceIndex is the
// durable filtered index assigned by the parser, so zero is a valid value
type ScorePayload struct {
	SourceID      int       `json:"sourceId" validate:"required"`
	DocID         string    `json:"docId" validate:"required"`
	SentenceIndex int       `json:"sentenceIndex"`
	Sentence      string    `json:"sentence" validate:"required"`
	Mentions      []Mention `json:"mentions" validate:"required"`
}

// Ref converts the payload to a DocRef
func (p ScorePayload) Ref() DocRef { return DocRef{SourceID: p.SourceID, DocID: p.DocID} }

// LastItemPayload is the end-of-document sentinel sent after all of a
// document's SCORE messages. Queue ordering between the sentinel and those
// messages is not guaranteed; PROCESSED is a liveness signal, not a barrier.
// If a correctness-grade completion marker is ever needed, replace the
// sentinel with a per-document outstanding count decremented per scored
// sentence
type LastItemPayload struct {
	SourceID int    `json:"sourceId" validate:"required"`
	DocID    string `json:"docId" validate:"required"`
}

// Ref converts the payload to a DocRef
func (p LastItemPayload) Ref() DocRef { return DocRef{SourceID: p.SourceID, DocID: p.DocID} }

var validate = validator.New()

// DecodePayload unmarshals and validates an envelope payload into v.
// Failures are data errors: redelivery can never fix them, so consumers log
// and ack
func DecodePayload(env queue.Envelope, v any) error {
	if err := env.Decode(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeValidation, "invalid %s payload", env.RequestType)
	}
	return nil
}
