// Package queue provides the named durable queue contract used by the pipeline
// workers plus its Postgres and in-memory implementations.
//
// Delivery is at-least-once: a received message stays invisible for the queue's
// visibility window and becomes redeliverable if it is not deleted in time.
// Consumers must therefore be idempotent
package queue

import (
	"context"
	"encoding/json"

	perr "graphpipe/internal/platform/errors"
)

// Envelope is the wire unit exchanged on every queue: a request-type tag plus
// an opaque payload. The transport never validates Data; only the consuming
// role does
type Envelope struct {
	RequestType string          `json:"requestType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an Envelope with a JSON-encoded payload
// a nil payload produces an envelope with empty Data
func NewEnvelope(requestType string, payload any) (Envelope, error) {
	env := Envelope{RequestType: requestType}
	if payload == nil {
		return env, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, perr.Wrapf(err, perr.ErrorCodeJSON, "encode %s payload", requestType)
	}
	env.Data = b
	return env, nil
}

// Decode unmarshals the envelope payload into v
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return perr.JSONErrf("%s message has no data", e.RequestType)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s payload", e.RequestType)
	}
	return nil
}

// Message is a received envelope plus the receipt needed to delete it
type Message struct {
	Envelope

	// ID is the transport receipt; opaque to consumers
	ID string

	// Deliveries counts how many times this message has been received,
	// including this delivery
	Deliveries int
}

// Queue is a named, durable, at-least-once channel.
//
// Receive dequeues at most one message and hides it for the configured
// visibility window; it returns (nil, nil) when the queue is empty.
// Count is best-effort and for diagnostics/tests only, never control flow
type Queue interface {
	Name() string
	Init(ctx context.Context) error
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
	Count(ctx context.Context) (int, error)
}
