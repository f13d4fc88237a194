// Package analysis is the HTTP client for the external document analysis
// service, the pipeline's only source of document ids, sentences and scores
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/services/pipeline/domain"
)

// Config carries the analysis service endpoint and credentials
type Config struct {
	// URL is the service base URL without a trailing slash
	URL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout bounds each request; zero means 30s
	Timeout time.Duration
}

// Client implements domain.AnalysisPort over HTTP
type Client struct {
	cfg  Config
	http *http.Client
}

var _ domain.AnalysisPort = (*Client)(nil)

// New returns a Client for the given service
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// DiscoverDocuments lists documents published inside [from, to]
func (c *Client) DiscoverDocuments(ctx context.Context, from, to time.Time) ([]domain.DocRef, error) {
	req := map[string]string{
		"from": from.UTC().Format("2006-01-02"),
		"to":   to.UTC().Format("2006-01-02"),
	}
	var resp struct {
		Documents []domain.DocRef `json:"documents"`
	}
	if err := c.post(ctx, "/documents/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// FetchSentences returns the document's sentences with mention annotations
func (c *Client) FetchSentences(ctx context.Context, ref domain.DocRef) ([]domain.Sentence, error) {
	var resp struct {
		Sentences []domain.Sentence `json:"sentences"`
	}
	if err := c.post(ctx, "/documents/sentences", ref, &resp); err != nil {
		return nil, err
	}
	return resp.Sentences, nil
}

// ScoreSentence scores one sentence. A payload without sentence text or
// mentions is a data error and never reaches the wire
func (c *Client) ScoreSentence(ctx context.Context, req domain.ScorePayload) (domain.Scoring, error) {
	if req.Sentence == "" || len(req.Mentions) == 0 {
		return domain.Scoring{}, perr.InvalidArgf("score request for %d/%s has no sentence data", req.SourceID, req.DocID)
	}
	var resp domain.Scoring
	if err := c.post(ctx, "/scoring", req, &resp); err != nil {
		return domain.Scoring{}, err
	}
	return resp, nil
}

// ExtractEntities extracts entity mentions from one sentence
func (c *Client) ExtractEntities(ctx context.Context, s domain.Sentence) ([]domain.Mention, error) {
	var resp struct {
		Mentions []domain.Mention `json:"mentions"`
	}
	if err := c.post(ctx, "/entities", map[string]string{"sentence": s.Text}, &resp); err != nil {
		return nil, err
	}
	return resp.Mentions, nil
}

func (c *Client) post(ctx context.Context, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "encode %s request", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "build %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "call %s", path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		// transient on the service side, let the queue redeliver
		return perr.Unavailablef("%s returned %s", path, resp.Status)
	default:
		return perr.InvalidArgf("%s returned %s", path, resp.Status)
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode %s response", path)
	}
	return nil
}
