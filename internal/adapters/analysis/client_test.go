package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "graphpipe/internal/platform/errors"
	"graphpipe/internal/services/pipeline/domain"
)

func TestDiscoverDocumentsSendsWindowAndAuth(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotAuth string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []domain.DocRef{{SourceID: 1, DocID: "85500001"}},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "secret"})
	from := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	docs, err := c.DiscoverDocuments(context.Background(), from, to)
	if err != nil {
		t.Fatalf("DiscoverDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].DocID != "85500001" {
		t.Fatalf("docs = %v", docs)
	}
	if gotPath != "/documents/search" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["from"] != "2026-08-27" || gotBody["to"] != "2026-08-30" {
		t.Fatalf("window = %v", gotBody)
	}
}

func TestScoreSentenceRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	c := New(Config{URL: "http://unused.invalid"})
	_, err := c.ScoreSentence(context.Background(), domain.ScorePayload{
		SourceID: 1,
		DocID:    "85500001",
	})
	if err == nil {
		t.Fatal("ScoreSentence should reject a payload with no sentence data")
	}
	if !perr.Dropped(err) {
		t.Fatalf("empty payloads are data errors, got %v", perr.CodeOf(err))
	}
}

func TestScoreSentenceRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scoring" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(domain.Scoring{
			Entities: []domain.Entity{{TypeID: 1, ID: "g1", Name: "BRCA1"}},
			Relations: []domain.Relation{{
				ScoringServiceID: "svc-a",
				ModelVersion:     "1.0",
				Entity1:          domain.EntityRef{TypeID: 1, ID: "g1"},
				Entity2:          domain.EntityRef{TypeID: 2, ID: "d1"},
				RelationType:     "associates",
				Score:            0.93,
			}},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL})
	got, err := c.ScoreSentence(context.Background(), domain.ScorePayload{
		SourceID: 1,
		DocID:    "85500001",
		Sentence: "BRCA1 is linked to cancer.",
		Mentions: []domain.Mention{{Type: "Gene", ID: "g1", Value: "BRCA1"}},
	})
	if err != nil {
		t.Fatalf("ScoreSentence: %v", err)
	}
	if len(got.Entities) != 1 || len(got.Relations) != 1 || got.Relations[0].Score != 0.93 {
		t.Fatalf("scoring = %+v", got)
	}
}

func TestServerErrorsAreRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL})
	_, err := c.FetchSentences(context.Background(), domain.DocRef{SourceID: 1, DocID: "85500001"})
	if err == nil {
		t.Fatal("FetchSentences should surface the 503")
	}
	if !perr.Retryable(err) {
		t.Fatalf("5xx must be retryable, got %v", perr.CodeOf(err))
	}
}

func TestClientErrorsAreDropped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such document", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL})
	_, err := c.ExtractEntities(context.Background(), domain.Sentence{Text: "x"})
	if err == nil {
		t.Fatal("ExtractEntities should surface the 404")
	}
	if perr.Retryable(err) {
		t.Fatal("4xx must not be retried")
	}
	if !perr.Dropped(err) {
		t.Fatalf("4xx should be droppable, got %v", perr.CodeOf(err))
	}
}
