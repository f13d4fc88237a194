package pg

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"graphpipe/internal/platform/testkit"
)

func TestOpenAppliesPoolConfig(t *testing.T) {
	testkit.Serial(t)

	var got *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		got = cfg
		return nil, nil
	})

	p, err := Open(context.Background(), Config{
		URL:      "postgres://u:p@localhost:5432/db",
		MaxConns: 7,
		SlowMs:   250,
	}, nil, func(c *pgxpool.Config) { c.MinConns = 2 })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got == nil {
		t.Fatal("pool constructor not called")
	}
	if got.MaxConns != 7 {
		t.Fatalf("MaxConns = %d, want 7", got.MaxConns)
	}
	if got.MinConns != 2 {
		t.Fatalf("MinConns = %d, want 2", got.MinConns)
	}
	if p.SlowMs != 250 {
		t.Fatalf("SlowMs = %d, want 250", p.SlowMs)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://not-a-url"}, nil, nil); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestCloseNilSafe(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}

func TestCompactCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	in := "SELECT *\n\tFROM   documents\r\n WHERE doc_id = $1"
	want := "SELECT * FROM documents WHERE doc_id = $1"
	if got := compact(in); got != want {
		t.Fatalf("compact = %q, want %q", got, want)
	}
}
