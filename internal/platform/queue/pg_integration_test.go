//go:build integration_pg
// +build integration_pg

package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"graphpipe/internal/platform/store"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func TestPGQueue_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		AppName: "graphpipe-queue-integration",
		PG:      store.PGConfig{Enabled: true, URL: dsn},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close(ctx)

	// short window so the redelivery path is quick to observe
	q := NewPG(st.PG, "trigger", 2*time.Second)
	if err := q.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	env, err := NewEnvelope("trigger", map[string]string{"from": "2026-08-01"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := q.Send(ctx, env); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, err := q.Receive(ctx)
	if err != nil || msg == nil {
		t.Fatalf("Receive = %v, %v", msg, err)
	}
	if msg.RequestType != "trigger" || msg.Deliveries != 1 {
		t.Fatalf("message = %+v", msg)
	}

	// leased: a second worker sees nothing
	if again, err := q.Receive(ctx); err != nil || again != nil {
		t.Fatalf("Receive while leased = %v, %v", again, err)
	}

	// lease expires without an ack: redelivered with a bumped count
	time.Sleep(2500 * time.Millisecond)
	redelivered, err := q.Receive(ctx)
	if err != nil || redelivered == nil {
		t.Fatalf("Receive after expiry = %v, %v", redelivered, err)
	}
	if redelivered.ID != msg.ID || redelivered.Deliveries != 2 {
		t.Fatalf("redelivered = %+v", redelivered)
	}

	if err := q.Delete(ctx, redelivered); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, err := q.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	// queues are isolated by name
	other := NewPG(st.PG, "scoring", 2*time.Second)
	if err := other.Send(ctx, env); err != nil {
		t.Fatalf("Send other: %v", err)
	}
	if msg, err := q.Receive(ctx); err != nil || msg != nil {
		t.Fatalf("cross-queue Receive = %v, %v", msg, err)
	}
}
