package service

import (
	"context"
	"testing"
	"time"

	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/services/pipeline/domain"
)

func TestRunSendsOneTrigger(t *testing.T) {
	t.Parallel()

	out := queue.NewMemory("trigger", time.Minute)
	s := New(logger.Logger{}, Config{OutQueue: "trigger"})
	s.BindQueues(nil, out)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msg, err := out.Receive(context.Background())
	if err != nil || msg == nil {
		t.Fatalf("Receive = %v, %v", msg, err)
	}
	if msg.RequestType != domain.RequestTrigger {
		t.Fatalf("request type = %q", msg.RequestType)
	}
	if len(msg.Data) != 0 {
		t.Fatalf("trigger must carry no payload, got %s", msg.Data)
	}
	if n, _ := out.Count(context.Background()); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestQueueShapeIsSendOnly(t *testing.T) {
	t.Parallel()

	s := New(logger.Logger{}, Config{OutQueue: "trigger"})
	in, outName := s.QueueNames()
	if in != "" || outName != "trigger" {
		t.Fatalf("QueueNames = %q, %q", in, outName)
	}
}
