package pg

import (
	"context"
	"strings"

	"graphpipe/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one executed statement for tracing
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives query events when SQL logging is enabled
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer builds a tracer that logs every statement. It pins its own logger
// to debug level so LogSQL=true prints regardless of the process-wide level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &queryLogger{log: ll}
}

type queryLogger struct{ log logger.Logger }

func (q *queryLogger) OnQuery(_ context.Context, ev QueryEvent) {
	evt := q.log.Info()
	if ev.Slow {
		evt = q.log.Warn()
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("pg query")
}

// compact flattens multi-line SQL into a single log-friendly line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
