// Command pipeline-query runs the query worker: it turns TRIGGER messages
// into per-document GET_DOCUMENT fan-out
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graphpipe/internal/adapters/analysis"
	"graphpipe/internal/diag"
	"graphpipe/internal/modkit"
	"graphpipe/internal/modkit/module"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/platform/store"
	"graphpipe/internal/runner"
	"graphpipe/internal/services/pipeline/repo"

	querymod "graphpipe/internal/services/query/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")
	pipeCfg := root.Prefix("PIPELINE_")
	anCfg := root.Prefix("ANALYSIS_")

	l := logger.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbCfg.MustString("DBURL"),
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	docs := repo.New(st.PG)
	if err := docs.InitSchema(ctx); err != nil {
		l.Fatal().Err(err).Msg("schema init failed")
	}

	client := analysis.New(analysis.Config{
		URL:     anCfg.MustString("URL"),
		APIKey:  anCfg.MayString("API_KEY", ""),
		Timeout: anCfg.MayDuration("TIMEOUT", 30*time.Second),
	})

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}

	mod := querymod.New(deps, client, docs)
	module.Register(mod.Name(), mod.Ports())
	ports := module.MustPortsOf[querymod.Ports](mod)

	visibility := pipeCfg.MayDuration("VISIBILITY_TIMEOUT", 5*time.Minute)
	opener := func(name string) queue.Queue { return queue.NewPG(st.PG, name, visibility) }

	if addr := pipeCfg.MayString("DIAG_ADDR", ""); addr != "" {
		opts := querymod.FromConfig(root)
		d := diag.New(*l, addr, st,
			queue.NewPG(st.PG, opts.TriggerQueue, visibility),
			queue.NewPG(st.PG, opts.NewIDsQueue, visibility),
		)
		d.Start()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = d.Shutdown(sctx)
		}()
	}

	r := runner.New(*l, runner.Config{
		PollInterval: pipeCfg.MayDuration("POLL_INTERVAL", 5*time.Second),
	}, ports.Worker, opener)

	if err := r.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("query worker failed")
	}
}
