// Command pipeline-trigger fires one TRIGGER message and exits. It is the
// pipeline's heartbeat, meant to be run by an external scheduler
package main

import (
	"context"

	"graphpipe/internal/modkit"
	"graphpipe/internal/modkit/module"
	"graphpipe/internal/platform/config"
	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/platform/store"
	"graphpipe/internal/runner"

	triggermod "graphpipe/internal/services/trigger/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")
	pipeCfg := root.Prefix("PIPELINE_")

	l := logger.Get()
	ctx := context.Background()

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

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}

	mod := triggermod.New(deps)
	module.Register(mod.Name(), mod.Ports())
	ports := module.MustPortsOf[triggermod.Ports](mod)

	visibility := pipeCfg.MayDuration("VISIBILITY_TIMEOUT", 0)
	opener := func(name string) queue.Queue { return queue.NewPG(st.PG, name, visibility) }

	r := runner.New(*l, runner.Config{}, ports.Worker, opener)
	if err := r.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("trigger run failed")
	}
}
