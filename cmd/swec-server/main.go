// Command swec-server runs the status aggregation service: two HTTP
// listeners (public read-only, private read-write) backed by a single
// in-memory registry of checkers, periodically dumped to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/swec/internal/config"
	"github.com/adred-codev/swec/internal/httpapi"
	"github.com/adred-codev/swec/internal/logging"
	"github.com/adred-codev/swec/internal/metrics"
	"github.com/adred-codev/swec/internal/server"
	"github.com/adred-codev/swec/internal/state"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "swec-server: failed to load configuration: %v\n", err)
		return 1
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("swec-server: starting")

	st := state.New(cfg.HistoryLength, cfg.BroadcastBuf, nil)
	m := metrics.New()

	publicMux := httpapi.ReadOnly(cfg.APIPrefix, st, m, log)
	publicMux.Path("/metrics").Handler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	privateMux := httpapi.ReadWrite(cfg.APIPrefix, st, m, log, cfg.WriteRatePS)

	srvCfg := server.Config{
		PublicAddr:      cfg.PublicAddr,
		PrivateAddr:     cfg.PrivateAddr,
		DumpPath:        cfg.DumpPath,
		DumpInterval:    cfg.DumpInterval,
		MetricsInterval: cfg.MetricsInterval,
	}
	srv := server.New(srvCfg, st, m, log, publicMux, privateMux)

	reconcile := state.ReconcileResize
	if cfg.TruncateOnLoad {
		reconcile = state.ReconcileTruncateFIFO
	}

	if err := srv.Run(context.Background(), reconcile); err != nil {
		log.Error().Err(err).Msg("swec-server: exited with error")
		return 1
	}
	log.Info().Msg("swec-server: clean shutdown")
	return 0
}
