// Package server implements the server lifecycle (C8): binding the
// public and private listeners, running the periodic+signal-driven
// dumper, and shutting down cleanly on the canonical termination
// signals, following the teacher's signal.NotifyContext + http.Server
// shutdown pattern.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/swec/internal/metrics"
	"github.com/adred-codev/swec/internal/state"
)

// Config holds everything Run needs beyond the state it serves.
type Config struct {
	PublicAddr      string
	PrivateAddr     string
	DumpPath        string
	DumpInterval    time.Duration
	MetricsInterval time.Duration
}

// Server owns the two HTTP listeners and the background dumper.
type Server struct {
	cfg     Config
	state   *state.State
	metrics *metrics.Metrics
	log     zerolog.Logger

	public  *http.Server
	private *http.Server
}

// New creates a Server bound to public and private handlers built by
// the caller (httpapi.ReadOnly / httpapi.ReadWrite).
func New(cfg Config, s *state.State, m *metrics.Metrics, log zerolog.Logger, publicHandler, privateHandler http.Handler) *Server {
	return &Server{
		cfg:     cfg,
		state:   s,
		metrics: m,
		log:     log,
		public:  &http.Server{Addr: cfg.PublicAddr, Handler: publicHandler},
		private: &http.Server{Addr: cfg.PrivateAddr, Handler: privateHandler},
	}
}

// Run loads any existing dump, then blocks until one of the canonical
// termination signals arrives or a listener fails, running the dumper
// and metrics sampler concurrently. Before returning it writes a final
// dump; a failure of that dump is logged and does not change the
// returned error.
func (s *Server) Run(ctx context.Context, reconcile state.ReconcileMode) error {
	if err := s.loadDump(reconcile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx,
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP, syscall.SIGALRM, syscall.SIGPIPE)
	defer stop()

	dumpSignal := make(chan os.Signal, 1)
	signal.Notify(dumpSignal, syscall.SIGUSR1)
	defer signal.Stop(dumpSignal)

	errCh := make(chan error, 2)
	go func() {
		s.log.Info().Str("addr", s.cfg.PublicAddr).Msg("server: public listener starting")
		if err := s.public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		s.log.Info().Str("addr", s.cfg.PrivateAddr).Msg("server: private listener starting")
		if err := s.private.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.metrics != nil && s.cfg.MetricsInterval > 0 {
		go s.metrics.RunSampler(ctx, s.cfg.MetricsInterval, s.log)
	}

	go s.runDumper(ctx, dumpSignal)

	var runErr error
	select {
	case runErr = <-errCh:
		s.log.Error().Err(runErr).Msg("server: listener failed, shutting down")
	case <-ctx.Done():
		s.log.Info().Msg("server: shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.public.Shutdown(shutdownCtx)
	_ = s.private.Shutdown(shutdownCtx)

	if err := s.dump(); err != nil {
		s.log.Error().Err(err).Msg("server: final dump failed")
	}
	return runErr
}

func (s *Server) loadDump(reconcile state.ReconcileMode) error {
	data, err := os.ReadFile(s.cfg.DumpPath)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info().Str("path", s.cfg.DumpPath).Msg("server: no dump file found, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		s.log.Info().Str("path", s.cfg.DumpPath).Msg("server: dump file is empty, starting empty")
		return nil
	}
	if err := s.state.LoadFromJSON(data, reconcile); err != nil {
		return err
	}
	s.log.Info().Str("path", s.cfg.DumpPath).Msg("server: rehydrated from dump")
	return nil
}

func (s *Server) runDumper(ctx context.Context, onDemand <-chan os.Signal) {
	ticker := time.NewTicker(s.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.dump(); err != nil {
				s.log.Error().Err(err).Msg("server: periodic dump failed")
			}
		case <-onDemand:
			if err := s.dump(); err != nil {
				s.log.Error().Err(err).Msg("server: signal-triggered dump failed")
			}
		}
	}
}

func (s *Server) dump() error {
	start := time.Now()
	data, err := s.state.ToJSON()
	if err != nil {
		return err
	}
	err = os.WriteFile(s.cfg.DumpPath, data, 0o644)
	if s.metrics != nil {
		s.metrics.DumpDuration.Observe(time.Since(start).Seconds())
	}
	return err
}
