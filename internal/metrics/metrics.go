// Package metrics wires up the process's Prometheus registry: domain
// counters/gauges for checkers, broadcasts and WebSocket connections,
// plus a periodic gopsutil-sourced process sampler, matching the
// resource-sampling convention the teacher's servers use.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics bundles every collector the server registers. The zero value
// is not usable; construct with New.
type Metrics struct {
	Registry *prometheus.Registry

	CheckersTotal     prometheus.Gauge
	StatusesAppended  prometheus.Counter
	BroadcastLagged   *prometheus.CounterVec
	WSConnections     prometheus.Gauge
	DumpDuration      prometheus.Histogram
	ProcessCPUPercent prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CheckersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swec_checkers_total",
			Help: "Current number of checkers in the registry.",
		}),
		StatusesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swec_statuses_appended_total",
			Help: "Total number of status observations appended across all checkers.",
		}),
		BroadcastLagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swec_broadcast_lagged_total",
			Help: "Total number of Lagged events surfaced to subscribers, by subject kind.",
		}, []string{"subject"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swec_ws_connections",
			Help: "Current number of open WebSocket connections.",
		}),
		DumpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swec_dump_duration_seconds",
			Help:    "Time taken to serialize and write a state dump.",
			Buckets: prometheus.DefBuckets,
		}),
		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swec_process_cpu_percent",
			Help: "Process CPU usage percent, sampled periodically.",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swec_process_rss_bytes",
			Help: "Process resident set size in bytes, sampled periodically.",
		}),
	}

	m.Registry.MustRegister(
		m.CheckersTotal,
		m.StatusesAppended,
		m.BroadcastLagged,
		m.WSConnections,
		m.DumpDuration,
		m.ProcessCPUPercent,
		m.ProcessRSSBytes,
	)
	return m
}

// RunSampler periodically samples process CPU and RSS via gopsutil
// until ctx is cancelled. Sampling failures are logged at debug and
// otherwise ignored; they never stop the loop.
func (m *Metrics) RunSampler(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("metrics: could not open self process handle, system sampling disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := proc.CPUPercent(); err == nil {
				m.ProcessCPUPercent.Set(pct)
			} else {
				log.Debug().Err(err).Msg("metrics: cpu sample failed")
			}
			if info, err := proc.MemoryInfo(); err == nil {
				m.ProcessRSSBytes.Set(float64(info.RSS))
			} else {
				log.Debug().Err(err).Msg("metrics: memory sample failed")
			}
		}
	}
}
