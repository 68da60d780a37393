// Package guard samples process CPU usage in the background so the accept
// loop can shed new connections when the host is saturated.
package guard

import (
	"context"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Mattia055/Hotelier2.0/internal/logging"
)

// CPUGuard keeps a recent CPU usage percentage for the server process and
// answers admission checks against a configured threshold. Sampling happens
// on its own goroutine; Allow reads an atomic and never blocks.
type CPUGuard struct {
	threshold float64
	interval  time.Duration
	percent   atomic.Uint64 // math.Float64bits of the last sample
	log       zerolog.Logger
}

// New builds a guard rejecting above threshold percent. A threshold of 0
// or 100 effectively disables shedding.
func New(threshold float64, interval time.Duration, log zerolog.Logger) *CPUGuard {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &CPUGuard{
		threshold: threshold,
		interval:  interval,
		log:       log.With().Str("component", "cpu_guard").Logger(),
	}
}

// Start launches the sampling loop; it stops when ctx is canceled.
func (g *CPUGuard) Start(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		g.log.Warn().Err(err).Msg("cpu sampling unavailable, admission guard disabled")
		return
	}

	go func() {
		defer logging.RecoverPanic(g.log, "cpu_guard")
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pct, err := proc.Percent(0)
				if err != nil {
					g.log.Debug().Err(err).Msg("cpu sample failed")
					continue
				}
				g.percent.Store(math.Float64bits(pct))
			}
		}
	}()
}

// Usage returns the most recent CPU percentage sample.
func (g *CPUGuard) Usage() float64 {
	return math.Float64frombits(g.percent.Load())
}

// Allow reports whether a new connection may be admitted.
func (g *CPUGuard) Allow() bool {
	if g.threshold <= 0 || g.threshold >= 100 {
		return true
	}
	return g.Usage() < g.threshold
}
