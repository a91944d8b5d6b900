package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"flashcore/flash"
	"flashcore/internal/logger"
	"flashcore/internal/metrics"
)

// soakStats summarizes a soak run.
type soakStats struct {
	Writes     int
	Reads      int
	Mismatches int
	Failures   int
}

func newSoakCmd(c *cli) *cobra.Command {
	var (
		iterations int
		maxLen     uint32
		seed       uint64
		serve      bool
	)
	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Exercise unaligned writes and verify them",
		Long: `Repeatedly program random unaligned ranges and read them back, checking
that each write landed and that the bytes around it were preserved.

With --metrics (or metrics.enabled) Prometheus metrics are served on
metrics.listen while the soak runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enabled := serve || c.cfg.Metrics.Enabled
			reg := prometheus.NewRegistry()
			m := metrics.NewFlashMetrics(enabled, reg)
			if enabled {
				reg.MustRegister(collectors.NewGoCollector())
				go func() {
					if err := metrics.Serve(ctx, c.cfg.Metrics.Listen, reg); err != nil {
						logger.Error("metrics server stopped", logger.Err(err))
					}
				}()
				logger.Info("serving metrics", "listen", c.cfg.Metrics.Listen)
			}

			s, err := c.open(m)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			start := time.Now()
			stats := soak(ctx, s.Driver, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), iterations, maxLen)
			fmt.Fprintf(cmd.OutOrStdout(), "writes=%d reads=%d mismatches=%d failures=%d elapsed=%s\n",
				stats.Writes, stats.Reads, stats.Mismatches, stats.Failures, time.Since(start).Round(time.Millisecond))
			if err := s.Close(); err != nil {
				return err
			}
			if stats.Mismatches > 0 || stats.Failures > 0 {
				return errors.New("soak found errors")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 1000, "Number of write/verify rounds (0 runs until interrupted)")
	cmd.Flags().Uint32Var(&maxLen, "max-len", 1500, "Largest write in bytes")
	cmd.Flags().Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	cmd.Flags().BoolVar(&serve, "metrics", false, "Serve Prometheus metrics while running")
	return cmd
}

// soak keeps a shadow copy of every byte it has written and checks each
// write plus its surrounding bytes against it.
func soak(ctx context.Context, d *flash.Driver, rng *rand.Rand, iterations int, maxLen uint32) soakStats {
	var stats soakStats

	size := d.Size()
	if maxLen == 0 || maxLen > size {
		maxLen = size
	}
	shadow := make([]byte, size)
	known := make([]bool, size)

	for i := 0; iterations == 0 || i < iterations; i++ {
		if ctx.Err() != nil {
			return stats
		}

		n := 1 + rng.Uint32N(maxLen)
		addr := rng.Uint32N(size - n + 1)
		data := make([]byte, n)
		for j := range data {
			data[j] = byte(rng.Uint32())
		}

		if err := d.Program(addr, data); err != nil {
			stats.Failures++
			logger.Warn("soak program failed", logger.Addr(addr), logger.KeyLength, n, logger.Err(err))
			continue
		}
		stats.Writes++
		copy(shadow[addr:], data)
		for j := addr; j < addr+n; j++ {
			known[j] = true
		}

		// Re-read the touched pages, not only the written bytes.
		page := d.PageSize()
		lo := addr - addr%page
		hi := min(size, (addr+n+page-1)/page*page)
		got := make([]byte, hi-lo)
		if err := d.Read(lo, got); err != nil {
			stats.Failures++
			logger.Warn("soak read failed", logger.Addr(lo), logger.KeyLength, hi-lo, logger.Err(err))
			continue
		}
		stats.Reads++
		for j := lo; j < hi; j++ {
			if known[j] && got[j-lo] != shadow[j] {
				stats.Mismatches++
				logger.Error("soak mismatch", logger.Addr(j),
					"want", shadow[j], "got", got[j-lo])
				break
			}
		}
	}
	return stats
}
