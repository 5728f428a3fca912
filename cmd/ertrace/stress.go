package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xgx-io/ertrace"
	"github.com/xgx-io/ertrace/promstats"
)

type stressOptions struct {
	pool       string
	capacity   int
	workers    int
	iterations int
	depth      int
	metrics    bool
}

// stressResult summarises a stress run.
type stressResult struct {
	chains      uint64
	overwritten uint64
	elapsed     time.Duration
}

func newStressCmd(a *app) *cobra.Command {
	var opts stressOptions
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Build, verify and release traces from many goroutines",
		Long: `stress runs concurrent create/extend/release cycles against one pool.
Every worker records its own locations and checks that its chain reads back
exactly those, so a node handed to two live traces fails the run.

With the arena strategy a ring smaller than workers*depth is expected to
overwrite live nodes; those chains are counted instead of failing the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Pool
			flags := cmd.Flags()
			if flags.Changed("pool") {
				s, err := ertrace.ParseStrategy(opts.pool)
				if err != nil {
					return err
				}
				cfg.Strategy = s
			}
			if flags.Changed("capacity") {
				cfg.ArenaCapacity = opts.capacity
			}
			if !flags.Changed("workers") {
				opts.workers = a.cfg.Stress.Workers
			}
			if !flags.Changed("iterations") {
				opts.iterations = a.cfg.Stress.Iterations
			}
			if !flags.Changed("depth") {
				opts.depth = a.cfg.Stress.Depth
			}
			if opts.workers <= 0 || opts.iterations <= 0 || opts.depth <= 0 {
				return fmt.Errorf("workers, iterations and depth must be positive")
			}

			p, err := a.newPool(cfg)
			if err != nil {
				return err
			}
			a.log.Info("stress run starting",
				zap.Stringer("strategy", cfg.Strategy),
				zap.Int("workers", opts.workers),
				zap.Int("iterations", opts.iterations),
				zap.Int("depth", opts.depth),
			)

			res, err := runStress(cmd.Context(), p, opts)
			if err != nil {
				a.log.Error("stress run failed", zap.Error(err))
				return err
			}
			a.log.Info("stress run finished",
				zap.Uint64("chains", res.chains),
				zap.Duration("elapsed", res.elapsed),
			)

			out := cmd.OutOrStdout()
			if err := writeStressReport(out, p.Stats(), res); err != nil {
				return err
			}
			if opts.metrics {
				return writeMetrics(out, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.pool, "pool", "freelist", "pool strategy (freelist|arena)")
	cmd.Flags().IntVar(&opts.capacity, "capacity", ertrace.DefaultArenaCapacity, "arena capacity (power of two)")
	cmd.Flags().IntVar(&opts.workers, "workers", 8, "concurrent goroutines")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 10000, "chains built per worker")
	cmd.Flags().IntVar(&opts.depth, "depth", 5, "events per chain")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print pool metrics in Prometheus text format")
	return cmd
}

// runStress drives opts.workers goroutines against p. It fails on the first
// chain that reads back someone else's locations, unless p is an arena.
func runStress(ctx context.Context, p ertrace.Pool, opts stressOptions) (stressResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var chains, overwritten atomic.Uint64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.workers {
		locs := workerLocations(w, opts.depth)
		g.Go(func() error {
			for i := range opts.iterations {
				if i%256 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				ok := buildAndCheck(p, locs)
				chains.Add(1)
				if ok {
					continue
				}
				if p.Strategy() == ertrace.StrategyArena {
					overwritten.Add(1)
					continue
				}
				return fmt.Errorf("worker %d iteration %d: chain aliased a live node", w, i)
			}
			return nil
		})
	}
	err := g.Wait()
	return stressResult{
		chains:      chains.Load(),
		overwritten: overwritten.Load(),
		elapsed:     time.Since(start),
	}, err
}

// workerLocations returns depth locations unique to worker w.
func workerLocations(w, depth int) []*ertrace.Location {
	locs := make([]*ertrace.Location, depth)
	for d := range locs {
		locs[d] = ertrace.NewLocation(fmt.Sprintf("Worker%dStep%d", w, d), "stress.go", d+1, w+1, "ertrace/stress")
	}
	return locs
}

// buildAndCheck creates a chain of locs, reads it back and releases it.
func buildAndCheck(p ertrace.Pool, locs []*ertrace.Location) bool {
	t := ertrace.NewTrace(p, locs[0])
	defer t.Release()
	for _, loc := range locs[1:] {
		t.Extend(loc)
	}
	if t.Len() != len(locs) {
		return false
	}
	for i, loc := range t.All() {
		if loc != locs[i] {
			return false
		}
	}
	return true
}

func writeStressReport(w io.Writer, s ertrace.Stats, res stressResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		name  string
		value any
	}{
		{"strategy", s.Strategy},
		{"chains", res.chains},
		{"overwritten", res.overwritten},
		{"elapsed", res.elapsed.Round(time.Microsecond)},
		{"acquired", s.Acquired},
		{"released", s.Released},
		{"live", s.Live()},
		{"allocated", s.Allocated},
		{"recycled", s.Recycled},
		{"wraps", s.Wraps},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", r.name, r.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeMetrics(w io.Writer, p ertrace.Pool) error {
	reg := prometheus.NewPedanticRegistry()
	if _, err := promstats.Register(reg, p, "stress"); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
