package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xgx-io/ertrace"
)

func newDemoCmd(a *app) *cobra.Command {
	var (
		pool     string
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Render the trace of an error wrapped twice on its way up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Pool
			if cmd.Flags().Changed("pool") {
				s, err := ertrace.ParseStrategy(pool)
				if err != nil {
					return err
				}
				cfg.Strategy = s
			}
			if cmd.Flags().Changed("capacity") {
				cfg.ArenaCapacity = capacity
			}
			p, err := a.newPool(cfg)
			if err != nil {
				return err
			}

			tr := ertrace.NewTracer(p, false)
			err = demoStartup(tr)
			defer ertrace.TraceOf(err).Release()

			out := cmd.OutOrStdout()
			kinds := make([]string, 0, 3)
			for _, k := range ertrace.Kinds(err) {
				kinds = append(kinds, k.String())
			}
			if _, werr := fmt.Fprintf(out, "error: %v\nkinds: %s\n\n", err, strings.Join(kinds, " > ")); werr != nil {
				return werr
			}
			a.log.Debug("demo trace built",
				zap.Stringer("strategy", cfg.Strategy),
				zap.Int("events", ertrace.TraceOf(err).Len()),
			)
			return ertrace.Fprint(out, err, ertrace.RenderOptions{Color: a.useColor(cmd)})
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "freelist", "pool strategy (freelist|arena)")
	cmd.Flags().IntVar(&capacity, "capacity", ertrace.DefaultArenaCapacity, "arena capacity (power of two)")
	return cmd
}

// The demo call path: demoReadFile fails, demoLoadConfig re-tags the failure,
// demoStartup re-tags it again.

func demoReadFile(tr *ertrace.Tracer) error {
	return tr.Newf("ReadFile", "open %s: no such file or directory", "ertrace.toml")
}

func demoLoadConfig(tr *ertrace.Tracer) error {
	if err := demoReadFile(tr); err != nil {
		return tr.Wrap(err, "LoadConfig")
	}
	return nil
}

func demoStartup(tr *ertrace.Tracer) error {
	if err := demoLoadConfig(tr); err != nil {
		return tr.Wrap(err, "Startup")
	}
	return nil
}
