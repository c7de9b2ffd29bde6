package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/engine"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/output"
	"github.com/dm/gridmon/internal/retriever"
	"github.com/dm/gridmon/internal/sender"
)

func pollCmd() *cli.Command {
	return &cli.Command{
		Name:      "poll",
		Usage:     "Collect cluster statistics once, or repeatedly with --watch",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "poll every --interval until interrupted",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "polling interval (e.g. 10s, 30s)",
				Value: config.DefaultInterval,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "collection mode (direct, report)",
				Value: config.DefaultMode,
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "number of entity types collected at once",
				Value: config.DefaultParallelism,
			},
			&cli.StringSliceFlag{
				Name:  "entity",
				Usage: "entity type to collect (can be repeated; default all)",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "serve Prometheus metrics on this address (e.g. :9464)",
				Sources: cli.EnvVars("GRIDMON_METRICS_ADDR"),
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			w, err := newWriter(cmd, cfg)
			if err != nil {
				return err
			}
			if cfg.Metrics.Addr != "" {
				stop := serveMetrics(cfg.Metrics.Addr)
				defer stop()
			}
			return runPoll(ctx, c, cfg, w, cmd.Bool("watch"))
		},
	}
}

// applyPollFlags copies explicitly set poll flags over cfg.
func applyPollFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("interval") {
		cfg.Poll.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("mode") {
		cfg.Poll.Mode = cmd.String("mode")
	}
	if cmd.IsSet("parallel") {
		cfg.Poll.Parallelism = cmd.Int("parallel")
	}
	if cmd.IsSet("entity") {
		cfg.Poll.Entities = cmd.StringSlice("entity")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.String("metrics-addr")
	}
}

func entityTypes(names []string) []model.EntityType {
	out := make([]model.EntityType, 0, len(names))
	for _, n := range names {
		out = append(out, model.EntityType(n))
	}
	return out
}

// runPoll collects one cycle, or cycles every interval when watch is set,
// and writes each through w. A one-shot poll fails only when every entity
// type failed.
func runPoll(ctx context.Context, s sender.RequestSender, cfg *config.Config, w *output.Writer, watch bool) error {
	mode, err := engine.ParseMode(cfg.Poll.Mode)
	if err != nil {
		return err
	}
	reg := retriever.DefaultRegistry()
	order := entityTypes(cfg.Poll.Entities)
	if len(order) == 0 {
		order = reg.Entities()
	}

	p, err := engine.NewPoller(s, model.NewSession(), reg, engine.Options{
		Mode:        mode,
		Parallelism: cfg.Poll.Parallelism,
		Entities:    order,
	}, slog.Default())
	if err != nil {
		return err
	}

	history := model.NewCycleHistory(cfg.Poll.History)
	var writeErr error
	emit := func(c *model.Cycle) {
		prev := history.Latest()
		history.Push(c)
		res := summarize(history, prev, c)
		res.Order = order
		if err := w.Write(res); err != nil {
			writeErr = err
		}
	}

	if !watch {
		c := p.Poll(ctx)
		emit(c)
		if writeErr != nil {
			return writeErr
		}
		if len(c.Snapshots) == 0 && len(c.Errors) > 0 {
			return fmt.Errorf("all %d entity types failed", len(c.Errors))
		}
		return nil
	}

	slog.Info("polling", "url", cfg.Endpoint.URL, "mode", mode, "interval", cfg.Poll.Interval)
	err = p.Run(ctx, cfg.Poll.Interval, func(c *model.Cycle) {
		if ctx.Err() != nil {
			return
		}
		emit(c)
		if writeErr != nil {
			slog.Error("failed to write cycle", "error", writeErr)
			writeErr = nil
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// summarize derives the summaries written with c, which must already be the
// latest cycle of history. Rates need the cache snapshot of prev.
func summarize(history *model.CycleHistory, prev, c *model.Cycle) output.Result {
	res := output.Result{Cycle: c}
	if snap := c.Snapshot(model.EntityMachine); snap != nil {
		r := engine.CalcMachineResources(snap)
		res.Resources = &r
		if history.Len() > 1 {
			for _, e := range snap.Entries() {
				res.Trends = append(res.Trends, output.Trend{
					Label:  e.Key.String(),
					Values: history.Series(model.EntityMachine, e.Key, retriever.MachineColLoadAverage),
				})
			}
		}
	}
	if prev != nil {
		res.CacheRates = engine.CalcCacheRates(
			prev.Snapshot(model.EntityCache),
			c.Snapshot(model.EntityCache),
			c.FetchedAt.Sub(prev.FetchedAt))
	}
	for e := range c.Errors {
		if _, at, ok := history.LastGood(e); ok {
			if res.LastGood == nil {
				res.LastGood = make(map[model.EntityType]time.Time)
			}
			res.LastGood[e] = at
		}
	}
	return res
}

// serveMetrics starts a Prometheus endpoint and returns a func that shuts
// it down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}
}
