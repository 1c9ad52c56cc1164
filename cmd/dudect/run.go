package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agucova/dudect"
	"github.com/agucova/dudect/internal/config"
	"github.com/agucova/dudect/internal/hostinfo"
	"github.com/agucova/dudect/internal/metrics"
	"github.com/agucova/dudect/internal/store"
	"github.com/agucova/dudect/internal/targets"
)

type runFlags struct {
	configPath  string
	tries       int
	floor       int
	batchSize   int
	cpu         int
	db          string
	metricsAddr string
	seed        uint64
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:     "run [target...]",
		Short:   "Run sessions on the named targets, or on all of them",
		Example: "dudect run xor early-exit-compare --tries 3 --db results.db",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd, g, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML policy file")
	fl.IntVar(&f.tries, "tries", 0, "maximum tries per target")
	fl.IntVar(&f.floor, "floor", 0, "raw samples a try needs before a verdict")
	fl.IntVar(&f.batchSize, "batch-size", 0, "trials per batch")
	fl.IntVar(&f.cpu, "cpu", -1, "pin the measuring thread to this CPU (Linux)")
	fl.StringVar(&f.db, "db", "", "SQLite file to record sessions in")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fl.Uint64Var(&f.seed, "seed", 0, "seed for class schedules and inputs (0: random)")
	return cmd
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, f *runFlags) (config.File, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("tries") {
		cfg.Policy.Tries = f.tries
	}
	if changed("floor") {
		cfg.Policy.EnoughMeasurements = f.floor
	}
	if changed("batch-size") {
		cfg.Batch.Size = f.batchSize
	}
	if changed("cpu") {
		cfg.Runtime.CPU = f.cpu
	}
	if changed("db") {
		cfg.Runtime.DB = f.db
	}
	if changed("metrics-addr") {
		cfg.Runtime.MetricsAddr = f.metricsAddr
	}
	if changed("seed") {
		cfg.Runtime.Seed = f.seed
	}
	return cfg, nil
}

func selectTargets(reg *dudect.Registry, names []string) ([]dudect.Target, error) {
	if len(names) == 0 {
		return reg.Targets(), nil
	}
	out := make([]dudect.Target, 0, len(names))
	for _, name := range names {
		t, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	return srv
}

func runSessions(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) error {
	log := newLogger(cmd.ErrOrStderr(), g)

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = cfg.Targets
	}

	reg, err := targets.NewRegistry(cfg.Runtime.Seed)
	if err != nil {
		return err
	}
	selected, err := selectTargets(reg, args)
	if err != nil {
		return err
	}

	sinks := dudect.MultiSink{dudect.NewLogSink(log)}
	var msink *metrics.Sink
	if cfg.Runtime.MetricsAddr != "" {
		promReg := prometheus.NewRegistry()
		msink = metrics.NewSink(promReg)
		sinks = append(sinks, msink)
		srv := serveMetrics(cfg.Runtime.MetricsAddr, promReg, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	var db *store.Store
	var host hostinfo.Info
	if cfg.Runtime.DB != "" {
		if db, err = store.NewStore(cfg.Runtime.DB); err != nil {
			return err
		}
		defer db.Close()
		host, err = hostinfo.Collect(dudect.TimerName(), dudect.TimerFrequency())
		if err != nil {
			log.WithError(err).Warn("incomplete host information")
		}
	}

	opts := append(cfg.Options(),
		dudect.WithLogger(log),
		dudect.WithProgress(sinks),
	)

	code := exitPass
	out := cmd.OutOrStdout()
	for _, t := range selected {
		res, err := dudect.Test(t, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
		fmt.Fprintf(out, "%-20s %s\n", t.Name, res)
		if msink != nil {
			msink.Observe(res)
		}
		if db != nil {
			if err := db.SaveResult(res, host); err != nil {
				return fmt.Errorf("record %s: %w", t.Name, err)
			}
		}
		if !res.Passed() {
			code = exitLeak
		}
	}
	if code != exitPass {
		return &exitCodeError{code: code}
	}
	return nil
}
