package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tempora/config"
	"github.com/sarchlab/tempora/datarecording"
	"github.com/sarchlab/tempora/monitoring"
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/hooking"
	"github.com/sarchlab/tempora/sim/id"
	"github.com/sarchlab/tempora/sim/manager"
	"github.com/sarchlab/tempora/tracing"
)

var runFlags struct {
	stopTime       float64
	synchronize    bool
	deadlinePolicy string
	monitor        bool
	port           int
	openBrowser    bool
	record         bool
	recordPath     string
}

var runCmd = &cobra.Command{
	Use:   "run <demo>",
	Short: "Run a demo model",
	Long: `Run a demo model and print what its sink received. ` +
		`Use "tempora demos" to list the models.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		return runDemo(ctx, cfg, logger, args[0], cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.Float64Var(&runFlags.stopTime, "stop-time", 0,
		"model time to stop at, in seconds")
	f.BoolVar(&runFlags.synchronize, "sync", false,
		"synchronize model time to real time")
	f.StringVar(&runFlags.deadlinePolicy, "deadline-policy", "",
		"what to do with late events (report, drop)")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"serve the HTTP monitor during the run")
	f.IntVar(&runFlags.port, "port", 0,
		"port of the monitor, random if not set")
	f.BoolVar(&runFlags.openBrowser, "open-browser", false,
		"open the monitor in a browser")
	f.BoolVar(&runFlags.record, "record", false,
		"record the trace into a SQLite file")
	f.StringVar(&runFlags.recordPath, "record-path", "",
		"SQLite file to record into, a new file by default")

	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("stop-time") {
		cfg.Timing.StopTime = runFlags.stopTime
	}

	if flags.Changed("sync") {
		cfg.Realtime.Synchronize = runFlags.synchronize
	}

	if flags.Changed("deadline-policy") {
		cfg.Realtime.DeadlinePolicy = runFlags.deadlinePolicy
	}

	if flags.Changed("monitor") {
		cfg.Monitor.Enabled = runFlags.monitor
	}

	if flags.Changed("port") {
		cfg.Monitor.Port = runFlags.port
	}

	if flags.Changed("open-browser") {
		cfg.Monitor.OpenBrowser = runFlags.openBrowser
	}

	if flags.Changed("record") {
		cfg.Recording.Enabled = runFlags.record
	}

	if flags.Changed("record-path") {
		cfg.Recording.Path = runFlags.recordPath
		cfg.Recording.Enabled = true
	}
}

func runDemo(
	ctx context.Context,
	cfg *config.Config,
	logger *logrus.Logger,
	name string,
	out io.Writer,
) error {
	d, err := findDemo(name)
	if err != nil {
		return err
	}

	m := d.build(cfg, logger)
	model := actor.MakeModelBuilder().
		WithResolution(cfg.Resolution()).
		WithLogger(logger).
		Build(m.top)
	mgr := manager.MakeBuilder().WithLogger(logger).Build(model)

	counter := tracing.NewCountTracer()
	for _, dom := range m.domains {
		tracing.CollectTrace(dom, counter)
	}

	var rec *recording
	if cfg.Recording.Enabled {
		rec, err = startRecording(cfg, logger, name, m.domains)
		if err != nil {
			return err
		}
	}

	if cfg.Monitor.Enabled {
		mon := startMonitor(cfg, logger, mgr, model, m.domains)
		if mon != nil {
			defer shutdownMonitor(mon, logger)
		}
	}

	runErr := mgr.Run(ctx)

	var recErr error
	if rec != nil {
		recErr = rec.finish(mgr, runErr)
	}

	report(out, mgr, counter, m)

	return errors.Join(runErr, recErr)
}

func startMonitor(
	cfg *config.Config,
	logger logrus.FieldLogger,
	mgr *manager.Manager,
	model *actor.Model,
	domains []hooking.Hookable,
) *monitoring.Monitor {
	metrics := monitoring.NewMetrics("")
	metrics.Attach(domains...)
	metrics.Attach(mgr)

	mon := monitoring.MakeBuilder().
		WithLogger(logger).
		WithPortNumber(cfg.Monitor.Port).
		WithBrowser(cfg.Monitor.OpenBrowser).
		WithMetrics(metrics).
		Build(mgr, model)

	if _, err := mon.StartServer(); err != nil {
		logger.WithError(err).Warn("monitor not started")
		return nil
	}

	return mon
}

func shutdownMonitor(mon *monitoring.Monitor, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mon.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("monitor shutdown")
	}
}

// recording writes the trace of one run into a SQLite file.
type recording struct {
	recorder datarecording.DataRecorder
	info     *datarecording.RunInfo
	tracer   *tracing.DBTracer
	logger   logrus.FieldLogger
}

func startRecording(
	cfg *config.Config,
	logger logrus.FieldLogger,
	demoName string,
	domains []hooking.Hookable,
) (*recording, error) {
	recorder, err := datarecording.MakeBuilder().
		WithPath(cfg.Recording.Path).
		Build()
	if err != nil {
		return nil, err
	}

	runID := id.NewRunID()

	info, err := datarecording.NewRunInfo(recorder, runID)
	if err != nil {
		return nil, errors.Join(err, recorder.Close())
	}

	tracer, err := tracing.NewDBTracer(recorder, runID, logger)
	if err != nil {
		return nil, errors.Join(err, recorder.Close())
	}

	if err := info.Start(); err != nil {
		return nil, errors.Join(err, recorder.Close())
	}

	if err := info.Set("Demo", demoName); err != nil {
		return nil, errors.Join(err, recorder.Close())
	}

	for _, d := range domains {
		tracing.CollectTrace(d, tracer)
	}

	return &recording{
		recorder: recorder,
		info:     info,
		tracer:   tracer,
		logger:   logger,
	}, nil
}

func (r *recording) finish(mgr *manager.Manager, runErr error) error {
	outcome := "ok"
	if runErr != nil {
		outcome = runErr.Error()
	}

	errs := []error{
		r.info.Set("Manager Run", mgr.RunID()),
		r.info.Set("Iterations", fmt.Sprint(mgr.Iteration())),
		r.info.Set("Outcome", outcome),
		r.info.End(),
	}

	if n := r.tracer.Failed(); n > 0 {
		r.logger.WithField("records", n).Warn("trace records lost")
	}

	errs = append(errs, r.recorder.Close())

	return errors.Join(errs...)
}

func report(
	out io.Writer,
	mgr *manager.Manager,
	counter *tracing.CountTracer,
	m *demoModel,
) {
	fmt.Fprintf(out, "run %s: %d iterations, %d firings, %d deadline misses\n",
		mgr.RunID(), mgr.Iteration(),
		counter.TotalFirings(), counter.TotalMisses())

	for _, a := range counter.Actors() {
		fmt.Fprintf(out, "  %-20s %d\n", a, counter.Firings(a))
	}

	for name, tokens := range m.outputs {
		ts := tokens()
		values := make([]string, len(ts))

		for i, t := range ts {
			values[i] = t.String()
		}

		fmt.Fprintf(out, "%s: [%s]\n", name, strings.Join(values, " "))
	}
}
