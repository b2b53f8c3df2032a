package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"marswalk/internal/logging"
	"marswalk/internal/observability"
	"marswalk/internal/persistence/indexdb"
	persistlog "marswalk/internal/persistence/log"
	"marswalk/internal/persistence/snapshot"
	"marswalk/internal/render"
	"marswalk/internal/sim/tuning"
	"marswalk/internal/sim/world"
	"marswalk/internal/transport/observer"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation until a quit key, a signal, or --max-ticks.

Settings come from defaults, then --config (YAML or TOML), then flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadRunTuning(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			res, err := runSimulation(ctx, t, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return printRunResult(cmd, t, res)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "Tuning file (.yaml, .yml or .toml)")
	f.Int("width", 0, "Grid width")
	f.Int("height", 0, "Grid height")
	f.Int("agents", 0, "Number of agents")
	f.Int("start-x", 0, "Initial x for every agent")
	f.Int("start-y", 0, "Initial y for every agent")
	f.String("markers", "", "Marker symbols, one per agent id (e.g. \"@%#*+\")")
	f.Int64("seed", 0, "Run seed mixed into every agent's random stream")
	f.String("renderer", "", "Renderer: tui, text or headless")
	f.Uint64("max-ticks", 0, "Stop after this many ticks (0 = unbounded)")
	f.Int("poll-timeout-ms", 0, "Bounded input wait per tick in milliseconds")
	f.String("data", "", "Data directory for run recordings")
	f.Bool("no-record", false, "Do not record the run")
	f.String("log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	f.String("log-dir", "", "Directory for daily log files")
	f.Bool("log-console", false, "Also log to stderr (ignored with the tui renderer)")
	f.Bool("observer", false, "Serve the read-only observer stream")
	f.String("observer-addr", "", "Observer listen address (loopback)")
	return cmd
}

func loadRunTuning(cmd *cobra.Command) (tuning.Tuning, error) {
	f := cmd.Flags()
	t := tuning.Defaults()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := tuning.Load(path)
		if err != nil {
			return tuning.Tuning{}, err
		}
		t = loaded
	}

	if f.Changed("width") {
		t.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		t.Height, _ = f.GetInt("height")
	}
	if f.Changed("agents") {
		t.Agents, _ = f.GetInt("agents")
	}
	if f.Changed("start-x") {
		t.Start.X, _ = f.GetInt("start-x")
	}
	if f.Changed("start-y") {
		t.Start.Y, _ = f.GetInt("start-y")
	}
	if f.Changed("markers") {
		t.Markers, _ = f.GetString("markers")
	}
	if f.Changed("seed") {
		t.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("renderer") {
		t.Renderer, _ = f.GetString("renderer")
	}
	if f.Changed("max-ticks") {
		t.MaxTicks, _ = f.GetUint64("max-ticks")
	}
	if f.Changed("poll-timeout-ms") {
		t.PollTimeoutMs, _ = f.GetInt("poll-timeout-ms")
	}
	if f.Changed("data") {
		t.DataDir, _ = f.GetString("data")
	}
	if noRecord, _ := f.GetBool("no-record"); noRecord {
		t.Record = false
	}
	if f.Changed("log-level") {
		t.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-dir") {
		t.Log.Dir, _ = f.GetString("log-dir")
	}
	if f.Changed("log-console") {
		t.Log.Console, _ = f.GetBool("log-console")
	}
	if f.Changed("observer") {
		t.Observer.Enabled, _ = f.GetBool("observer")
	}
	if f.Changed("observer-addr") {
		t.Observer.Addr, _ = f.GetString("observer-addr")
	}

	if err := t.Validate(); err != nil {
		return tuning.Tuning{}, fmt.Errorf("invalid settings: %w", err)
	}
	return t, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type runResult struct {
	RunID   string        `json:"run_id"`
	RunDir  string        `json:"run_dir,omitempty"`
	Ticks   uint64        `json:"ticks"`
	Metrics world.Metrics `json:"metrics"`
}

func newRunID(t tuning.Tuning, now time.Time) string {
	return fmt.Sprintf("%s-s%d", now.UTC().Format("20060102T150405.000Z"), t.Seed)
}

// runSimulation wires the world, its renderers and the recorders, then drives the loop.
func runSimulation(ctx context.Context, t tuning.Tuning, out io.Writer) (runResult, error) {
	tuiActive := t.Renderer == tuning.RendererTUI
	logger, logCloser, err := logging.New(logging.Config{
		Level:   t.Log.Level,
		Dir:     t.Log.Dir,
		Console: t.Log.Console && !tuiActive,
	})
	if err != nil {
		return runResult{}, err
	}
	defer logCloser.Close()

	started := time.Now()
	res := runResult{RunID: newRunID(t, started)}
	logger = logger.With().Str("run", res.RunID).Logger()

	w, err := world.New(world.WorldConfig{
		Bounds:  t.Bounds(),
		Agents:  t.Agents,
		Start:   t.Start,
		Markers: t.MarkerTable(),
		Seed:    t.Seed,
	}, logger)
	if err != nil {
		return runResult{}, err
	}
	defer w.Close()
	w.SetMetricsSink(observability.NewSimMetrics())

	if len(t.MarkerTable()) < t.Agents {
		logger.Warn().Int("agents", t.Agents).Int("markers", len(t.MarkerTable())).Msg("more agents than markers; extra agents will not be drawn")
	}

	var idx *indexdb.SQLiteIndex
	if t.Record {
		res.RunDir = filepath.Join(t.DataDir, "runs", res.RunID)
		if err := tuning.Save(filepath.Join(res.RunDir, "config.yaml"), t); err != nil {
			return runResult{}, fmt.Errorf("save run config: %w", err)
		}
		tickLog := persistlog.NewTickLogger(res.RunDir)
		defer func() {
			if err := tickLog.Close(); err != nil {
				logger.Warn().Err(err).Msg("close tick log")
			}
		}()
		idx, err = indexdb.OpenSQLite(filepath.Join(res.RunDir, "index.db"))
		if err != nil {
			return runResult{}, fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(indexdb.RunInfo{
			RunID:     res.RunID,
			StartedAt: started,
			Seed:      t.Seed,
			Width:     t.Width,
			Height:    t.Height,
			Agents:    t.Agents,
			Markers:   t.Markers,
			Config:    t,
		}); err != nil {
			return runResult{}, fmt.Errorf("record run: %w", err)
		}
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		logger.Info().Str("dir", res.RunDir).Msg("recording run")
	}

	backend, err := render.New(t.Renderer, render.Options{Out: out, AltScreen: true, Logger: logger})
	if err != nil {
		return runResult{}, err
	}
	renderers := render.Multi{backend}

	srvCtx, stopSrv := context.WithCancel(ctx)
	srvDone := make(chan struct{})
	if t.Observer.Enabled {
		srv := observer.NewServer(observer.Info{
			RunID:   res.RunID,
			Bounds:  t.Bounds(),
			Agents:  t.Agents,
			Markers: t.MarkerTable(),
			Seed:    t.Seed,
		}, logger)
		renderers = append(renderers, srv)
		go func() {
			defer close(srvDone)
			if err := srv.ListenAndServe(srvCtx, t.Observer.Addr); err != nil {
				logger.Error().Err(err).Msg("observer stopped")
			}
		}()
	} else {
		close(srvDone)
	}

	loop := world.NewLoop(w, world.LoopConfig{
		Renderer:    renderers,
		Input:       backend.Input(),
		PollTimeout: t.PollTimeout(),
		MaxTicks:    t.MaxTicks,
	}, logger)
	runErr := loop.Run(ctx)

	if err := backend.Close(); err != nil {
		logger.Warn().Err(err).Msg("renderer close")
	}
	stopSrv()
	<-srvDone

	res.Ticks = w.CurrentTick()
	res.Metrics = w.Metrics()
	if res.RunDir != "" {
		if err := snapshot.WriteSnapshot(filepath.Join(res.RunDir, snapshot.FileName), w.ExportSnapshot(res.RunID)); err != nil {
			logger.Warn().Err(err).Msg("write final snapshot")
		}
	}
	if idx != nil {
		if err := idx.FinishRun(res.RunID, res.Ticks, time.Now()); err != nil {
			logger.Warn().Err(err).Msg("finish run row")
		}
	}
	logLevelFor(runErr, logger).Uint64("ticks", res.Ticks).Dur("elapsed", time.Since(started)).Msg("run ended")
	return res, runErr
}

func logLevelFor(err error, logger zerolog.Logger) *zerolog.Event {
	if err != nil {
		return logger.Error().Err(err)
	}
	return logger.Info()
}

func printRunResult(cmd *cobra.Command, t tuning.Tuning, res runResult) error {
	// The tui owns the screen while it runs; print nothing over its last frame.
	if t.Renderer == tuning.RendererTUI {
		return nil
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s finished after %d ticks (trail cells: %d, clamps: %d)\n",
		res.RunID, res.Ticks, res.Metrics.TrailCells, res.Metrics.ClampedTotal)
	if res.RunDir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "recorded to %s\n", res.RunDir)
	}
	return nil
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteTick(entry)
	}
	if m.b != nil {
		errB = m.b.WriteTick(entry)
	}
	return errors.Join(errA, errB)
}
