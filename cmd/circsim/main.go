// Command circsim runs a circuit text file to completion (or a fixed
// step/time budget) headlessly and prints the resulting state. Grounded
// on _examples/BookmarkSciencePrrojects-gofem/main.go's Start/Run/End
// shape: parse input, run the simulation, flush the log on the way out,
// and turn a recovered panic into a logged error instead of a raw Go
// stack trace — adapted here from flag.Parse + a single deferred
// recover to a cobra.Command with a structured zerolog logger, since
// this module's stack already carries both.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/johnnewto/circuitjs1-sub006/internal/config"
	"github.com/johnnewto/circuitjs1-sub006/internal/engine"
)

var (
	configPath string
	outPath    string
	steps      int
	runMs      int
	verbose    bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circsim <circuit-file>",
		Short: "Run a circuit text file through the MNA simulation engine",
		Args:  cobra.ExactArgs(1),
		RunE:  runCircuit,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (spec §6.6 surface); defaults apply when omitted")
	cmd.Flags().StringVar(&outPath, "out", "", "write the post-run circuit text export here; stdout when omitted")
	cmd.Flags().IntVar(&steps, "steps", 0, "stop after this many steps (0 means run until --run-ms elapses or the source's own stop action fires)")
	cmd.Flags().IntVar(&runMs, "run-ms", 1000, "wall-clock budget in milliseconds across all RunFrame calls")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	return cmd
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func runCircuit(cmd *cobra.Command, args []string) (runErr error) {
	log := newLogger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("circsim: unrecoverable error")
			runErr = fmt.Errorf("circsim: %v", r)
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("circsim: read %s: %w", args[0], err)
	}

	eng := engine.New(cfg)
	eng.Log = log
	if err := eng.LoadFromText(string(text)); err != nil {
		return fmt.Errorf("circsim: load %s: %w", args[0], err)
	}
	eng.SetRunning(true)

	totalSteps, runTime := runToCompletion(eng, cfg, log)
	log.Info().Int("steps", totalSteps).Float64("t", runTime).Msg("circsim: run complete")

	out := eng.ExportText()
	if outPath == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("circsim: write %s: %w", outPath, err)
	}
	return nil
}

// runToCompletion drives RunFrame in a loop bounded by --run-ms overall
// and --steps total, one frame at a time so a misbehaving circuit (stuck
// in non-convergence) never blocks past its wall-clock budget. A halting
// error stops the loop early; it is logged by the engine itself (spec
// §7), not re-logged here.
func runToCompletion(eng *engine.Engine, cfg *config.Config, log zerolog.Logger) (int, float64) {
	deadline := time.Now().Add(time.Duration(runMs) * time.Millisecond)
	total := 0
	lastT := 0.0

	for eng.Running {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		frameBudget := cfg.FrameBudgetMs
		if ms := int(remaining / time.Millisecond); ms < frameBudget {
			frameBudget = ms
		}
		report := eng.RunFrame(frameBudget)
		total += report.Steps
		lastT = report.T
		if report.Steps == 0 {
			break
		}
		if steps > 0 && total >= steps {
			break
		}
	}
	return total, lastT
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.New(), nil
	}
	return config.LoadYAML(configPath)
}
