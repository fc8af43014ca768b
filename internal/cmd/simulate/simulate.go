// Package simulate runs a single simulation session turn by turn and
// prints each decision to the console.
package simulate

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mindlab-sim/mindlab/internal/archive/sqlite"
	"github.com/mindlab-sim/mindlab/internal/decision"
	"github.com/mindlab-sim/mindlab/internal/geo"
	entrypoint "github.com/mindlab-sim/mindlab/internal/platform/cmd"
	"github.com/mindlab-sim/mindlab/internal/scenario"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/engine"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
	"github.com/mindlab-sim/mindlab/internal/simulation/registry"
)

// Config holds simulate command configuration.
type Config struct {
	ScenarioPath string `env:"MINDLAB_SCENARIO_PATH"`
	DatabasePath string `env:"MINDLAB_DATABASE_PATH"`
	MaxTurns     int    `env:"MINDLAB_SIMULATE_MAX_TURNS" envDefault:"10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "scenario YAML path (empty uses the embedded default)")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "archive SQLite database path (empty uses a throwaway file)")
	fs.IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, "turn limit for the session")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run plays one session to completion and writes a turn log to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulate, func(context.Context) error {
		sc, err := loadScenario(cfg.ScenarioPath)
		if err != nil {
			return err
		}

		dbPath := cfg.DatabasePath
		if dbPath == "" {
			dir, err := os.MkdirTemp("", "mindlab-simulate-")
			if err != nil {
				return fmt.Errorf("create scratch dir: %w", err)
			}
			defer os.RemoveAll(dir)
			dbPath = filepath.Join(dir, "archive.db")
		}
		store, err := sqlite.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open archive store: %w", err)
		}
		defer store.Close()
		if err := store.Seed(ctx, sc); err != nil {
			return fmt.Errorf("seed archive store: %w", err)
		}

		policy := engine.DefaultPolicy()
		if cfg.MaxTurns > 0 {
			policy.MaxTurns = cfg.MaxTurns
		}
		reg, err := registry.New(registry.Config{
			Geo:       geo.NewGazetteer(sc.GazetteerPlaces()),
			Knowledge: store,
			Decider:   decision.Scripted{},
			Hub:       event.NewHub(),
			Clock:     sc.StartTime,
			Profile: domain.AgentProfile{
				Name:        sc.Agent.Name,
				BirthYear:   sc.Agent.BirthYear,
				Personality: sc.Agent.Personality,
				Values:      sc.Agent.Values,
			},
			Focus:     sc.Agent.Focus,
			Inventory: sc.Agent.Inventory,
			Policy:    policy,
		})
		if err != nil {
			return fmt.Errorf("build session registry: %w", err)
		}

		return play(ctx, reg, sc, out)
	})
}

func play(ctx context.Context, reg *registry.Registry, sc *scenario.Scenario, out io.Writer) error {
	state, err := reg.Create(ctx, domain.AgentProfile{}, sc.Agent.StartingLocation, sc.Agent.StartingStress)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	fmt.Fprintf(out, "scenario: %s\n", sc.Name)
	fmt.Fprintf(out, "agent: %s at %s, stress %d\n\n",
		state.Profile.Name, state.Frame.Location.Name, state.Frame.Psych.Stress)

	for {
		frame, err := reg.Step(ctx, state.ID)
		if err != nil {
			current, getErr := reg.Get(state.ID)
			if getErr == nil && current.Status.Terminal() {
				printOutcome(out, current)
				return nil
			}
			return fmt.Errorf("advance turn: %w", err)
		}

		history, err := reg.History(state.ID)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(history) > 0 {
			printTurn(out, history[len(history)-1], frame)
		}

		current, err := reg.Get(state.ID)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}
		if current.Status.Terminal() {
			printOutcome(out, current)
			return nil
		}
	}
}

func printTurn(out io.Writer, d domain.Decision, frame domain.Frame) {
	fmt.Fprintf(out, "turn %d  %s\n", d.Turn, d.Timestamp.Format("2006-01-02 15:04"))
	if d.Event != "" {
		fmt.Fprintf(out, "  event: %s\n", d.Event)
	}
	fmt.Fprintf(out, "  reasoning: %s\n", d.Reasoning)
	fmt.Fprintf(out, "  action: %s\n", d.Action)
	fmt.Fprintf(out, "  now at %s, stress %d\n\n", frame.Location.Name, frame.Psych.Stress)
}

func printOutcome(out io.Writer, state registry.State) {
	fmt.Fprintf(out, "session %s after %d turn(s): at %s, stress %d\n",
		state.Status, state.Frame.Turn, state.Frame.Location.Name, state.Frame.Psych.Stress)
	if state.Failure != "" {
		fmt.Fprintf(out, "failure: %s\n", state.Failure)
	}
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return scenario.Default()
	}
	return scenario.LoadFile(path)
}
