// Package api parses API command flags and composes the simulation service.
package api

import (
	"context"
	"flag"
	"fmt"

	"github.com/mindlab-sim/mindlab/internal/archive/sqlite"
	"github.com/mindlab-sim/mindlab/internal/decision"
	"github.com/mindlab-sim/mindlab/internal/geo"
	entrypoint "github.com/mindlab-sim/mindlab/internal/platform/cmd"
	"github.com/mindlab-sim/mindlab/internal/scenario"
	server "github.com/mindlab-sim/mindlab/internal/services/api/app"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
	"github.com/mindlab-sim/mindlab/internal/simulation/registry"
)

// Config holds API command configuration.
type Config struct {
	HTTPAddr     string `env:"MINDLAB_API_HTTP_ADDR" envDefault:":8080"`
	DatabasePath string `env:"MINDLAB_DATABASE_PATH" envDefault:"mindlab.db"`
	ScenarioPath string `env:"MINDLAB_SCENARIO_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "API HTTP listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "archive SQLite database path")
	fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "scenario YAML path (empty uses the embedded default)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the archive, assembles the session registry, and starts the
// HTTP and WebSocket transports.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(context.Context) error {
		sc, err := loadScenario(cfg.ScenarioPath)
		if err != nil {
			return err
		}

		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open archive store: %w", err)
		}
		defer store.Close()
		if err := store.Seed(ctx, sc); err != nil {
			return fmt.Errorf("seed archive store: %w", err)
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
		})
		if err != nil {
			return fmt.Errorf("build session registry: %w", err)
		}

		if err := server.Run(ctx, server.Config{HTTPAddr: cfg.HTTPAddr}, reg); err != nil {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return scenario.Default()
	}
	return scenario.LoadFile(path)
}
