package simulate

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ScenarioPath != "" {
		t.Fatalf("expected empty scenario path, got %q", cfg.ScenarioPath)
	}
	if cfg.DatabasePath != "" {
		t.Fatalf("expected empty database path, got %q", cfg.DatabasePath)
	}
	if cfg.MaxTurns != 10 {
		t.Fatalf("expected default max turns 10, got %d", cfg.MaxTurns)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("MINDLAB_SIMULATE_MAX_TURNS", "3")

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-scenario", "flag.yaml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ScenarioPath != "flag.yaml" {
		t.Fatalf("expected flag scenario path, got %q", cfg.ScenarioPath)
	}
	if cfg.MaxTurns != 3 {
		t.Fatalf("expected env max turns 3, got %d", cfg.MaxTurns)
	}
}

func TestRunPlaysEmbeddedScenario(t *testing.T) {
	cfg := Config{
		DatabasePath: filepath.Join(t.TempDir(), "archive.db"),
		MaxTurns:     10,
	}

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	log := out.String()
	if !strings.Contains(log, "scenario: Hou Jing Rebellion, 548 CE") {
		t.Fatalf("expected scenario header, got:\n%s", log)
	}
	if !strings.Contains(log, "agent: Yan Zhitui at Jiankang, stress 40") {
		t.Fatalf("expected agent line, got:\n%s", log)
	}
	if !strings.Contains(log, "turn 1") {
		t.Fatalf("expected turn log, got:\n%s", log)
	}
	// The siege pushes stress past the flight threshold on the first
	// turn, so the scripted decider heads straight for Jiangling.
	if !strings.Contains(log, "action: move_to:Jiangling") {
		t.Fatalf("expected move action, got:\n%s", log)
	}
	if !strings.Contains(log, "session completed") {
		t.Fatalf("expected completed outcome, got:\n%s", log)
	}
	if !strings.Contains(log, "at Jiangling") {
		t.Fatalf("expected final location, got:\n%s", log)
	}
}

func TestRunRejectsMissingScenarioFile(t *testing.T) {
	cfg := Config{
		ScenarioPath: filepath.Join(t.TempDir(), "missing.yaml"),
	}
	if err := Run(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing scenario file")
	}
}
