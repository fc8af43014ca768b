// Package sqlite provides a SQLite-backed archive implementation seeded
// from a scenario dataset.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mindlab-sim/mindlab/internal/archive"
	"github.com/mindlab-sim/mindlab/internal/archive/sqlite/migrations"
	sqlitemigrate "github.com/mindlab-sim/mindlab/internal/platform/storage/sqlitemigrate"
	"github.com/mindlab-sim/mindlab/internal/scenario"
	_ "modernc.org/sqlite"
)

// Store persists the historical record in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite archive store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Seed loads a scenario dataset into the store. Existing records for the
// same places are replaced; events accumulate per seed call, so Seed is
// intended to run once against a fresh store.
func (s *Store) Seed(ctx context.Context, sc *scenario.Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if sc == nil {
		return fmt.Errorf("scenario is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, place := range sc.Places {
		name := strings.TrimSpace(place.Name)
		if name == "" {
			return fmt.Errorf("place name is required")
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO places (name, danger_level, safe_from, safe_until, description)
			 VALUES (?, ?, ?, ?, ?)`,
			nameKey(name),
			place.Danger,
			place.SafeFrom,
			place.SafeUntil,
			place.Description,
		)
		if err != nil {
			return fmt.Errorf("seed place %s: %w", name, err)
		}
	}

	for _, event := range sc.Events {
		location := strings.TrimSpace(event.Location)
		if location == "" {
			return fmt.Errorf("event location is required")
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO events (year, month, location, title, description, threat_level)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			event.Year,
			event.Month,
			nameKey(location),
			event.Title,
			event.Description,
			event.Threat,
		)
		if err != nil {
			return fmt.Errorf("seed event %s: %w", event.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// EventsAt returns the events recorded at a location for one year and month.
func (s *Store) EventsAt(ctx context.Context, year, month int, location string) ([]archive.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT year, month, location, title, description, threat_level
		   FROM events
		  WHERE year = ? AND month = ? AND location = ?
		  ORDER BY threat_level DESC, id ASC`,
		year,
		month,
		nameKey(location),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []archive.Event
	for rows.Next() {
		var event archive.Event
		if err := rows.Scan(
			&event.Year,
			&event.Month,
			&event.Location,
			&event.Title,
			&event.Description,
			&event.ThreatLevel,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return events, nil
}

// DangerAt assesses the danger level of a location in one year. Locations
// outside the record get a cautious middle estimate. A place inside its
// recorded safe period is capped at a low danger level regardless of its
// baseline.
func (s *Store) DangerAt(ctx context.Context, location string, year int) (archive.DangerReport, error) {
	if err := ctx.Err(); err != nil {
		return archive.DangerReport{}, err
	}
	if s == nil || s.sqlDB == nil {
		return archive.DangerReport{}, fmt.Errorf("storage is not configured")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return archive.DangerReport{}, fmt.Errorf("location is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, danger_level, safe_from, safe_until FROM places WHERE name = ?`,
		nameKey(location),
	)

	var name string
	var level, safeFrom, safeUntil int
	if err := row.Scan(&name, &level, &safeFrom, &safeUntil); err != nil {
		if err == sql.ErrNoRows {
			return archive.DangerReport{
				Location:  location,
				Level:     50,
				Safe:      false,
				Reasoning: fmt.Sprintf("No records exist for %s; proceed with caution.", location),
			}, nil
		}
		return archive.DangerReport{}, fmt.Errorf("query place: %w", err)
	}

	reasoning := fmt.Sprintf("The record places the danger around %s at %d in %d.", location, level, year)
	if safeFrom > 0 && year >= safeFrom && (safeUntil == 0 || year <= safeUntil) {
		if level > 30 {
			level = 30
		}
		reasoning = fmt.Sprintf("%s is recorded as a refuge between %d and %d.", location, safeFrom, safeUntil)
	}

	return archive.DangerReport{
		Location:  location,
		Level:     level,
		Safe:      level < archive.SafeDangerThreshold,
		Reasoning: reasoning,
	}, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ archive.Archive = (*Store)(nil)
