// Package store keeps a durable log of group status transitions and capacity
// warnings in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"tour-counter-go/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// DefaultLimit caps history queries when no limit is given
const DefaultLimit = 50

// Store is a SQLite-backed sink and history reader
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending migrations
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Status store ready")
	return s, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations. It is a no-op at the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// RecordStatus appends a status transition
func (s *Store) RecordStatus(ctx context.Context, u models.StatusUpdate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_status_log (gate_id, status, previous_status, current_count, total_count, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.GateID, string(u.State), string(u.Previous), u.CurrentCount, u.TotalCount, u.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record status for gate %s: %w", u.GateID, err)
	}
	return nil
}

// RecordAlert appends a capacity warning. Alerts are keyed by id, so a
// redelivered alert is stored once.
func (s *Store) RecordAlert(ctx context.Context, a models.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO warning_log (id, gate_id, status, current_count, threshold, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.GateID, string(a.Status), a.CurrentCount, a.Threshold, a.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record alert for gate %s: %w", a.GateID, err)
	}
	return nil
}

// RecentStatuses returns the newest transitions of a gate, newest first
func (s *Store) RecentStatuses(ctx context.Context, gateID string, limit int) ([]models.StatusUpdate, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, previous_status, current_count, total_count, recorded_at
		 FROM group_status_log WHERE gate_id = ? ORDER BY id DESC LIMIT ?`,
		gateID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	out := []models.StatusUpdate{}
	for rows.Next() {
		var (
			u        models.StatusUpdate
			state    string
			previous string
			ts       string
		)
		if err := rows.Scan(&state, &previous, &u.CurrentCount, &u.TotalCount, &ts); err != nil {
			return nil, err
		}
		u.GateID = gateID
		u.State = models.GroupState(state)
		u.Previous = models.GroupState(previous)
		if u.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", ts, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// RecentAlerts returns the newest warnings of a gate, newest first
func (s *Store) RecentAlerts(ctx context.Context, gateID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, current_count, threshold, recorded_at
		 FROM warning_log WHERE gate_id = ? ORDER BY recorded_at DESC, rowid DESC LIMIT ?`,
		gateID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query warning history: %w", err)
	}
	defer rows.Close()

	out := []models.Alert{}
	for rows.Next() {
		var (
			a      models.Alert
			status string
			ts     string
		)
		if err := rows.Scan(&a.ID, &status, &a.CurrentCount, &a.Threshold, &ts); err != nil {
			return nil, err
		}
		a.GateID = gateID
		a.Status = models.AlertStatus(status)
		if a.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", ts, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Name implements publisher.Sink
func (s *Store) Name() string { return "store" }

// SendStatus implements publisher.Sink
func (s *Store) SendStatus(ctx context.Context, u models.StatusUpdate) error {
	return s.RecordStatus(ctx, u)
}

// SendAlert implements publisher.Sink
func (s *Store) SendAlert(ctx context.Context, a models.Alert) error {
	return s.RecordAlert(ctx, a)
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
