// Package archive keeps a history of polled snapshots in SQLite. The
// in-memory frame remains the only source for rendering; the archive exists
// so an operator can look back past the device's own bounded trend window.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/model"
)

// Snapshot is one archived poll result.
type Snapshot struct {
	ID              string    `json:"id"`
	DeviceTimestamp string    `json:"device_timestamp"`
	Temperature     string    `json:"temperature"`
	Humidity        string    `json:"humidity"`
	Pressure        string    `json:"pressure"`
	TempTrend       string    `json:"t_trend"`
	HumidityTrend   string    `json:"h_trend"`
	PressureTrend   string    `json:"p_trend"`
	FetchedAt       time.Time `json:"fetched_at"`
}

type SQLiteArchive struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteArchive(log *slog.Logger, dbPath string) (*SQLiteArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &SQLiteArchive{
		log: log,
		db:  db,
	}

	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			device_timestamp TEXT NOT NULL,
			temperature TEXT NOT NULL,
			humidity TEXT NOT NULL,
			pressure TEXT NOT NULL,
			t_trend TEXT NOT NULL,
			h_trend TEXT NOT NULL,
			p_trend TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_fetched_at ON snapshots(fetched_at);
	`
	_, err := a.db.Exec(query)
	return err
}

func (a *SQLiteArchive) Store(ctx context.Context, frame *model.Frame) error {
	query := `
		INSERT INTO snapshots (id, device_timestamp, temperature, humidity, pressure, t_trend, h_trend, p_trend, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	s := frame.Status
	_, err := a.db.ExecContext(ctx, query,
		frame.ID,
		s.Timestamp,
		string(s.Temperature),
		string(s.Humidity),
		string(s.Pressure),
		s.TempTrend,
		s.HumidityTrend,
		s.PressureTrend,
		frame.FetchedAt.Format(time.RFC3339),
	)

	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	a.log.Debug("snapshot archived", slog.String("id", frame.ID))
	return nil
}

// Recent returns the newest snapshots, newest first.
func (a *SQLiteArchive) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `
		SELECT id, device_timestamp, temperature, humidity, pressure, t_trend, h_trend, p_trend, fetched_at
		FROM snapshots
		ORDER BY fetched_at DESC
		LIMIT ?
	`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			s         Snapshot
			fetchedAt string
		)
		if err := rows.Scan(&s.ID, &s.DeviceTimestamp, &s.Temperature, &s.Humidity, &s.Pressure,
			&s.TempTrend, &s.HumidityTrend, &s.PressureTrend, &fetchedAt); err != nil {
			a.log.Error("failed to scan row", sl.Err(err))
			continue
		}

		ts, err := time.Parse(time.RFC3339, fetchedAt)
		if err != nil {
			a.log.Error("failed to parse timestamp", sl.Err(err))
			continue
		}
		s.FetchedAt = ts

		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

func (a *SQLiteArchive) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	result, err := a.db.ExecContext(ctx, "DELETE FROM snapshots WHERE fetched_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		a.log.Info("cleaned up old snapshots", slog.Int64("deleted", deleted))
	}

	return nil
}

func (a *SQLiteArchive) Count(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&count)
	return count, err
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
