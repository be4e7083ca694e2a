package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/netreport/internal/model"
)

// RunStorage handles pipeline run persistence.
type RunStorage struct {
	db        *DB
	bandwidth *BandwidthStorage
	traces    *TraceStorage
}

// NewRunStorage creates a new run storage handler.
func NewRunStorage(db *DB) *RunStorage {
	return &RunStorage{
		db:        db,
		bandwidth: NewBandwidthStorage(db),
		traces:    NewTraceStorage(db),
	}
}

// Save stores a run with its bandwidth and trace sections. An empty ID is
// filled with a new UUID.
func (s *RunStorage) Save(record *model.RunRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	return s.db.WithLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		pingOK := 0
		if record.PingSucceeded {
			pingOK = 1
		}
		_, err = tx.Exec(
			`INSERT INTO runs (id, host, platform, started_at, duration_ms, ping_ok)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.ID, record.Host, record.Platform, record.StartedAt.UTC(),
			record.Duration.Milliseconds(), pingOK)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if record.Bandwidth != nil {
			if err := saveBandwidth(tx, record.ID, record.Bandwidth); err != nil {
				return err
			}
		}
		if record.Trace != nil {
			trace := &model.TracerouteResult{Summary: *record.Trace, Hops: record.Hops}
			if err := saveTrace(tx, record.ID, trace); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// GetRecent returns up to limit runs, newest first. An empty host matches
// every host.
func (s *RunStorage) GetRecent(host string, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, host, platform, started_at, duration_ms, ping_ok FROM runs`
	args := []any{}
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	var runs []model.RunRecord
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("failed to query runs: %w", err)
		}

		for rows.Next() {
			var run model.RunRecord
			var durationMs int64
			var pingOK int
			if err := rows.Scan(&run.ID, &run.Host, &run.Platform, &run.StartedAt, &durationMs, &pingOK); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan run: %w", err)
			}
			run.Duration = time.Duration(durationMs) * time.Millisecond
			run.PingSucceeded = pingOK == 1
			runs = append(runs, run)
		}
		rows.Close() // Close rows before making more queries
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range runs {
			bw, err := s.bandwidth.GetForRun(runs[i].ID)
			if err != nil {
				return err
			}
			runs[i].Bandwidth = bw

			trace, err := s.traces.GetForRun(runs[i].ID)
			if err != nil {
				return err
			}
			if trace != nil {
				summary := trace.Summary
				runs[i].Trace = &summary
				runs[i].Hops = trace.Hops
			}
		}
		return nil
	})

	return runs, err
}

// Count returns the total number of recorded runs.
func (s *RunStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}

// CountSince returns the number of runs since a given time.
func (s *RunStorage) CountSince(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM runs WHERE started_at >= ?", since.UTC()).Scan(&count)
	return count, err
}
