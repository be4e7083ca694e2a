package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/user/netreport/internal/model"
)

// TraceStorage reads traceroute history.
type TraceStorage struct {
	db *DB
}

// NewTraceStorage creates a new trace storage handler.
func NewTraceStorage(db *DB) *TraceStorage {
	return &TraceStorage{db: db}
}

func saveTrace(ex execer, runID string, trace *model.TracerouteResult) error {
	s := trace.Summary
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := ex.Exec(
		`INSERT INTO traces (run_id, target, destination, responding, non_responding, average_rtt, mode, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Target, s.Destination, s.RespondingHops, s.NonRespondingHops,
		s.AverageRTT, string(s.Mode), ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}

	traceID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trace ID: %w", err)
	}

	stmt, err := ex.Prepare(
		`INSERT INTO trace_hops (trace_id, hop_num, ip, hostname, average_rtt, lost)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare hop statement: %w", err)
	}
	defer stmt.Close()

	names := make(map[string]string, len(trace.Names))
	for _, n := range trace.Names {
		names[n.Address] = n.Name
	}

	for _, hop := range trace.Hops {
		lost := 0
		if !hop.Responding {
			lost = 1
		}
		hostname := hop.Hostname
		if hostname == "" {
			hostname = names[hop.Address]
		}
		if _, err := stmt.Exec(traceID, hop.Position, hop.Address, hostname, hop.AverageRTT, lost); err != nil {
			return fmt.Errorf("failed to insert hop %d: %w", hop.Position, err)
		}
	}

	return nil
}

const traceColumns = `id, target, destination, responding, non_responding, average_rtt, mode, timestamp`

func scanTrace(row interface{ Scan(...any) error }) (int64, *model.TracerouteSummary, error) {
	var id int64
	var s model.TracerouteSummary
	var mode string
	if err := row.Scan(&id, &s.Target, &s.Destination, &s.RespondingHops,
		&s.NonRespondingHops, &s.AverageRTT, &mode, &s.Timestamp); err != nil {
		return 0, nil, err
	}
	s.Mode = model.RTTMode(mode)
	return id, &s, nil
}

// GetLatest returns the most recent trace for a target.
func (s *TraceStorage) GetLatest(target string) (*model.TracerouteResult, error) {
	query := `SELECT ` + traceColumns + ` FROM traces
			  WHERE target = ? ORDER BY timestamp DESC LIMIT 1`

	id, summary, err := scanTrace(s.db.QueryRow(query, target))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest trace: %w", err)
	}

	hops, err := s.getHops(id)
	if err != nil {
		return nil, err
	}

	return &model.TracerouteResult{Summary: *summary, Hops: hops}, nil
}

// GetForRun returns the trace of a run, or nil.
func (s *TraceStorage) GetForRun(runID string) (*model.TracerouteResult, error) {
	query := `SELECT ` + traceColumns + ` FROM traces WHERE run_id = ? LIMIT 1`

	id, summary, err := scanTrace(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace for run %s: %w", runID, err)
	}

	hops, err := s.getHops(id)
	if err != nil {
		return nil, err
	}

	return &model.TracerouteResult{Summary: *summary, Hops: hops}, nil
}

func (s *TraceStorage) getHops(traceID int64) ([]model.TracerouteHop, error) {
	query := `SELECT hop_num, ip, hostname, average_rtt, lost
			  FROM trace_hops WHERE trace_id = ? ORDER BY hop_num`

	rows, err := s.db.Query(query, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hops: %w", err)
	}
	defer rows.Close()

	var hops []model.TracerouteHop
	for rows.Next() {
		var hop model.TracerouteHop
		var lost int
		if err := rows.Scan(&hop.Position, &hop.Address, &hop.Hostname, &hop.AverageRTT, &lost); err != nil {
			return nil, fmt.Errorf("failed to scan hop: %w", err)
		}
		hop.Responding = lost == 0
		hops = append(hops, hop)
	}

	return hops, rows.Err()
}

// GetHistory returns up to limit traces for a target, newest first.
func (s *TraceStorage) GetHistory(target string, limit int) ([]model.TracerouteResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + traceColumns + ` FROM traces
			  WHERE target = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := s.db.Query(query, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}

	// Collect traces first without fetching hops
	var ids []int64
	var traces []model.TracerouteResult
	for rows.Next() {
		id, summary, err := scanTrace(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		ids = append(ids, id)
		traces = append(traces, model.TracerouteResult{Summary: *summary})
	}
	rows.Close() // Close rows before making more queries

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range traces {
		hops, err := s.getHops(ids[i])
		if err != nil {
			return nil, err
		}
		traces[i].Hops = hops
	}

	return traces, nil
}

// GetTargets returns distinct trace targets.
func (s *TraceStorage) GetTargets() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT target FROM traces ORDER BY target")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}
