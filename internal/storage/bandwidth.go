package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/user/netreport/internal/model"
)

// BandwidthStorage reads bandwidth test history.
type BandwidthStorage struct {
	db *DB
}

// NewBandwidthStorage creates a new bandwidth storage handler.
func NewBandwidthStorage(db *DB) *BandwidthStorage {
	return &BandwidthStorage{db: db}
}

func saveBandwidth(ex execer, runID string, report *model.BandwidthReport) error {
	query := `INSERT INTO bandwidth (run_id, isp, ip, latency_ms, download_mbps, upload_mbps, timestamp)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := ex.Exec(query,
		runID, report.ISP, report.IP, report.LatencyMs,
		report.DownloadMbps, report.UploadMbps, ts.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert bandwidth record: %w", err)
	}
	return nil
}

const bandwidthColumns = `isp, ip, latency_ms, download_mbps, upload_mbps, timestamp`

func scanBandwidth(row interface{ Scan(...any) error }) (*model.BandwidthReport, error) {
	var report model.BandwidthReport
	if err := row.Scan(
		&report.ISP, &report.IP, &report.LatencyMs,
		&report.DownloadMbps, &report.UploadMbps, &report.Timestamp); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetLatest returns the most recent bandwidth record.
func (s *BandwidthStorage) GetLatest() (*model.BandwidthReport, error) {
	query := `SELECT ` + bandwidthColumns + ` FROM bandwidth ORDER BY timestamp DESC LIMIT 1`

	report, err := scanBandwidth(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bandwidth: %w", err)
	}

	return report, nil
}

// GetForRun returns the bandwidth record of a run, or nil.
func (s *BandwidthStorage) GetForRun(runID string) (*model.BandwidthReport, error) {
	query := `SELECT ` + bandwidthColumns + ` FROM bandwidth WHERE run_id = ? LIMIT 1`

	report, err := scanBandwidth(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bandwidth for run %s: %w", runID, err)
	}

	return report, nil
}

// GetHistory returns bandwidth history since a given time, newest first.
func (s *BandwidthStorage) GetHistory(since time.Time) ([]model.BandwidthReport, error) {
	query := `SELECT ` + bandwidthColumns + `
			  FROM bandwidth WHERE timestamp >= ? ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query bandwidth history: %w", err)
	}
	defer rows.Close()

	var reports []model.BandwidthReport
	for rows.Next() {
		report, err := scanBandwidth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bandwidth record: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// HasIPChanged checks if the public IP differs from the last record.
func (s *BandwidthStorage) HasIPChanged(currentIP string) (bool, error) {
	latest, err := s.GetLatest()
	if err != nil {
		return false, err
	}
	if latest == nil {
		return true, nil
	}
	return latest.IP != currentIP, nil
}

// Count returns the total number of bandwidth records.
func (s *BandwidthStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM bandwidth").Scan(&count)
	return count, err
}
