package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/netreport/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(host string, started time.Time) *model.RunRecord {
	return &model.RunRecord{
		Host:          host,
		Platform:      "linux",
		StartedAt:     started,
		Duration:      1500 * time.Millisecond,
		PingSucceeded: true,
		Bandwidth: &model.BandwidthReport{
			ISP:          "ExampleISP",
			IP:           "1.2.3.4",
			LatencyMs:    12.5,
			DownloadMbps: 50,
			UploadMbps:   10,
			Timestamp:    started,
		},
		Trace: &model.TracerouteSummary{
			Target:            host,
			Destination:       "93.184.216.34",
			RespondingHops:    2,
			NonRespondingHops: 1,
			AverageRTT:        7.2,
			Mode:              model.RTTCumulative,
			Timestamp:         started,
		},
		Hops: []model.TracerouteHop{
			{Position: 1, Address: "192.0.2.1", Hostname: "gw.example", Responding: true, AverageRTT: 2},
			{Position: 2},
			{Position: 3, Address: "198.51.100.7", Responding: true, AverageRTT: 15},
		},
	}
}

func TestOpenCreatesWALDatabase(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Fatalf("Expected journal mode to be 'wal', got '%s'", journalMode)
	}

	// Creating tables again must be harmless.
	if err := db.createTables(); err != nil {
		t.Fatalf("Failed to recreate tables: %v", err)
	}
}

func TestOpenInDirCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	db, err := OpenInDir(dir)
	if err != nil {
		t.Fatalf("OpenInDir: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, DatabaseFile)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestRunStorageSaveAndGetRecent(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := sampleRun("example.com", base)
	newer := sampleRun("example.com", base.Add(time.Hour))
	newer.Bandwidth = nil
	other := sampleRun("example.org", base.Add(30*time.Minute))

	for _, r := range []*model.RunRecord{older, newer, other} {
		if err := runs.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if r.ID == "" {
			t.Fatal("Save did not assign an ID")
		}
	}

	count, err := runs.Count()
	if err != nil || count != 3 {
		t.Fatalf("Count = %d, %v; want 3", count, err)
	}

	recent, err := runs.GetRecent("example.com", 10)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d runs, want 2", len(recent))
	}
	if recent[0].ID != newer.ID {
		t.Errorf("runs not ordered newest first")
	}
	if recent[0].Bandwidth != nil {
		t.Errorf("run without bandwidth got %+v", recent[0].Bandwidth)
	}
	if recent[1].Bandwidth == nil || recent[1].Bandwidth.DownloadMbps != 50 {
		t.Errorf("bandwidth not restored: %+v", recent[1].Bandwidth)
	}
	if recent[1].Duration != 1500*time.Millisecond {
		t.Errorf("duration = %s", recent[1].Duration)
	}

	trace := recent[1].Trace
	if trace == nil || trace.AverageRTT != 7.2 || trace.Destination != "93.184.216.34" {
		t.Fatalf("trace not restored: %+v", trace)
	}
	if len(recent[1].Hops) != 3 || recent[1].Hops[1].Responding {
		t.Errorf("hops not restored: %+v", recent[1].Hops)
	}
	if recent[1].Hops[0].Hostname != "gw.example" {
		t.Errorf("hostname = %q", recent[1].Hops[0].Hostname)
	}

	all, err := runs.GetRecent("", 1)
	if err != nil || len(all) != 1 {
		t.Fatalf("GetRecent limit: %d runs, %v", len(all), err)
	}
}

func TestBandwidthStorage(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)
	bw := NewBandwidthStorage(db)

	latest, err := bw.GetLatest()
	if err != nil || latest != nil {
		t.Fatalf("empty GetLatest = %+v, %v", latest, err)
	}

	changed, err := bw.HasIPChanged("1.2.3.4")
	if err != nil || !changed {
		t.Errorf("first record should count as a change")
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := sampleRun("example.com", base)
	second := sampleRun("example.com", base.Add(time.Hour))
	second.Bandwidth.IP = "5.6.7.8"
	second.Bandwidth.Timestamp = base.Add(time.Hour)
	for _, r := range []*model.RunRecord{first, second} {
		if err := runs.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	latest, err = bw.GetLatest()
	if err != nil || latest == nil || latest.IP != "5.6.7.8" {
		t.Fatalf("GetLatest = %+v, %v", latest, err)
	}

	history, err := bw.GetHistory(base.Add(-time.Minute))
	if err != nil || len(history) != 2 {
		t.Fatalf("GetHistory = %d records, %v", len(history), err)
	}

	changed, _ = bw.HasIPChanged("5.6.7.8")
	if changed {
		t.Error("same IP reported as changed")
	}
}

func TestTraceStorage(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStorage(db)
	traces := NewTraceStorage(db)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := runs.Save(sampleRun("example.com", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	latest, err := traces.GetLatest("example.com")
	if err != nil || latest == nil {
		t.Fatalf("GetLatest = %v, %v", latest, err)
	}
	if !latest.Summary.Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("latest timestamp = %s", latest.Summary.Timestamp)
	}

	history, err := traces.GetHistory("example.com", 2)
	if err != nil || len(history) != 2 {
		t.Fatalf("GetHistory = %d, %v", len(history), err)
	}
	if len(history[0].Hops) != 3 {
		t.Errorf("hops = %d, want 3", len(history[0].Hops))
	}

	missing, err := traces.GetLatest("nowhere.example")
	if err != nil || missing != nil {
		t.Errorf("GetLatest for unknown target = %v, %v", missing, err)
	}

	targets, err := traces.GetTargets()
	if err != nil || len(targets) != 1 || targets[0] != "example.com" {
		t.Errorf("GetTargets = %v, %v", targets, err)
	}
}
