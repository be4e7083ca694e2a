package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/netreport/internal/daemon"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/storage"
	"github.com/user/netreport/internal/util"
)

func testConfig(t *testing.T) *util.Config {
	t.Helper()

	c := util.DefaultConfig()
	c.DataDir = t.TempDir()
	c.SpeedtestFile = filepath.Join(c.DataDir, "speedtest_report.json")
	c.Platform = "linux"
	return c
}

func TestSessionRejectsUnsupportedPlatform(t *testing.T) {
	c := testConfig(t)
	c.Platform = "plan9"

	s := newSession()
	defer s.Close()

	_, err := s.Pipeline(c, io.Discard)
	var unsupported *platform.UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedPlatformError", err)
	}
	if unsupported.Signal != "plan9" {
		t.Errorf("signal = %q", unsupported.Signal)
	}
}

func TestSessionOpensHistoryOnce(t *testing.T) {
	c := testConfig(t)

	s := newSession()
	defer s.Close()

	if _, err := s.Pipeline(c, io.Discard); err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if s.db != nil {
		t.Fatal("history opened without --save")
	}

	c.History = true
	if _, err := s.Pipeline(c, io.Discard); err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	db := s.db
	if db == nil {
		t.Fatal("history not opened")
	}

	if _, err := s.Pipeline(c, io.Discard); err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if s.db != db {
		t.Error("history reopened on rebuild")
	}

	if _, err := os.Stat(filepath.Join(c.DataDir, storage.DatabaseFile)); err != nil {
		t.Errorf("database file: %v", err)
	}

	s.Close()
	if s.db != nil {
		t.Error("Close kept the database")
	}
}

func TestSessionCreatesConfiguredDataDir(t *testing.T) {
	c := testConfig(t)
	c.DataDir = filepath.Join(c.DataDir, "nr_new_dir", "sub")
	c.History = true

	s := newSession()
	defer s.Close()

	if _, err := s.Pipeline(c, io.Discard); err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if s.db == nil {
		t.Fatal("history not opened")
	}
	if _, err := os.Stat(filepath.Join(c.DataDir, storage.DatabaseFile)); err != nil {
		t.Errorf("database file: %v", err)
	}
}

func TestSessionContinuesWithoutHistory(t *testing.T) {
	c := testConfig(t)
	blocker := filepath.Join(c.DataDir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	c.DataDir = filepath.Join(blocker, "sub")
	c.History = true

	s := newSession()
	defer s.Close()

	p, err := s.Pipeline(c, io.Discard)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if p == nil {
		t.Fatal("no pipeline")
	}
	if s.db != nil {
		t.Error("database opened under a regular file")
	}
}

func TestPrintWatchSummary(t *testing.T) {
	var buf bytes.Buffer
	printWatchSummary(&buf, &daemon.DaemonStatus{
		Uptime: 95 * time.Second,
		Job:    daemon.JobStatus{RunCount: 4, ErrorCount: 1, LastError: "ping failed"},
	})

	out := buf.String()
	for _, want := range []string{"1m35s", "4 run(s), 1 failed", "Last error: ping failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
