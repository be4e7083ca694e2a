package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/netreport/internal/model"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Count != 10 {
		t.Errorf("count: got %d, want 10", cfg.Count)
	}
	if cfg.Host != "google.com" {
		t.Errorf("host: got %s, want google.com", cfg.Host)
	}
	if cfg.RTTMode != string(model.RTTCumulative) {
		t.Errorf("rtt mode: got %s", cfg.RTTMode)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero count", func(c *Config) { c.Count = 0 }, "invalid count"},
		{"zero timeout", func(c *Config) { c.CommandTimeout = 0 }, "invalid command timeout"},
		{"zero interval", func(c *Config) { c.WatchInterval = 0 }, "invalid watch interval"},
		{"rtt mode", func(c *Config) { c.RTTMode = "median" }, "invalid rtt mode"},
		{"resolver", func(c *Config) { c.Resolver = "nslookup" }, "invalid resolver"},
		{"format", func(c *Config) { c.Format = "html" }, "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestConfig_Request(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "example.com"
	cfg.Count = 4
	cfg.Report = "/tmp/out.txt"
	cfg.Traceroute = true

	req := cfg.Request()
	want := model.ReportRequest{
		Host:       "example.com",
		Count:      4,
		OutputPath: "/tmp/out.txt",
		Traceroute: true,
		Format:     model.FormatText,
	}
	if req != want {
		t.Errorf("got %+v, want %+v", req, want)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("filtered levels leaked:\n%s", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("missing error line:\n%s", out)
	}

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "DEBUG: now visible") {
		t.Error("SetLevel did not take effect")
	}
}

func TestLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netreport.log")
	l := NewLogger(LevelInfo, path)
	l.Info("written to %s", "file")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "INFO: written to file") {
		t.Errorf("log file content: %q", data)
	}
}

func TestLogger_SetFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "rotated", "second.log")

	var buf bytes.Buffer
	l := NewWriterLogger(LevelInfo, &buf)

	if err := l.SetFile(first); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	l.Info("before reload")

	if err := l.SetFile(second); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	l.Info("after reload")
	l.Close()

	firstData, _ := os.ReadFile(first)
	secondData, _ := os.ReadFile(second)
	if !strings.Contains(string(firstData), "before reload") || strings.Contains(string(firstData), "after reload") {
		t.Errorf("first log: %q", firstData)
	}
	if !strings.Contains(string(secondData), "after reload") || strings.Contains(string(secondData), "before reload") {
		t.Errorf("second log: %q", secondData)
	}
	if !strings.Contains(buf.String(), "before reload") || !strings.Contains(buf.String(), "after reload") {
		t.Errorf("stderr copy: %q", buf.String())
	}
}

func TestLogger_SetFileErrorKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "current.log")
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	l := NewWriterLogger(LevelInfo, &buf)
	if err := l.SetFile(current); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	if err := l.SetFile(filepath.Join(blocker, "x.log")); err == nil {
		t.Fatal("expected error for a path under a regular file")
	}
	l.Info("still here")
	l.Close()

	data, _ := os.ReadFile(current)
	if !strings.Contains(string(data), "still here") {
		t.Errorf("current log: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if FileExists(path) {
		t.Error("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("existing file not found")
	}
	if FileExists(dir) {
		t.Error("directory reported as file")
	}
}

func TestDefaultConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CommandTimeout != 2*time.Minute {
		t.Errorf("timeout: got %s", cfg.CommandTimeout)
	}
	if cfg.WatchInterval != 30*time.Second {
		t.Errorf("interval: got %s", cfg.WatchInterval)
	}
}
