package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/user/netreport/internal/model"
)

var (
	testPing = &model.CommandResult{Stdout: "PING example.com\n64 bytes from 93.184.216.34\n"}

	testBandwidth = &model.BandwidthReport{
		ISP:          "ExampleISP",
		IP:           "1.2.3.4",
		LatencyMs:    12.5,
		DownloadMbps: 50,
		UploadMbps:   10,
	}

	testTrace = &model.TracerouteResult{
		Summary: model.TracerouteSummary{
			Target:            "example.com",
			Destination:       "93.184.216.34",
			RespondingHops:    2,
			NonRespondingHops: 1,
			AverageRTT:        7.2,
		},
		Hops: []model.TracerouteHop{
			{Position: 1, Address: "192.0.2.1", Responding: true, AverageRTT: 2},
			{Position: 2},
			{Position: 3, Address: "198.51.100.7", Responding: true, AverageRTT: 15},
		},
		Names: []model.HopName{{Address: "192.0.2.1", Name: "gw.example.net"}},
	}
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestEmitStreamPingOnly(t *testing.T) {
	var out bytes.Buffer
	e := NewEmitter(&out)

	if err := e.Emit(model.ReportRequest{Host: "example.com"}, testPing, nil, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	want := Separator + testPing.Stdout
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if len(Separator) != 87 {
		t.Errorf("separator length = %d, want 86 dashes and a newline", len(Separator))
	}
}

func TestEmitStreamIncludesStderr(t *testing.T) {
	var out bytes.Buffer
	ping := &model.CommandResult{Stdout: "partial\n", Stderr: "warning\n"}

	if err := NewEmitter(&out).Emit(model.ReportRequest{}, ping, nil, nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if out.String() != Separator+"partial\nwarning\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestEmitSectionOrder(t *testing.T) {
	var out bytes.Buffer
	if err := NewEmitter(&out).Emit(model.ReportRequest{}, testPing, testBandwidth, testTrace); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got := out.String()

	markers := []string{
		"64 bytes from",
		"Public IP Address",
		chartTitle,
		"DNS Lookup for example.com",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(got, m)
		if idx < 0 {
			t.Fatalf("output missing %q:\n%s", m, got)
		}
		if idx < last {
			t.Errorf("%q appears out of order", m)
		}
		last = idx
	}

	for _, want := range []string{"ExampleISP", "1.2.3.4", "12.5 ms", "50 Mbps", "10 Mbps", "Singapore"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestEmitFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	req := model.ReportRequest{OutputPath: path}
	e := NewEmitter(nil)

	for i := 0; i < 2; i++ {
		if err := e.Emit(req, testPing, nil, nil); err != nil {
			t.Fatalf("Emit #%d: %v", i+1, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != testPing.Stdout+testPing.Stdout {
		t.Errorf("file content = %q", data)
	}
}

func TestEmitFileError(t *testing.T) {
	dir := t.TempDir()
	err := NewEmitter(nil).Emit(model.ReportRequest{OutputPath: dir}, testPing, nil, nil)

	var writeErr *ReportWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *ReportWriteError, got %v", err)
	}
	if writeErr.Path != dir {
		t.Errorf("path = %q", writeErr.Path)
	}
	if writeErr.Unwrap() == nil {
		t.Error("expected wrapped cause")
	}
}

func TestEmitStreamWriteError(t *testing.T) {
	err := NewEmitter(failingWriter{}).Emit(model.ReportRequest{}, testPing, nil, nil)

	var writeErr *ReportWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *ReportWriteError, got %v", err)
	}
	if !strings.Contains(err.Error(), "standard output") {
		t.Errorf("error = %q", err)
	}
}

func TestEmitMarkdown(t *testing.T) {
	var out bytes.Buffer
	req := model.ReportRequest{Format: model.FormatMarkdown}
	if err := NewEmitter(&out).Emit(req, testPing, testBandwidth, testTrace); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	got := out.String()

	for _, want := range []string{"## Ping", "## Bandwidth", "## Traceroute", "```mermaid", "gw.example.net"} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("markdown output contains ANSI escapes")
	}
}

func TestRenderTraceSummary(t *testing.T) {
	var out bytes.Buffer
	sw := newSectionWriter(&out, model.FormatText)
	got := RenderTraceSummary(sw.r, testTrace)

	wants := []string{
		"DNS Lookup for example.com returned 93.184.216.34 as destination address.",
		"2 responding router(s) on this path with an average round trip time of 7.2 ms",
		"1 non-responding router(s) on this path",
		"IP address to Name Server mapping for responding routers on the path",
		"DNS resolution",
		"gw.example.net",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestComparisonRows(t *testing.T) {
	rows := ComparisonRows(testBandwidth)
	if len(rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(rows))
	}
	if rows[0] != (model.SpeedComparison{Label: "Local speed", Download: 50, Upload: 10}) {
		t.Errorf("local row = %+v", rows[0])
	}
	if rows[1] != (model.SpeedComparison{Label: "Global Average", Download: 74, Upload: 40}) {
		t.Errorf("global row = %+v", rows[1])
	}
}

func TestBar(t *testing.T) {
	if got := bar(0, 100); got != "" {
		t.Errorf("bar(0) = %q", got)
	}
	if got := bar(100, 100); got != strings.Repeat(barGlyph, chartWidth) {
		t.Errorf("bar(peak) has %d glyphs", strings.Count(got, barGlyph))
	}
	if got := bar(1, 1000); got != barGlyph {
		t.Errorf("small values should still draw one glyph, got %q", got)
	}
}

func TestWriteComparisonCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "graph_content.csv")
	if err := WriteComparisonCSV(path, ComparisonRows(testBandwidth)); err != nil {
		t.Fatalf("WriteComparisonCSV: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("records = %d, want 12", len(records))
	}
	if strings.Join(records[0], ",") != "Local speed,50,10" {
		t.Errorf("first record = %v", records[0])
	}
	if strings.Join(records[11], ",") != "United States,134,103" {
		t.Errorf("last record = %v", records[11])
	}
}

func TestGenerateMermaidDiagram(t *testing.T) {
	got := GenerateMermaidDiagram(testTrace)

	for _, want := range []string{"flowchart LR", "Hop 1\\ngw.example.net\\n192.0.2.1", "H2[Hop 2\\n* * *]:::lost", "Target[example.com\\n93.184.216.34]"} {
		if !strings.Contains(got, want) {
			t.Errorf("diagram missing %q:\n%s", want, got)
		}
	}
}

func TestDetectChanges(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	hopsA := []model.TracerouteHop{
		{Position: 1, Address: "192.0.2.1", Responding: true},
		{Position: 2, Address: "198.51.100.7", Responding: true},
	}
	hopsB := []model.TracerouteHop{
		{Position: 1, Address: "192.0.2.1", Responding: true},
		{Position: 2, Address: "203.0.113.9", Responding: true},
	}

	// Newest first.
	runs := []model.RunRecord{
		{Host: "example.com", StartedAt: base.Add(2 * time.Hour), Bandwidth: &model.BandwidthReport{IP: "5.6.7.8", DownloadMbps: 60, UploadMbps: 20}, Trace: &model.TracerouteSummary{}, Hops: hopsB},
		{Host: "example.com", StartedAt: base.Add(time.Hour), Trace: &model.TracerouteSummary{}, Hops: hopsA},
		{Host: "example.com", StartedAt: base, Bandwidth: &model.BandwidthReport{IP: "1.2.3.4", DownloadMbps: 40, UploadMbps: 10}, Trace: &model.TracerouteSummary{}, Hops: hopsA},
	}

	ipChanges := detectIPChanges(runs)
	if len(ipChanges) != 1 || ipChanges[0].OldIP != "1.2.3.4" || ipChanges[0].NewIP != "5.6.7.8" {
		t.Errorf("ip changes = %+v", ipChanges)
	}

	pathChanges := detectPathChanges(runs)
	if len(pathChanges) != 1 {
		t.Fatalf("path changes = %d, want 1", len(pathChanges))
	}
	c := pathChanges[0]
	if len(c.Added) != 1 || c.Added[0] != "203.0.113.9" || len(c.Removed) != 1 || c.Removed[0] != "198.51.100.7" {
		t.Errorf("diff = +%v -%v", c.Added, c.Removed)
	}

	down, up := averageSpeeds(runs)
	if down != 50 || up != 15 {
		t.Errorf("averages = %v/%v, want 50/15", down, up)
	}

	diagram := GenerateTraceComparison(c.OldHops, c.NewHops)
	if !strings.Contains(diagram, "N2[203.0.113.9]:::new") {
		t.Errorf("comparison does not flag the new hop:\n%s", diagram)
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	sw := newSectionWriter(&out, model.FormatText)
	got := RenderHistory(sw.r, &HistoryData{})
	if !strings.Contains(got, "No runs recorded yet") {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestBandwidthTableStylesHeaderOnly(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI256)

	out := RenderBandwidthTable(r, testBandwidth)

	if !strings.Contains(out, "\x1b[1") {
		t.Errorf("header row not bold:\n%q", out)
	}
	i := strings.Index(out, "ExampleISP")
	if i < 1 {
		t.Fatalf("data row missing:\n%q", out)
	}
	if out[i-1] != ' ' {
		t.Errorf("data cell styled like a header: %q", out[max(0, i-8):i])
	}
}
