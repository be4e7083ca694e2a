package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/netreport/internal/model"
)

// HistoryHeaders are the run history table columns.
var HistoryHeaders = []string{"Started", "Host", "Ping", "Download", "Upload", "Avg RTT", "Hops"}

// RenderHistory renders stored runs with detected changes.
func RenderHistory(r *lipgloss.Renderer, data *HistoryData) string {
	title := r.NewStyle().Bold(true).Foreground(primary)
	dim := r.NewStyle().Foreground(subtle).Italic(true)
	ok := r.NewStyle().Foreground(lipgloss.Color("46"))
	bad := r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	var sb strings.Builder
	sb.WriteString(title.Render("Run History"))
	sb.WriteString("\n")
	scope := "all hosts"
	if data.Host != "" {
		scope = data.Host
	}
	sb.WriteString(dim.Render(fmt.Sprintf("Showing %d of %d runs for %s", len(data.Runs), data.TotalRuns, scope)))
	sb.WriteString("\n\n")

	if len(data.Runs) == 0 {
		sb.WriteString(dim.Render("No runs recorded yet. Use --save to record one."))
		sb.WriteString("\n")
		return sb.String()
	}

	t := newTable(r, HistoryHeaders)
	for _, run := range data.Runs {
		ping := ok.Render("ok")
		if !run.PingSucceeded {
			ping = bad.Render("failed")
		}
		t.Row(
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Host,
			ping,
			speedCell(run.Bandwidth, true),
			speedCell(run.Bandwidth, false),
			rttCell(run.Trace),
			hopsCell(run.Trace),
		)
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")

	if data.AverageDownload > 0 || data.AverageUpload > 0 {
		fmt.Fprintf(&sb, "Average speed: %.1f Mbps down, %.1f Mbps up\n", data.AverageDownload, data.AverageUpload)
	}

	fmt.Fprintf(&sb, "Public IP changes: %d\n", len(data.IPChanges))
	for _, c := range data.IPChanges {
		fmt.Fprintf(&sb, "  %s  %s -> %s\n", c.Timestamp.Local().Format("2006-01-02 15:04"), c.OldIP, c.NewIP)
	}

	fmt.Fprintf(&sb, "Path changes: %d\n", len(data.PathChanges))
	for _, c := range data.PathChanges {
		fmt.Fprintf(&sb, "  %s  %s", c.Timestamp.Local().Format("2006-01-02 15:04"), c.Host)
		if len(c.Added) > 0 {
			fmt.Fprintf(&sb, "  +%s", strings.Join(c.Added, " +"))
		}
		if len(c.Removed) > 0 {
			fmt.Fprintf(&sb, "  -%s", strings.Join(c.Removed, " -"))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func speedCell(bw *model.BandwidthReport, download bool) string {
	if bw == nil {
		return "-"
	}
	if download {
		return FormatMbps(bw.DownloadMbps)
	}
	return FormatMbps(bw.UploadMbps)
}

func rttCell(s *model.TracerouteSummary) string {
	if s == nil {
		return "-"
	}
	return strconv.FormatFloat(s.AverageRTT, 'f', -1, 64) + " ms"
}

func hopsCell(s *model.TracerouteSummary) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", s.RespondingHops, s.RespondingHops+s.NonRespondingHops)
}
