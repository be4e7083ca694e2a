package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/netreport/internal/model"
)

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	Host            string
	Latest          *model.BandwidthReport
	SpeedTests      int
	WeekAvgDownload float64
	TotalRuns       int
	RunsToday       int
	Runs            []model.RunRecord
	Paths           []PathSummary
}

// PathSummary describes the latest traced path to a target.
type PathSummary struct {
	Target        string
	Destination   string
	Hops          int
	AverageRTT    float64
	Timestamp     time.Time
	Traces        int
	DistinctPaths int
}

// Dashboard is the main dashboard view.
type Dashboard struct {
	data   *DashboardData
	width  int
	height int
}

// NewDashboard creates a new dashboard.
func NewDashboard(data *DashboardData, width, height int) *Dashboard {
	return &Dashboard{
		data:   data,
		width:  width,
		height: height,
	}
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder

	header := HeaderStyle.Width(d.width).Render("NetReport History")
	sb.WriteString(header)
	sb.WriteString("\n\n")

	sb.WriteString(d.renderBandwidthSection())
	sb.WriteString("\n")

	sb.WriteString(d.renderStatsSection())
	sb.WriteString("\n")

	sb.WriteString(d.renderPathsSection())
	sb.WriteString("\n")

	sb.WriteString(d.renderRunsSection())
	sb.WriteString("\n")

	help := HelpStyle.Render("Press 'r' to refresh • 'q' to quit")
	sb.WriteString(help)

	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (d *Dashboard) renderBandwidthSection() string {
	title := SectionTitleStyle.Render("Latest Bandwidth")

	bw := d.data.Latest
	if bw == nil {
		content := DimStyle.Render("No bandwidth tests recorded yet")
		return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
	}

	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("ISP:"),
		ValueStyle.Render(bw.ISP),
		LabelStyle.Render("Public IP:"),
		ValueStyle.Render(bw.IP),
		LabelStyle.Render("Download:"),
		ValueStyle.Render(fmt.Sprintf("%d Mbps", bw.DownloadMbps)),
		LabelStyle.Render("Upload:"),
		ValueStyle.Render(fmt.Sprintf("%d Mbps", bw.UploadMbps)),
		LabelStyle.Render("Measured:"),
		ValueStyle.Render(bw.Timestamp.Local().Format("2006-01-02 15:04:05")),
	)

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
}

func (d *Dashboard) renderStatsSection() string {
	failed := 0
	for _, run := range d.data.Runs {
		if !run.PingSucceeded {
			failed++
		}
	}

	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Total Runs:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.TotalRuns)),
		LabelStyle.Render("Last 24h:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.RunsToday)),
		LabelStyle.Render("Ping Failed:"),
		ValueStyle.Render(fmt.Sprintf("%d of %d shown", failed, len(d.data.Runs))),
		LabelStyle.Render("Speed Tests:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.SpeedTests)),
		LabelStyle.Render("7d Avg Down:"),
		ValueStyle.Render(fmt.Sprintf("%.1f Mbps", d.data.WeekAvgDownload)),
	)

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Statistics") + "\n" + content)
}

func (d *Dashboard) renderPathsSection() string {
	title := SectionTitleStyle.Render("Paths")

	if len(d.data.Paths) == 0 {
		content := DimStyle.Render("No traceroutes recorded yet")
		return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
	}

	var rows []string
	for _, p := range d.data.Paths {
		dest := p.Destination
		if dest == "" {
			dest = "?"
		}
		stable := RenderStatus(p.DistinctPaths <= 1, "stable",
			fmt.Sprintf("%d paths in %d traces", p.DistinctPaths, p.Traces))
		rows = append(rows, fmt.Sprintf("%s → %s  %d hops  %.2f ms  %s  %s",
			ValueStyle.Render(p.Target),
			dest,
			p.Hops,
			p.AverageRTT,
			stable,
			DimStyle.Render(p.Timestamp.Local().Format("01-02 15:04")),
		))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + strings.Join(rows, "\n"))
}

func (d *Dashboard) renderRunsSection() string {
	title := SectionTitleStyle.Render("Recent Runs")
	if d.data.Host != "" {
		title = SectionTitleStyle.Render("Recent Runs for " + d.data.Host)
	}

	if len(d.data.Runs) == 0 {
		content := DimStyle.Render("No runs recorded yet")
		return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
	}

	var peak int64
	for _, run := range d.data.Runs {
		if run.Bandwidth != nil && run.Bandwidth.DownloadMbps > peak {
			peak = run.Bandwidth.DownloadMbps
		}
	}

	var rows []string
	rows = append(rows, fmt.Sprintf("%-17s %-20s %-8s %-22s %s", "Started", "Host", "Ping", "Download", "Avg RTT"))
	rows = append(rows, strings.Repeat("─", 80))

	for _, run := range d.data.Runs {
		host := run.Host
		if len(host) > 18 {
			host = host[:15] + "..."
		}

		download := DimStyle.Render("-")
		if run.Bandwidth != nil {
			download = RenderBar(int(run.Bandwidth.DownloadMbps), int(peak), 12) +
				fmt.Sprintf(" %d", run.Bandwidth.DownloadMbps)
		}

		rtt := "-"
		if run.Trace != nil {
			rtt = fmt.Sprintf("%.2f ms", run.Trace.AverageRTT)
		}

		rows = append(rows, fmt.Sprintf("%-17s %-20s %s  %s  %s",
			run.StartedAt.Local().Format("01-02 15:04:05"),
			host,
			RenderStatus(run.PingSucceeded, "ok", "fail"),
			download,
			rtt,
		))
	}

	content := strings.Join(rows, "\n")
	return SectionStyle.Width(d.sectionWidth()).Render(title + "\n" + content)
}
