package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/probes"
)

var (
	primary = lipgloss.Color("205")
	accent  = lipgloss.Color("86")
	subtle  = lipgloss.Color("241")
)

// BandwidthHeaders are the bandwidth table columns.
var BandwidthHeaders = []string{"ISP", "Public IP Address", "Latency ⬌", "Download ⬇", "Upload ⬆"}

// DNSHeaders are the hop name table columns.
var DNSHeaders = []string{"IP Address", "DNS resolution"}

// headerRow is the row index lipgloss v0.10 passes to StyleFunc for headers.
const headerRow = 0

func newTable(r *lipgloss.Renderer, headers []string) *table.Table {
	header := r.NewStyle().Bold(true).Foreground(primary).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(subtle)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return header
			}
			return cell
		})
}

// FormatMbps renders a throughput value.
func FormatMbps(v int64) string {
	return fmt.Sprintf("%d Mbps", v)
}

// RenderBandwidthTable renders the single-row ISP and throughput table.
func RenderBandwidthTable(r *lipgloss.Renderer, bw *model.BandwidthReport) string {
	t := newTable(r, BandwidthHeaders).Row(
		bw.ISP,
		bw.IP,
		probes.FormatLatency(bw.LatencyMs),
		FormatMbps(bw.DownloadMbps),
		FormatMbps(bw.UploadMbps),
	)
	return t.Render() + "\n"
}

// RenderTraceSummary renders the traceroute summary followed by the hop name table.
func RenderTraceSummary(r *lipgloss.Renderer, trace *model.TracerouteResult) string {
	s := trace.Summary

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nDNS Lookup for %s returned %s as destination address.\n", s.Target, s.Destination)
	fmt.Fprintf(&sb, "%d responding router(s) on this path with an average round trip time of %s ms\n",
		s.RespondingHops, strconv.FormatFloat(s.AverageRTT, 'f', -1, 64))
	fmt.Fprintf(&sb, "%d non-responding router(s) on this path\n\n", s.NonRespondingHops)

	sb.WriteString("IP address to Name Server mapping for responding routers on the path\n\n")

	t := newTable(r, DNSHeaders)
	for _, n := range trace.Names {
		t.Row(n.Address, n.Name)
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	return sb.String()
}
