package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/util"
)

const (
	chartTitle = "Speedtest comparison as of March 2020"
	chartWidth = 50
	barGlyph   = "▇"
)

// globalSpeeds are fixed reference figures in Mbps.
var globalSpeeds = []model.SpeedComparison{
	{Label: "Global Average", Download: 74, Upload: 40},
	{Label: "Singapore", Download: 197, Upload: 208},
	{Label: "Hong Kong", Download: 168, Upload: 164},
	{Label: "Romania", Download: 151, Upload: 112},
	{Label: "Thailand", Download: 149, Upload: 122},
	{Label: "Switzerland", Download: 148, Upload: 99},
	{Label: "Monaco", Download: 108, Upload: 76},
	{Label: "France", Download: 136, Upload: 91},
	{Label: "Macau", Download: 134, Upload: 125},
	{Label: "Sweden", Download: 134, Upload: 110},
	{Label: "United States", Download: 134, Upload: 103},
}

// ComparisonRows returns the local measurement followed by the reference rows.
func ComparisonRows(bw *model.BandwidthReport) []model.SpeedComparison {
	rows := make([]model.SpeedComparison, 0, len(globalSpeeds)+1)
	rows = append(rows, model.SpeedComparison{
		Label:    "Local speed",
		Download: bw.DownloadMbps,
		Upload:   bw.UploadMbps,
	})
	return append(rows, globalSpeeds...)
}

// RenderChart draws a horizontal bar chart of download and upload speeds.
func RenderChart(r *lipgloss.Renderer, rows []model.SpeedComparison) string {
	title := r.NewStyle().Bold(true).Foreground(primary)
	down := r.NewStyle().Foreground(accent)
	up := r.NewStyle().Foreground(primary)
	dim := r.NewStyle().Foreground(subtle)

	labelWidth := 0
	var peak int64
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if row.Download > peak {
			peak = row.Download
		}
		if row.Upload > peak {
			peak = row.Upload
		}
	}

	var sb strings.Builder
	sb.WriteString(title.Render(chartTitle))
	sb.WriteString("\n")
	sb.WriteString(dim.Render("Keys: " + down.Render("Download") + ", " + up.Render("Upload")))
	sb.WriteString("\n")
	sb.WriteString(dim.Render("All speeds are measured in Mbps"))
	sb.WriteString("\n\n")

	for _, row := range rows {
		fmt.Fprintf(&sb, "%-*s: %s %d\n", labelWidth, row.Label, down.Render(bar(row.Download, peak)), row.Download)
		fmt.Fprintf(&sb, "%-*s  %s %d\n", labelWidth, "", up.Render(bar(row.Upload, peak)), row.Upload)
	}

	return sb.String()
}

func bar(v, peak int64) string {
	if v <= 0 || peak <= 0 {
		return ""
	}
	n := int(math.Round(float64(v) / float64(peak) * chartWidth))
	if n < 1 {
		n = 1
	}
	return strings.Repeat(barGlyph, n)
}

// WriteComparisonCSV writes rows as label,download,upload records.
func WriteComparisonCSV(path string, rows []model.SpeedComparison) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, row := range rows {
		record := []string{
			row.Label,
			strconv.FormatInt(row.Download, 10),
			strconv.FormatInt(row.Upload, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return file.Close()
}
