package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/util"
)

// bytesToMegabits is applied to the raw throughput figures.
const bytesToMegabits = 1e-6

// SpeedtestProbe runs a bandwidth test that writes a JSON document to a file.
type SpeedtestProbe struct {
	exec       Executor
	binary     string
	args       []string
	reportFile string
}

// NewSpeedtestProbe creates a new bandwidth probe.
func NewSpeedtestProbe(exec Executor, binary string, args []string, reportFile string) *SpeedtestProbe {
	if binary == "" {
		binary = "speedtest-cli"
	}
	return &SpeedtestProbe{
		exec:       exec,
		binary:     binary,
		args:       args,
		reportFile: reportFile,
	}
}

// Run executes the bandwidth test and parses its report.
func (p *SpeedtestProbe) Run(ctx context.Context) (*model.BandwidthReport, error) {
	util.Info("Starting %s...", p.binary)

	result, err := p.exec.RunToFile(ctx, p.reportFile, p.binary, p.args...)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.Stdout) == "" {
		reason := "produced no report"
		if result.Stderr != "" {
			reason = strings.TrimSpace(result.Stderr)
		}
		return nil, &CommandExecutionError{
			Command: commandLine(p.binary, p.args),
			Reason:  reason,
		}
	}

	report, err := ParseBandwidth([]byte(result.Stdout))
	if err != nil {
		return nil, err
	}
	report.Timestamp = time.Now()

	return report, nil
}

type speedtestDocument struct {
	Download *float64 `json:"download"`
	Upload   *float64 `json:"upload"`
	Client   *struct {
		IP  *string `json:"ip"`
		ISP *string `json:"isp"`
	} `json:"client"`
	Server *struct {
		Latency *float64 `json:"latency"`
	} `json:"server"`
}

// ParseBandwidth extracts a BandwidthReport from a speedtest JSON document.
func ParseBandwidth(data []byte) (*model.BandwidthReport, error) {
	var doc speedtestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedReportError{Source: "bandwidth", Reason: "invalid JSON", Err: err}
	}

	switch {
	case doc.Download == nil:
		return nil, missingField("download")
	case doc.Upload == nil:
		return nil, missingField("upload")
	case doc.Client == nil:
		return nil, missingField("client")
	case doc.Client.IP == nil:
		return nil, missingField("client.ip")
	case doc.Client.ISP == nil:
		return nil, missingField("client.isp")
	case doc.Server == nil:
		return nil, missingField("server")
	case doc.Server.Latency == nil:
		return nil, missingField("server.latency")
	}

	if !finite(*doc.Server.Latency) {
		return nil, &MalformedReportError{Source: "bandwidth", Reason: "latency is not a finite number"}
	}

	download, err := toMegabits("download", *doc.Download)
	if err != nil {
		return nil, err
	}
	upload, err := toMegabits("upload", *doc.Upload)
	if err != nil {
		return nil, err
	}

	return &model.BandwidthReport{
		ISP:          *doc.Client.ISP,
		IP:           *doc.Client.IP,
		LatencyMs:    *doc.Server.Latency,
		DownloadMbps: download,
		UploadMbps:   upload,
	}, nil
}

// FormatLatency renders a latency value the way the report shows it.
func FormatLatency(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64) + " ms"
}

func toMegabits(field string, raw float64) (int64, error) {
	if !finite(raw) || raw < 0 {
		return 0, &MalformedReportError{
			Source: "bandwidth",
			Reason: fmt.Sprintf("%s must be a non-negative finite number, got %v", field, raw),
		}
	}
	return int64(math.Round(raw * bytesToMegabits)), nil
}

func missingField(name string) error {
	return &MalformedReportError{Source: "bandwidth", Reason: fmt.Sprintf("missing field %q", name)}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
