// Package model defines core data structures for netreport.
package model

import "time"

// CommandResult is the captured outcome of one external command.
type CommandResult struct {
	Command  []string      `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the result counts as a failure: anything on stderr,
// or nothing on stdout.
func (r *CommandResult) Failed() bool {
	if r == nil {
		return true
	}
	return r.Stderr != "" || r.Stdout == ""
}

// BandwidthReport represents a parsed speed test result.
type BandwidthReport struct {
	ISP          string    `json:"isp"`
	IP           string    `json:"ip"`
	LatencyMs    float64   `json:"latency_ms"`
	DownloadMbps int64     `json:"download_mbps"`
	UploadMbps   int64     `json:"upload_mbps"`
	Timestamp    time.Time `json:"timestamp"`
}

// SpeedComparison is one row of the bandwidth comparison chart.
type SpeedComparison struct {
	Label    string `json:"label"`
	Download int64  `json:"download"`
	Upload   int64  `json:"upload"`
}

// RTTMode selects how traceroute round-trip times are averaged.
type RTTMode string

const (
	// RTTCumulative pools samples from every hop and recomputes the mean after
	// each responding line.
	RTTCumulative RTTMode = "cumulative"
	// RTTPerHop averages each hop on its own, then averages the hop means.
	RTTPerHop RTTMode = "per-hop"
)

// TracerouteHop represents a single hop in a traceroute.
type TracerouteHop struct {
	Position   int       `json:"position"`
	Address    string    `json:"address,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
	Responding bool      `json:"responding"`
	RTTs       []float64 `json:"rtts,omitempty"`
	AverageRTT float64   `json:"average_rtt"`
}

// TracerouteSummary holds aggregated path statistics.
type TracerouteSummary struct {
	Target            string    `json:"target"`
	Destination       string    `json:"destination"`
	RespondingHops    int       `json:"responding_hops"`
	NonRespondingHops int       `json:"non_responding_hops"`
	AverageRTT        float64   `json:"average_rtt"`
	Mode              RTTMode   `json:"mode"`
	Timestamp         time.Time `json:"timestamp"`
}

// HopName maps a hop address to its resolved name.
type HopName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// TracerouteResult is everything derived from one traceroute run.
type TracerouteResult struct {
	Summary         TracerouteSummary `json:"summary"`
	Hops            []TracerouteHop   `json:"hops"`
	Names           []HopName         `json:"names,omitempty"`
	RunningAverages []float64         `json:"running_averages,omitempty"`
	Raw             string            `json:"-"`
}

// ReportRequest is the caller's intent for one invocation.
type ReportRequest struct {
	Host       string `json:"host"`
	Count      int    `json:"count"`
	OutputPath string `json:"output_path"`
	Speedtest  bool   `json:"speedtest"`
	Traceroute bool   `json:"traceroute"`
	Format     string `json:"format"`
}

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// RunRecord is a stored pipeline run.
type RunRecord struct {
	ID            string             `json:"id"`
	Host          string             `json:"host"`
	Platform      string             `json:"platform"`
	StartedAt     time.Time          `json:"started_at"`
	Duration      time.Duration      `json:"duration"`
	PingSucceeded bool               `json:"ping_succeeded"`
	Bandwidth     *BandwidthReport   `json:"bandwidth,omitempty"`
	Trace         *TracerouteSummary `json:"trace,omitempty"`
	Hops          []TracerouteHop    `json:"hops,omitempty"`
}
