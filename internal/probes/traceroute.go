package probes

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/util"
)

// nonRespondingMarker marks a probe that timed out.
const nonRespondingMarker = "*"

// TracerouteProbe handles traceroute operations.
type TracerouteProbe struct {
	exec        Executor
	family      platform.Family
	binary      string
	mode        model.RTTMode
	captureFile string
}

// NewTracerouteProbe creates a new traceroute probe. An empty binary picks the
// platform default.
func NewTracerouteProbe(exec Executor, family platform.Family, binary string, mode model.RTTMode) *TracerouteProbe {
	if mode == "" {
		mode = model.RTTCumulative
	}
	return &TracerouteProbe{
		exec:   exec,
		family: family,
		binary: binary,
		mode:   mode,
	}
}

// SetCaptureFile sets a path where the raw output is saved.
func (p *TracerouteProbe) SetCaptureFile(path string) {
	p.captureFile = path
}

// TracerouteCommand returns the binary and arguments for the given family.
// tracert runs with -d so every hop line ends in a bare address.
func TracerouteCommand(family platform.Family, binary, host string) (string, []string, error) {
	switch family {
	case platform.FamilyLinux, platform.FamilyDarwin, platform.FamilyBSD, platform.FamilyOther:
		if binary == "" {
			binary = "traceroute"
		}
		return binary, []string{host}, nil
	case platform.FamilyWindows:
		if binary == "" {
			binary = "tracert"
		}
		return binary, []string{"-d", host}, nil
	default:
		return "", nil, fmt.Errorf("no traceroute syntax for platform %s", family)
	}
}

// Trace performs a traceroute to the target using the system command.
func (p *TracerouteProbe) Trace(ctx context.Context, target string) (*model.TracerouteResult, error) {
	binary, args, err := TracerouteCommand(p.family, p.binary, target)
	if err != nil {
		return nil, err
	}

	util.Info("Starting traceroute to %s...", target)

	result, err := p.exec.Run(ctx, binary, args...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Stdout) == "" {
		reason := "produced no output"
		if result.Stderr != "" {
			reason = strings.TrimSpace(result.Stderr)
		}
		return nil, &CommandExecutionError{Command: commandLine(binary, args), Reason: reason}
	}

	if p.captureFile != "" {
		if err := writeCapture(p.captureFile, result.Stdout); err != nil {
			util.Warn("Failed to save traceroute capture: %v", err)
		}
	}

	trace, err := ParseTraceroute(result.Stdout, ParseOptions{
		Family: p.family,
		Mode:   p.mode,
		Header: result.Stderr,
	})
	if err != nil {
		return nil, err
	}
	trace.Summary.Target = target
	trace.Summary.Timestamp = time.Now()

	return trace, nil
}

func writeCapture(path, content string) error {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// ParseOptions controls traceroute parsing.
type ParseOptions struct {
	Family platform.Family
	Mode   model.RTTMode
	// Header is searched for the destination when the output starts with a
	// hop line. BSD and macOS traceroute print the header on stderr.
	Header string
}

// ParseTraceroute parses traceroute output into hops and a summary.
func ParseTraceroute(output string, opts ParseOptions) (*model.TracerouteResult, error) {
	if opts.Mode == "" {
		opts.Mode = model.RTTCumulative
	}
	if opts.Mode != model.RTTCumulative && opts.Mode != model.RTTPerHop {
		return nil, fmt.Errorf("unknown rtt mode %q", opts.Mode)
	}

	acc := &traceAccumulator{
		family: opts.Family,
		result: &model.TracerouteResult{
			Raw:     output,
			Summary: model.TracerouteSummary{Mode: opts.Mode},
		},
	}

	headerSeen := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !headerSeen {
			headerSeen = true
			if !isHopLine(line) {
				acc.result.Summary.Destination = parseDestination(line, opts.Family)
				continue
			}
			acc.result.Summary.Destination = findDestination(opts.Header, opts.Family)
		}
		acc.addLine(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &MalformedReportError{Source: "traceroute", Reason: "failed to read output", Err: err}
	}
	if !headerSeen {
		return nil, &MalformedReportError{Source: "traceroute", Reason: "no header line"}
	}

	acc.finish(opts.Mode)
	return acc.result, nil
}

// parseDestination takes the header token at a fixed position and returns it
// if it is a valid IP address, or "" otherwise.
func parseDestination(header string, family platform.Family) string {
	pos := 3
	if family == platform.FamilyWindows {
		// Tracing route to example.com [93.184.216.34]
		pos = 4
	}

	fields := strings.Fields(header)
	if len(fields) <= pos {
		return ""
	}

	candidate := strings.Trim(fields[pos], "()[],")
	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return ""
	}
	return addr.String()
}

// findDestination returns the first destination found in text.
func findDestination(text string, family platform.Family) string {
	for _, line := range strings.Split(text, "\n") {
		if dest := parseDestination(line, family); dest != "" {
			return dest
		}
	}
	return ""
}

func isHopLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.Atoi(fields[0])
	return err == nil
}

type traceAccumulator struct {
	family platform.Family
	result *model.TracerouteResult
	pool   []float64
}

func (a *traceAccumulator) addLine(line string) {
	fields := strings.Fields(line)
	position, err := strconv.Atoi(fields[0])
	if err != nil {
		util.Debug("Skipping traceroute line without hop number: %q", line)
		return
	}

	hop := model.TracerouteHop{Position: position}

	// A bare hop number carries no address and counts as non-responding.
	if strings.Contains(line, nonRespondingMarker) || len(fields) < 2 {
		a.result.Summary.NonRespondingHops++
		a.result.Hops = append(a.result.Hops, hop)
		return
	}

	var address string
	var rest []string
	if a.family == platform.FamilyWindows {
		// 1    <1 ms    <1 ms    <1 ms  192.168.1.1
		address = strings.Trim(fields[len(fields)-1], "[]")
		rest = fields[1 : len(fields)-1]
	} else {
		// 1  192.0.2.1 (192.0.2.1)  1.234 ms  1.456 ms  1.789 ms
		address = fields[1]
		rest = fields[2:]
	}

	hop.Address = address
	hop.Responding = true
	for _, tok := range rest {
		if a.family == platform.FamilyWindows {
			tok = strings.TrimPrefix(tok, "<")
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || !finite(v) {
			continue
		}
		hop.RTTs = append(hop.RTTs, v)
	}
	hop.AverageRTT = round2(mean(hop.RTTs))

	a.result.Summary.RespondingHops++
	a.result.Hops = append(a.result.Hops, hop)

	// The pool is shared across hops; the running mean is recomputed after
	// every responding line.
	a.pool = append(a.pool, hop.RTTs...)
	if len(a.pool) > 0 {
		a.result.RunningAverages = append(a.result.RunningAverages, round2(mean(a.pool)))
	}
}

func (a *traceAccumulator) finish(mode model.RTTMode) {
	switch mode {
	case model.RTTPerHop:
		var hopMeans []float64
		for _, hop := range a.result.Hops {
			if len(hop.RTTs) > 0 {
				hopMeans = append(hopMeans, mean(hop.RTTs))
			}
		}
		a.result.Summary.AverageRTT = round2(mean(hopMeans))
	default:
		if n := len(a.result.RunningAverages); n > 0 {
			a.result.Summary.AverageRTT = a.result.RunningAverages[n-1]
		}
	}
}

// RespondingAddresses returns the addresses of responding hops in path order.
func RespondingAddresses(hops []model.TracerouteHop) []string {
	addrs := make([]string, 0, len(hops))
	for _, hop := range hops {
		if hop.Responding && hop.Address != "" {
			addrs = append(addrs, hop.Address)
		}
	}
	return addrs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
