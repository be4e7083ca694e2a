// Package pipeline runs the diagnostic phases and hands the results to the
// report emitter.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/probes"
	"github.com/user/netreport/internal/report"
	"github.com/user/netreport/internal/storage"
	"github.com/user/netreport/internal/util"
)

// dnsTimeout bounds a single PTR exchange.
const dnsTimeout = 5 * time.Second

// Outcome is what one run produced. Optional phases that failed leave their
// result nil and record the error.
type Outcome struct {
	Ping      *model.CommandResult
	Bandwidth *model.BandwidthReport
	Trace     *model.TracerouteResult

	BandwidthErr error
	TraceErr     error

	// IPChanged is set when history is on and the public IP differs from the
	// last recorded bandwidth test.
	IPChanged bool

	Record *model.RunRecord
}

// Pipeline wires the probes, the emitter and the optional history store.
type Pipeline struct {
	family     platform.Family
	ping       *probes.PingProbe
	speedtest  *probes.SpeedtestProbe
	traceroute *probes.TracerouteProbe
	resolver   probes.HopResolver
	emitter    *report.Emitter

	resolveHops   bool
	comparisonCSV string

	runs      *storage.RunStorage
	bandwidth *storage.BandwidthStorage
}

// New builds a pipeline from configuration. Reports without an output path
// are written to stdout.
func New(cfg *util.Config, family platform.Family, exec probes.Executor, stdout io.Writer) (*Pipeline, error) {
	resolver, err := probes.NewResolver(cfg.Resolver, family, exec, cfg.DNSServer, dnsTimeout, cfg.ResolveCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create hop resolver: %w", err)
	}

	trace := probes.NewTracerouteProbe(exec, family, cfg.TracerouteBinary, model.RTTMode(cfg.RTTMode))
	trace.SetCaptureFile(cfg.TraceCaptureTo)

	return &Pipeline{
		family:        family,
		ping:          probes.NewPingProbe(exec, family, cfg.PingBinary),
		speedtest:     probes.NewSpeedtestProbe(exec, cfg.SpeedtestBinary, cfg.SpeedtestArgs, cfg.SpeedtestFile),
		traceroute:    trace,
		resolver:      resolver,
		emitter:       report.NewEmitter(stdout),
		resolveHops:   cfg.ResolveHops,
		comparisonCSV: cfg.ComparisonCSV,
	}, nil
}

// WithHistory records every run in db.
func (p *Pipeline) WithHistory(db *storage.DB) *Pipeline {
	p.runs = storage.NewRunStorage(db)
	p.bandwidth = storage.NewBandwidthStorage(db)
	return p
}

// Run executes one report. A failed ping aborts the run; a failed bandwidth
// test or traceroute only drops its section.
func (p *Pipeline) Run(ctx context.Context, req model.ReportRequest) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{
		Record: &model.RunRecord{
			Host:      req.Host,
			Platform:  p.family.String(),
			StartedAt: start,
		},
	}

	ping, err := p.ping.Run(ctx, req.Host, req.Count)
	out.Ping = ping
	if err != nil {
		out.Record.Duration = time.Since(start)
		p.save(out.Record)
		return out, err
	}
	out.Record.PingSucceeded = true

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	if req.Speedtest {
		g.Go(func() error {
			bw, err := p.speedtest.Run(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.BandwidthErr = err
				util.Warn("Bandwidth test skipped: %v", err)
				return nil
			}
			out.Bandwidth = bw
			return nil
		})
	}

	if req.Traceroute {
		g.Go(func() error {
			trace, err := p.trace(ctx, req.Host)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.TraceErr = err
				util.Warn("Traceroute skipped: %v", err)
				return nil
			}
			out.Trace = trace
			return nil
		})
	}

	// Phases report their own failures through the outcome.
	_ = g.Wait()

	if out.Bandwidth != nil && p.comparisonCSV != "" {
		if err := report.WriteComparisonCSV(p.comparisonCSV, report.ComparisonRows(out.Bandwidth)); err != nil {
			util.Warn("Failed to write comparison CSV: %v", err)
		}
	}

	if out.Bandwidth != nil {
		out.IPChanged = p.ipChanged(out.Bandwidth.IP)
	}

	emitErr := p.emitter.Emit(req, out.Ping, out.Bandwidth, out.Trace)

	out.Record.Duration = time.Since(start)
	out.Record.Bandwidth = out.Bandwidth
	if out.Trace != nil {
		summary := out.Trace.Summary
		out.Record.Trace = &summary
		out.Record.Hops = out.Trace.Hops
	}
	p.save(out.Record)

	if emitErr != nil {
		return out, emitErr
	}

	util.Info("Report for %s completed in %s", req.Host, out.Record.Duration.Round(time.Millisecond))
	return out, nil
}

func (p *Pipeline) trace(ctx context.Context, host string) (*model.TracerouteResult, error) {
	trace, err := p.traceroute.Trace(ctx, host)
	if err != nil {
		return nil, err
	}

	if p.resolveHops && p.resolver != nil {
		util.Info("Generating traceroute summary and name server resolution...")
		trace.Names = probes.ResolveHops(ctx, p.resolver, trace.Hops)

		names := make(map[string]string, len(trace.Names))
		for _, n := range trace.Names {
			names[n.Address] = n.Name
		}
		for i := range trace.Hops {
			trace.Hops[i].Hostname = names[trace.Hops[i].Address]
		}
	}

	return trace, nil
}

// ipChanged compares ip with the last recorded bandwidth test. The first
// recorded test is never a change.
func (p *Pipeline) ipChanged(ip string) bool {
	if p.bandwidth == nil {
		return false
	}
	count, err := p.bandwidth.Count()
	if err != nil || count == 0 {
		return false
	}
	changed, err := p.bandwidth.HasIPChanged(ip)
	if err != nil {
		util.Warn("Failed to compare public IP with history: %v", err)
		return false
	}
	if changed {
		util.Warn("Public IP changed to %s since the last bandwidth test", ip)
	}
	return changed
}

func (p *Pipeline) save(record *model.RunRecord) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Save(record); err != nil {
		util.Warn("Failed to record run history: %v", err)
		return
	}
	util.Debug("Recorded run %s", record.ID)
}
