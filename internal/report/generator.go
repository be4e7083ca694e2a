package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/storage"
)

// Generator builds history summaries from stored runs.
type Generator struct {
	runs *storage.RunStorage
}

// NewGenerator creates a new history generator.
func NewGenerator(db *storage.DB) *Generator {
	return &Generator{runs: storage.NewRunStorage(db)}
}

// HistoryData holds everything shown by the history views.
type HistoryData struct {
	GeneratedAt time.Time
	Host        string
	TotalRuns   int
	Runs        []model.RunRecord

	AverageDownload float64
	AverageUpload   float64

	IPChanges   []IPChange
	PathChanges []PathChange
}

// IPChange represents a public IP address change between bandwidth tests.
type IPChange struct {
	OldIP     string
	NewIP     string
	Timestamp time.Time
}

// PathChange represents a traceroute path change between two runs.
type PathChange struct {
	Host      string
	OldHops   []model.TracerouteHop
	NewHops   []model.TracerouteHop
	Added     []string
	Removed   []string
	Timestamp time.Time
}

// Generate loads up to limit runs for host (all hosts when empty).
func (g *Generator) Generate(host string, limit int) (*HistoryData, error) {
	runs, err := g.runs.GetRecent(host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	total, err := g.runs.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	data := &HistoryData{
		GeneratedAt: time.Now(),
		Host:        host,
		TotalRuns:   total,
		Runs:        runs,
		IPChanges:   detectIPChanges(runs),
		PathChanges: detectPathChanges(runs),
	}
	data.AverageDownload, data.AverageUpload = averageSpeeds(runs)

	return data, nil
}

// detectIPChanges expects runs newest first.
func detectIPChanges(runs []model.RunRecord) []IPChange {
	var withBandwidth []model.RunRecord
	for _, run := range runs {
		if run.Bandwidth != nil {
			withBandwidth = append(withBandwidth, run)
		}
	}

	var changes []IPChange
	for i := 0; i < len(withBandwidth)-1; i++ {
		curr, prev := withBandwidth[i].Bandwidth, withBandwidth[i+1].Bandwidth
		if curr.IP != prev.IP {
			changes = append(changes, IPChange{
				OldIP:     prev.IP,
				NewIP:     curr.IP,
				Timestamp: withBandwidth[i].StartedAt,
			})
		}
	}

	return changes
}

// detectPathChanges compares consecutive traced runs of the same host.
func detectPathChanges(runs []model.RunRecord) []PathChange {
	byHost := make(map[string][]model.RunRecord)
	var hosts []string
	for _, run := range runs {
		if run.Trace == nil {
			continue
		}
		if _, ok := byHost[run.Host]; !ok {
			hosts = append(hosts, run.Host)
		}
		byHost[run.Host] = append(byHost[run.Host], run)
	}

	var changes []PathChange
	for _, host := range hosts {
		traced := byHost[host]
		for i := 0; i < len(traced)-1; i++ {
			curr, prev := traced[i], traced[i+1]

			currHops := getHopIPs(curr.Hops)
			prevHops := getHopIPs(prev.Hops)
			if equalHops(currHops, prevHops) {
				continue
			}

			added, removed := diffHops(prevHops, currHops)
			changes = append(changes, PathChange{
				Host:      host,
				OldHops:   prev.Hops,
				NewHops:   curr.Hops,
				Added:     added,
				Removed:   removed,
				Timestamp: curr.StartedAt,
			})
		}
	}

	return changes
}

func averageSpeeds(runs []model.RunRecord) (down, up float64) {
	var n int
	for _, run := range runs {
		if run.Bandwidth == nil {
			continue
		}
		down += float64(run.Bandwidth.DownloadMbps)
		up += float64(run.Bandwidth.UploadMbps)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return down / float64(n), up / float64(n)
}

func getHopIPs(hops []model.TracerouteHop) []string {
	ips := make([]string, 0, len(hops))
	for _, hop := range hops {
		if hop.Responding && hop.Address != "" {
			ips = append(ips, hop.Address)
		}
	}
	return ips
}

func equalHops(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffHops(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool)
	newSet := make(map[string]bool)

	for _, h := range old {
		oldSet[h] = true
	}
	for _, h := range new {
		newSet[h] = true
	}

	for h := range newSet {
		if !oldSet[h] {
			added = append(added, h)
		}
	}
	for h := range oldSet {
		if !newSet[h] {
			removed = append(removed, h)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return
}
