package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netreport/internal/report"
	"github.com/user/netreport/internal/storage"
)

var (
	historyLimit   int
	historyHost    string
	historyDiagram bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `Show runs recorded with --save, newest first, with bandwidth averages
and detected public IP and path changes.

Examples:
  netreport history
  netreport history --limit 50 --only example.com
  netreport history --diagram`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&historyHost, "only", "", "only show runs against this host")
	historyCmd.Flags().BoolVar(&historyDiagram, "diagram", false,
		"print a Mermaid diagram of the latest path change")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("invalid limit %d: must be at least 1", historyLimit)
	}

	db, err := storage.OpenInDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	data, err := report.NewGenerator(db).Generate(historyHost, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	r := lipgloss.NewRenderer(os.Stdout)
	fmt.Fprint(os.Stdout, report.RenderHistory(r, data))

	if historyDiagram && len(data.PathChanges) > 0 {
		latest := data.PathChanges[0]
		fmt.Fprintf(os.Stdout, "\nPath change for %s at %s:\n%s",
			latest.Host, latest.Timestamp.Local().Format("2006-01-02 15:04:05"),
			report.GenerateTraceComparison(latest.OldHops, latest.NewHops))
	}

	return nil
}
