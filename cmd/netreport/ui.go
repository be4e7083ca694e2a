package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/user/netreport/internal/storage"
	"github.com/user/netreport/internal/tui"
)

var uiHost string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the terminal history dashboard",
	Long:  "Open an interactive dashboard of runs recorded with --save.",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

func init() {
	uiCmd.Flags().StringVar(&uiHost, "only", "", "only show runs against this host")
}

func runUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("ui needs an interactive terminal")
	}

	db, err := storage.OpenInDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	return tui.NewApp(db, uiHost).Run()
}
