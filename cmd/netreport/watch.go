package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/user/netreport/internal/daemon"
	"github.com/user/netreport/internal/util"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeat the report until interrupted",
	Long: `Run the report, wait for the interval, and run it again until SIGINT or SIGTERM.

The config file is watched; changes apply from the next run.

Examples:
  netreport watch
  netreport watch --interval 5m --speedtest --save`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", util.DefaultConfig().WatchInterval,
		"wait between runs")
	viper.BindPFlag("watch_interval", watchCmd.Flags().Lookup("interval"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.Close()

	p, err := s.Pipeline(cfg, os.Stdout)
	if err != nil {
		return err
	}

	job := daemon.NewReportJob(p, cfg.Request())
	d := daemon.New(job.Job(cfg.WatchInterval))

	if term.IsTerminal(int(os.Stderr.Fd())) {
		d.Scheduler().OnTick(countdown)
	}

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if !d.IsRunning() {
				return
			}
			reloadWatch(e, s, job, d.Scheduler())
		})
		viper.WatchConfig()
	}

	if err := d.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	d.Wait()

	printWatchSummary(os.Stderr, d.GetStatus())
	return nil
}

// printWatchSummary reports what a watch session did once it stops.
func printWatchSummary(w io.Writer, status *daemon.DaemonStatus) {
	job := status.Job
	fmt.Fprintf(w, "\nWatch stopped after %s: %d run(s), %d failed\n",
		status.Uptime.Round(time.Second), job.RunCount, job.ErrorCount)
	if job.LastError != "" {
		color.New(color.FgYellow).Fprintf(w, "Last error: %s\n", job.LastError)
	}
}

// reloadWatch applies a changed config file to the next run. A config that
// fails to load or validate keeps the previous one in place.
func reloadWatch(e fsnotify.Event, s *session, job *daemon.ReportJob, sched *daemon.Scheduler) {
	next, err := util.Reload()
	if err != nil {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Ignoring config change: %v\n", err)
		return
	}

	p, err := s.Pipeline(next, os.Stdout)
	if err != nil {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Ignoring config change: %v\n", err)
		return
	}

	util.InitLogger(next.LogLevel, next.LogFile)
	job.Update(p, next.Request())
	sched.SetInterval(next.WatchInterval)
	cfg = next

	util.Info("Config reloaded from %s", e.Name)
}

// countdown shows the wait before the next run on the terminal.
func countdown(remaining time.Duration) {
	if remaining <= 0 {
		fmt.Fprint(os.Stderr, "\r\033[K")
		return
	}
	fmt.Fprintf(os.Stderr, "\r%2d seconds remaining...", int(remaining/time.Second))
}
