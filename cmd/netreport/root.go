package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/netreport/internal/pipeline"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/probes"
	"github.com/user/netreport/internal/storage"
	"github.com/user/netreport/internal/util"
)

var (
	cfgFile string
	cfg     *util.Config
)

// rootCmd runs a single report.
var rootCmd = &cobra.Command{
	Use:   "netreport",
	Short: "Network diagnostic report",
	Long: `NetReport runs a network diagnostic against a host and writes a report:
- ping reachability (always)
- bandwidth via speedtest-cli, with a global speed comparison (--speedtest)
- traceroute summary with hop name resolution (--traceroute)

The report goes to stdout, or is appended to the file given with --report.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReport,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command and kill its children.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.netreport/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	defaults := util.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.String("host", defaults.Host, "host to diagnose")
	flags.Int("count", defaults.Count, "number of echo requests")
	flags.String("report", "", "append the report to this file instead of stdout")
	flags.Bool("speedtest", false, "run a bandwidth test")
	flags.Bool("traceroute", false, "run a traceroute")
	flags.Duration("timeout", defaults.CommandTimeout, "wait bound for every external command")
	flags.String("rtt-mode", defaults.RTTMode, "traceroute averaging (cumulative, per-hop)")
	flags.Bool("resolve-hops", defaults.ResolveHops, "resolve responding hop addresses to names")
	flags.String("resolver", defaults.Resolver, "hop name resolver (auto, getent, dns)")
	flags.String("format", defaults.Format, "report format (text, markdown)")
	flags.Bool("save", false, "record the run in history")
	flags.String("platform", "", "override the detected platform")

	bindFlags(rootCmd, map[string]string{
		"host":         "host",
		"count":        "count",
		"report":       "report",
		"speedtest":    "speedtest",
		"traceroute":   "traceroute",
		"timeout":      "command_timeout",
		"rtt-mode":     "rtt_mode",
		"resolve-hops": "resolve_hops",
		"resolver":     "resolver",
		"format":       "format",
		"save":         "history",
		"platform":     "platform",
	})

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// bindFlags binds persistent flags of cmd to config keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		if !util.FileExists(cfgFile) {
			fmt.Fprintf(os.Stderr, "Error loading config: %s not found\n", cfgFile)
			os.Exit(1)
		}
		viper.SetConfigFile(cfgFile)
	}

	var err error
	cfg, err = util.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel, cfg.LogFile)
}

func runReport(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.Close()

	p, err := s.Pipeline(cfg, os.Stdout)
	if err != nil {
		return err
	}

	_, err = p.Run(cmd.Context(), cfg.Request())
	return err
}

// session builds pipelines for one process and owns the history database.
type session struct {
	db *storage.DB
}

func newSession() *session {
	return &session{}
}

// Pipeline builds a pipeline for c. The history database is opened the first
// time a config asks for it and reused afterwards. A database that cannot be
// opened only disables history.
func (s *session) Pipeline(c *util.Config, stdout io.Writer) (*pipeline.Pipeline, error) {
	family, err := platform.Current(c.Platform)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(c, family, probes.NewRunner(c.CommandTimeout), stdout)
	if err != nil {
		return nil, err
	}

	if c.History {
		if s.db == nil {
			db, err := storage.OpenInDir(c.DataDir)
			if err != nil {
				util.Warn("History disabled, failed to open database: %v", err)
				return p, nil
			}
			s.db = db
		}
		p.WithHistory(s.db)
	}

	return p, nil
}

// Close releases the history database.
func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("netreport version 1.0.0")
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for netreport.

To load completions:

Bash:
  $ source <(netreport completion bash)

Zsh:
  $ source <(netreport completion zsh)

Fish:
  $ netreport completion fish | source

PowerShell:
  PS> netreport completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
