// Package util provides common utilities for netreport.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/user/netreport/internal/model"
)

// Resolver names accepted by the resolver setting.
const (
	ResolverAuto   = "auto"
	ResolverGetent = "getent"
	ResolverDNS    = "dns"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Platform overrides the runtime OS signal when set.
	Platform string `mapstructure:"platform"`

	// Report request defaults
	Host       string `mapstructure:"host"`
	Count      int    `mapstructure:"count"`
	Report     string `mapstructure:"report"`
	Speedtest  bool   `mapstructure:"speedtest"`
	Traceroute bool   `mapstructure:"traceroute"`
	Format     string `mapstructure:"format"`

	// Bounded wait for every external command.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	// External binaries
	PingBinary       string   `mapstructure:"ping_binary"`
	TracerouteBinary string   `mapstructure:"traceroute_binary"`
	SpeedtestBinary  string   `mapstructure:"speedtest_binary"`
	SpeedtestArgs    []string `mapstructure:"speedtest_args"`

	// Artifacts
	SpeedtestFile  string `mapstructure:"speedtest_file"`
	ComparisonCSV  string `mapstructure:"comparison_csv"`
	TraceCaptureTo string `mapstructure:"trace_capture_file"`

	// Traceroute settings
	RTTMode         string        `mapstructure:"rtt_mode"`
	ResolveHops     bool          `mapstructure:"resolve_hops"`
	Resolver        string        `mapstructure:"resolver"`
	DNSServer       string        `mapstructure:"dns_server"`
	ResolveCacheTTL time.Duration `mapstructure:"resolve_cache_ttl"`

	// History
	History bool `mapstructure:"history"`

	// Watch mode
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".netreport")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  "",

		Host:   "google.com",
		Count:  10,
		Format: model.FormatText,

		CommandTimeout: 2 * time.Minute,

		PingBinary:      "ping",
		SpeedtestBinary: "speedtest-cli",
		SpeedtestArgs:   []string{"--json", "--secure"},

		SpeedtestFile: filepath.Join(dataDir, "speedtest_report.json"),

		RTTMode:         string(model.RTTCumulative),
		ResolveHops:     true,
		Resolver:        ResolverAuto,
		ResolveCacheTTL: 10 * time.Minute,

		WatchInterval: 30 * time.Second,
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	dataDir := cfg.DataDir
	if env := os.Getenv("NETREPORT_DATA_DIR"); env != "" {
		dataDir = env
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(dataDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("NETREPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	setDefaults(cfg)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return Reload()
}

// Reload unmarshals the current viper state into a fresh Config.
func Reload() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.SpeedtestFile == "" {
		cfg.SpeedtestFile = filepath.Join(cfg.DataDir, "speedtest_report.json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("platform", "")
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("count", cfg.Count)
	viper.SetDefault("report", "")
	viper.SetDefault("speedtest", false)
	viper.SetDefault("traceroute", false)
	viper.SetDefault("format", cfg.Format)
	viper.SetDefault("command_timeout", cfg.CommandTimeout)
	viper.SetDefault("ping_binary", cfg.PingBinary)
	viper.SetDefault("traceroute_binary", "")
	viper.SetDefault("speedtest_binary", cfg.SpeedtestBinary)
	viper.SetDefault("speedtest_args", cfg.SpeedtestArgs)
	viper.SetDefault("speedtest_file", "")
	viper.SetDefault("comparison_csv", "")
	viper.SetDefault("trace_capture_file", "")
	viper.SetDefault("rtt_mode", cfg.RTTMode)
	viper.SetDefault("resolve_hops", cfg.ResolveHops)
	viper.SetDefault("resolver", cfg.Resolver)
	viper.SetDefault("dns_server", "")
	viper.SetDefault("resolve_cache_ttl", cfg.ResolveCacheTTL)
	viper.SetDefault("history", false)
	viper.SetDefault("watch_interval", cfg.WatchInterval)
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("invalid count %d: must be at least 1", c.Count)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("invalid command timeout %s: must be positive", c.CommandTimeout)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("invalid watch interval %s: must be positive", c.WatchInterval)
	}
	switch model.RTTMode(c.RTTMode) {
	case model.RTTCumulative, model.RTTPerHop:
	default:
		return fmt.Errorf("invalid rtt mode %q: want %q or %q", c.RTTMode, model.RTTCumulative, model.RTTPerHop)
	}
	switch c.Resolver {
	case ResolverAuto, ResolverGetent, ResolverDNS:
	default:
		return fmt.Errorf("invalid resolver %q: want auto, getent or dns", c.Resolver)
	}
	switch c.Format {
	case model.FormatText, model.FormatMarkdown:
	default:
		return fmt.Errorf("invalid format %q: want text or markdown", c.Format)
	}
	return nil
}

// Request builds the report request for one invocation.
func (c *Config) Request() model.ReportRequest {
	return model.ReportRequest{
		Host:       c.Host,
		Count:      c.Count,
		OutputPath: c.Report,
		Speedtest:  c.Speedtest,
		Traceroute: c.Traceroute,
		Format:     c.Format,
	}
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
