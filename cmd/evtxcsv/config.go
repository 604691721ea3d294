package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/evtxcsv/internal/evtx"
	"github.com/tinytelemetry/evtxcsv/internal/logging"
	"github.com/tinytelemetry/evtxcsv/internal/model"
)

const (
	appName                 = "evtxcsv"
	defaultReader           = evtx.KindAuto
	defaultDumpBinary       = evtx.DefaultDumpBinary
	defaultWorkers          = 1
	defaultLogLevel         = "warn"
	defaultLogFormat        = logging.FormatText
	defaultProgressInterval = model.DefaultProgressInterval
)

// appConfig is the resolved runtime configuration of one invocation.
type appConfig struct {
	Input            string `mapstructure:"input"`
	Output           string `mapstructure:"output"`
	Reader           string `mapstructure:"reader"`
	DumpBinary       string `mapstructure:"evtx-dump"`
	TwoPass          bool   `mapstructure:"two-pass"`
	Workers          int    `mapstructure:"workers"`
	DuckDBPath       string `mapstructure:"duckdb"`
	ReportPath       string `mapstructure:"report"`
	JournalPath      string `mapstructure:"journal"`
	LogLevel         string `mapstructure:"log-level"`
	LogFormat        string `mapstructure:"log-format"`
	ProgressInterval int    `mapstructure:"progress-interval"`
	ConfigPath       string `mapstructure:"-"` // not from config file
}

// registerFlags declares the command line surface. Every flag name is also
// a config key and an EVTXCSV_ environment variable.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default is $HOME/.config/evtxcsv/config.yml)")
	fs.StringP("input", "i", "", "event log file or folder to convert")
	fs.StringP("output", "o", "", "output CSV file or folder")
	fs.String("reader", defaultReader, "record reader: auto, evtx_dump or xml")
	fs.String("evtx-dump", defaultDumpBinary, "path to the evtx_dump binary")
	fs.Bool("two-pass", false, "read each file twice instead of buffering its rows")
	fs.Int("workers", defaultWorkers, "files converted in parallel in folder mode")
	fs.String("duckdb", "", "also load events into this DuckDB database")
	fs.String("report", "", "write a YAML run report to this path")
	fs.String("journal", "", "skip files unchanged since the run recorded in this journal")
	fs.String("log-level", defaultLogLevel, "log level: debug, info, warn or error")
	fs.String("log-format", defaultLogFormat, "log format: text or json")
	fs.Int("progress-interval", defaultProgressInterval, "rows between progress updates")
}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("EVTXCSV")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("reader", defaultReader)
	v.SetDefault("evtx-dump", defaultDumpBinary)
	v.SetDefault("two-pass", false)
	v.SetDefault("workers", defaultWorkers)
	v.SetDefault("duckdb", "")
	v.SetDefault("report", "")
	v.SetDefault("journal", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("progress-interval", defaultProgressInterval)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", appName, "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Workers < 1 {
		return cfg, fmt.Errorf("invalid workers: %d", cfg.Workers)
	}
	if cfg.ProgressInterval < 1 {
		return cfg, fmt.Errorf("invalid progress-interval: %d", cfg.ProgressInterval)
	}
	switch strings.ToLower(cfg.Reader) {
	case evtx.KindAuto, evtx.KindDump, evtx.KindXML:
		cfg.Reader = strings.ToLower(cfg.Reader)
	default:
		return cfg, fmt.Errorf("invalid reader: %q", cfg.Reader)
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.Input, &cfg.Output, &cfg.DuckDBPath, &cfg.ReportPath, &cfg.JournalPath, &cfg.DumpBinary} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	return cfg, nil
}
