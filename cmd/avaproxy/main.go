// Package main is the entry point for the avaproxy reverse proxy.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath   string
	logLevel     string
	logFormat    string
	showVersion  bool
	validateOnly bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg, err := loadAndValidateConfig(flags.configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}
	if flags.validateOnly {
		logger.Info("configuration is valid")
		return
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize proxy", observability.Error(err))
	}

	if err := run(app, flags.configPath); err != nil {
		logger.Fatal("proxy terminated", observability.Error(err))
	}
}

// parseFlags parses command line flags. Environment variables supply the
// defaults.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", getEnvOrDefault("AVAPROXY_CONFIG_PATH", "configs/avaproxy.yaml"),
		"Path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", getEnvOrDefault("AVAPROXY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault("AVAPROXY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	fs.BoolVar(&f.validateOnly, "validate", false, "Validate the configuration and exit")
	_ = fs.Parse(args)
	return f
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("avaproxy %s (commit %s, built %s)\n", version, gitCommit, buildTime)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) (*config.ProxyConfig, error) {
	logger.Info("starting avaproxy",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("address", cfg.Spec.Listener.Address),
		observability.Int("routes", len(cfg.Spec.Routes)),
		observability.Int("clusters", len(cfg.Spec.Clusters)),
	)

	return cfg, nil
}
