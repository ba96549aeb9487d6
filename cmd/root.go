// Package cmd provides the command-line interface for sitepipe.
//
// Configuration System:
//
//	The CLI reads configuration from several sources, highest priority first:
//	1. Command-line flags (--log-level, --port, ...)
//	2. Environment variables following SITEPIPE_<SECTION>_<OPTION>
//	3. The config file: --config, else SITEPIPE_CONFIG_FILE, else
//	   .sitepipe.yml in the working directory
//	4. Built-in defaults
//
// Environment Variables:
//
//	SITEPIPE_CONFIG_FILE: Path to a custom configuration file
//	SITEPIPE_SERVER_PORT: Override the dev server port
//	SITEPIPE_LINT_ENABLED: Enable/disable the lint stage
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable holding a config file path.
const ConfigFileEnv = "SITEPIPE_CONFIG_FILE"

var (
	cfgFile     string
	projectRoot string
	logLevel    = levelFlag{level: logging.LevelInfo, name: "info"}
	logFormat   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Static-site asset pipeline",
	Long: `sitepipe compiles markup templates, stylesheets and script bundles from a
source tree into an intermediate tree, optimizes that tree into a deployable
build, and runs a watching dev server with live reload.

Quick Start:
  sitepipe compile     Compile src/ into ___Temp/
  sitepipe build       Compile, then optimize into ___Build/
  sitepipe watch       Rebuild on change and serve ___Temp/ with live reload
  sitepipe graph       Show the task graph`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if diagnostics := errors.Diagnostics(err); diagnostics != "" {
		fmt.Fprintln(os.Stderr, diagnostics)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use "+ConfigFileEnv+" env var)")
	flags.StringVar(&projectRoot, "root", ".", "project root the configured paths are relative to")
	flags.VarP(&logLevel, "log-level", "l", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

// initConfig points viper at the config file and enables environment
// overrides. A missing default config file is not an error.
func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(ConfigFileEnv) != "":
		viper.SetConfigFile(os.Getenv(ConfigFileEnv))
	default:
		viper.AddConfigPath(projectRoot)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepipe")
	}

	config.BindEnvironment(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig builds the validated configuration from the global viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "sitepipe",
	})
}

// setup loads the configuration and builds the pipeline for projectRoot.
func setup() (*config.Config, logging.Logger, *pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)

	p, err := pipeline.New(cfg, projectRoot, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build task graph: %w", err)
	}
	return cfg, logger, p, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
