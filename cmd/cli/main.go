package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/posbridge/pricing-service/config"
	"github.com/posbridge/pricing-service/internal/backend"
	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/rulestore"
)

var (
	cfgFile     string
	environment string
	cfg         *config.Config
	logger      *zerolog.Logger
	eng         *engine.Engine
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pricing-service",
	Short: "Pricing Service CLI - Blueprint pricing inspection tool",
	Long: `A CLI tool for inspecting blueprint pricing against a configured backend
environment. Resolves product blueprints, lists quantity-break tiers, reverse
matches a quantity/price selection to its tier, and exports tier tables to Excel.`,
	PersistentPreRunE: persistentPreRun,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "backend environment (default is backend.default_environment)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and wires the pricing engine
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	if cfg == nil {
		return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
	}
	if environment == "" {
		environment = cfg.Backend.DefaultEnvironment
	}
	if !cfg.HasEnvironment(environment) {
		return fmt.Errorf("unknown environment %q (configured: %s)", environment, strings.Join(cfg.EnvironmentNames(), ", "))
	}

	gateway, err := backend.New(cfg.BackendEnvironments(), cfg.BackendOptions(), logger)
	if err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}
	store := rulestore.New(gateway, cfg.StoreOptions(), logger)
	eng = engine.New(store, gateway, cfg.EngineConfig(), logger)
	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// logs go to stderr so table and json output stay clean
	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stderr
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

// parseIDs parses "1,2,3" into ints
func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
