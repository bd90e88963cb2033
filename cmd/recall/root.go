package recall

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/recall/pkg/config"
	recallLogger "github.com/soundprediction/recall/pkg/logger"
	"github.com/soundprediction/recall/pkg/telemetry"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "recall",
		Short: "Recall: hybrid retrieval over a temporal knowledge graph",
		Long: `Recall retrieves facts from a temporal, reified knowledge graph.

A search combines full-text, vector and graph-traversal retrieval, fuses
the results with an external reranker, an LLM relevance classifier or
multi-factor scoring, and returns the surviving facts with the episodes
they came from.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recall.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json, color)")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".recall")
	}

	viper.SetEnvPrefix("RECALL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. When a telemetry directory is
// configured, error records are also captured to parquet; the returned
// handler must be flushed before exit and may be nil.
func newLogger(cfg *config.Config) (*slog.Logger, *telemetry.ErrorHandler) {
	base := recallLogger.NewLogger(os.Stderr, cfg.Log)
	if cfg.Telemetry.ParquetPath == "" {
		return base, nil
	}

	errorHandler, err := telemetry.NewErrorHandler(base.Handler(), cfg.Telemetry.ParquetPath, cfg.Telemetry.FlushSize)
	if err != nil {
		base.Warn("Error tracking disabled", "error", err)
		return base, nil
	}
	return slog.New(errorHandler), errorHandler
}
