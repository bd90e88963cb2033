package recall

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/recall/pkg/embedder"
)

// defaultDimensions is used when neither the config nor the model name
// determines the vector length.
const defaultDimensions = 1536

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the full-text and vector indexes search needs",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	addStoreFlags(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrideStoreFlags(cmd, cfg)

	logger, _ := newLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	dims := embedder.DimensionsFor(embedder.Config{
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	}, defaultDimensions)

	if err := store.EnsureIndexes(ctx, dims); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	logger.Info("Indexes ready", "driver", cfg.Database.Driver, "dimensions", dims)
	return nil
}
