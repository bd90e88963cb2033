package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/recall/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a single search and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	searchUser       string
	searchLimit      int
	searchDepth      int
	searchOutput     string
	searchValidAt    string
	searchIncludeOld bool
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchUser, "user", "", "User whose graph is searched (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum facts returned (default from config)")
	searchCmd.Flags().IntVar(&searchDepth, "depth", 0, "Graph traversal depth (default from config)")
	searchCmd.Flags().StringVar(&searchOutput, "output", "yaml", "Output format (yaml, json)")
	searchCmd.Flags().StringVar(&searchValidAt, "valid-at", "", "Point in time the facts must hold at (RFC 3339)")
	searchCmd.Flags().BoolVar(&searchIncludeOld, "include-invalidated", false, "Include statements that were invalidated")
	_ = searchCmd.MarkFlagRequired("user")

	addStoreFlags(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts, err := searchOptionsFromFlags()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrideStoreFlags(cmd, cfg)

	logger, errorHandler := newLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize recall: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("Failed to close client", "error", err)
		}
		if errorHandler != nil {
			_ = errorHandler.Flush(closeCtx)
		}
	}()

	result, err := client.Search(ctx, strings.Join(args, " "), searchUser, opts)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result, searchOutput)
}

func searchOptionsFromFlags() (*types.SearchOptions, error) {
	opts := &types.SearchOptions{
		Limit:              searchLimit,
		MaxBfsDepth:        searchDepth,
		IncludeInvalidated: searchIncludeOld,
	}
	if searchValidAt != "" {
		t, err := time.Parse(time.RFC3339, searchValidAt)
		if err != nil {
			return nil, fmt.Errorf("invalid --valid-at: %w", err)
		}
		opts.ValidAt = &t
	}
	return opts, nil
}

// writeResult renders result as yaml or json.
func writeResult(w io.Writer, result *types.SearchResult, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
