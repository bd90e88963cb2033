package recall

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/server"
	"github.com/soundprediction/recall/pkg/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the recall HTTP server",
	Long: `Start the recall HTTP server to provide REST access to search.

The server provides:
- POST /api/v1/search
- Health, readiness and liveness checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	addStoreFlags(serverCmd)
}

// addStoreFlags registers the database flags shared by every command that
// opens the fact store.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", "neo4j", "Database driver (neo4j, ladybug)")
	cmd.Flags().String("db-uri", "", "Database URI, or path for ladybug")
	cmd.Flags().String("db-username", "", "Database username (not used for ladybug)")
	cmd.Flags().String("db-password", "", "Database password (not used for ladybug)")
	cmd.Flags().String("db-database", "", "Database name (not used for ladybug)")
}

func overrideStoreFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}
}

func overrideServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	overrideStoreFlags(cmd, cfg)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrideServerFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, errorHandler := newLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize recall: %w", err)
	}

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 2)
	utils.Go(func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}, func(p *utils.PanicError) {
		serverErrChan <- p
	})

	var runErr error
	select {
	case err := <-serverErrChan:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := client.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("client shutdown error: %w", err))
	}
	if errorHandler != nil {
		if err := errorHandler.Flush(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if runErr == nil {
		logger.Info("Server stopped gracefully")
	}
	return runErr
}
