package recall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	genkitmcp "github.com/firebase/genkit/go/plugins/mcp"
	"github.com/spf13/cobra"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/types"
)

// SearchMemoryToolName is the tool exposed to MCP clients.
const SearchMemoryToolName = "search_memory"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve search as a Model Context Protocol tool over stdio",
	Long: `Serve the search_memory tool over the Model Context Protocol.

The tool takes a query, the user whose graph is searched and optional
limits, and returns the same facts and episodes as the HTTP API. It is
designed for MCP clients that launch the server as a subprocess.`,
	RunE: runMCPServer,
}

var mcpDefaultUser string

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpDefaultUser, "user", "", "User searched when a call names none")
	addStoreFlags(mcpCmd)
}

// SearchMemoryRequest is the search_memory tool input.
type SearchMemoryRequest struct {
	Query              string `json:"query" jsonschema:"description=Natural-language question about the user's memory"`
	UserID             string `json:"user_id,omitempty" jsonschema:"description=User whose graph is searched"`
	Limit              int    `json:"limit,omitempty" jsonschema:"description=Maximum facts returned (default 10)"`
	ValidAt            string `json:"valid_at,omitempty" jsonschema:"description=RFC 3339 instant the facts must hold at"`
	IncludeInvalidated bool   `json:"include_invalidated,omitempty"`
}

// ToolResponse is the search_memory tool output.
type ToolResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Facts    []types.FactResult `json:"facts,omitempty"`
	Episodes []string           `json:"episodes,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// MCPServer adapts a recall client to genkit tools.
type MCPServer struct {
	client      recall.Recall
	defaultUser string
	logger      *slog.Logger
}

// NewMCPServer creates the tool server.
func NewMCPServer(client recall.Recall, defaultUser string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPServer{client: client, defaultUser: defaultUser, logger: logger}
}

// RegisterTools registers every tool with genkit.
func (s *MCPServer) RegisterTools(g *genkit.Genkit) {
	genkit.DefineTool(g, SearchMemoryToolName,
		"Search the user's memory for facts relevant to a question, with the episodes they came from.",
		s.SearchMemoryTool)
}

// SearchMemoryTool handles search_memory calls. Failures are reported in the
// response rather than as tool errors so the calling model can read them.
func (s *MCPServer) SearchMemoryTool(ctx *ai.ToolContext, input *SearchMemoryRequest) (*ToolResponse, error) {
	return s.searchMemory(ctx, input), nil
}

func (s *MCPServer) searchMemory(ctx context.Context, input *SearchMemoryRequest) *ToolResponse {
	if input == nil || input.Query == "" {
		return &ToolResponse{Error: "query is required"}
	}
	userID := input.UserID
	if userID == "" {
		userID = s.defaultUser
	}
	if userID == "" {
		return &ToolResponse{Error: "user_id is required"}
	}

	opts := &types.SearchOptions{
		Limit:              input.Limit,
		IncludeInvalidated: input.IncludeInvalidated,
	}
	if input.ValidAt != "" {
		t, err := time.Parse(time.RFC3339, input.ValidAt)
		if err != nil {
			return &ToolResponse{Error: fmt.Sprintf("invalid valid_at: %v", err)}
		}
		opts.ValidAt = &t
	}

	result, err := s.client.Search(ctx, input.Query, userID, opts)
	if err != nil {
		s.logger.Error("search_memory failed", "user_id", userID, "error", err)
		return &ToolResponse{Error: fmt.Sprintf("search failed: %v", err)}
	}

	if len(result.Facts) == 0 {
		return &ToolResponse{Success: true, Message: "No relevant facts found"}
	}
	return &ToolResponse{
		Success:  true,
		Message:  fmt.Sprintf("Found %d facts", len(result.Facts)),
		Facts:    result.Facts,
		Episodes: result.Episodes,
	}
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	overrideStoreFlags(cmd, cfg)

	// stdout carries the protocol, so logs go to stderr only.
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

	g := genkit.Init(ctx)
	tools := NewMCPServer(client, mcpDefaultUser, logger)
	tools.RegisterTools(g)

	logger.Info("MCP server is ready to accept requests", "tool", SearchMemoryToolName)
	server := genkitmcp.NewMCPServer(g, genkitmcp.MCPServerOptions{
		Name:    "recall",
		Version: "1.0.0",
	})
	return server.ServeStdio()
}
