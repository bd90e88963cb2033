//go:build !cgo

package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// ErrCGORequired is returned when Ladybug operations are called without CGO support
var ErrCGORequired = errors.New("ladybug driver requires CGO; build with CGO_ENABLED=1")

// LadybugDriverConfig mirrors the cgo build so callers compile unchanged.
type LadybugDriverConfig struct {
	DBPath               string
	MaxConcurrentQueries int
	BufferPoolSize       uint64
	EnableCompression    bool
	MaxDbSize            uint64
	ReadOnly             bool
	QueryTimeout         time.Duration
	Logger               *slog.Logger
}

// DefaultLadybugDriverConfig returns an empty config.
func DefaultLadybugDriverConfig() *LadybugDriverConfig {
	return &LadybugDriverConfig{DBPath: ":memory:", QueryTimeout: DefaultQueryTimeout}
}

// LadybugDriver is a stub implementation when CGO is disabled.
// All methods return ErrCGORequired.
type LadybugDriver struct{}

// NewLadybugDriver returns an error when CGO is disabled
func NewLadybugDriver(path string) (*LadybugDriver, error) {
	return nil, ErrCGORequired
}

// NewLadybugDriverWithConfig returns an error when CGO is disabled
func NewLadybugDriverWithConfig(cfg *LadybugDriverConfig) (*LadybugDriver, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) FulltextSearch(ctx context.Context, query string, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) VectorSearch(ctx context.Context, embedding []float32, filter types.StatementFilter, limit int, minScore float64) ([]*types.Statement, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) EntitySearch(ctx context.Context, embedding []float32, userID string, limit int, minScore float64) ([]*types.Entity, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) Traverse(ctx context.Context, seedUUIDs []string, depth int, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) EpisodesForStatements(ctx context.Context, userID string, statementUUIDs []string) ([]*types.Episode, error) {
	return nil, ErrCGORequired
}

func (k *LadybugDriver) IncrementRecallCount(ctx context.Context, userID string, uuids []string) error {
	return ErrCGORequired
}

func (k *LadybugDriver) EnsureIndexes(ctx context.Context, dimensions int) error {
	return ErrCGORequired
}

func (k *LadybugDriver) VerifyConnectivity(ctx context.Context) error {
	return ErrCGORequired
}

// Provider returns GraphProviderLadybug
func (k *LadybugDriver) Provider() GraphProvider {
	return GraphProviderLadybug
}

// Close returns nil
func (k *LadybugDriver) Close(ctx context.Context) error {
	return nil
}

var _ FactStore = (*LadybugDriver)(nil)
