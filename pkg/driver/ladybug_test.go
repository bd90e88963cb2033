//go:build cgo

package driver_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/driver"
	"github.com/soundprediction/recall/pkg/types"
)

// createTempLadybugDB creates a temporary directory for ladybug database testing
func createTempLadybugDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ladybug_test.db")
}

func TestNewLadybugDriver(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		d, err := driver.NewLadybugDriver("")
		require.NoError(t, err)
		assert.Equal(t, driver.GraphProviderLadybug, d.Provider())
		assert.NoError(t, d.Close(context.Background()))
	})

	t.Run("custom path", func(t *testing.T) {
		d, err := driver.NewLadybugDriver(createTempLadybugDB(t))
		require.NoError(t, err)
		assert.NoError(t, d.VerifyConnectivity(context.Background()))
		assert.NoError(t, d.Close(context.Background()))
	})
}

func TestLadybugDriverShortCircuits(t *testing.T) {
	ctx := context.Background()
	d, err := driver.NewLadybugDriver(createTempLadybugDB(t))
	require.NoError(t, err)
	defer d.Close(ctx)

	filter := types.StatementFilter{UserID: "u1", EndTime: time.Now(), InvalidationCutoff: time.Now()}

	stmts, err := d.FulltextSearch(ctx, "   ", filter, 10)
	require.NoError(t, err)
	assert.Empty(t, stmts)

	stmts, err = d.Traverse(ctx, nil, 3, filter, 10)
	require.NoError(t, err)
	assert.Empty(t, stmts)

	eps, err := d.EpisodesForStatements(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, eps)

	_, err = d.VectorSearch(ctx, nil, filter, 10, driver.MinSimilarity)
	assert.ErrorIs(t, err, driver.ErrEmptyEmbedding)

	assert.NoError(t, d.IncrementRecallCount(ctx, "u1", nil))
}

func TestLadybugDriverClosed(t *testing.T) {
	ctx := context.Background()
	d, err := driver.NewLadybugDriver(createTempLadybugDB(t))
	require.NoError(t, err)

	require.NoError(t, d.Close(ctx))
	assert.NoError(t, d.Close(ctx))
	assert.ErrorIs(t, d.VerifyConnectivity(ctx), driver.ErrDriverClosed)
}

func TestLadybugDriverContext(t *testing.T) {
	d, err := driver.NewLadybugDriver(createTempLadybugDB(t))
	require.NoError(t, err)
	defer d.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.VerifyConnectivity(ctx), context.Canceled)
	assert.NoError(t, d.VerifyConnectivity(context.Background()), "a cancelled call releases the connection")
}

func TestNewFactStoreLadybugTimeout(t *testing.T) {
	assert.Equal(t, driver.DefaultQueryTimeout, driver.DefaultLadybugDriverConfig().QueryTimeout)

	store, err := driver.NewFactStore(driver.Config{
		Provider:     driver.GraphProviderLadybug,
		URI:          createTempLadybugDB(t),
		QueryTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	defer store.Close(context.Background())
	assert.NoError(t, store.VerifyConnectivity(context.Background()))
}
