//go:build cgo

package driver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadybugRunTimesOutWaitingForConnection(t *testing.T) {
	cfg := DefaultLadybugDriverConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "busy.db")
	cfg.QueryTimeout = 50 * time.Millisecond
	d, err := NewLadybugDriverWithConfig(cfg)
	require.NoError(t, err)
	defer d.Close(context.Background())

	// a long traversal holds the connection
	d.conn <- struct{}{}

	start := time.Now()
	_, err = d.run(context.Background(), "RETURN 1 AS ok", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	d.release()
	rows, err := d.run(context.Background(), "RETURN 1 AS ok", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
