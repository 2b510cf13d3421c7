package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/librescoot/maptool/internal/mvt"
)

func gzippedTile(t *testing.T, tile *mvt.Tile) []byte {
	t.Helper()
	return mvt.Encode(tile)
}

func TestPool_ProcessBatch_MixOfChangedAndUnchanged(t *testing.T) {
	pool := New(2, zaptest.NewLogger(t))

	landTile := &mvt.Tile{Layers: []mvt.Layer{{Name: "land"}}}
	dropTile := &mvt.Tile{Layers: []mvt.Layer{{Name: "buildings"}, {Name: "land"}}}

	items := []Item{
		{Key: RowKey{ZoomLevel: 1, TileColumn: 0, TileRow: 0}, Blob: gzippedTile(t, landTile)},
		{Key: RowKey{ZoomLevel: 1, TileColumn: 0, TileRow: 1}, Blob: gzippedTile(t, dropTile)},
		{Key: RowKey{ZoomLevel: 1, TileColumn: 1, TileRow: 0}, Blob: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
	}

	keep := map[string]struct{}{"land": {}}

	results, err := pool.ProcessBatch(context.Background(), items, keep)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byKey := make(map[RowKey]Result, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	assert.False(t, byKey[items[0].Key].Rewritten)
	assert.False(t, byKey[items[0].Key].DecodeFailed)

	assert.True(t, byKey[items[1].Key].Rewritten)
	tile, err := mvt.Decode(byKey[items[1].Key].Blob)
	require.NoError(t, err)
	require.Len(t, tile.Layers, 1)
	assert.Equal(t, "land", tile.Layers[0].Name)

	assert.True(t, byKey[items[2].Key].DecodeFailed)
	assert.False(t, byKey[items[2].Key].Rewritten)
}

func TestPool_ProcessBatch_CancelledContext(t *testing.T) {
	pool := New(1, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []Item{
		{Key: RowKey{ZoomLevel: 0, TileColumn: 0, TileRow: 0}, Blob: gzippedTile(t, &mvt.Tile{})},
	}

	_, err := pool.ProcessBatch(ctx, items, nil)
	require.Error(t, err)
}
