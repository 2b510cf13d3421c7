// Package worker executes the MVT codec and transformer across many tile
// payloads in parallel.
package worker

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/librescoot/maptool/internal/mvt"
)

// RowKey identifies a tile row in the source MBTiles table.
type RowKey struct {
	ZoomLevel  int
	TileColumn int
	TileRow    int
}

// Item is one (row, payload) pair handed to the pool for a batch.
type Item struct {
	Key  RowKey
	Blob []byte
}

// Result is the outcome for a single item: either unchanged (no rewrite
// needed, or decode failed non-fatally) or Rewritten with the new payload.
type Result struct {
	Key       RowKey
	Rewritten bool
	Blob      []byte

	// DecodeFailed records whether this item failed to decode so the
	// driver can include it in the run's decode_failures counter.
	DecodeFailed bool
}

// Pool runs decode/transform/encode across a batch with bounded
// concurrency. The keep-set is an immutable read-only snapshot shared by
// every task.
type Pool struct {
	workers int
	log     *zap.Logger
}

// New returns a Pool with the given worker count. A count <= 0 lets
// errgroup run unbounded (the caller is expected to pass a positive cap
// derived from runtime.NumCPU()).
func New(workers int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{workers: workers, log: log}
}

// ProcessBatch decodes, transforms, and re-encodes one batch of items.
// Ordering within the batch is irrelevant to correctness; results are
// correlated back to their RowKey. The only error this can return is
// context cancellation; per-tile failures are swallowed into Result.
func (p *Pool) ProcessBatch(ctx context.Context, items []Item, layersToKeep map[string]struct{}) ([]Result, error) {
	results := make([]Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	if p.workers > 0 {
		g.SetLimit(p.workers)
	}

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processOne(item, layersToKeep)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processOne never returns an error: any decode/transform failure for a
// single tile is non-fatal and becomes an unchanged result with a logged
// warning.
func (p *Pool) processOne(item Item, layersToKeep map[string]struct{}) Result {
	tile, err := mvt.Decode(item.Blob)
	if err != nil {
		p.log.Warn("tile decode failed, leaving unchanged",
			zap.Int("zoom", item.Key.ZoomLevel),
			zap.Int("column", item.Key.TileColumn),
			zap.Int("row", item.Key.TileRow),
			zap.Error(err),
		)
		return Result{Key: item.Key, DecodeFailed: true}
	}

	out, modified := mvt.Transform(tile, layersToKeep)
	if !modified {
		return Result{Key: item.Key}
	}

	return Result{Key: item.Key, Rewritten: true, Blob: mvt.Encode(out)}
}
