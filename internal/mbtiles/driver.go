// Package mbtiles implements the batched MBTiles driver: stage, validate,
// scan, batch-process, vacuum, and publish an MBTiles archive. Publish
// copies the staged file directly onto the output path and then deletes
// the stage; the copy is not atomic, so a partly written file is visible
// at the output path until it finishes (it is removed if the copy fails).
package mbtiles

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/librescoot/maptool/internal/progress"
	"github.com/librescoot/maptool/internal/worker"
)

// Summary is the end-of-run report returned by Process.
type Summary struct {
	Processed      int
	Modified       int
	DecodeFailures int
}

// Driver runs one Process invocation's state machine.
type Driver struct {
	batchSize int
	pool      *worker.Pool
	log       *zap.Logger
}

// New returns a Driver with the given batch size and worker pool. A
// non-positive batch size falls back to 100.
func New(batchSize int, pool *worker.Pool, log *zap.Logger) *Driver {
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{batchSize: batchSize, pool: pool, log: log}
}

// Process runs Init → Stage → Validate → Scan → ProcessBatches → Vacuum →
// Publish → Done. On any failure after Stage, the staged temp file is
// deleted and any open handle closed; the source file at inputPath is
// never touched.
func (d *Driver) Process(ctx context.Context, inputPath, outputPath string, layersToKeep map[string]struct{}, sink progress.Sink) (Summary, error) {
	if sink == nil {
		sink = progress.Noop{}
	}

	tempPath := inputPath + ".temp"
	var db *sql.DB
	published := false

	defer func() {
		if db != nil {
			db.Close()
		}
		if !published {
			os.Remove(tempPath)
		}
	}()

	// Stage
	if err := copyFile(inputPath, tempPath); err != nil {
		return Summary{}, &IOError{Op: "stage", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, ErrCancelled
	}

	// Validate
	var err error
	db, err = sql.Open("sqlite", tempPath)
	if err != nil {
		return Summary{}, &DBError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		return Summary{}, &DBError{Op: "ping", Err: err}
	}

	var tableCount int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'tiles'`).Scan(&tableCount); err != nil {
		return Summary{}, &DBError{Op: "validate", Err: err}
	}
	if tableCount == 0 {
		return Summary{}, ErrNotAnMBTiles
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, ErrCancelled
	}

	// Scan
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tiles`).Scan(&total); err != nil {
		return Summary{}, &DBError{Op: "scan", Err: err}
	}

	sink.Report(0.0)

	// ProcessBatches
	summary := Summary{}
	for offset := 0; ; offset += d.batchSize {
		if err := ctx.Err(); err != nil {
			return Summary{}, ErrCancelled
		}

		rows, err := db.QueryContext(ctx,
			`SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles LIMIT ? OFFSET ?`,
			d.batchSize, offset,
		)
		if err != nil {
			return Summary{}, &DBError{Op: "batch read", Err: err}
		}

		var items []worker.Item
		for rows.Next() {
			var key worker.RowKey
			var blob []byte
			if err := rows.Scan(&key.ZoomLevel, &key.TileColumn, &key.TileRow, &blob); err != nil {
				rows.Close()
				return Summary{}, &DBError{Op: "batch scan", Err: err}
			}
			items = append(items, worker.Item{Key: key, Blob: blob})
		}
		rowErr := rows.Err()
		rows.Close()
		if rowErr != nil {
			return Summary{}, &DBError{Op: "batch scan", Err: rowErr}
		}

		if len(items) == 0 {
			break
		}

		results, err := d.pool.ProcessBatch(ctx, items, layersToKeep)
		if err != nil {
			return Summary{}, ErrCancelled
		}

		if err := d.writeBatch(ctx, db, results); err != nil {
			return Summary{}, err
		}

		for _, r := range results {
			summary.Processed++
			if r.Rewritten {
				summary.Modified++
			}
			if r.DecodeFailed {
				summary.DecodeFailures++
			}
		}

		if total > 0 {
			sink.Report(float64(summary.Processed) / float64(total))
		}

		if len(items) < d.batchSize {
			break
		}
	}

	// Vacuum
	if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
		return Summary{}, &DBError{Op: "vacuum", Err: err}
	}

	// Publish
	if err := db.Close(); err != nil {
		return Summary{}, &IOError{Op: "publish close", Err: err}
	}
	db = nil

	if err := copyFile(tempPath, outputPath); err != nil {
		return Summary{}, &IOError{Op: "publish copy", Err: err}
	}
	if err := os.Remove(tempPath); err != nil {
		return Summary{}, &IOError{Op: "publish cleanup", Err: err}
	}
	published = true

	sink.Report(1.0)

	d.log.Info("run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("modified", summary.Modified),
		zap.Int("decode_failures", summary.DecodeFailures),
	)

	return summary, nil
}

// writeBatch opens one transaction per batch and issues one UPDATE per
// Rewritten result, skipping the transaction entirely when nothing in the
// batch changed.
func (d *Driver) writeBatch(ctx context.Context, db *sql.DB, results []worker.Result) error {
	anyRewritten := false
	for _, r := range results {
		if r.Rewritten {
			anyRewritten = true
			break
		}
	}
	if !anyRewritten {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &DBError{Op: "batch write begin", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE tiles SET tile_data = ? WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
	)
	if err != nil {
		return &DBError{Op: "batch write prepare", Err: err}
	}
	defer stmt.Close()

	for _, r := range results {
		if !r.Rewritten {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.Blob, r.Key.ZoomLevel, r.Key.TileColumn, r.Key.TileRow); err != nil {
			return &DBError{Op: "batch write", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &DBError{Op: "batch write commit", Err: err}
	}
	return nil
}

// copyFile copies src to dst, used for both Stage (source → temp) and
// Publish (temp → output, possibly cross-filesystem, so a copy rather
// than a rename is required).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
