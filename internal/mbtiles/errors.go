package mbtiles

import "errors"

// ErrNotAnMBTiles is returned by Process when the staged file has no table
// literally named "tiles".
var ErrNotAnMBTiles = errors.New("mbtiles: not a valid mbtiles archive (missing tiles table)")

// ErrCancelled is returned by Process when the caller's context was
// cancelled between phases or batches.
var ErrCancelled = errors.New("mbtiles: run cancelled")

// IOError wraps a file-level failure from staging or publish. Fatal to the
// run. Failures of batch reads, batch writes and VACUUM are reported as
// DBError, not IOError.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "mbtiles: io: " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// DBError wraps any error reported by SQLite during a run: open,
// validation, scan, batch reads and writes, and VACUUM. Fatal to the run.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return "mbtiles: db: " + e.Op + ": " + e.Err.Error() }
func (e *DBError) Unwrap() error { return e.Err }
