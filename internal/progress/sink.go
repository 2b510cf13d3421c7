// Package progress provides the driver's abstract progress reporter.
package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Sink receives fractional progress in [0, 1]. The driver calls Report
// after every batch and once with 1.0 on successful completion.
// Implementations must tolerate out-of-order or duplicate values.
type Sink interface {
	Report(fraction float64)
}

// Noop discards all progress reports.
type Noop struct{}

// Report implements Sink.
func (Noop) Report(float64) {}

// Bar renders a terminal progress bar backed by schollz/progressbar/v3,
// replacing the hand-rolled bar the teacher draws directly against
// os.Stderr. It tracks a monotonic high-water mark so duplicate or
// out-of-order reports never move the bar backwards.
type Bar struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	high float64
}

// NewBar creates a Bar writing to w with the given description.
func NewBar(w io.Writer, description string) *Bar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
	return &Bar{bar: bar}
}

// Report implements Sink. fraction outside [0, 1] is clamped.
func (b *Bar) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fraction <= b.high {
		return
	}
	b.high = fraction

	_ = b.bar.Set(int(fraction * 100))
	if fraction >= 1 {
		_ = b.bar.Finish()
	}
}
