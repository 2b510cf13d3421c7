package progress

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop_DoesNotPanic(t *testing.T) {
	var s Sink = Noop{}
	s.Report(0.5)
	s.Report(1.0)
}

func TestBar_IgnoresOutOfOrderAndDuplicates(t *testing.T) {
	b := NewBar(io.Discard, "test")

	b.Report(0.5)
	assert.Equal(t, 0.5, b.high)

	b.Report(0.2) // out of order, must not regress
	assert.Equal(t, 0.5, b.high)

	b.Report(0.5) // duplicate
	assert.Equal(t, 0.5, b.high)

	b.Report(1.0)
	assert.Equal(t, 1.0, b.high)
}
