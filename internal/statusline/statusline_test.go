package statusline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPrinter(total int) (*Printer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &Printer{out: buf, total: total}, buf
}

func TestStartedPrintsCurrentCount(t *testing.T) {
	p, buf := newTestPrinter(2)
	p.Started("cc -c a.c -o a.o")
	assert.Contains(t, buf.String(), "[0/2]")
	assert.Contains(t, buf.String(), "cc -c a.c -o a.o")
}

func TestSucceededIncrementsCompleted(t *testing.T) {
	p, buf := newTestPrinter(2)
	p.Succeeded("cc -c a.c -o a.o")
	assert.Contains(t, buf.String(), "[1/2]")
}

func TestFailedIncludesOutput(t *testing.T) {
	p, buf := newTestPrinter(1)
	p.Failed("cc -c a.c -o a.o", "a.c:1:1: error")
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "a.c:1:1: error")
}

func TestSummaryReportsFailureCount(t *testing.T) {
	p, buf := newTestPrinter(0)
	p.Summary(3)
	assert.Contains(t, buf.String(), "3 step(s) failed")
}

func TestSummaryReportsSuccess(t *testing.T) {
	p, buf := newTestPrinter(0)
	p.Summary(0)
	assert.Contains(t, buf.String(), "build succeeded")
}
