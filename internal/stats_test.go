package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ClamBatch/internal/scanner"
)

func TestProgress_RateAndETA(t *testing.T) {
	p := Progress{Total: 100, Processed: 25, Elapsed: 5 * time.Second}
	assert.InDelta(t, 5.0, p.Rate(), 0.001)
	assert.Equal(t, 15*time.Second, p.ETA())

	assert.Zero(t, Progress{Total: 10}.Rate())
	assert.Zero(t, Progress{Total: 10}.ETA(), "no estimate before the first batch")
	assert.Zero(t, Progress{Total: 10, Processed: 10, Elapsed: time.Second}.ETA())
}

func TestAggregator(t *testing.T) {
	var a aggregator
	a.reset(10)
	a.add(scanner.BatchResult{Files: 4, Infections: []scanner.Infection{{Path: "/a", Message: "X"}}})
	a.add(scanner.BatchResult{Files: 3, Err: &BatchScanError{Files: 3, ExitCode: 2}})

	p := a.snapshot()
	assert.Equal(t, 10, p.Total)
	assert.Equal(t, 7, p.Processed)
	assert.Equal(t, 1, p.Infected)

	res := a.result()
	assert.Equal(t, 7, res.Processed)
	assert.Equal(t, 1, res.BatchErrors)
	assert.Len(t, res.Infections, 1)

	// result is a copy
	res.Infections[0].Path = "changed"
	assert.Equal(t, "/a", a.result().Infections[0].Path)

	a.reset(2)
	assert.Equal(t, 2, a.snapshot().Total)
	assert.Zero(t, a.snapshot().Processed)
	assert.Empty(t, a.result().Infections)
}
