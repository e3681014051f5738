package internal

import (
	"sync"
	"time"

	"ClamBatch/internal/scanner"
)

// Progress is a point-in-time view of a run, for observers rendering ETA.
type Progress struct {
	Total     int
	Processed int
	Infected  int
	Elapsed   time.Duration
}

// Rate in files per second.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Processed) / p.Elapsed.Seconds()
}

// ETA extrapolates the remaining time from the average so far.
func (p Progress) ETA() time.Duration {
	if p.Processed == 0 || p.Processed >= p.Total {
		return 0
	}
	perFile := p.Elapsed / time.Duration(p.Processed)
	return perFile * time.Duration(p.Total-p.Processed)
}

// aggregator owns the mutable run state. Only the coordinator's collector
// writes to it; Snapshot may read from any goroutine.
type aggregator struct {
	mu          sync.Mutex
	start       time.Time
	total       int
	processed   int
	batchErrors int
	infections  []scanner.Infection
}

func (a *aggregator) reset(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = time.Now()
	a.total = total
	a.processed = 0
	a.batchErrors = 0
	a.infections = nil
}

func (a *aggregator) add(res scanner.BatchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed += res.Files
	a.infections = append(a.infections, res.Infections...)
	if res.Err != nil {
		a.batchErrors++
	}
}

func (a *aggregator) snapshot() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := Progress{Total: a.total, Processed: a.processed, Infected: len(a.infections)}
	if !a.start.IsZero() {
		p.Elapsed = time.Since(a.start)
	}
	return p
}

func (a *aggregator) result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Result{
		Total:       a.total,
		Processed:   a.processed,
		BatchErrors: a.batchErrors,
		Infections:  append([]scanner.Infection(nil), a.infections...),
		Elapsed:     time.Since(a.start),
	}
}
