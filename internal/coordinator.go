package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"ClamBatch/internal/scanner"
)

// Result is the outcome of one run.
type Result struct {
	RunID       string
	Command     scanner.Command
	Total       int
	Processed   int
	Infections  []scanner.Infection
	BatchErrors int
	// Cancelled: dispatch stopped early, in-flight batches were let finish.
	Cancelled bool
	// Stopped: in-flight scanner processes were killed.
	Stopped bool
	Elapsed time.Duration
}

// Complete reports whether every target was scanned.
func (r Result) Complete() bool {
	return !r.Cancelled && !r.Stopped && r.Processed == r.Total
}

// ProgressFunc receives the number of files in each finished batch.
// It is called from a single goroutine, never concurrently with itself.
type ProgressFunc func(files int)

// Coordinator drives a scan: it resolves the scanner, partitions targets and
// runs batches on a bounded pool.
type Coordinator struct {
	opts       ScanOptions
	log        logrus.FieldLogger
	locator    *Locator
	newScanner func(cmd scanner.Command, log logrus.FieldLogger) scanner.Scanner

	agg aggregator

	mu       sync.Mutex
	hardStop context.CancelFunc
	stopped  bool
}

type CoordinatorOption func(*Coordinator)

func WithLogger(l logrus.FieldLogger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

func WithLocator(l *Locator) CoordinatorOption {
	return func(c *Coordinator) { c.locator = l }
}

// WithScanner replaces the ClamAV worker, mainly for tests.
func WithScanner(f func(cmd scanner.Command, log logrus.FieldLogger) scanner.Scanner) CoordinatorOption {
	return func(c *Coordinator) { c.newScanner = f }
}

// NewCoordinator validates opts and returns a ready coordinator.
func NewCoordinator(opts ScanOptions, options ...CoordinatorOption) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Prepare()
	c := &Coordinator{
		opts:    opts,
		log:     logrus.StandardLogger(),
		locator: NewLocator(opts.ScannerPath),
	}
	c.newScanner = func(cmd scanner.Command, log logrus.FieldLogger) scanner.Scanner {
		return NewClamWorker(cmd, &c.opts, log)
	}
	for _, o := range options {
		o(c)
	}
	if !opts.LoggingEnabled {
		c.log = DiscardLogger()
	}
	return c, nil
}

// Options returns the prepared options.
func (c *Coordinator) Options() ScanOptions { return c.opts }

// Scan is the whole pipeline: locate scanner, optionally refresh the database,
// create the quarantine, enumerate roots and run. Stop is honoured from the
// moment Scan is entered, including during the update and the walk.
func (c *Coordinator) Scan(ctx context.Context, onProgress ProgressFunc) (Result, error) {
	hardCtx, done := c.begin(ctx)
	defer done()

	cmd, err := c.prepare()
	if err != nil {
		return Result{}, err
	}

	// the update and the walk end on either cancellation or Stop
	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(hardCtx, cancel)()

	if c.opts.UpdateDB {
		_ = UpdateDatabase(stepCtx, c.opts.FreshclamPath, c.log)
	}
	targets, err := NewEnumerator(&c.opts, c.log).Enumerate(stepCtx, c.opts.Roots)
	if err == nil && hardCtx.Err() != nil {
		err = hardCtx.Err()
	}
	if err != nil {
		switch {
		case hardCtx.Err() != nil:
			c.log.Warn("Scan stopped before any batch was dispatched")
			return Result{Command: cmd, Total: len(targets), Stopped: true}, nil
		case ctx.Err() != nil:
			return Result{Command: cmd, Total: len(targets), Cancelled: true}, nil
		}
		return Result{}, err
	}
	return c.run(ctx, hardCtx, cmd, targets, onProgress)
}

// Run scans an already enumerated target list.
func (c *Coordinator) Run(ctx context.Context, targets []string, onProgress ProgressFunc) (Result, error) {
	hardCtx, done := c.begin(ctx)
	defer done()

	cmd, err := c.prepare()
	if err != nil {
		return Result{}, err
	}
	return c.run(ctx, hardCtx, cmd, targets, onProgress)
}

// begin arms Stop for one Scan or Run. The returned context is cancelled
// only by Stop; soft cancellation of ctx does not reach it.
func (c *Coordinator) begin(ctx context.Context) (context.Context, func()) {
	hardCtx, hardStop := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.hardStop, c.stopped = hardStop, false
	c.mu.Unlock()
	return hardCtx, func() {
		c.mu.Lock()
		c.hardStop = nil
		c.mu.Unlock()
		hardStop()
	}
}

// Stop kills in-flight scanner processes and prevents further dispatch.
// Batches killed this way are not counted as processed. A Stop during the
// database update or the walk ends the run before any batch starts.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.hardStop != nil {
		c.hardStop()
	}
}

// Snapshot is safe to call from any goroutine while a run is in progress.
func (c *Coordinator) Snapshot() Progress {
	return c.agg.snapshot()
}

// prepare resolves the scanner once per run and only then touches the
// filesystem.
func (c *Coordinator) prepare() (scanner.Command, error) {
	cmd, err := c.locator.Locate()
	if err != nil {
		return scanner.Command{}, err
	}
	if q := c.opts.quarantine(); q != "" {
		if err := os.MkdirAll(q, 0o755); err != nil {
			return scanner.Command{}, fmt.Errorf("create quarantine dir: %w", err)
		}
	}
	return cmd, nil
}

func (c *Coordinator) run(ctx, hardCtx context.Context, cmd scanner.Command, targets []string, onProgress ProgressFunc) (Result, error) {
	runID := uuid.NewString()
	log := c.log.WithField("run", runID)
	c.agg.reset(len(targets))

	if len(targets) == 0 {
		log.Info("No files found to scan")
		res := c.agg.result()
		res.RunID, res.Command = runID, cmd
		return res, nil
	}

	batches, err := Partition(targets, c.opts.BatchSize)
	if err != nil {
		return Result{}, err
	}

	// In-flight processes run under hardCtx: they outlive soft cancellation
	// and only Stop kills them.
	jobs := c.opts.Jobs
	sc := c.newScanner(cmd, log)
	results := make(chan scanner.BatchResult, jobs)
	tokens := make(chan struct{}, jobs)
	for range jobs {
		tokens <- struct{}{}
	}

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(jobs, func(i interface{}) {
		defer wg.Done()
		results <- c.scanOne(hardCtx, sc, i.([]string), log)
	})
	if err != nil {
		return Result{}, fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	log.WithFields(logrus.Fields{
		"scanner": cmd.Name,
		"files":   len(targets),
		"batches": len(batches),
		"jobs":    jobs,
	}).Info("Scan started")

	// dispatcher: a batch goes out only when a worker slot is free and the
	// run has not been cancelled
	go func() {
		defer func() {
			wg.Wait()
			close(results)
		}()
		for i, b := range batches {
			select {
			case <-tokens:
			case <-ctx.Done():
				return
			case <-hardCtx.Done():
				return
			}
			if ctx.Err() != nil || hardCtx.Err() != nil {
				return
			}
			wg.Add(1)
			if err := pool.Invoke(b); err != nil {
				wg.Done()
				log.WithError(err).WithField("batch", i).Error("submit batch")
				return
			}
		}
	}()

	for r := range results {
		if r.Killed {
			continue
		}
		c.agg.add(r)
		if onProgress != nil {
			onProgress(r.Files)
		}
		tokens <- struct{}{}
	}

	res := c.agg.result()
	res.RunID, res.Command = runID, cmd
	c.mu.Lock()
	res.Stopped = c.stopped
	c.mu.Unlock()
	res.Cancelled = ctx.Err() != nil && res.Processed < res.Total

	log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"infected":  len(res.Infections),
		"errors":    res.BatchErrors,
		"elapsed":   res.Elapsed,
	}).Info("Scan finished")
	return res, nil
}

// scanOne isolates a single batch: a panicking scanner becomes a batch error.
func (c *Coordinator) scanOne(ctx context.Context, sc scanner.Scanner, batch []string, log logrus.FieldLogger) (res scanner.BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scan worker panic: %v", r)
			log.WithError(err).Error("Scan worker crashed")
			res = scanner.BatchResult{Files: len(batch), ExitCode: -1, Err: err}
		}
	}()
	res = sc.ScanBatch(ctx, batch)
	if res.Err != nil && errors.Is(res.Err, context.Canceled) && ctx.Err() != nil {
		res.Killed = true
	}
	return res
}
