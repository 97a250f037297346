package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bolig_scrooper/models"
)

var errInterrupted = errors.New("interrupted before completion")

type BatchConfig struct {
	Workers           int
	MaxAttempts       int
	RetryDelay        time.Duration
	RetryJitter       time.Duration
	CheckpointEvery   int
	RequestsPerSecond float64
}

// Worker scrapes rows one at a time. Each worker owns its fetcher.
type Worker interface {
	Scrape(ctx context.Context, row models.ListingRow) (*models.PropertyRecord, error)
	Close() error
}

type WorkerFactory func(id int) (Worker, error)

// BatchResult is what a batch produced. Records keep input order.
type BatchResult struct {
	Records     []*models.PropertyRecord
	Failed      []models.FailedItem
	Pending     int
	Interrupted bool
}

// Batch drives a list of rows through a pool of workers with retries,
// pacing and periodic checkpoints.
type Batch struct {
	cfg       BatchConfig
	newWorker WorkerFactory
	limiter   *rate.Limiter
	logFn     models.LogFunc
	source    string

	// OnCheckpoint receives every record collected so far. It is only
	// called from the goroutine running Run.
	OnCheckpoint func(records []*models.PropertyRecord) error
	// OnRecord and OnFailure are called from the Run goroutine as items finish.
	OnRecord  func(rec *models.PropertyRecord)
	OnFailure func(item models.FailedItem)
}

func NewBatch(cfg BatchConfig, newWorker WorkerFactory, source string, logFn models.LogFunc) *Batch {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logFn == nil {
		logFn = models.NoOpLogger
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Batch{
		cfg:       cfg,
		newWorker: newWorker,
		limiter:   rate.NewLimiter(limit, 1),
		logFn:     logFn,
		source:    source,
	}
}

type batchJob struct {
	index int
	row   models.ListingRow
}

type batchOutcome struct {
	index    int
	row      models.ListingRow
	record   *models.PropertyRecord
	state    models.ItemState
	attempts int
	err      error
}

// Run processes rows until all are done or ctx is cancelled. Cancellation
// stops dispatch; items already being fetched are allowed to finish.
func (b *Batch) Run(ctx context.Context, rows []models.ListingRow) (*BatchResult, error) {
	if len(rows) == 0 {
		return &BatchResult{}, nil
	}

	workers := make([]Worker, 0, b.cfg.Workers)
	for i := 0; i < b.cfg.Workers && i < len(rows); i++ {
		w, err := b.newWorker(i)
		if err != nil {
			for _, w := range workers {
				w.Close()
			}
			return nil, fmt.Errorf("start worker %d: %w", i, err)
		}
		workers = append(workers, w)
	}
	defer func() {
		for _, w := range workers {
			if err := w.Close(); err != nil {
				log.Printf("Error closing worker: %v", err)
			}
		}
	}()

	jobs := make(chan batchJob)
	outcomes := make(chan batchOutcome)
	var stopped atomic.Bool

	go func() {
		defer close(jobs)
		for i, row := range rows {
			select {
			case <-ctx.Done():
				stopped.Store(true)
				return
			case jobs <- batchJob{index: i, row: row}:
			}
		}
	}()

	// In-flight fetches run on a context that outlives cancellation.
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			for job := range jobs {
				outcomes <- b.process(ctx, workCtx, w, job)
			}
		}(w)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return b.collect(outcomes, len(rows), &stopped)
}

func (b *Batch) collect(outcomes <-chan batchOutcome, total int, stopped *atomic.Bool) (*BatchResult, error) {
	result := &BatchResult{}
	type indexed struct {
		index int
		rec   *models.PropertyRecord
	}
	var collected []indexed
	var checkpointErr error

	start := time.Now()
	done := 0
	for o := range outcomes {
		switch o.state {
		case models.ItemSuccess:
			done++
			collected = append(collected, indexed{o.index, o.record})
			if b.OnRecord != nil {
				b.OnRecord(o.record)
			}
			if b.cfg.CheckpointEvery > 0 && len(collected)%b.cfg.CheckpointEvery == 0 && b.OnCheckpoint != nil {
				recs := make([]*models.PropertyRecord, len(collected))
				for i, c := range collected {
					recs[i] = c.rec
				}
				if err := b.OnCheckpoint(recs); err != nil {
					log.Printf("Checkpoint failed: %v", err)
					checkpointErr = err
				} else {
					log.Printf("Checkpoint saved: %d records", len(recs))
				}
			}
		case models.ItemPending:
			continue
		default:
			done++
			item := models.FailedItem{
				PropertyID: o.row.PropertyID,
				URL:        o.row.Link,
				Attempts:   o.attempts,
				Error:      o.err.Error(),
				FailedAt:   time.Now(),
			}
			result.Failed = append(result.Failed, item)
			if b.OnFailure != nil {
				b.OnFailure(item)
			}
			msg := fmt.Sprintf("Giving up on %s after %d attempt(s): %v", o.row.PropertyID, o.attempts, o.err)
			log.Print(msg)
			b.logFn(models.LogLevelError, b.source, msg)
		}

		elapsed := time.Since(start)
		remaining := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		log.Printf("Progress: %d/%d (%d ok, %d failed), est. remaining %s",
			done, total, len(collected), len(result.Failed), remaining.Round(time.Second))
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })
	result.Records = make([]*models.PropertyRecord, len(collected))
	for i, c := range collected {
		result.Records[i] = c.rec
	}

	result.Pending = total - done
	result.Interrupted = stopped.Load() || result.Pending > 0
	if checkpointErr != nil {
		return result, fmt.Errorf("checkpoint: %w", checkpointErr)
	}
	return result, nil
}

// process runs one row with retries. ctx decides whether a new attempt may
// start; workCtx is what the attempt itself runs under.
func (b *Batch) process(ctx, workCtx context.Context, w Worker, job batchJob) batchOutcome {
	out := batchOutcome{index: job.index, row: job.row, state: models.ItemPending}

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			out.state = models.ItemPending
			out.err = errInterrupted
			return out
		}
		if err := b.limiter.Wait(workCtx); err != nil {
			out.state = models.ItemFailedRetryable
			out.err = err
			return out
		}

		out.state = models.ItemFetching
		out.attempts = attempt
		rec, err := safeScrape(workCtx, w, job.row)
		if err == nil {
			out.state = models.ItemSuccess
			out.record = rec
			out.err = nil
			return out
		}
		out.err = err

		if IsTerminal(err) {
			out.state = models.ItemFailedTerminal
			return out
		}
		out.state = models.ItemFailedRetryable

		msg := fmt.Sprintf("Attempt %d/%d for %s failed: %v", attempt, b.cfg.MaxAttempts, job.row.PropertyID, err)
		log.Print(msg)
		b.logFn(models.LogLevelWarn, b.source, msg)

		if attempt < b.cfg.MaxAttempts {
			if err := sleepCtx(ctx, b.retryDelay()); err != nil {
				out.state = models.ItemPending
				return out
			}
		}
	}
	return out
}

func (b *Batch) retryDelay() time.Duration {
	d := b.cfg.RetryDelay
	if b.cfg.RetryJitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.cfg.RetryJitter)))
	}
	return d
}

func safeScrape(ctx context.Context, w Worker, row models.ListingRow) (rec *models.PropertyRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scraping %s: %v", row.PropertyID, r)
		}
	}()
	return w.Scrape(ctx, row)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
