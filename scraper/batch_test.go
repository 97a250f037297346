package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

// scriptedWorker fails or panics for selected ids and counts attempts.
type scriptedWorker struct {
	mu       *sync.Mutex
	attempts map[string]int
	fail     map[string]error
	flaky    map[string]int
	panics   map[string]bool
	closed   *int
}

func (w *scriptedWorker) Scrape(ctx context.Context, row models.ListingRow) (*models.PropertyRecord, error) {
	w.mu.Lock()
	w.attempts[row.PropertyID]++
	n := w.attempts[row.PropertyID]
	w.mu.Unlock()

	if w.panics[row.PropertyID] {
		panic("boom")
	}
	if err, ok := w.fail[row.PropertyID]; ok {
		return nil, err
	}
	if n <= w.flaky[row.PropertyID] {
		return nil, errors.New("transient")
	}
	return models.NewPropertyRecord(row.PropertyID, row.Link, "test", time.Now()), nil
}

func (w *scriptedWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.closed++
	return nil
}

type workerScript struct {
	mu       sync.Mutex
	attempts map[string]int
	fail     map[string]error
	flaky    map[string]int
	panics   map[string]bool
	closed   int
}

func newScript() *workerScript {
	return &workerScript{
		attempts: map[string]int{},
		fail:     map[string]error{},
		flaky:    map[string]int{},
		panics:   map[string]bool{},
	}
}

func (s *workerScript) factory(id int) (Worker, error) {
	return &scriptedWorker{
		mu:       &s.mu,
		attempts: s.attempts,
		fail:     s.fail,
		flaky:    s.flaky,
		panics:   s.panics,
		closed:   &s.closed,
	}, nil
}

func makeRows(n int) []models.ListingRow {
	rows := make([]models.ListingRow, n)
	for i := range rows {
		id := fmt.Sprintf("p%02d", i)
		rows[i] = models.ListingRow{PropertyID: id, Link: "https://www.boligsiden.dk/adresse/" + id}
	}
	return rows
}

func testConfig(workers int) BatchConfig {
	return BatchConfig{Workers: workers, MaxAttempts: 3}
}

func TestBatch_RetriesThenGivesUp(t *testing.T) {
	script := newScript()
	script.fail["p04"] = errors.New("timeout")

	b := NewBatch(testConfig(1), script.factory, "test", nil)
	res, err := b.Run(context.Background(), makeRows(10))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Records) != 9 {
		t.Fatalf("expected 9 records, got %d", len(res.Records))
	}
	if len(res.Failed) != 1 || res.Failed[0].PropertyID != "p04" || res.Failed[0].Attempts != 3 {
		t.Fatalf("unexpected failures %+v", res.Failed)
	}
	if script.attempts["p04"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", script.attempts["p04"])
	}
	if res.Interrupted || res.Pending != 0 {
		t.Fatalf("unexpected interrupted result %+v", res)
	}
	if script.closed != 1 {
		t.Fatalf("expected worker closed once, got %d", script.closed)
	}
}

func TestBatch_TerminalErrorNotRetried(t *testing.T) {
	script := newScript()
	script.fail["p01"] = fmt.Errorf("bad row: %w", identity.ErrInvalidLink)
	script.fail["p02"] = fmt.Errorf("%w: gone", ErrNotFound)

	res, err := NewBatch(testConfig(2), script.factory, "test", nil).Run(context.Background(), makeRows(4))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if script.attempts["p01"] != 1 || script.attempts["p02"] != 1 {
		t.Fatalf("terminal errors retried: %v", script.attempts)
	}
	if len(res.Records) != 2 || len(res.Failed) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBatch_FlakyAndPanics(t *testing.T) {
	script := newScript()
	script.flaky["p00"] = 2
	script.panics["p01"] = true

	res, err := NewBatch(testConfig(1), script.factory, "test", nil).Run(context.Background(), makeRows(3))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if script.attempts["p00"] != 3 {
		t.Fatalf("expected success on third attempt, got %d attempts", script.attempts["p00"])
	}
	if script.attempts["p01"] != 3 {
		t.Fatalf("expected panics to be retried, got %d attempts", script.attempts["p01"])
	}
	if len(res.Records) != 2 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBatch_KeepsInputOrder(t *testing.T) {
	script := newScript()
	res, err := NewBatch(testConfig(4), script.factory, "test", nil).Run(context.Background(), makeRows(20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, rec := range res.Records {
		if want := fmt.Sprintf("p%02d", i); rec.ID != want {
			t.Fatalf("record %d is %s, want %s", i, rec.ID, want)
		}
	}
}

func TestBatch_Checkpoints(t *testing.T) {
	script := newScript()
	cfg := testConfig(1)
	cfg.CheckpointEvery = 2

	var sizes []int
	var failures int
	b := NewBatch(cfg, script.factory, "test", nil)
	b.OnCheckpoint = func(recs []*models.PropertyRecord) error {
		sizes = append(sizes, len(recs))
		return nil
	}
	b.OnFailure = func(models.FailedItem) { failures++ }

	if _, err := b.Run(context.Background(), makeRows(5)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 4 {
		t.Fatalf("unexpected checkpoints %v", sizes)
	}
	if failures != 0 {
		t.Fatalf("unexpected failures %d", failures)
	}
}

func TestBatch_CancelledBeforeStart(t *testing.T) {
	script := newScript()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewBatch(testConfig(2), script.factory, "test", nil).Run(ctx, makeRows(5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Interrupted {
		t.Fatalf("expected interrupted result")
	}
	if len(res.Records)+res.Pending+len(res.Failed) != 5 {
		t.Fatalf("items unaccounted for: %+v", res)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("cancelled items must not count as failures: %+v", res.Failed)
	}
}

func TestBatch_CancelStopsDispatch(t *testing.T) {
	script := newScript()
	ctx, cancel := context.WithCancel(context.Background())

	b := NewBatch(testConfig(1), script.factory, "test", nil)
	seen := 0
	b.OnRecord = func(*models.PropertyRecord) {
		seen++
		if seen == 3 {
			cancel()
		}
	}

	res, err := b.Run(ctx, makeRows(10))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Interrupted {
		t.Fatalf("expected interrupted result")
	}
	if len(res.Records) < 3 || len(res.Records) > 5 {
		t.Fatalf("expected dispatch to stop shortly after cancel, got %d records", len(res.Records))
	}
	if len(res.Records)+res.Pending != 10 {
		t.Fatalf("items unaccounted for: %+v", res)
	}
}

func TestBatch_NoRowsStartsNoWorkers(t *testing.T) {
	started := 0
	factory := func(id int) (Worker, error) {
		started++
		return nil, errors.New("no worker expected")
	}

	res, err := NewBatch(testConfig(3), factory, "test", nil).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if started != 0 {
		t.Fatalf("expected no workers, started %d", started)
	}
	if len(res.Records) != 0 || len(res.Failed) != 0 || res.Pending != 0 || res.Interrupted {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestBatch_WorkersCappedByRows(t *testing.T) {
	script := newScript()
	started := 0
	factory := func(id int) (Worker, error) {
		started++
		return script.factory(id)
	}

	if _, err := NewBatch(testConfig(8), factory, "test", nil).Run(context.Background(), makeRows(2)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if started != 2 {
		t.Fatalf("expected 2 workers, started %d", started)
	}
	if script.closed != 2 {
		t.Fatalf("expected 2 workers closed, got %d", script.closed)
	}
}
