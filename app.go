package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bolig_scrooper/config"
	"bolig_scrooper/extract"
	"bolig_scrooper/httputil"
	"bolig_scrooper/models"
	"bolig_scrooper/scraper"
	"bolig_scrooper/services"
	"bolig_scrooper/storage"
	"bolig_scrooper/vpn"
)

// modeChooser picks the run mode once the number of input rows is known.
type modeChooser func(total int) (RunMode, error)

func fixedMode(m RunMode) modeChooser {
	return func(int) (RunMode, error) { return m, nil }
}

type app struct {
	cfg    *config.Config
	site   *config.SiteConfig
	rules  *extract.Rules
	store  *storage.SQLiteStore
	export *services.ExportService
	vpn    *vpn.ExpressVPN
	resume bool
	rng    *rand.Rand
}

// logFunc persists run-scoped messages. Callers already print them.
func (a *app) logFunc(runID *int64) models.LogFunc {
	return func(level models.LogLevel, source, message string) {
		if err := a.store.Log(runID, level, message, source); err != nil {
			log.Printf("Warning: failed to persist log: %v", err)
		}
	}
}

// shutdown releases what the app holds outside the process.
func (a *app) shutdown() {
	if err := a.vpn.Release(); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func (a *app) startRun(kind models.RunKind, total int) (*models.ScrapeRun, error) {
	run := &models.ScrapeRun{
		UUID:       uuid.NewString(),
		SiteID:     a.site.ID,
		Kind:       kind,
		StartedAt:  time.Now(),
		Status:     models.RunStatusRunning,
		ItemsTotal: total,
	}
	id, err := a.store.CreateRun(run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = id
	log.Printf("Started %s run %s for %s", kind, run.UUID, a.site.ID)
	return run, nil
}

func (a *app) finishRun(run *models.ScrapeRun, status models.RunStatus, ok, failed int) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.ItemsOK = ok
	run.ItemsFailed = failed
	if err := a.store.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run %d: %v", run.ID, err)
	}
	log.Printf("Run %s %s: %d ok, %d failed of %d in %s",
		run.UUID, status, ok, failed, run.ItemsTotal, now.Sub(run.StartedAt).Round(time.Second))
}

func (a *app) newFetcher(openModal, headless bool) scraper.Restartable {
	sc := a.cfg.Scraper
	if sc.Fetcher == "http" {
		return scraper.NewHTTPFetcher(httputil.NewScrapingClient(a.cfg.ProxyURL, 30*time.Second))
	}
	return scraper.NewBrowserFetcher(scraper.BrowserOptions{
		Headless:    headless,
		WaitSeconds: sc.WaitSeconds,
		DebugDir:    sc.DebugDir,
		OpenModal:   openModal,
	})
}

// runIndex crawls the auction index and writes the summaries and the
// expanded per-sale file.
func (a *app) runIndex(ctx context.Context) error {
	if err := a.vpn.EnsureConnected(); err != nil {
		return fmt.Errorf("vpn: %w", err)
	}

	run, err := a.startRun(models.RunKindIndex, a.site.IndexPages)
	if err != nil {
		return err
	}
	logFn := a.logFunc(&run.ID)

	var seed []models.PropertySummary
	if page, _ := a.store.GetResumePage(a.site.ID); page > 1 {
		if seed, err = storage.ReadSummaries(a.cfg.Output.Input); err != nil {
			log.Printf("No earlier summaries to resume from: %v", err)
			seed = nil
		}
	}

	fetcher := a.newFetcher(false, a.cfg.Scraper.Headless)
	defer fetcher.Close()

	idx := scraper.NewIndexScraper(a.site, scraper.NewSession(fetcher), a.store, logFn)
	summaries, crawlErr := idx.Scrape(ctx, seed)

	status := models.RunStatusCompleted
	if crawlErr != nil {
		status = models.RunStatusInterrupted
		log.Printf("Index crawl stopped early: %v", crawlErr)
	}

	if len(summaries) > 0 {
		if err := storage.WriteSummaries(a.cfg.Output.Input, summaries); err != nil {
			a.finishRun(run, models.RunStatusFailed, 0, 0)
			return fmt.Errorf("write summaries: %w", err)
		}
		if err := storage.WriteExpandedSales(a.cfg.Output.Expanded, summaries); err != nil {
			log.Printf("Warning: failed to write expanded sales: %v", err)
		}
		log.Printf("Saved %d properties to %s", len(summaries), a.cfg.Output.Input)
	}
	a.finishRun(run, status, len(summaries), 0)

	if status == models.RunStatusCompleted && a.export.Enabled() {
		exportCtx := context.WithoutCancel(ctx)
		if _, err := a.export.ExportSummaries(exportCtx, summaries); err != nil {
			log.Printf("Warning: sales export failed: %v", err)
		}
		a.upload(exportCtx, run, a.cfg.Output.Input, a.cfg.Output.Expanded)
	}
	return crawlErr
}

// runExpand rewrites the per-sale file from the saved summaries.
func (a *app) runExpand() error {
	summaries, err := storage.ReadSummaries(a.cfg.Output.Input)
	if err != nil {
		return fmt.Errorf("read summaries: %w", err)
	}
	if err := storage.WriteExpandedSales(a.cfg.Output.Expanded, summaries); err != nil {
		return err
	}
	log.Printf("Expanded %d properties into %s", len(summaries), a.cfg.Output.Expanded)
	return nil
}

// runDetails scrapes the detail page of every listing in the input CSV.
func (a *app) runDetails(ctx context.Context, choose modeChooser) error {
	rows, err := storage.ReadListings(a.cfg.Output.Input)
	if err != nil {
		return fmt.Errorf("read listings: %w", err)
	}
	log.Printf("Loaded %d properties from %s", len(rows), a.cfg.Output.Input)

	valid, invalid := partitionLinks(rows, a.site.BaseURL)
	reportInvalidLinks(invalid)

	if a.resume {
		valid = a.skipScraped(valid)
	}

	mode, err := choose(len(valid))
	if err != nil {
		return err
	}
	rows = sampleRows(valid, mode.Sample, a.rng)
	if len(rows) == 0 {
		log.Println("Nothing to scrape")
		return nil
	}

	sc := a.cfg.Scraper
	workers, headless, outPath := sc.Workers, sc.Headless, a.cfg.Output.Details
	if mode.Debug {
		workers, headless, outPath = 1, false, a.cfg.Output.Debug
		log.Printf("Debug mode: %s", rows[0].Link)
	}

	if err := a.vpn.EnsureConnected(); err != nil {
		return fmt.Errorf("vpn: %w", err)
	}

	run, err := a.startRun(models.RunKindDetails, len(rows))
	if err != nil {
		return err
	}
	logFn := a.logFunc(&run.ID)

	ps := scraper.NewPropertyScraper(a.site, a.rules, logFn)
	batch := scraper.NewBatch(scraper.BatchConfig{
		Workers:           workers,
		MaxAttempts:       sc.MaxAttempts,
		RetryDelay:        sc.RetryDelay,
		RetryJitter:       sc.RetryJitter,
		CheckpointEvery:   sc.CheckpointEvery,
		RequestsPerSecond: sc.RequestsPerSecond,
	}, func(id int) (scraper.Worker, error) {
		return scraper.NewPropertyWorker(ps, a.newFetcher(true, headless)), nil
	}, a.site.ID, logFn)

	batch.OnCheckpoint = func(recs []*models.PropertyRecord) error {
		return storage.WriteProperties(a.cfg.Output.Checkpoint, recs)
	}
	batch.OnRecord = func(rec *models.PropertyRecord) {
		if err := a.store.SaveRecord(run.ID, a.site.ID, rec); err != nil {
			log.Printf("Warning: failed to save %s: %v", rec.ID, err)
		}
	}
	batch.OnFailure = func(item models.FailedItem) {
		item.RunID = run.ID
		if err := a.store.RecordFailure(&item); err != nil {
			log.Printf("Warning: failed to record failure of %s: %v", item.PropertyID, err)
		}
	}

	log.Printf("Scraping %d properties with %d worker(s)", len(rows), workers)
	result, err := batch.Run(ctx, rows)
	if result == nil {
		a.finishRun(run, models.RunStatusFailed, 0, 0)
		return err
	}
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	if result.Interrupted {
		log.Printf("Interrupted with %d pending; saving %d results to %s",
			result.Pending, len(result.Records), a.cfg.Output.Interrupted)
		if err := storage.WriteProperties(a.cfg.Output.Interrupted, result.Records); err != nil && !errors.Is(err, storage.ErrNoRecords) {
			log.Printf("Error saving recovery file: %v", err)
		}
		a.finishRun(run, models.RunStatusInterrupted, len(result.Records), len(result.Failed))
		return ctx.Err()
	}

	if err := storage.WriteProperties(outPath, result.Records); err != nil {
		a.finishRun(run, models.RunStatusFailed, len(result.Records), len(result.Failed))
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	log.Printf("Saved %d properties to %s", len(result.Records), outPath)
	a.finishRun(run, models.RunStatusCompleted, len(result.Records), len(result.Failed))

	if !mode.Debug && a.export.Enabled() {
		if _, err := a.export.ExportRecords(ctx, run, result.Records); err != nil {
			log.Printf("Warning: export failed: %v", err)
		}
		a.upload(ctx, run, outPath)
	}
	return nil
}

func (a *app) skipScraped(rows []models.ListingRow) []models.ListingRow {
	done, err := a.store.ScrapedIDs(a.site.ID)
	if err != nil {
		log.Printf("Warning: could not load scraped ids: %v", err)
		return rows
	}
	out := rows[:0:0]
	for _, row := range rows {
		if !done[row.PropertyID] {
			out = append(out, row)
		}
	}
	log.Printf("Skipping %d already scraped properties", len(rows)-len(out))
	return out
}

func (a *app) runMerge() error {
	_, err := services.MergeFiles(a.cfg.Output.Expanded, a.cfg.Output.Details, a.cfg.Output.PerSale)
	return err
}

// fileChooser picks an input file from dir. An empty path keeps the default.
type fileChooser func(dir string) (string, error)

// runQuality reports on the per-sale file when it exists, else on the
// details file, unless pick chooses another one.
func (a *app) runQuality(pick fileChooser) error {
	in := a.cfg.Output.PerSale
	if _, err := os.Stat(in); err != nil {
		in = a.cfg.Output.Details
	}
	if pick != nil {
		chosen, err := pick(filepath.Dir(in))
		if err != nil {
			return err
		}
		if chosen != "" {
			in = chosen
		}
	}
	log.Printf("Analyzing %s", in)
	_, err := services.QualityFiles(in, a.cfg.Output.Clean, os.Stdout, time.Now())
	return err
}

func (a *app) upload(ctx context.Context, run *models.ScrapeRun, paths ...string) {
	if _, err := a.export.UploadOutputs(ctx, run.UUID, paths...); err != nil {
		log.Printf("Warning: upload failed: %v", err)
	}
}

// runCommand executes a queued or scheduled command.
func (a *app) runCommand(ctx context.Context, cmd models.CommandType, params models.CommandParams) error {
	b := a
	if params.Site != "" && params.Site != a.site.ID {
		site, err := a.cfg.Site(params.Site)
		if err != nil {
			return err
		}
		cp := *a
		cp.site = site
		cp.rules = extract.DefaultRules().WithSite(site.ExtraLabels, site.ExtraModalLabels, site.PropertyTypes)
		b = &cp
	}

	switch cmd {
	case models.CmdRunIndex:
		return b.runIndex(ctx)
	case models.CmdRunDetails:
		return b.runDetails(ctx, fixedMode(RunMode{Sample: params.Sample}))
	case models.CmdRunPipeline:
		if err := b.runIndex(ctx); err != nil {
			return err
		}
		if err := b.runDetails(ctx, fixedMode(RunMode{Sample: params.Sample})); err != nil {
			return err
		}
		return b.runMerge()
	}
	return fmt.Errorf("unknown command: %s", cmd)
}
