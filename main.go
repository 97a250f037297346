package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bolig_scrooper/config"
	"bolig_scrooper/extract"
	"bolig_scrooper/logging"
	"bolig_scrooper/models"
	"bolig_scrooper/scheduler"
	"bolig_scrooper/services"
	"bolig_scrooper/storage"
	"bolig_scrooper/vpn"
)

var (
	scrapeFlag  = flag.Bool("scrape", false, "Scrape property details for the listings in the index CSV")
	indexFlag   = flag.Bool("index", false, "Crawl the auction index pages")
	expandFlag  = flag.Bool("expand", false, "Write one row per sale from the index CSV")
	mergeFlag   = flag.Bool("merge", false, "Join per-sale rows with property details")
	qualityFlag = flag.Bool("quality", false, "Print a data quality report and write the clean dataset")
	qualityFile = flag.String("quality-file", "", "CSV to report on with -quality; skips the file menu")
	daemonFlag  = flag.Bool("daemon", false, "Run on the configured schedule and process queued commands")
	triggerFlag = flag.String("trigger", "", "Queue a command for a running daemon (run_index, run_details, run_pipeline)")
	sampleFlag  = flag.Int("sample", -1, "Scrape N random properties (0 = all); skips the menu")
	debugFlag   = flag.Bool("debug", false, "Scrape one property with a visible browser into the debug CSV")
	workersFlag = flag.Int("workers", 0, "Parallel workers (overrides SCRAPE_WORKERS)")
	fetcherFlag = flag.String("fetcher", "", "Page fetcher: browser or http (overrides SCRAPE_FETCHER)")
	siteFlag    = flag.String("site", "", "Site config id")
	resumeFlag  = flag.Bool("resume", false, "Skip properties already stored by an earlier run")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting bolig_scrooper...")

	if *workersFlag > 0 {
		cfg.Scraper.Workers = *workersFlag
	}
	if *fetcherFlag != "" {
		cfg.Scraper.Fetcher = *fetcherFlag
	}

	site, err := cfg.Site(*siteFlag)
	if err != nil {
		log.Fatalf("Failed to load site: %v", err)
	}
	log.Printf("Site: %s (%s)", site.Name, site.BaseURL)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *triggerFlag != "" {
		cmd := models.CommandType(*triggerFlag)
		if !cmd.Valid() {
			log.Fatalf("Unknown command: %s", *triggerFlag)
		}
		id, err := store.EnqueueCommand(cmd, models.CommandParams{Site: *siteFlag, Sample: max(*sampleFlag, 0)})
		if err != nil {
			log.Fatalf("Failed to queue command: %v", err)
		}
		log.Printf("Queued %s as command %d", cmd, id)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	export, closeExport := buildExport(ctx, cfg)
	defer closeExport()

	a := &app{
		cfg:    cfg,
		site:   site,
		rules:  extract.DefaultRules().WithSite(site.ExtraLabels, site.ExtraModalLabels, site.PropertyTypes),
		store:  store,
		export: export,
		vpn: vpn.NewExpressVPN(vpn.Config{
			Enabled:     cfg.VPN.Enabled,
			AutoConnect: cfg.VPN.AutoConnect,
			Region:      cfg.VPN.Region,
		}),
		resume: *resumeFlag,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if *daemonFlag {
		sched := scheduler.New(cfg.Scheduler, a.runCommand, store)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		log.Println("Daemon running. Press Ctrl+C to stop.")
		<-ctx.Done()
		log.Println("Shutting down...")
		sched.Stop()
		a.shutdown()
		log.Println("Goodbye!")
		return
	}

	// os.Exit skips deferred calls, so every exit path releases the VPN
	// and the export connections itself.
	exit := func(code int) {
		a.shutdown()
		closeExport()
		os.Exit(code)
	}

	steps := 0
	check := func(name string, err error) {
		steps++
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Printf("%s interrupted", name)
			exit(130)
		}
		if errors.Is(err, errMenuCancelled) {
			log.Println("Exiting")
			exit(0)
		}
		log.Printf("%s failed: %v", name, err)
		exit(1)
	}

	if *indexFlag {
		check("Index crawl", a.runIndex(ctx))
	}
	if *expandFlag {
		check("Sales expansion", a.runExpand())
	}
	if *scrapeFlag || *debugFlag {
		check("Scrape", a.runDetails(ctx, chooseMode()))
	}
	if *mergeFlag {
		check("Merge", a.runMerge())
	}
	if *qualityFlag {
		check("Quality report", a.runQuality(chooseQualityFile(steps == 0)))
	}
	if steps == 0 {
		check("Scrape", a.runDetails(ctx, chooseMode()))
	}
	a.shutdown()
	log.Println("Done!")
}

// chooseMode resolves the run mode from flags, or from the menu when
// stdin is a terminal.
func chooseMode() modeChooser {
	switch {
	case *debugFlag:
		return fixedMode(runModes[len(runModes)-1])
	case *sampleFlag >= 0:
		return fixedMode(RunMode{Sample: *sampleFlag})
	case stdinIsTerminal():
		return func(total int) (RunMode, error) {
			return chooseRunMode(os.Stdin, os.Stdout, total)
		}
	}
	return fixedMode(RunMode{})
}

// chooseQualityFile resolves the quality report input from -quality-file,
// or from the file menu when the report is the only step and stdin is a
// terminal.
func chooseQualityFile(only bool) fileChooser {
	switch {
	case *qualityFile != "":
		return func(string) (string, error) { return *qualityFile, nil }
	case only && stdinIsTerminal():
		return func(dir string) (string, error) {
			return chooseCSV(os.Stdin, os.Stdout, dir)
		}
	}
	return nil
}

// buildExport connects the optional Postgres and S3 targets. A target that
// fails to connect is logged and left out.
func buildExport(ctx context.Context, cfg *config.Config) (*services.ExportService, func()) {
	var sink services.PropertySink
	var uploader services.ArtifactUploader
	cleanup := func() {}

	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Printf("Warning: Postgres export disabled: %v", err)
		} else if err := pg.EnsureSchema(ctx); err != nil {
			log.Printf("Warning: Postgres schema: %v", err)
			pg.Close()
		} else {
			log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.PostgresURL))
			sink = pg
			cleanup = pg.Close
		}
	}

	if cfg.S3.Enabled() {
		up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Printf("Warning: S3 upload disabled: %v", err)
		} else {
			log.Printf("Uploading outputs to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
			uploader = up
		}
	}

	return services.NewExportService(sink, uploader), cleanup
}

// maskConnectionString hides the password in a connection URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
