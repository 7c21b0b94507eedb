package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/crawler"
	"github.com/Sriram-PR/review-scraper/pkg/detect"
	"github.com/Sriram-PR/review-scraper/pkg/extract"
	"github.com/Sriram-PR/review-scraper/pkg/fetch"
	applog "github.com/Sriram-PR/review-scraper/pkg/log"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/output"
	"github.com/Sriram-PR/review-scraper/pkg/state"
	"github.com/Sriram-PR/review-scraper/pkg/storage"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const version = "3.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "backups":
		runBackups(os.Args[2:])
	case "version":
		fmt.Printf("review-scraper %s (parser %s)\n", version, state.ParserVersion)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `review-scraper - Hotel review crawler with resumable checkpoints

Usage:
  review-scraper <command> [options]

Commands:
  crawl     Crawl listing pages and collect reviews (resumes from the checkpoint)
  export    Re-export collected reviews from the checkpoint
  validate  Validate configuration file
  backups   List archived checkpoint backups
  version   Show version info

Run 'review-scraper <command> -h' for command-specific help.`)
}

// crawlOptions are the parsed crawl flags
type crawlOptions struct {
	configPath    string
	startPage     int
	endPage       int
	logLevel      string
	fresh         bool
	restoreBackup bool
}

func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	opts := crawlOptions{}
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file (defaults are used if missing)")
	fs.IntVar(&opts.startPage, "start", 0, "First listing page (0 = scraper.start_page)")
	fs.IntVar(&opts.endPage, "end", 0, "Last listing page (0 = scraper.end_page or max_pages)")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&opts.fresh, "fresh", false, "Ignore the existing checkpoint and start over")
	fs.BoolVar(&opts.restoreBackup, "restore-latest-backup", false, "Restore the newest archived checkpoint if the live one is corrupt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  review-scraper crawl -start 1 -end 10\n")
		fmt.Fprintf(os.Stderr, "  review-scraper crawl -config prod.yaml -loglevel debug\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(executeCrawl(opts))
}

// executeCrawl runs one crawl and returns the process exit code
func executeCrawl(opts crawlOptions) int {
	cfg, warnings, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	logger, closeLog, err := applog.New(opts.logLevel, cfg.Scraper.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer closeLog()

	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)
	for _, w := range warnings {
		log.Warn(w)
	}

	startPage, endPage, rangeWarnings := cfg.ResolvePageRange(opts.startPage, opts.endPage)
	for _, w := range rangeWarnings {
		log.Warn(w)
	}
	logAppConfig(cfg, log)

	// ===========================================================
	// == Setup Context & Signal Handling ==
	// ===========================================================
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Saving progress and stopping...", sig)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	var archive *storage.BadgerArchive
	if path := cfg.BackupPath(); path != "" {
		archive, err = storage.NewBadgerArchive(path, cfg.Checkpoint.MaxBackups, log.WithField("component", "backups"))
		if err != nil {
			log.Warnf("Checkpoint backups disabled: %v", err)
			archive = nil
		} else {
			defer archive.Close()
		}
	}

	var backups storage.BackupArchive
	if archive != nil {
		backups = archive
	}
	checkpoint := storage.NewFileCheckpoint(cfg.ProgressPath(), backups, log.WithField("component", "checkpoint"))

	st, err := loadState(checkpoint, archive, opts, log)
	if err != nil {
		log.Errorf("Cannot load checkpoint: %v", err)
		return 1
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	limiter := fetch.NewRateLimiter(cfg.Delays, rng, log.WithField("component", "ratelimit"))
	client, err := fetch.NewClient(cfg.HTTPClientSettings, log)
	if err != nil {
		log.Errorf("Failed to build HTTP client: %v", err)
		return 1
	}
	detector := detect.NewBlockDetector(cfg.Detection)
	fetcher := fetch.NewFetcher(client, cfg, limiter, detector, st, rng, log.WithField("component", "fetch"))

	extractor, err := extract.New(cfg.Selectors, cfg.Limits, cfg.Scraper.SiteRoot, log.WithField("component", "extract"))
	if err != nil {
		log.Errorf("Invalid selectors: %v", err)
		return 1
	}

	exporter := output.NewExporter(cfg, log.WithField("component", "output"))
	defer exporter.Close()

	exportCtx := context.WithoutCancel(ctx)
	crawlerInstance := crawler.NewCrawler(cfg, st, runID, fetcher, extractor, limiter, checkpoint, log, &crawler.CrawlerOptions{
		OnPageComplete: func(_ context.Context, page int, s *state.CrawlState) {
			if _, err := exporter.Export(exportCtx, s.Deduplicated()); err != nil {
				log.WithField("page", page).Errorf("Export after page failed: %v", err)
			}
		},
	})

	// ===========================================================
	// == Run crawl and backup GC ==
	// ===========================================================
	gcCtx, stopGC := context.WithCancel(ctx)
	g := new(errgroup.Group)
	if archive != nil {
		g.Go(func() error {
			return archive.RunGC(gcCtx, cfg.Checkpoint.GCInterval)
		})
	}

	var summary models.RunSummary
	g.Go(func() error {
		defer stopGC()
		var runErr error
		summary, runErr = crawlerInstance.Run(ctx, startPage, endPage)
		return runErr
	})
	runErr := g.Wait()

	// ===========================================================
	// == Post-Crawl Actions ==
	// ===========================================================
	results := st.Deduplicated()
	exportSummary, exportErr := exporter.Export(exportCtx, results)
	if exportErr != nil {
		log.Errorf("Final export failed: %v", exportErr)
	}
	exportSummary.Apply(&summary)

	if path := cfg.StatsPath(); path != "" {
		if err := output.WriteStats(path, summary); err != nil {
			log.Errorf("Failed to write run statistics: %v", err)
		} else {
			log.Infof("Run statistics saved to %s", path)
		}
	}
	logSummary(summary, log)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Crawl interrupted. Progress saved, run again to resume.")
		} else {
			log.WithField("error_type", utils.CategorizeError(runErr)).Errorf("Crawl finished with error: %v", runErr)
		}
		return 1
	}
	log.Info("Crawl completed successfully.")
	return 0
}

// loadState returns the state to crawl from, honoring -fresh and -restore-latest-backup
func loadState(cp *storage.FileCheckpoint, archive *storage.BadgerArchive, opts crawlOptions, log *logrus.Entry) (*state.CrawlState, error) {
	if opts.fresh {
		log.Warnf("Fresh start requested, ignoring checkpoint %s", cp.Path())
		return state.New(), nil
	}

	st, err := cp.Load()
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, utils.ErrCheckpointCorrupt) {
		return nil, err
	}

	if !opts.restoreBackup || archive == nil {
		log.Errorf("!!! Checkpoint is corrupt, starting from scratch: %v", err)
		log.Error("!!! Use -restore-latest-backup to recover from the backup archive instead")
		return st, nil
	}

	info, payload, lerr := archive.Latest()
	if lerr != nil {
		log.Errorf("Checkpoint is corrupt and no backup is available (%v), starting from scratch", lerr)
		return st, nil
	}
	if rerr := cp.Restore(payload); rerr != nil {
		return nil, fmt.Errorf("restore backup %s: %w", info.Key, rerr)
	}
	log.Warnf("Restored checkpoint from backup taken at %s", info.CreatedAt.UTC().Format(time.RFC3339))
	return cp.Load()
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doExport(*configFile, os.Stdout, os.Stderr))
}

// doExport writes the checkpoint's deduplicated results to every configured sink.
// Returns exit code (0 = success, 1 = error).
func doExport(configPath string, stdout, stderr io.Writer) int {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log := commandLogger(stderr)

	st, err := storage.NewFileCheckpoint(cfg.ProgressPath(), nil, log).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	exporter := output.NewExporter(cfg, log)
	defer exporter.Close()

	results := st.Deduplicated()
	summary, err := exporter.Export(context.Background(), results)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Exported %d reviews (%d before deduplication)\n", summary.Count, len(st.Results()))
	if summary.Count > 0 {
		fmt.Fprintf(stdout, "Average rating: %.2f\n", summary.AverageRating)
		fmt.Fprintf(stdout, "Before 2020: %d (%.1f%%)\n", summary.Before2020, summary.PercentBefore2020)
	}
	return 0
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := config.Load(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if _, err := extract.New(cfg.Selectors, cfg.Limits, cfg.Scraper.SiteRoot, commandLogger(stderr)); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: base_url %s, pages %d-%d of %d\n",
		cfg.Scraper.BaseURL, cfg.Scraper.StartPage, max(cfg.Scraper.EndPage, cfg.Scraper.StartPage), cfg.Scraper.MaxPages)
	fmt.Fprintf(stdout, "OK: %d identities, %d block signatures\n",
		len(cfg.Identities.UserAgents), len(cfg.Detection.Signatures))
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

func runBackups(args []string) {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper backups [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doBackups(*configFile, os.Stdout, os.Stderr))
}

// doBackups lists archived checkpoints, oldest first
func doBackups(configPath string, stdout, stderr io.Writer) int {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	path := cfg.BackupPath()
	if path == "" {
		fmt.Fprintln(stdout, "Checkpoint backups are disabled (checkpoint.disable_backups).")
		return 0
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stdout, "No backups in %s\n", path)
		return 0
	}

	archive, err := storage.NewBadgerArchive(path, 0, commandLogger(stderr))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer archive.Close()

	backups, err := archive.List()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(backups) == 0 {
		fmt.Fprintf(stdout, "No backups in %s\n", path)
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCREATED\tSIZE\tKEY")
	for i, b := range backups {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, b.CreatedAt.UTC().Format(time.RFC3339), b.Size, b.Key)
	}
	tw.Flush()
	fmt.Fprintf(stdout, "\n%d backup(s) in %s\n", len(backups), path)
	return 0
}

// commandLogger logs warnings and errors of one-shot commands to w
func commandLogger(w io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	return logrus.NewEntry(logger)
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Entry) {
	log.Infof("Config: BaseURL:%s, MaxPages:%d, DataDir:%s, Progress:%s",
		cfg.Scraper.BaseURL, cfg.Scraper.MaxPages, cfg.Scraper.DataDir, cfg.ProgressPath())
	log.Infof("Config Delays: Requests:%v-%v, Hotels:%v-%v, Pages:%v-%v, AfterBlock:%v, MaxRPM:%d",
		cfg.Delays.BetweenRequests.Min, cfg.Delays.BetweenRequests.Max,
		cfg.Delays.BetweenHotels.Min, cfg.Delays.BetweenHotels.Max,
		cfg.Delays.BetweenPages.Min, cfg.Delays.BetweenPages.Max,
		cfg.Delays.AfterBlock, cfg.Delays.MaxRequestsPerMinute)
	log.Infof("Config Limits: MaxRetries:%d, HotelsPerPage:%d, ReviewsPerHotel:%d",
		cfg.Limits.MaxRetries, cfg.Limits.MaxHotelsPerPage, cfg.Limits.MaxReviewsPerHotel)
	log.Infof("Config Checkpoint: EveryHotels:%d, Backups:%q, MaxBackups:%d",
		cfg.Checkpoint.EveryHotels, cfg.BackupPath(), cfg.Checkpoint.MaxBackups)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, MaxBody:%d bytes",
		cfg.HTTPClientSettings.Timeout, cfg.HTTPClientSettings.MaxIdleConns,
		cfg.HTTPClientSettings.MaxIdleConnsPerHost, cfg.HTTPClientSettings.MaxBodyBytes)
}

func logSummary(s models.RunSummary, log *logrus.Entry) {
	fields := logrus.Fields{
		"successful_pages": fmt.Sprintf("%d/%d", s.SuccessfulPages, s.TotalPagesAttempted),
		"hotels":           s.HotelsProcessed,
		"reviews":          s.ReviewsCollected,
		"requests":         s.TotalRequests,
		"blocked":          s.BlockedCount,
		"elapsed":          time.Duration(s.ElapsedSeconds * float64(time.Second)).Round(time.Second).String(),
	}
	if s.ReviewsCollected > 0 {
		fields["average_rating"] = fmt.Sprintf("%.2f", s.AverageRating)
		fields["before_2020"] = fmt.Sprintf("%d (%.1f%%)", s.ReviewsBefore2020, s.PercentBefore2020)
	}
	if s.TotalRequests > 0 && s.ElapsedSeconds > 0 {
		fields["sec_per_request"] = fmt.Sprintf("%.2f", s.ElapsedSeconds/float64(s.TotalRequests))
	}
	log.WithFields(fields).Info("Run statistics")
}
