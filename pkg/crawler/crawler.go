package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/state"
	"github.com/Sriram-PR/review-scraper/pkg/storage"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Fetcher returns the body of a page or the reason it could not be fetched
type Fetcher interface {
	Fetch(ctx context.Context, url, referer string) models.FetchOutcome
}

// Extractor turns page HTML into hotels and reviews. Implementations never fail as a whole.
type Extractor interface {
	ExtractHotels(html string, page int, pageURL string) []models.HotelDescriptor
	ExtractReviews(html string, hotel models.HotelDescriptor) []models.ReviewRecord
}

// Spacer sleeps between hotels and pages
type Spacer interface {
	Wait(ctx context.Context, class models.SpacingClass) error
}

// PageHook runs after a page is marked complete and persisted
type PageHook func(ctx context.Context, page int, st *state.CrawlState)

// CrawlerOptions contains optional parameters for NewCrawler
type CrawlerOptions struct {
	OnPageComplete PageHook
	Now            func() time.Time
}

// Crawler walks listing pages and their hotels, one request at a time
type Crawler struct {
	log   *logrus.Entry
	cfg   *config.AppConfig
	state *state.CrawlState
	runID string

	fetcher   Fetcher
	extractor Extractor
	spacer    Spacer
	store     storage.CheckpointStore

	onPageComplete PageHook
	now            func() time.Time

	hotelsSinceSave int
}

// NewCrawler wires the crawl components together. opts may be nil.
func NewCrawler(
	cfg *config.AppConfig,
	st *state.CrawlState,
	runID string,
	fetcher Fetcher,
	extractor Extractor,
	spacer Spacer,
	store storage.CheckpointStore,
	baseLogger *logrus.Entry,
	opts *CrawlerOptions,
) *Crawler {
	c := &Crawler{
		log:       baseLogger.WithField("run_id", runID),
		cfg:       cfg,
		state:     st,
		runID:     runID,
		fetcher:   fetcher,
		extractor: extractor,
		spacer:    spacer,
		store:     store,
		now:       time.Now,
	}
	if opts != nil {
		c.onPageComplete = opts.OnPageComplete
		if opts.Now != nil {
			c.now = opts.Now
		}
	}
	return c
}

// errInterrupted marks a stop caused by context cancellation
var errInterrupted = errors.New("crawl interrupted")

// Run crawls pages start..end inclusive and blocks until done or ctx is cancelled.
// The checkpoint is always flushed before returning. On cancellation the summary is
// still returned, with Interrupted set, together with the context error.
func (c *Crawler) Run(ctx context.Context, startPage, endPage int) (summary models.RunSummary, err error) {
	startTime := c.now()
	summary = models.RunSummary{
		RunID:               c.runID,
		StartPage:           startPage,
		EndPage:             endPage,
		StartTime:           startTime,
		TotalPagesAttempted: endPage - startPage + 1,
		DelaysConfig:        c.cfg.DelaysSnapshot(),
	}
	c.state.SetRunInfo(c.runID, c.cfg.DelaysSnapshot())

	before := c.state.Stats()
	c.log.WithFields(logrus.Fields{
		"start_page": startPage,
		"end_page":   endPage,
		"pages_done": before.PagesCompleted,
		"hotels":     before.HotelsVisited,
		"reviews":    before.Results,
	}).Info("Crawl starting")

	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in crawl loop")
			err = fmt.Errorf("crawl panic: %v", r)
		}
		// Final flush on every exit path
		c.persist("final")

		stats := c.state.Stats()
		summary.HotelsProcessed = stats.HotelsVisited
		summary.ReviewsCollected = stats.Results
		summary.TotalRequests = stats.TotalRequests
		summary.BlockedCount = stats.BlockedCount
		summary.EndTime = c.now()
		summary.ElapsedSeconds = summary.EndTime.Sub(startTime).Seconds()
		if errors.Is(err, errInterrupted) {
			summary.Interrupted = true
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
		}
	}()

	for page := startPage; page <= endPage; page++ {
		if ctx.Err() != nil {
			return summary, c.interrupted(page)
		}

		done, perr := c.crawlPage(ctx, page)
		if perr != nil {
			return summary, perr
		}
		if done {
			summary.SuccessfulPages++
		}

		if page < endPage {
			if err := c.spacer.Wait(ctx, models.SpacingPage); err != nil {
				return summary, c.interrupted(page + 1)
			}
		}
	}

	c.log.WithFields(logrus.Fields{
		"successful_pages": summary.SuccessfulPages,
		"pages_attempted":  summary.TotalPagesAttempted,
	}).Info("Crawl finished")
	return summary, nil
}

func (c *Crawler) interrupted(page int) error {
	c.log.WithField("page", page).Warn("Crawl interrupted, saving progress")
	return errInterrupted
}

// crawlPage handles one listing page. It reports whether the page counts as
// successful: already complete, or processed to the end in this run.
func (c *Crawler) crawlPage(ctx context.Context, page int) (bool, error) {
	pageLog := c.log.WithField("page", page)
	if c.state.IsPageComplete(page) {
		pageLog.Info("Page already processed, skipping")
		return true, nil
	}

	pageURL := c.cfg.Scraper.ListPageURL(page)
	pageLog.Infof("Processing listing page: %s", pageURL)

	outcome := c.fetcher.Fetch(ctx, pageURL, "")
	if !outcome.OK() {
		if ctx.Err() != nil {
			return false, c.interrupted(page)
		}
		pageLog.WithField("error_type", utils.CategorizeError(outcome.Err)).
			Errorf("Failed to load listing page: %v", outcome.Err)
		return false, nil
	}

	hotels := c.extractor.ExtractHotels(outcome.Body, page, pageURL)
	if len(hotels) == 0 {
		pageLog.Warn("No hotels on listing page, marking complete")
		c.completePage(ctx, page)
		return true, nil
	}

	reviews := 0
	for i, hotel := range hotels {
		if ctx.Err() != nil {
			return false, c.interrupted(page)
		}

		fetched, n, err := c.crawlHotel(ctx, hotel, i+1, len(hotels))
		if err != nil {
			return false, err
		}
		reviews += n

		if fetched && i < len(hotels)-1 {
			if err := c.spacer.Wait(ctx, models.SpacingHotel); err != nil {
				return false, c.interrupted(page)
			}
		}
	}

	c.completePage(ctx, page)
	pageLog.WithFields(logrus.Fields{
		"hotels":  len(hotels),
		"reviews": reviews,
	}).Info("Page complete")
	return true, nil
}

// crawlHotel processes one hotel. fetched reports whether a request was made.
func (c *Crawler) crawlHotel(ctx context.Context, hotel models.HotelDescriptor, idx, total int) (fetched bool, reviews int, err error) {
	hotelLog := c.log.WithFields(logrus.Fields{
		"page":      hotel.ListPage,
		"hotel_url": hotel.URL,
		"hotel_idx": fmt.Sprintf("%d/%d", idx, total),
	})

	if c.state.IsHotelVisited(hotel.URL) {
		hotelLog.Debug("Hotel already processed, skipping")
		return false, 0, nil
	}
	if hotel.ReviewCount == 0 {
		hotelLog.Debug("Hotel has no reviews, marking visited")
		c.state.MarkHotelVisited(hotel.URL)
		c.hotelProcessed()
		return false, 0, nil
	}

	hotelLog.Infof("Fetching hotel '%s' (%d reviews)", hotel.Name, hotel.ReviewCount)
	outcome := c.fetcher.Fetch(ctx, hotel.URL, hotel.ListURL)
	if !outcome.OK() && ctx.Err() != nil {
		// Leave unvisited so a resumed run picks it up
		return true, 0, c.interrupted(hotel.ListPage)
	}

	if outcome.OK() {
		records := c.extractor.ExtractReviews(outcome.Body, hotel)
		if len(records) > 0 {
			c.state.AppendResults(records...)
			reviews = len(records)
			hotelLog.Infof("Collected %d reviews", reviews)
		} else {
			hotelLog.Warn("No reviews extracted")
		}
	} else {
		hotelLog.WithField("error_type", utils.CategorizeError(outcome.Err)).
			Errorf("Failed to load hotel page after %d attempt(s): %v", outcome.Attempts, outcome.Err)
	}

	c.state.MarkHotelVisited(hotel.URL)
	c.hotelProcessed()
	return true, reviews, nil
}

// hotelProcessed persists every N processed hotels
func (c *Crawler) hotelProcessed() {
	c.hotelsSinceSave++
	every := c.cfg.Checkpoint.EveryHotels
	if every > 0 && c.hotelsSinceSave >= every {
		c.persist("periodic")
	}
}

func (c *Crawler) completePage(ctx context.Context, page int) {
	c.state.MarkPageComplete(page)
	c.persist("page complete")
	if c.onPageComplete != nil {
		c.onPageComplete(ctx, page, c.state)
	}
}

// persist saves the checkpoint. A failed save is logged and the run continues in memory.
func (c *Crawler) persist(reason string) {
	c.hotelsSinceSave = 0
	if err := c.store.Save(c.state); err != nil {
		c.log.WithFields(logrus.Fields{
			"reason":     reason,
			"error_type": utils.CategorizeError(err),
		}).Errorf("Failed to save checkpoint: %v", err)
		return
	}
	c.log.WithField("reason", reason).Debug("Checkpoint saved")
}
