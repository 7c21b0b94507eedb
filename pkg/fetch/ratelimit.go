package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// RateLimiter spaces requests, hotels and pages with uniformly random sleeps.
// Every call sleeps: there is no burst allowance and no per-host bookkeeping,
// since the crawl is a single sequential stream.
type RateLimiter struct {
	ranges  map[models.SpacingClass]config.DelayRange
	ceiling *rate.Limiter // optional hard cap on inter-request calls, nil if disabled
	mu      sync.Mutex    // protects rng
	rng     *rand.Rand
	log     *logrus.Entry
}

// NewRateLimiter creates a RateLimiter from the delays config.
// rng may be nil for a time-seeded source.
func NewRateLimiter(delays config.DelaysConfig, rng *rand.Rand, log *logrus.Entry) *RateLimiter {
	if rng == nil {
		rng = newRand()
	}
	rl := &RateLimiter{
		ranges: map[models.SpacingClass]config.DelayRange{
			models.SpacingRequest: delays.BetweenRequests,
			models.SpacingHotel:   delays.BetweenHotels,
			models.SpacingPage:    delays.BetweenPages,
		},
		rng: rng,
		log: log,
	}
	if delays.MaxRequestsPerMinute > 0 {
		rl.ceiling = rate.NewLimiter(rate.Every(time.Minute/time.Duration(delays.MaxRequestsPerMinute)), 1)
	}
	return rl
}

// Draw returns a duration drawn uniformly from the class's [min, max] range
func (rl *RateLimiter) Draw(class models.SpacingClass) time.Duration {
	r, ok := rl.ranges[class]
	if !ok || r.Max <= 0 {
		return 0
	}
	span := int64(r.Max - r.Min)
	if span <= 0 {
		return r.Min
	}
	rl.mu.Lock()
	offset := rl.rng.Int63n(span + 1)
	rl.mu.Unlock()
	return r.Min + time.Duration(offset)
}

// Wait sleeps for a random duration of the given class.
// It returns early with the context's error if ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, class models.SpacingClass) error {
	d := rl.Draw(class)
	if d > 0 {
		rl.log.WithFields(logrus.Fields{"class": class, "sleep": d}).Debug("Rate limit applying sleep")
	}
	if err := sleepCtx(ctx, d); err != nil {
		return err
	}
	if class == models.SpacingRequest && rl.ceiling != nil {
		return rl.ceiling.Wait(ctx)
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
