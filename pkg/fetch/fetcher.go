package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/detect"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Classifier decides whether a received response is a block page
type Classifier interface {
	Classify(status int, body string) detect.Verdict
	Explain(status int, body string) (detect.Verdict, string)
}

// Counters receives request accounting from the fetcher
type Counters interface {
	RecordRequest()
	RecordBlocked()
}

// Fetcher performs logical fetches: spaced, identity-stamped, block-aware
// and retried according to the RetryScheduler. One request is in flight at a time.
type Fetcher struct {
	client     *http.Client
	limiter    *RateLimiter
	scheduler  *RetryScheduler
	classifier Classifier
	identities *IdentityPool
	counters   Counters
	maxBody    int64
	minBody    int
	log        *logrus.Entry

	mu      sync.Mutex // protects current
	current Identity
}

// NewFetcher creates a Fetcher. rng seeds identity selection and may be nil.
func NewFetcher(client *http.Client, cfg *config.AppConfig, limiter *RateLimiter, classifier Classifier, counters Counters, rng *rand.Rand, log *logrus.Entry) *Fetcher {
	pool := NewIdentityPool(cfg.Identities, rng)
	return &Fetcher{
		client:     client,
		limiter:    limiter,
		scheduler:  NewRetryScheduler(cfg.Limits, cfg.Delays),
		classifier: classifier,
		identities: pool,
		counters:   counters,
		maxBody:    cfg.HTTPClientSettings.MaxBodyBytes,
		minBody:    cfg.Detection.MinBodyLength,
		log:        log,
		current:    pool.Pick(),
	}
}

// Identity returns the identity the next request will use
func (f *Fetcher) Identity() Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fetcher) rotate() Identity {
	next := f.identities.Pick()
	f.mu.Lock()
	f.current = next
	f.mu.Unlock()
	return next
}

// Fetch retrieves targetURL and always returns an outcome.
// Context cancellation ends the loop with OutcomeFailed wrapping ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, targetURL, referer string) models.FetchOutcome {
	reqLog := f.log.WithField("url", targetURL)
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx, models.SpacingRequest); err != nil {
			return failed(attempt, 0, fmt.Errorf("cancelled before attempt %d: %w", attempt, err))
		}

		f.counters.RecordRequest()
		resp, err := f.do(ctx, targetURL, referer)
		status, body := resp.status, resp.body
		attemptLog := reqLog.WithFields(logrus.Fields{"attempt": attempt, "status_code": status})

		var sig Signal
		switch {
		case err != nil && ctx.Err() != nil:
			attemptLog.Warnf("Context cancelled during HTTP request: %v", ctx.Err())
			return failed(attempt+1, status, ctx.Err())

		case err != nil && utils.IsTimeout(err):
			sig = SignalTimeout
			lastErr = fmt.Errorf("%w: %w", utils.ErrTransportTimeout, err)
			attemptLog.Warnf("Timeout: %v", err)

		case err != nil:
			sig = SignalNetwork
			lastErr = fmt.Errorf("%w: %w", utils.ErrTransportOther, err)
			attemptLog.Errorf("Network error: %v", err)

		case status == http.StatusNotFound:
			sig = SignalNotFound

		default:
			switch {
			case f.classifier.Classify(status, body).Blocked():
				_, reason := f.classifier.Explain(status, body)
				f.counters.RecordBlocked()
				sig = SignalBlocked
				lastErr = fmt.Errorf("%w: %s", utils.ErrBlockDetected, reason)
				attemptLog.Warnf("Block detected (%s)", reason)
			case status == http.StatusOK:
				if reason := f.malformed(resp); reason != "" {
					attemptLog.Warnf("Invalid response: %s", reason)
					return failed(attempt+1, status, fmt.Errorf("%w: %s", utils.ErrInvalidContent, reason))
				}
				sig = SignalOK
			default:
				sig = SignalUnexpectedStatus
				lastErr = fmt.Errorf("%w: status %d", utils.ErrUnexpectedStatus, status)
			}
		}

		action := f.scheduler.Next(attempt, sig)
		switch action.Kind {
		case ActionDone:
			attemptLog.Debug("Successfully fetched")
			return models.FetchOutcome{Kind: models.OutcomeBody, Body: body, StatusCode: status, Attempts: attempt + 1}

		case ActionNotFound:
			attemptLog.Warn("Page not found")
			return models.FetchOutcome{
				Kind:       models.OutcomeNotFound,
				StatusCode: status,
				Attempts:   attempt + 1,
				Err:        fmt.Errorf("%w: %s", utils.ErrNotFound, targetURL),
			}

		case ActionGiveUp:
			if sig == SignalUnexpectedStatus {
				attemptLog.Warnf("HTTP %d, not retrying", status)
				return failed(attempt+1, status, lastErr)
			}
			attemptLog.Errorf("All %d attempts failed. Last error: %v", attempt+1, lastErr)
			return failed(attempt+1, status, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr))

		case ActionRotateAndWait:
			id := f.rotate()
			attemptLog.WithField("user_agent", id.UserAgent).Infof("Rotated identity, retrying in %v", action.Delay)

		case ActionWait:
			attemptLog.Infof("Retrying in %v", action.Delay)
		}

		if err := sleepCtx(ctx, action.Delay); err != nil {
			return failed(attempt+1, status, fmt.Errorf("cancelled during backoff (%v) after error: %w", err, lastErr))
		}
	}
}

// response is one received HTTP answer. truncated is set when the decoded
// body was longer than the configured cap; body then holds only the first maxBody bytes.
type response struct {
	status      int
	body        string
	contentType string
	truncated   bool
}

// do performs one HTTP attempt and returns the decoded body
func (f *Fetcher) do(ctx context.Context, targetURL, referer string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	f.Identity().Apply(req, referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type")}
	decoded, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return out, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}

	// The cap applies to the decoded stream; one extra byte tells a full body from a cut one
	r := decoded
	if f.maxBody > 0 {
		r = io.LimitReader(decoded, f.maxBody+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return out, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if f.maxBody > 0 && int64(len(data)) > f.maxBody {
		data = data[:f.maxBody]
		out.truncated = true
	}
	out.body = string(data)
	return out, nil
}

// malformed reports why a 200 response cannot be used as a page, or "" when it can
func (f *Fetcher) malformed(resp response) string {
	switch {
	case resp.truncated:
		return fmt.Sprintf("body exceeds %d bytes", f.maxBody)
	case !strings.Contains(strings.ToLower(resp.contentType), "text/html"):
		return fmt.Sprintf("content type %q", resp.contentType)
	case len(resp.body) < f.minBody:
		return fmt.Sprintf("body too short (%d bytes)", len(resp.body))
	}
	return ""
}

func failed(attempts, status int, err error) models.FetchOutcome {
	return models.FetchOutcome{Kind: models.OutcomeFailed, StatusCode: status, Attempts: attempts, Err: err}
}
