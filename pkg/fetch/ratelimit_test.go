package fetch

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
)

func newTestRateLimiter(delays config.DelaysConfig) *RateLimiter {
	return NewRateLimiter(delays, rand.New(rand.NewSource(42)), testLogger())
}

func TestDraw_StaysWithinRange(t *testing.T) {
	rl := newTestRateLimiter(config.DelaysConfig{
		BetweenRequests: config.DelayRange{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond},
		BetweenHotels:   config.DelayRange{Min: 1 * time.Second, Max: 1 * time.Second},
	})

	for i := 0; i < 200; i++ {
		d := rl.Draw(models.SpacingRequest)
		if d < 10*time.Millisecond || d > 20*time.Millisecond {
			t.Fatalf("Draw(inter_request) = %v, want within [10ms, 20ms]", d)
		}
	}
	if d := rl.Draw(models.SpacingHotel); d != time.Second {
		t.Errorf("Draw with min == max = %v, want 1s", d)
	}
	if d := rl.Draw(models.SpacingPage); d != 0 {
		t.Errorf("Draw for unset range = %v, want 0", d)
	}
}

func TestWait_SleepsForDrawnDuration(t *testing.T) {
	rl := newTestRateLimiter(config.DelaysConfig{
		BetweenPages: config.DelayRange{Min: 50 * time.Millisecond, Max: 60 * time.Millisecond},
	})

	start := time.Now()
	if err := rl.Wait(context.Background(), models.SpacingPage); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("Wait returned too quickly: %v, expected >= 50ms", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Wait took too long: %v", elapsed)
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	rl := newTestRateLimiter(config.DelaysConfig{
		BetweenHotels: config.DelayRange{Min: 5 * time.Second, Max: 5 * time.Second},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // pre-cancel

	start := time.Now()
	err := rl.Wait(ctx, models.SpacingHotel)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Wait with cancelled context returned nil error")
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("Wait with cancelled context took %v, expected <100ms", elapsed)
	}
}

func TestWait_RequestCeiling(t *testing.T) {
	// 600/min = one request every 100ms after the first
	rl := newTestRateLimiter(config.DelaysConfig{MaxRequestsPerMinute: 600})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background(), models.SpacingRequest); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 180*time.Millisecond {
		t.Errorf("three requests under a 600/min ceiling took %v, expected >= ~200ms", elapsed)
	}

	// The ceiling only applies to the inter-request class
	start = time.Now()
	_ = rl.Wait(context.Background(), models.SpacingHotel)
	if time.Since(start) > 50*time.Millisecond {
		t.Error("ceiling applied to inter-hotel spacing")
	}
}
