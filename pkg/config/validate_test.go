package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := Default()
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "https://otzovik.com", cfg.Scraper.SiteRoot)
	assert.Equal(t, 10, cfg.Checkpoint.EveryHotels)
	assert.Equal(t, 3, cfg.Limits.MaxRetries)

	// HTTP client defaults
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, int64(20<<20), cfg.HTTPClientSettings.MaxBodyBytes)
}

func TestAppConfig_Validate_FatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*AppConfig)
	}{
		{"empty base_url", func(c *AppConfig) { c.Scraper.BaseURL = "" }},
		{"relative base_url", func(c *AppConfig) { c.Scraper.BaseURL = "/travel/hotels/" }},
		{"no user agents", func(c *AppConfig) { c.Identities.UserAgents = nil }},
		{"no hotel container selector", func(c *AppConfig) { c.Selectors.ListPage.HotelContainer = "" }},
		{"no review item selector", func(c *AppConfig) { c.Selectors.HotelPage.ReviewItem = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.setup(cfg)

			_, err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
		})
	}
}

func TestAppConfig_Validate_FixableValues(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*AppConfig)
		wantWarning string
		check       func(*testing.T, *AppConfig)
	}{
		{
			name:        "base_url without trailing slash",
			setup:       func(c *AppConfig) { c.Scraper.BaseURL = "https://example.com/hotels" },
			wantWarning: "no trailing slash",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, "https://example.com/hotels/", c.Scraper.BaseURL)
			},
		},
		{
			name: "swapped request delays",
			setup: func(c *AppConfig) {
				c.Delays.BetweenRequests = DelayRange{Min: 5 * time.Second, Max: 2 * time.Second}
			},
			wantWarning: "delays.between_requests.min",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 2*time.Second, c.Delays.BetweenRequests.Min)
				assert.Equal(t, 5*time.Second, c.Delays.BetweenRequests.Max)
			},
		},
		{
			name:        "negative hotel delay",
			setup:       func(c *AppConfig) { c.Delays.BetweenHotels.Min = -time.Second },
			wantWarning: "delays.between_hotels.min cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, time.Duration(0), c.Delays.BetweenHotels.Min)
			},
		},
		{
			name:        "negative max_retries",
			setup:       func(c *AppConfig) { c.Limits.MaxRetries = -1 },
			wantWarning: "limits.max_retries cannot be negative",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 0, c.Limits.MaxRetries)
			},
		},
		{
			name:        "zero checkpoint cadence",
			setup:       func(c *AppConfig) { c.Checkpoint.EveryHotels = 0 },
			wantWarning: "checkpoint.every_hotels",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 10, c.Checkpoint.EveryHotels)
			},
		},
		{
			name:        "negative rpm ceiling",
			setup:       func(c *AppConfig) { c.Delays.MaxRequestsPerMinute = -5 },
			wantWarning: "max_requests_per_minute",
			check: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, 0, c.Delays.MaxRequestsPerMinute)
			},
		},
		{
			name: "no outputs",
			setup: func(c *AppConfig) {
				c.Output.CSVFile = ""
				c.Output.JSONFile = ""
			},
			wantWarning: "no output file configured",
			check:       func(t *testing.T, c *AppConfig) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.setup(cfg)

			warnings, err := cfg.Validate()

			require.NoError(t, err)
			assert.True(t, containsWarning(warnings, tt.wantWarning),
				"expected warning containing %q, got %v", tt.wantWarning, warnings)
			tt.check(t, cfg)
		})
	}
}

func TestAppConfig_ResolvePageRange(t *testing.T) {
	tests := []struct {
		name                 string
		start, end           int
		wantStart, wantEnd   int
		wantWarningSubstring string
	}{
		{"explicit range", 3, 5, 3, 5, ""},
		{"end defaults to max", 2, 0, 2, 10, ""},
		{"end clamped", 1, 50, 1, 10, "max_pages"},
		{"reversed range swapped", 7, 4, 4, 7, "swapping"},
		{"start defaults to configured", 0, 2, 1, 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Scraper.MaxPages = 10
			_, err := cfg.Validate()
			require.NoError(t, err)

			start, end, warnings := cfg.ResolvePageRange(tt.start, tt.end)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			if tt.wantWarningSubstring != "" {
				assert.True(t, containsWarning(warnings, tt.wantWarningSubstring), "warnings: %v", warnings)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestAppConfig_Paths(t *testing.T) {
	cfg := Default()
	cfg.Scraper.DataDir = "out"
	_, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("out", "progress.json"), cfg.ProgressPath())
	assert.Equal(t, filepath.Join("out", "checkpoint_backups"), cfg.BackupPath())
	assert.Equal(t, filepath.Join("out", "scraping_stats.json"), cfg.StatsPath())

	abs := filepath.Join(t.TempDir(), "p.json")
	cfg.Scraper.ProgressFile = abs
	assert.Equal(t, abs, cfg.ProgressPath())

	assert.Equal(t, filepath.Join("out", "otzovik_reviews.csv"), cfg.OutputPath(cfg.Output.CSVFile))
	assert.Equal(t, "", cfg.OutputPath(cfg.Output.SQLiteFile))

	cfg.Checkpoint.DisableBackups = true
	assert.Equal(t, "", cfg.BackupPath())
}

// containsWarning checks if any warning contains the substring
func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
