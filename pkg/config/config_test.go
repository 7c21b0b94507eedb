package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, containsWarning(warnings, "not found"))
	assert.Equal(t, Default().Scraper.BaseURL, cfg.Scraper.BaseURL)
}

func TestLoad_OverridesOnlyGivenFields(t *testing.T) {
	path := writeConfig(t, `
scraper:
  base_url: "https://example.com/hotels/"
  max_pages: 5
delays:
  between_requests:
    min: 1s
    max: 2s
  after_block: 30s
limits:
  max_retries: 5
selectors:
  list_page:
    rating: "span.score"
output:
  sqlite_file: "reviews.db"
`)

	cfg, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "https://example.com/hotels/", cfg.Scraper.BaseURL)
	assert.Equal(t, "https://example.com", cfg.Scraper.SiteRoot)
	assert.Equal(t, 5, cfg.Scraper.MaxPages)
	assert.Equal(t, time.Second, cfg.Delays.BetweenRequests.Min)
	assert.Equal(t, 2*time.Second, cfg.Delays.BetweenRequests.Max)
	assert.Equal(t, 30*time.Second, cfg.Delays.AfterBlock)
	assert.Equal(t, 5, cfg.Limits.MaxRetries)
	assert.Equal(t, "reviews.db", cfg.Output.SQLiteFile)

	// Untouched fields keep their defaults
	assert.Equal(t, "span.score", cfg.Selectors.ListPage.Rating)
	assert.Equal(t, "div.product-list div.item", cfg.Selectors.ListPage.HotelContainer)
	assert.Equal(t, 3*time.Second, cfg.Delays.BetweenHotels.Min)
	assert.Len(t, cfg.Identities.UserAgents, 3)
	assert.Equal(t, "otzovik_reviews.csv", cfg.Output.CSVFile)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "scraper: [unclosed")

	_, _, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
identities:
  user_agents: []
`)

	_, _, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestScraperConfig_ListPageURL(t *testing.T) {
	sc := ScraperConfig{BaseURL: "https://otzovik.com/travel/hotels/"}

	assert.Equal(t, "https://otzovik.com/travel/hotels/", sc.ListPageURL(1))
	assert.Equal(t, "https://otzovik.com/travel/hotels/2/", sc.ListPageURL(2))
	assert.Equal(t, "https://otzovik.com/travel/hotels/1462/", sc.ListPageURL(1462))
}

func TestAppConfig_DelaysSnapshot(t *testing.T) {
	cfg := Default()
	snap := cfg.DelaysSnapshot()

	assert.Equal(t, 3.0, snap["delay_min"])
	assert.Equal(t, 5.0, snap["delay_max"])
	assert.Equal(t, 10.0, snap["delay_after_block"])
	assert.Len(t, snap, 7)
}
