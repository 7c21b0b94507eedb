package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL is the only field without a usable fallback
	if c.Scraper.BaseURL == "" {
		return nil, fmt.Errorf("%w: scraper.base_url is empty", utils.ErrConfigValidation)
	}
	root, err := siteRootFromBaseURL(c.Scraper.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrConfigValidation, err)
	}
	if c.Scraper.BaseURL[len(c.Scraper.BaseURL)-1] != '/' {
		warnings = append(warnings, "scraper.base_url has no trailing slash, appending one")
		c.Scraper.BaseURL += "/"
	}
	if c.Scraper.SiteRoot == "" {
		c.Scraper.SiteRoot = root
	}

	// MaxPages
	if c.Scraper.MaxPages <= 0 {
		warnings = append(warnings, "scraper.max_pages should be > 0, defaulting to 1")
		c.Scraper.MaxPages = 1
	}

	// DataDir / ProgressFile
	if c.Scraper.DataDir == "" {
		warnings = append(warnings, "scraper.data_dir is empty, defaulting to './data'")
		c.Scraper.DataDir = "./data"
	}
	if c.Scraper.ProgressFile == "" {
		c.Scraper.ProgressFile = "progress.json"
	}

	// Delay ranges
	warnings = append(warnings, validateRange("delays.between_requests", &c.Delays.BetweenRequests)...)
	warnings = append(warnings, validateRange("delays.between_hotels", &c.Delays.BetweenHotels)...)
	warnings = append(warnings, validateRange("delays.between_pages", &c.Delays.BetweenPages)...)

	if c.Delays.AfterBlock < 0 {
		warnings = append(warnings, "delays.after_block cannot be negative, setting to 0")
		c.Delays.AfterBlock = 0
	}
	if c.Delays.TimeoutBackoff < 0 {
		warnings = append(warnings, "delays.timeout_backoff cannot be negative, setting to 0")
		c.Delays.TimeoutBackoff = 0
	}
	if c.Delays.NetworkBackoff < 0 {
		warnings = append(warnings, "delays.network_backoff cannot be negative, setting to 0")
		c.Delays.NetworkBackoff = 0
	}
	if c.Delays.MaxRequestsPerMinute < 0 {
		warnings = append(warnings, "delays.max_requests_per_minute cannot be negative, disabling ceiling")
		c.Delays.MaxRequestsPerMinute = 0
	}

	// Limits
	if c.Limits.MaxRetries < 0 {
		warnings = append(warnings, "limits.max_retries cannot be negative, setting to 0")
		c.Limits.MaxRetries = 0
	}
	if c.Limits.MaxHotelsPerPage <= 0 {
		warnings = append(warnings, "limits.max_hotels_per_page should be > 0, defaulting to 20")
		c.Limits.MaxHotelsPerPage = 20
	}
	if c.Limits.MaxReviewsPerHotel <= 0 {
		warnings = append(warnings, "limits.max_reviews_per_hotel should be > 0, defaulting to 50")
		c.Limits.MaxReviewsPerHotel = 50
	}

	// Identities
	if len(c.Identities.UserAgents) == 0 {
		return warnings, fmt.Errorf("%w: identities.user_agents is empty", utils.ErrConfigValidation)
	}

	// Detection
	if c.Detection.MinBodyLength < 0 {
		warnings = append(warnings, "detection.min_body_length cannot be negative, setting to 0")
		c.Detection.MinBodyLength = 0
	}

	// Selectors
	if c.Selectors.ListPage.HotelContainer == "" || c.Selectors.ListPage.HotelLink == "" {
		return warnings, fmt.Errorf("%w: selectors.list_page needs hotel_container and hotel_link", utils.ErrConfigValidation)
	}
	if c.Selectors.HotelPage.ReviewItem == "" {
		return warnings, fmt.Errorf("%w: selectors.hotel_page needs review_item", utils.ErrConfigValidation)
	}

	// Checkpoint
	if c.Checkpoint.EveryHotels <= 0 {
		warnings = append(warnings, "checkpoint.every_hotels should be > 0, defaulting to 10")
		c.Checkpoint.EveryHotels = 10
	}
	if c.Checkpoint.MaxBackups < 0 {
		warnings = append(warnings, "checkpoint.max_backups cannot be negative, keeping all backups")
		c.Checkpoint.MaxBackups = 0
	}
	if !c.Checkpoint.DisableBackups && c.Checkpoint.BackupDir == "" {
		c.Checkpoint.BackupDir = "checkpoint_backups"
	}
	if c.Checkpoint.GCInterval <= 0 {
		c.Checkpoint.GCInterval = 10 * time.Minute
	}

	// Output
	if c.Output.CSVFile == "" && c.Output.JSONFile == "" && c.Output.SQLiteFile == "" {
		warnings = append(warnings, "no output file configured, results will only be kept in the checkpoint")
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateRange fixes negative bounds and swapped min/max
func validateRange(name string, r *DelayRange) (warnings []string) {
	if r.Min < 0 {
		warnings = append(warnings, fmt.Sprintf("%s.min cannot be negative, setting to 0", name))
		r.Min = 0
	}
	if r.Max < 0 {
		warnings = append(warnings, fmt.Sprintf("%s.max cannot be negative, setting to 0", name))
		r.Max = 0
	}
	if r.Min > r.Max {
		warnings = append(warnings, fmt.Sprintf("%s.min (%v) > max (%v), swapping", name, r.Min, r.Max))
		r.Min, r.Max = r.Max, r.Min
	}
	return warnings
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 10
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 20 << 20
	}
}

// ResolvePageRange clamps a requested [start, end] range to [1, MaxPages].
// end <= 0 means "up to the configured end page". A reversed range is swapped.
func (c *AppConfig) ResolvePageRange(start, end int) (int, int, []string) {
	var warnings []string
	if start <= 0 {
		start = c.Scraper.StartPage
	}
	if end <= 0 {
		end = c.Scraper.EndPage
	}
	if end <= 0 {
		end = c.Scraper.MaxPages
	}
	if start < 1 {
		warnings = append(warnings, fmt.Sprintf("start page %d < 1, using 1", start))
		start = 1
	}
	if end > c.Scraper.MaxPages {
		warnings = append(warnings, fmt.Sprintf("end page %d > max_pages, using %d", end, c.Scraper.MaxPages))
		end = c.Scraper.MaxPages
	}
	if start > end {
		warnings = append(warnings, fmt.Sprintf("start page %d > end page %d, swapping", start, end))
		start, end = end, start
	}
	return start, end, warnings
}

// ProgressPath returns the checkpoint file path
func (c *AppConfig) ProgressPath() string {
	return c.inDataDir(c.Scraper.ProgressFile)
}

// BackupPath returns the backup archive directory, or "" when backups are disabled
func (c *AppConfig) BackupPath() string {
	if c.Checkpoint.DisableBackups {
		return ""
	}
	return c.inDataDir(c.Checkpoint.BackupDir)
}

// StatsPath returns the run statistics file path, or "" when disabled
func (c *AppConfig) StatsPath() string {
	if c.Output.StatsFile == "" {
		return ""
	}
	return c.inDataDir(c.Output.StatsFile)
}

// OutputPath resolves a result file name against DataDir, or "" when name is empty
func (c *AppConfig) OutputPath(name string) string {
	if name == "" {
		return ""
	}
	return c.inDataDir(name)
}

func (c *AppConfig) inDataDir(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Scraper.DataDir, name)
}
