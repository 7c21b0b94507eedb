package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// AppConfig holds the whole configuration of a crawl run
type AppConfig struct {
	Scraper            ScraperConfig    `yaml:"scraper"`
	Delays             DelaysConfig     `yaml:"delays"`
	Limits             LimitsConfig     `yaml:"limits"`
	Identities         IdentityConfig   `yaml:"identities"`
	Detection          DetectionConfig  `yaml:"detection"`
	Selectors          SelectorsConfig  `yaml:"selectors"`
	Checkpoint         CheckpointConfig `yaml:"checkpoint"`
	Output             OutputConfig     `yaml:"output"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// ScraperConfig describes the target site and the page range
type ScraperConfig struct {
	BaseURL      string `yaml:"base_url"`          // Listing page 1; page n is BaseURL + "n/"
	SiteRoot     string `yaml:"site_root"`         // Used to resolve relative hotel links; derived from BaseURL if empty
	MaxPages     int    `yaml:"max_pages"`         // Last listing page that exists on the site
	StartPage    int    `yaml:"start_page"`        // Default first page of a run (CLI -start overrides)
	EndPage      int    `yaml:"end_page"`          // Default last page of a run (0 = MaxPages)
	DataDir      string `yaml:"data_dir"`          // Checkpoint, backups, stats
	ProgressFile string `yaml:"progress_file"`     // Checkpoint file name, relative to DataDir unless absolute
	LogFile      string `yaml:"log_file,omitempty"` // Optional log file in addition to stdout
}

// DelayRange is a uniform [Min, Max] spacing window
type DelayRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// DelaysConfig holds all spacing and backoff durations
type DelaysConfig struct {
	BetweenRequests      DelayRange    `yaml:"between_requests"`
	BetweenHotels        DelayRange    `yaml:"between_hotels"`
	BetweenPages         DelayRange    `yaml:"between_pages"`
	AfterBlock           time.Duration `yaml:"after_block"`     // Backoff base for BLOCKED verdicts
	TimeoutBackoff       time.Duration `yaml:"timeout_backoff"` // Backoff base for transport timeouts
	NetworkBackoff       time.Duration `yaml:"network_backoff"` // Backoff base for other transport errors
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute,omitempty"`
}

// LimitsConfig caps retries and per-page/per-hotel work
type LimitsConfig struct {
	MaxRetries         int `yaml:"max_retries"`
	MaxHotelsPerPage   int `yaml:"max_hotels_per_page"`
	MaxReviewsPerHotel int `yaml:"max_reviews_per_hotel"`
}

// IdentityConfig is the pool of client identities. Every user agent is
// combined with the shared header and cookie templates.
type IdentityConfig struct {
	UserAgents []string          `yaml:"user_agents"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Cookies    map[string]string `yaml:"cookies,omitempty"`
}

// DetectionConfig tunes the block detector
type DetectionConfig struct {
	BlockStatusCodes []int    `yaml:"block_status_codes"`
	Signatures       []string `yaml:"signatures"`
	ContentMarker    string   `yaml:"content_marker"`
	MinBodyLength    int      `yaml:"min_body_length"`
}

// ListSelectors are CSS selectors for the hotel listing page
type ListSelectors struct {
	HotelContainer string `yaml:"hotel_container"`
	HotelLink      string `yaml:"hotel_link"`
	ReviewsCount   string `yaml:"reviews_count"`
	Rating         string `yaml:"rating"`
}

// HotelSelectors are CSS selectors for a hotel's review page
type HotelSelectors struct {
	ReviewItem            string `yaml:"review_item"`
	ReviewRating          string `yaml:"review_rating"`
	ReviewDate            string `yaml:"review_date"`
	ReviewDateMeta        string `yaml:"review_date_meta"`
	ReviewTitle           string `yaml:"review_title"`
	ReviewTeaser          string `yaml:"review_teaser"`
	ReviewPlus            string `yaml:"review_plus"`
	ReviewMinus           string `yaml:"review_minus"`
	ReviewAuthor          string `yaml:"review_author"`
	ReviewAuthorLocation  string `yaml:"review_author_location"`
	ReviewRecommendations string `yaml:"review_recommendations"`
	ReviewComments        string `yaml:"review_comments"`
	ReviewImages          string `yaml:"review_images"`
}

// SelectorsConfig groups listing and hotel page selectors
type SelectorsConfig struct {
	ListPage  ListSelectors  `yaml:"list_page"`
	HotelPage HotelSelectors `yaml:"hotel_page"`
}

// CheckpointConfig controls checkpoint cadence and the backup archive
type CheckpointConfig struct {
	EveryHotels    int           `yaml:"every_hotels"`             // Persist after every N processed hotels
	DisableBackups bool          `yaml:"disable_backups,omitempty"` // Skip the Badger backup archive
	BackupDir      string        `yaml:"backup_dir,omitempty"`     // Relative to DataDir unless absolute
	MaxBackups     int           `yaml:"max_backups,omitempty"`    // 0 = keep all
	GCInterval     time.Duration `yaml:"gc_interval,omitempty"`
}

// OutputConfig names the result files; an empty name disables that sink
type OutputConfig struct {
	CSVFile    string `yaml:"csv_file"`
	JSONFile   string `yaml:"json_file"`
	SQLiteFile string `yaml:"sqlite_file,omitempty"`
	StatsFile  string `yaml:"stats_file"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Per-request transport timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxBodyBytes          int64         `yaml:"max_body_bytes,omitempty"`          // Decoded 200 bodies larger than this are rejected
	ProxyURL              string        `yaml:"proxy_url,omitempty"`               // Empty = use environment proxy settings
}

// Default returns the built-in configuration for the otzovik hotel catalogue
func Default() *AppConfig {
	return &AppConfig{
		Scraper: ScraperConfig{
			BaseURL:      "https://otzovik.com/travel/hotels/",
			MaxPages:     1462,
			StartPage:    1,
			DataDir:      "data",
			ProgressFile: "progress.json",
			LogFile:      "logs/review_scraper.log",
		},
		Delays: DelaysConfig{
			BetweenRequests: DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			BetweenHotels:   DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			BetweenPages:    DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			AfterBlock:      10 * time.Second,
			TimeoutBackoff:  2 * time.Second,
			NetworkBackoff:  1 * time.Second,
		},
		Limits: LimitsConfig{
			MaxRetries:         3,
			MaxHotelsPerPage:   20,
			MaxReviewsPerHotel: 50,
		},
		Identities: IdentityConfig{
			UserAgents: []string{
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
			},
			Headers: map[string]string{
				"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
				"Accept-Language":           "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
				"Accept-Encoding":           "gzip, deflate, br",
				"Upgrade-Insecure-Requests": "1",
				"Sec-Fetch-Dest":            "document",
				"Sec-Fetch-Mode":            "navigate",
				"Sec-Fetch-Site":            "none",
				"Sec-Fetch-User":            "?1",
				"Cache-Control":             "max-age=0",
				"DNT":                       "1",
				"Referer":                   "https://otzovik.com/",
			},
			Cookies: map[string]string{
				"otz_view":   "list",
				"otz_region": "77",
			},
		},
		Detection: DetectionConfig{
			BlockStatusCodes: []int{403, 429, 503},
			Signatures: []string{
				"captcha", "recaptcha", "cloudflare", "доступ ограничен",
				"your access has been blocked", "blocked", "403 forbidden",
				"too many requests", "rate limit exceeded",
			},
			ContentMarker: "product-list",
			MinBodyLength: 1000,
		},
		Selectors: SelectorsConfig{
			ListPage: ListSelectors{
				HotelContainer: "div.product-list div.item",
				HotelLink:      "a.product-name",
				ReviewsCount:   "a.reviews-counter",
				Rating:         "div.rating-score-2 span:nth-of-type(2)",
			},
			HotelPage: HotelSelectors{
				ReviewItem:            "div.review-list-2 div.item",
				ReviewRating:          "div.rating-score span",
				ReviewDate:            "div.review-postdate",
				ReviewDateMeta:        `meta[itemprop="datePublished"]`,
				ReviewTitle:           "h3.review-title a",
				ReviewTeaser:          "div.review-teaser",
				ReviewPlus:            "div.review-plus",
				ReviewMinus:           "div.review-minus",
				ReviewAuthor:          "div.user-info a.user-login span",
				ReviewAuthorLocation:  "div.user-info div:nth-of-type(3)",
				ReviewRecommendations: "a.review-yes span",
				ReviewComments:        "a.review-comments span",
				ReviewImages:          "div.review-thumbs img",
			},
		},
		Checkpoint: CheckpointConfig{
			EveryHotels: 10,
			BackupDir:   "checkpoint_backups",
			GCInterval:  10 * time.Minute,
		},
		Output: OutputConfig{
			CSVFile:   "otzovik_reviews.csv",
			JSONFile:  "otzovik_reviews.json",
			StatsFile: "scraping_stats.json",
		},
	}
}

// Load reads a YAML config file on top of the defaults.
// A missing file is not an error: defaults are used and a warning returned.
func Load(path string) (*AppConfig, []string, error) {
	cfg := Default()
	var warnings []string

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		warnings = append(warnings, fmt.Sprintf("config file %s not found, using defaults", path))
	case err != nil:
		return nil, nil, fmt.Errorf("%w: read config '%s': %w", utils.ErrFilesystem, path, err)
	case len(strings.TrimSpace(string(data))) == 0:
		warnings = append(warnings, fmt.Sprintf("config file %s is empty, using defaults", path))
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("%w: parse config '%s': %w", utils.ErrConfigValidation, path, err)
		}
	}

	validationWarnings, err := cfg.Validate()
	warnings = append(warnings, validationWarnings...)
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// ListPageURL returns the URL of listing page n (page 1 is the base URL)
func (c ScraperConfig) ListPageURL(page int) string {
	if page <= 1 {
		return c.BaseURL
	}
	return c.BaseURL + strconv.Itoa(page) + "/"
}

// DelaysSnapshot renders the spacing configuration in seconds for the checkpoint file
func (c *AppConfig) DelaysSnapshot() map[string]float64 {
	d := c.Delays
	return map[string]float64{
		"delay_min":                d.BetweenRequests.Min.Seconds(),
		"delay_max":                d.BetweenRequests.Max.Seconds(),
		"delay_between_hotels_min": d.BetweenHotels.Min.Seconds(),
		"delay_between_hotels_max": d.BetweenHotels.Max.Seconds(),
		"delay_between_pages_min":  d.BetweenPages.Min.Seconds(),
		"delay_between_pages_max":  d.BetweenPages.Max.Seconds(),
		"delay_after_block":        d.AfterBlock.Seconds(),
	}
}

// siteRootFromBaseURL returns scheme://host of the base URL
func siteRootFromBaseURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base_url %q must be absolute", base)
	}
	return u.Scheme + "://" + u.Host, nil
}
