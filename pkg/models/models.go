package models

import "time"

// HotelDescriptor is one hotel entry found on a listing page
type HotelDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ReviewCount int    `json:"reviews_count"`
	Rating      string `json:"hotel_rating"` // Overall hotel rating as displayed on the listing
	ListPage    int    `json:"list_page"`    // Listing page number the hotel was found on
	ListURL     string `json:"list_url"`     // Listing page URL, used as referer for the hotel fetch
}

// ReviewRecord is a single review extracted from a hotel page.
// JSON field names are the checkpoint and export column names.
type ReviewRecord struct {
	ReviewID    string `json:"review_id"`
	HotelID     string `json:"hotel_id"`
	HotelName   string `json:"hotel_name"`
	HotelURL    string `json:"hotel_url"`
	HotelRating string `json:"hotel_rating"`

	RatingText    string   `json:"review_rating_text"`
	RatingNumeric *float64 `json:"review_rating_numeric"` // nil when the page shows no parsable rating
	RatingStars   *int     `json:"review_rating_stars"`

	Title  string `json:"review_title"`
	Text   string `json:"review_text"` // Title, teaser, pros and cons joined into one block
	Teaser string `json:"review_teaser"`
	Plus   string `json:"review_plus"`
	Minus  string `json:"review_minus"`

	Date       string `json:"review_date"` // DD.MM.YYYY when parsable, raw text otherwise
	DateISO    string `json:"review_date_iso"`
	DateRaw    string `json:"review_date_raw"`
	Year       string `json:"review_year"`
	Month      string `json:"review_month"`
	Day        string `json:"review_day"`
	Before2020 bool   `json:"before_2020"`

	Author         string `json:"review_author"`
	AuthorLocation string `json:"review_author_location"`

	Recommendations int    `json:"recommendations"`
	Comments        int    `json:"comments"`
	ImagesCount     int    `json:"images_count"`
	Images          string `json:"images"` // "; "-joined image URLs

	ListPage  int       `json:"list_page"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// FetchOutcome is the terminal result of one logical fetch.
// Exactly one of the kinds applies; Body is only set for OutcomeBody.
type FetchOutcome struct {
	Kind       OutcomeKind
	Body       string
	StatusCode int
	Attempts   int   // Number of HTTP attempts made, including the first
	Err        error // Categorized cause for OutcomeFailed and OutcomeNotFound
}

// OK reports whether the outcome carries a usable body
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeBody
}

// RunSummary holds the end-of-run statistics written next to the results.
type RunSummary struct {
	RunID               string    `json:"run_id"`
	SuccessfulPages     int       `json:"successful_pages"`
	TotalPagesAttempted int       `json:"total_pages_attempted"`
	HotelsProcessed     int       `json:"hotels_processed"`
	ReviewsCollected    int       `json:"reviews_collected"`
	TotalRequests       int64     `json:"total_requests"`
	BlockedCount        int64     `json:"blocked_count"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	ElapsedSeconds      float64   `json:"elapsed_seconds"`
	StartPage           int       `json:"start_page"`
	EndPage             int       `json:"end_page"`
	Interrupted         bool      `json:"interrupted"`

	DelaysConfig map[string]float64 `json:"delays_config,omitempty"`

	AverageRating     float64 `json:"average_rating,omitempty"`
	ReviewsBefore2020 int     `json:"reviews_before_2020,omitempty"`
	PercentBefore2020 float64 `json:"percent_before_2020,omitempty"`
}
