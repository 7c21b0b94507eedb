package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Columns is the export column order, shared by the CSV header and the SQLite table
var Columns = []string{
	"review_id", "hotel_id", "hotel_name", "hotel_url", "hotel_rating",
	"review_rating_text", "review_rating_numeric", "review_rating_stars",
	"review_title", "review_text", "review_teaser", "review_plus", "review_minus",
	"review_date", "review_date_iso", "review_date_raw", "review_year", "review_month", "review_day",
	"before_2020",
	"review_author", "review_author_location",
	"recommendations", "comments", "images_count", "images",
	"list_page", "scraped_at",
}

// row renders a record in Columns order. Missing ratings render as empty cells.
func row(r models.ReviewRecord) []string {
	numeric, stars := "", ""
	if r.RatingNumeric != nil {
		numeric = strconv.FormatFloat(*r.RatingNumeric, 'f', -1, 64)
	}
	if r.RatingStars != nil {
		stars = strconv.Itoa(*r.RatingStars)
	}
	return []string{
		r.ReviewID, r.HotelID, r.HotelName, r.HotelURL, r.HotelRating,
		r.RatingText, numeric, stars,
		r.Title, r.Text, r.Teaser, r.Plus, r.Minus,
		r.Date, r.DateISO, r.DateRaw, r.Year, r.Month, r.Day,
		strconv.FormatBool(r.Before2020),
		r.Author, r.AuthorLocation,
		strconv.Itoa(r.Recommendations), strconv.Itoa(r.Comments), strconv.Itoa(r.ImagesCount), r.Images,
		strconv.Itoa(r.ListPage), r.ScrapedAt.Format(time.RFC3339),
	}
}

// utf8BOM lets spreadsheet tools detect the encoding of Cyrillic text
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink writes a BOM-prefixed CSV with a header row
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, records []models.ReviewRecord) error {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("%w: csv header: %w", utils.ErrParsing, err)
	}
	for _, r := range records {
		if err := w.Write(row(r)); err != nil {
			return fmt.Errorf("%w: csv row %s: %w", utils.ErrParsing, r.ReviewID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: csv flush: %w", utils.ErrParsing, err)
	}
	return writeFileAtomic(s.path, buf.Bytes())
}

func (s *CSVSink) Close() error { return nil }

// JSONSink writes an indented JSON array of records
type JSONSink struct {
	path string
}

func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Write(_ context.Context, records []models.ReviewRecord) error {
	if records == nil {
		records = []models.ReviewRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal results: %w", utils.ErrParsing, err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *JSONSink) Close() error { return nil }
