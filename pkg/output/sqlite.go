package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const reviewsSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	review_id TEXT PRIMARY KEY,
	hotel_id TEXT NOT NULL,
	hotel_name TEXT,
	hotel_url TEXT,
	hotel_rating TEXT,
	review_rating_text TEXT,
	review_rating_numeric REAL,
	review_rating_stars INTEGER,
	review_title TEXT,
	review_text TEXT,
	review_teaser TEXT,
	review_plus TEXT,
	review_minus TEXT,
	review_date TEXT,
	review_date_iso TEXT,
	review_date_raw TEXT,
	review_year TEXT,
	review_month TEXT,
	review_day TEXT,
	before_2020 INTEGER,
	review_author TEXT,
	review_author_location TEXT,
	recommendations INTEGER,
	comments INTEGER,
	images_count INTEGER,
	images TEXT,
	list_page INTEGER,
	scraped_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_reviews_hotel ON reviews(hotel_id);
CREATE INDEX IF NOT EXISTS idx_reviews_year ON reviews(review_year);
`

// SQLiteSink upserts records into a `reviews` table keyed by review_id
type SQLiteSink struct {
	db     *sql.DB
	path   string
	upsert string
}

// OpenSQLiteSink opens or creates the database at path and ensures the schema
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %w", utils.ErrFilesystem, err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrDatabase, path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %w", utils.ErrDatabase, err)
	}
	if _, err := db.ExecContext(ctx, reviewsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", utils.ErrDatabase, err)
	}
	return &SQLiteSink{db: db, path: path, upsert: buildUpsert()}, nil
}

func buildUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	updates := make([]string, 0, len(Columns)-1)
	for _, c := range Columns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO reviews (%s) VALUES (%s) ON CONFLICT(review_id) DO UPDATE SET %s",
		strings.Join(Columns, ", "), placeholders, strings.Join(updates, ", "))
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Write upserts all records in one transaction
func (s *SQLiteSink) Write(ctx context.Context, records []models.ReviewRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", utils.ErrDatabase, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, s.upsert)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %w", utils.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			return fmt.Errorf("%w: upsert %s: %w", utils.ErrDatabase, r.ReviewID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", utils.ErrDatabase, err)
	}
	return nil
}

// args matches Columns order
func args(r models.ReviewRecord) []any {
	var numeric, stars any
	if r.RatingNumeric != nil {
		numeric = *r.RatingNumeric
	}
	if r.RatingStars != nil {
		stars = *r.RatingStars
	}
	return []any{
		r.ReviewID, r.HotelID, r.HotelName, r.HotelURL, r.HotelRating,
		r.RatingText, numeric, stars,
		r.Title, r.Text, r.Teaser, r.Plus, r.Minus,
		r.Date, r.DateISO, r.DateRaw, r.Year, r.Month, r.Day,
		r.Before2020,
		r.Author, r.AuthorLocation,
		r.Recommendations, r.Comments, r.ImagesCount, r.Images,
		r.ListPage, r.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

// Count returns the number of stored reviews
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count reviews: %w", utils.ErrDatabase, err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
