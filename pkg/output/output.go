package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Sink receives the complete deduplicated result set on every export.
// File sinks rewrite their file; the SQLite sink upserts by review_id.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []models.ReviewRecord) error
	Close() error
}

// Exporter owns the configured sinks for a run
type Exporter struct {
	sinks []Sink
	log   *logrus.Entry
}

// NewExporter opens every sink with a configured file name.
// A sink that fails to open is logged and skipped.
func NewExporter(cfg *config.AppConfig, log *logrus.Entry) *Exporter {
	e := &Exporter{log: log}

	if path := cfg.OutputPath(cfg.Output.CSVFile); path != "" {
		log.Infof("CSV output enabled. Output file: %s", path)
		e.sinks = append(e.sinks, NewCSVSink(path))
	} else {
		log.Info("CSV output is disabled.")
	}

	if path := cfg.OutputPath(cfg.Output.JSONFile); path != "" {
		log.Infof("JSON output enabled. Output file: %s", path)
		e.sinks = append(e.sinks, NewJSONSink(path))
	} else {
		log.Info("JSON output is disabled.")
	}

	if path := cfg.OutputPath(cfg.Output.SQLiteFile); path != "" {
		sink, err := OpenSQLiteSink(context.Background(), path)
		if err != nil {
			log.Errorf("Failed to open SQLite output '%s': %v. SQLite output will be disabled.", path, err)
		} else {
			log.Infof("SQLite output enabled. Database: %s", path)
			e.sinks = append(e.sinks, sink)
		}
	}
	return e
}

// NewExporterWithSinks builds an exporter over explicit sinks
func NewExporterWithSinks(log *logrus.Entry, sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks, log: log}
}

// Export writes records to every sink and returns their summary.
// All sinks are attempted; the returned error joins the individual failures.
func (e *Exporter) Export(ctx context.Context, records []models.ReviewRecord) (Summary, error) {
	summary := Summarize(records)
	if len(records) == 0 {
		e.log.Warn("No reviews to export")
		return summary, nil
	}

	var errs []error
	for _, s := range e.sinks {
		if err := s.Write(ctx, records); err != nil {
			e.log.WithField("sink", s.Name()).Errorf("Export failed: %v", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		e.log.WithField("sink", s.Name()).Debugf("Exported %d reviews", len(records))
	}

	e.log.WithFields(logrus.Fields{
		"reviews":        summary.Count,
		"average_rating": fmt.Sprintf("%.2f", summary.AverageRating),
		"before_2020":    summary.Before2020,
	}).Info("Results exported")
	return summary, errors.Join(errs...)
}

// Close closes all sinks
func (e *Exporter) Close() error {
	var errs []error
	for _, s := range e.sinks {
		if err := s.Close(); err != nil {
			e.log.Errorf("Error closing %s output: %v", s.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// writeFileAtomic replaces path with data through a synced temp file
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create output directory '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file for '%s': %w", utils.ErrFilesystem, path, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
