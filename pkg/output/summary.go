package output

import (
	"encoding/json"
	"fmt"

	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// Summary describes an exported result set
type Summary struct {
	Count             int
	Rated             int     // Records with a numeric rating
	AverageRating     float64 // Mean over rated records, 0 when none
	Before2020        int
	PercentBefore2020 float64
}

// Summarize computes the result summary
func Summarize(records []models.ReviewRecord) Summary {
	s := Summary{Count: len(records)}
	var total float64
	for _, r := range records {
		if r.RatingNumeric != nil {
			total += *r.RatingNumeric
			s.Rated++
		}
		if r.Before2020 {
			s.Before2020++
		}
	}
	if s.Rated > 0 {
		s.AverageRating = total / float64(s.Rated)
	}
	if s.Count > 0 {
		s.PercentBefore2020 = float64(s.Before2020) / float64(s.Count) * 100
	}
	return s
}

// Apply copies the summary into the run statistics
func (s Summary) Apply(rs *models.RunSummary) {
	rs.ReviewsCollected = s.Count
	rs.AverageRating = s.AverageRating
	rs.ReviewsBefore2020 = s.Before2020
	rs.PercentBefore2020 = s.PercentBefore2020
}

// WriteStats writes the run statistics as indented JSON
func WriteStats(path string, rs models.RunSummary) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal stats: %w", utils.ErrParsing, err)
	}
	return writeFileAtomic(path, data)
}
