package state

import (
	"sort"
	"sync"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/models"
)

// ParserVersion is stamped into every checkpoint
const ParserVersion = "3.2"

// Checkpoint is the persisted form of a CrawlState
type Checkpoint struct {
	ProcessedHotels []string              `json:"processed_hotels"`
	ProcessedPages  []int                 `json:"processed_pages"`
	Results         []models.ReviewRecord `json:"results"`
	TotalRequests   int64                 `json:"total_requests"`
	BlockedCount    int64                 `json:"blocked_count"`
	LastUpdated     time.Time             `json:"last_updated"`
	DelaysConfig    map[string]float64    `json:"delays_config,omitempty"`
	ParserVersion   string                `json:"parser_version"`
	RunID           string                `json:"run_id,omitempty"`
}

// CrawlState holds everything a resumed crawl needs: processed sets,
// collected results and request counters. Safe for concurrent use.
type CrawlState struct {
	mu            sync.RWMutex
	pages         map[int]struct{}
	hotels        map[string]struct{}
	results       []models.ReviewRecord
	totalRequests int64
	blockedCount  int64
	runID         string
	delays        map[string]float64
}

// New returns an empty CrawlState
func New() *CrawlState {
	return &CrawlState{
		pages:  make(map[int]struct{}),
		hotels: make(map[string]struct{}),
	}
}

// FromCheckpoint rebuilds a CrawlState from its persisted form
func FromCheckpoint(cp Checkpoint) *CrawlState {
	s := New()
	for _, p := range cp.ProcessedPages {
		s.pages[p] = struct{}{}
	}
	for _, h := range cp.ProcessedHotels {
		s.hotels[h] = struct{}{}
	}
	s.results = append([]models.ReviewRecord(nil), cp.Results...)
	s.totalRequests = cp.TotalRequests
	s.blockedCount = cp.BlockedCount
	s.runID = cp.RunID
	s.delays = cp.DelaysConfig
	return s
}

// Snapshot returns the persisted form with sets sorted
func (s *CrawlState) Snapshot() Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := Checkpoint{
		ProcessedHotels: make([]string, 0, len(s.hotels)),
		ProcessedPages:  make([]int, 0, len(s.pages)),
		Results:         append([]models.ReviewRecord{}, s.results...),
		TotalRequests:   s.totalRequests,
		BlockedCount:    s.blockedCount,
		LastUpdated:     time.Now(),
		ParserVersion:   ParserVersion,
		RunID:           s.runID,
	}
	for h := range s.hotels {
		cp.ProcessedHotels = append(cp.ProcessedHotels, h)
	}
	for p := range s.pages {
		cp.ProcessedPages = append(cp.ProcessedPages, p)
	}
	sort.Strings(cp.ProcessedHotels)
	sort.Ints(cp.ProcessedPages)
	if s.delays != nil {
		cp.DelaysConfig = make(map[string]float64, len(s.delays))
		for k, v := range s.delays {
			cp.DelaysConfig[k] = v
		}
	}
	return cp
}

// SetRunInfo records the current run id and spacing config for the next snapshot
func (s *CrawlState) SetRunInfo(runID string, delays map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.delays = delays
}

// MarkPageComplete adds page to the processed set. Returns false if it was already there.
func (s *CrawlState) MarkPageComplete(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[page]; ok {
		return false
	}
	s.pages[page] = struct{}{}
	return true
}

// MarkHotelVisited adds url to the processed set. Returns false if it was already there.
func (s *CrawlState) MarkHotelVisited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[url]; ok {
		return false
	}
	s.hotels[url] = struct{}{}
	return true
}

// IsPageComplete reports whether page is in the processed set
func (s *CrawlState) IsPageComplete(page int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pages[page]
	return ok
}

// IsHotelVisited reports whether url is in the processed set
func (s *CrawlState) IsHotelVisited(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hotels[url]
	return ok
}

// AppendResults appends records in order. Duplicates are kept until Deduplicated.
func (s *CrawlState) AppendResults(records ...models.ReviewRecord) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, records...)
}

// Results returns a copy of the raw result buffer
func (s *CrawlState) Results() []models.ReviewRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ReviewRecord(nil), s.results...)
}

// Deduplicated returns the results with one record per review id.
// The last-seen record wins and sits at the position of its last occurrence.
// Records without an id are never merged.
func (s *CrawlState) Deduplicated() []models.ReviewRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Deduplicate(s.results)
}

// Deduplicate applies keep-last deduplication to records
func Deduplicate(records []models.ReviewRecord) []models.ReviewRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		if r.ReviewID != "" {
			last[r.ReviewID] = i
		}
	}
	out := make([]models.ReviewRecord, 0, len(last))
	for i, r := range records {
		if r.ReviewID == "" || last[r.ReviewID] == i {
			out = append(out, r)
		}
	}
	return out
}

// RecordRequest counts one HTTP attempt
func (s *CrawlState) RecordRequest() {
	s.mu.Lock()
	s.totalRequests++
	s.mu.Unlock()
}

// RecordBlocked counts one BLOCKED verdict
func (s *CrawlState) RecordBlocked() {
	s.mu.Lock()
	s.blockedCount++
	s.mu.Unlock()
}

// Stats is a point-in-time view of the state's sizes and counters
type Stats struct {
	PagesCompleted int
	HotelsVisited  int
	Results        int
	TotalRequests  int64
	BlockedCount   int64
}

// Stats returns current sizes and counters
func (s *CrawlState) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		PagesCompleted: len(s.pages),
		HotelsVisited:  len(s.hotels),
		Results:        len(s.results),
		TotalRequests:  s.totalRequests,
		BlockedCount:   s.blockedCount,
	}
}
