package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/review-scraper/pkg/state"
)

// CheckpointStore persists the crawl state between runs
type CheckpointStore interface {
	// Load returns the persisted state, or an empty state when none exists.
	// A corrupt checkpoint yields an empty state and an error wrapping utils.ErrCheckpointCorrupt.
	Load() (*state.CrawlState, error)

	// Save writes the full state atomically
	Save(s *state.CrawlState) error
}

// BackupInfo describes one archived checkpoint
type BackupInfo struct {
	Key       string
	CreatedAt time.Time
	Size      int
}

// BackupArchive keeps immutable timestamped copies of past checkpoints
type BackupArchive interface {
	// Put stores payload as the backup taken at the given time
	Put(payload []byte, at time.Time) error

	// List returns all backups, oldest first
	List() ([]BackupInfo, error)

	// Latest returns the newest backup and its payload
	Latest() (BackupInfo, []byte, error)

	// RunGC runs periodic garbage collection until ctx is done
	RunGC(ctx context.Context, interval time.Duration) error

	// Close cleanly closes the archive
	Close() error
}
