package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/state"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// FileCheckpoint stores the crawl state as one JSON file, replaced atomically
// on every save. When an archive is attached, every save is also archived.
type FileCheckpoint struct {
	path    string
	archive BackupArchive // optional
	log     *logrus.Entry
}

// NewFileCheckpoint creates a checkpoint store at path. archive may be nil.
func NewFileCheckpoint(path string, archive BackupArchive, log *logrus.Entry) *FileCheckpoint {
	return &FileCheckpoint{path: path, archive: archive, log: log}
}

// Path returns the checkpoint file path
func (c *FileCheckpoint) Path() string {
	return c.path
}

// Load implements CheckpointStore
func (c *FileCheckpoint) Load() (*state.CrawlState, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.log.Infof("No checkpoint at %s, starting fresh", c.path)
		return state.New(), nil
	}
	if err != nil {
		return state.New(), fmt.Errorf("%w: read checkpoint '%s': %w", utils.ErrFilesystem, c.path, err)
	}

	cp, err := ParseCheckpoint(data)
	if err != nil {
		return state.New(), fmt.Errorf("checkpoint '%s': %w", c.path, err)
	}

	s := state.FromCheckpoint(cp)
	stats := s.Stats()
	c.log.WithFields(logrus.Fields{
		"pages":   stats.PagesCompleted,
		"hotels":  stats.HotelsVisited,
		"reviews": stats.Results,
		"updated": cp.LastUpdated.Format(time.RFC3339),
	}).Info("Loaded checkpoint")
	return s, nil
}

// ParseCheckpoint decodes a serialized checkpoint
func ParseCheckpoint(data []byte) (state.Checkpoint, error) {
	var cp state.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return state.Checkpoint{}, fmt.Errorf("%w: %w", utils.ErrCheckpointCorrupt, err)
	}
	return cp, nil
}

// Save implements CheckpointStore. The previous file stays intact until the
// new one is fully on disk. Archive failures are logged and do not fail the save.
func (c *FileCheckpoint) Save(s *state.CrawlState) error {
	cp := s.Snapshot()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal checkpoint: %w", utils.ErrParsing, err)
	}
	if err := c.writeAtomic(data); err != nil {
		return err
	}

	if c.archive != nil {
		if err := c.archive.Put(data, cp.LastUpdated); err != nil {
			c.log.Warnf("Checkpoint saved but backup archive failed: %v", err)
		}
	}
	c.log.Debugf("Checkpoint saved: %d pages, %d hotels, %d reviews",
		len(cp.ProcessedPages), len(cp.ProcessedHotels), len(cp.Results))
	return nil
}

// Restore replaces the checkpoint file with a raw payload, typically an archived backup.
// The payload must parse as a checkpoint.
func (c *FileCheckpoint) Restore(payload []byte) error {
	if _, err := ParseCheckpoint(payload); err != nil {
		return err
	}
	return c.writeAtomic(payload)
}

func (c *FileCheckpoint) writeAtomic(data []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create checkpoint directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp checkpoint: %w", utils.ErrFilesystem, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp checkpoint: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp checkpoint: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp checkpoint: %w", utils.ErrFilesystem, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename checkpoint into place: %w", utils.ErrFilesystem, err)
	}
	return nil
}
