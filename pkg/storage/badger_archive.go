package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/log"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const backupKeyPrefix = "backup:" // Followed by a zero-padded unix-nano timestamp

// ErrNoBackups is returned by Latest when the archive is empty
var ErrNoBackups = errors.New("no checkpoint backups")

// BadgerArchive implements BackupArchive using BadgerDB.
// Keys sort chronologically, so iteration order is backup order.
type BadgerArchive struct {
	db         *badger.DB
	maxBackups int // 0 = unlimited
	log        *logrus.Entry
}

// NewBadgerArchive opens (or creates) the archive at dbPath
func NewBadgerArchive(dbPath string, maxBackups int, logger *logrus.Entry) (*BadgerArchive, error) {
	logger.Infof("Opening checkpoint backup archive at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create archive directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &BadgerArchive{db: db, maxBackups: maxBackups, log: logger}, nil
}

func backupKey(at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d", backupKeyPrefix, at.UnixNano()))
}

func parseBackupKey(key []byte) (time.Time, error) {
	nanos, err := strconv.ParseInt(strings.TrimPrefix(string(key), backupKeyPrefix), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed backup key %q: %w", utils.ErrParsing, key, err)
	}
	return time.Unix(0, nanos), nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts
func (a *BadgerArchive) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := a.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		a.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Put implements BackupArchive. Two backups at the same instant get distinct keys.
func (a *BadgerArchive) Put(payload []byte, at time.Time) error {
	if a.db == nil || a.db.IsClosed() {
		return fmt.Errorf("%w: archive not open", utils.ErrDatabase)
	}

	err := a.dbUpdate(func(txn *badger.Txn) error {
		key := backupKey(at)
		for {
			_, errGet := txn.Get(key)
			if errors.Is(errGet, badger.ErrKeyNotFound) {
				break
			}
			if errGet != nil {
				return errGet
			}
			at = at.Add(time.Nanosecond)
			key = backupKey(at)
		}
		return txn.SetEntry(badger.NewEntry(key, payload))
	})
	if err != nil {
		return fmt.Errorf("%w: storing backup: %w", utils.ErrDatabase, err)
	}

	if a.maxBackups > 0 {
		if err := a.prune(); err != nil {
			a.log.Warnf("Failed to prune old backups: %v", err)
		}
	}
	return nil
}

// prune deletes the oldest backups beyond maxBackups
func (a *BadgerArchive) prune() error {
	return a.dbUpdate(func(txn *badger.Txn) error {
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(backupKeyPrefix)
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		excess := len(keys) - a.maxBackups
		for i := 0; i < excess; i++ {
			if err := txn.Delete(keys[i]); err != nil {
				return err
			}
		}
		if excess > 0 {
			a.log.Debugf("Pruned %d old checkpoint backups", excess)
		}
		return nil
	})
}

// List implements BackupArchive
func (a *BadgerArchive) List() ([]BackupInfo, error) {
	var out []BackupInfo
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(backupKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			created, err := parseBackupKey(item.Key())
			if err != nil {
				a.log.Warn(err)
				continue
			}
			out = append(out, BackupInfo{
				Key:       string(item.KeyCopy(nil)),
				CreatedAt: created,
				Size:      int(item.ValueSize()),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing backups: %w", utils.ErrDatabase, err)
	}
	return out, nil
}

// Latest implements BackupArchive. Returns ErrNoBackups when the archive is empty.
func (a *BadgerArchive) Latest() (BackupInfo, []byte, error) {
	var info BackupInfo
	var payload []byte
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		prefix := []byte(backupKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append([]byte(backupKeyPrefix), 0xff))
		if !it.ValidForPrefix(prefix) {
			return badger.ErrKeyNotFound
		}
		item := it.Item()
		created, err := parseBackupKey(item.Key())
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		info = BackupInfo{Key: string(item.KeyCopy(nil)), CreatedAt: created, Size: len(payload)}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return BackupInfo{}, nil, ErrNoBackups
	}
	if err != nil {
		return BackupInfo{}, nil, fmt.Errorf("%w: reading latest backup: %w", utils.ErrDatabase, err)
	}
	return info, payload, nil
}

// RunGC runs BadgerDB's value log garbage collection every interval until ctx is done
func (a *BadgerArchive) RunGC(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if a.db == nil || a.db.IsClosed() {
				a.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				if err = a.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				a.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			a.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return nil
		}
	}
}

// Close implements BackupArchive
func (a *BadgerArchive) Close() error {
	if a.db != nil && !a.db.IsClosed() {
		if err := a.db.Close(); err != nil {
			a.log.Errorf("Error closing backup archive: %v", err)
			return err
		}
		a.log.Debug("Backup archive closed.")
	}
	return nil
}
