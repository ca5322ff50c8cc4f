package kv

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/placeloop/go-common/logger"
	"github.com/shirou/gopsutil/v4/disk"
	"go.etcd.io/bbolt"
)

const boltBucket = "entries"

// lowDiskThreshold is the free-space floor below which opening logs a warning.
const lowDiskThreshold = 64 << 20 // 64 MiB

// Bolt is a Store backed by a single-file bbolt database.
type Bolt struct {
	db     *bbolt.DB
	logger logger.Logger
}

var _ Store = (*Bolt)(nil)

// OpenBolt opens (creating if necessary) a bbolt-backed store at path.
func OpenBolt(path string, log logger.Logger) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("kv: bolt path is required")
	}
	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: create bucket: %w", err)
	}
	b := &Bolt{db: db, logger: log}
	b.checkDiskSpace(cleanPath)
	return b, nil
}

func (b *Bolt) checkDiskSpace(path string) {
	usage, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return
	}
	if usage.Free < lowDiskThreshold {
		b.logger.Warn("low disk space for cache store: %d bytes free at %s", usage.Free, path)
	} else {
		b.logger.Debug("cache store opened at %s (%d bytes free)", path, usage.Free)
	}
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if val != nil {
			out = make([]byte, len(val))
			copy(out, val)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv: bolt get: %w", err)
	}
	return out, out != nil, nil
}

func (b *Bolt) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv: bolt set: %w", err)
	}
	return nil
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("kv: bolt delete: %w", err)
	}
	return nil
}

func (b *Bolt) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(boltBucket)).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: bolt keys: %w", err)
	}
	return keys, nil
}

func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
