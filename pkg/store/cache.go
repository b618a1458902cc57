package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Payloads are zstd-compressed at rest. EncodeAll/DecodeAll are safe for
// concurrent use on a shared encoder/decoder.
var (
	cacheEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	cacheDecoder, _ = zstd.NewReader(nil)
)

// CacheEntry is a cached upstream response.
type CacheEntry struct {
	ContentType string
	Payload     []byte
	ExpiresAt   time.Time
}

// CacheGet returns the entry stored under key, or ErrNotFound when it is
// missing or expired.
func (s *Store) CacheGet(ctx context.Context, key string) (CacheEntry, error) {
	var entry CacheEntry
	var compressed []byte
	var expires int64
	err := s.db.QueryRowContext(ctx,
		"SELECT content_type, payload, expires_at FROM response_cache WHERE key = ?", key).
		Scan(&entry.ContentType, &compressed, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, ErrNotFound
	}
	if err != nil {
		return entry, fmt.Errorf("querying cache: %w", err)
	}

	entry.ExpiresAt = time.Unix(0, expires)
	if !s.now().Before(entry.ExpiresAt) {
		return CacheEntry{}, ErrNotFound
	}

	entry.Payload, err = cacheDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("decompressing cache entry %s: %w", key, err)
	}
	return entry, nil
}

// CachePut stores payload under key for ttl.
func (s *Store) CachePut(ctx context.Context, key, contentType string, payload []byte, ttl time.Duration) error {
	compressed := cacheEncoder.EncodeAll(payload, nil)
	expires := s.now().Add(ttl).UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO response_cache (key, content_type, payload, size, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key, contentType, compressed, len(payload), expires)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	logger.Debugf("cached %s: %d bytes (%d compressed)", key, len(payload), len(compressed))
	return nil
}

// CacheDelete drops a single entry.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM response_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting cache entry %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM response_cache WHERE expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}
