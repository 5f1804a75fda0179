package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const cacheFileExtension = ".wav.zst"

// DiskCache keeps zstd-compressed copies of downloaded segments so a
// display restarted while the server is unreachable can still announce.
type DiskCache struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mu      sync.Mutex
}

// NewDiskCache creates the cache directory if needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &DiskCache{dir: dir, encoder: encoder, decoder: decoder}, nil
}

func (c *DiskCache) path(segment string) string {
	return filepath.Join(c.dir, segment+cacheFileExtension)
}

// Get returns the cached bytes of a segment. Corrupt entries are removed.
func (c *DiskCache) Get(segment string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	compressed, err := os.ReadFile(c.path(segment))
	if err != nil {
		return nil, false
	}

	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		_ = os.Remove(c.path(segment))
		return nil, false
	}
	return data, true
}

// Put stores a segment, replacing any previous copy atomically.
func (c *DiskCache) Put(segment string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compressed := c.encoder.EncodeAll(data, nil)

	tmp, err := os.CreateTemp(c.dir, segment+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(segment))
}

// Close releases the zstd decoder.
func (c *DiskCache) Close() {
	c.decoder.Close()
}

var _ Source = (*CachingSource)(nil)

// CachingSource writes every segment it fetches through to a DiskCache and
// answers from the cache when the wrapped source is unreachable.
type CachingSource struct {
	source Source
	cache  *DiskCache
	logger *slog.Logger
}

// NewCachingSource wraps source with cache.
func NewCachingSource(source Source, cache *DiskCache, logger *slog.Logger) *CachingSource {
	return &CachingSource{source: source, cache: cache, logger: logger.With("component", "segment_cache")}
}

func (s *CachingSource) Fetch(ctx context.Context, segment string) ([]byte, error) {
	data, err := s.source.Fetch(ctx, segment)
	if err == nil {
		if putErr := s.cache.Put(segment, data); putErr != nil {
			s.logger.Warn("failed to cache segment", "segment", segment, "error", putErr)
		}
		return data, nil
	}

	if errors.Is(err, ErrSegmentNotFound) || ctx.Err() != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(segment); ok {
		s.logger.Warn("segment source unavailable, using cached copy", "segment", segment, "error", err)
		return cached, nil
	}
	return nil, err
}
