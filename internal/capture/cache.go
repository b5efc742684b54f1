package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
)

// CacheKey derives the file cache key for a url/viewport pair.
func CacheKey(rawURL string, viewport analysis.Viewport) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%dx%d", rawURL, viewport.Width, viewport.Height)))
	return hex.EncodeToString(sum[:16])
}

// Cache fronts a Capturer with a TTL file cache: a screenshot younger than
// the TTL is served from disk without touching the browser.
type Cache struct {
	inner  analysis.Capturer
	dir    string
	ttl    time.Duration
	clock  analysis.Clock
	logger *zap.Logger
}

// NewCache wraps inner with a file cache rooted at dir.
func NewCache(inner analysis.Capturer, dir string, ttl time.Duration, clock analysis.Clock, logger *zap.Logger) *Cache {
	return &Cache{
		inner:  inner,
		dir:    dir,
		ttl:    ttl,
		clock:  clock,
		logger: logger.Named("capture.cache"),
	}
}

// Capture serves from the cache when fresh, otherwise delegates to the
// wrapped capturer. Cache probing errors fall through to a live capture.
func (c *Cache) Capture(ctx context.Context, rawURL string, viewport analysis.Viewport) (analysis.ScreenshotArtifact, error) {
	path := filepath.Join(c.dir, CacheKey(rawURL, viewport)+".png")
	if info, err := os.Stat(path); err == nil {
		age := c.clock.Now().Sub(info.ModTime())
		if age >= 0 && age < c.ttl && info.Size() > 0 {
			c.logger.Debug("cache hit",
				zap.String("url", rawURL),
				zap.String("viewport", viewport.Name),
				zap.Duration("age", age))
			return analysis.ScreenshotArtifact{
				Viewport:   viewport,
				LocalPath:  path,
				CapturedAt: info.ModTime().UTC(),
				FromCache:  true,
			}, nil
		}
	}

	art, err := c.inner.Capture(ctx, rawURL, viewport)
	if err != nil {
		return analysis.ScreenshotArtifact{}, err
	}
	return art, nil
}

// Evict removes cache entries older than the TTL. Safe to call periodically.
func (c *Cache) Evict() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	now := c.clock.Now()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= c.ttl {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
				c.logger.Warn("evict cache entry", zap.String("name", e.Name()), zap.Error(err))
			}
		}
	}
	return nil
}
