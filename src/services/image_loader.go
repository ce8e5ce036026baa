package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/patrickmn/go-cache"
)

const (
	referenceImageTTL     = 30 * time.Minute
	referenceImageCleanup = time.Hour
)

// cachedImageLoader reads strategy reference images back from the object
// store. Cards are reused across audits, so images are kept in memory for a while.
type cachedImageLoader struct {
	store storage.ObjectStore
	cache *cache.Cache
}

func NewCachedImageLoader(store storage.ObjectStore) audit.ImageLoader {
	return &cachedImageLoader{store: store, cache: cache.New(referenceImageTTL, referenceImageCleanup)}
}

func (l *cachedImageLoader) LoadImage(ctx context.Context, url string) (audit.Image, error) {
	if img, found := l.cache.Get(url); found {
		return img.(audit.Image), nil
	}

	objectPath, ok := l.store.PathFromURL(url)
	if !ok {
		return audit.Image{}, fmt.Errorf("%w: %s", storage.ErrInvalidPath, url)
	}
	rc, contentType, err := l.store.Open(ctx, objectPath)
	if err != nil {
		return audit.Image{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return audit.Image{}, fmt.Errorf("failed to read %s: %w", objectPath, err)
	}
	img := audit.Image{Data: data, MIMEType: contentType}
	l.cache.Set(url, img, cache.DefaultExpiration)
	logger.FromContext(ctx).Debug("Reference image cached", "path", objectPath, "bytes", len(data))
	return img, nil
}

// Forget drops a cached image after its object is removed.
func (l *cachedImageLoader) Forget(url string) {
	l.cache.Delete(url)
}
