package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChartImagesBucket holds every user-uploaded image.
const ChartImagesBucket = "chart-images"

// Object categories inside the bucket.
const (
	CategoryCharts         = "charts"
	CategoryCalendars      = "calendars"
	CategoryStrategies     = "strategies"
	CategoryManualEvidence = "manual-trade-charts"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidPath    = errors.New("invalid object path")
)

// ObjectStore is a single public bucket of images.
type ObjectStore interface {
	// Upload stores r under objectPath and returns its public URL.
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
	// Open reads an object back.
	Open(ctx context.Context, objectPath string) (io.ReadCloser, string, error)
	// Remove deletes objects by path. Missing objects are ignored.
	Remove(ctx context.Context, objectPaths ...string) error
	// PublicURL is the URL clients use to fetch objectPath.
	PublicURL(objectPath string) string
	// PathFromURL recovers the object path from a public URL.
	PathFromURL(publicURL string) (string, bool)
	// Handler serves the bucket over HTTP.
	Handler() http.Handler
}

// GenerateObjectPath builds "<user>/<category>/<unixmillis>-<random>.<ext>".
func GenerateObjectPath(userID int64, category, ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d/%s/%d-%s.%s", userID, category, now.UnixMilli(), suffix, ext)
}

// ExtensionForContentType maps an image MIME type to a file extension.
func ExtensionForContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// PathFromURL extracts the object path following "/chart-images/public/" or
// "/chart-images/" in a public URL.
func PathFromURL(publicURL string) (string, bool) {
	u := publicURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, marker := range []string{"/" + ChartImagesBucket + "/public/", "/" + ChartImagesBucket + "/"} {
		if i := strings.Index(u, marker); i >= 0 {
			p := u[i+len(marker):]
			if p == "" {
				return "", false
			}
			return p, true
		}
	}
	return "", false
}
