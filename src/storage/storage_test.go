package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	p := GenerateObjectPath(42, CategoryCharts, ".PNG", now)
	assert.Regexp(t, regexp.MustCompile(`^42/charts/1700000000123-[0-9a-f]{8}\.png$`), p)

	assert.True(t, strings.HasSuffix(GenerateObjectPath(1, CategoryCalendars, "", now), ".jpg"))
}

func TestPathFromURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/storage/chart-images/1/charts/a.jpg":           "1/charts/a.jpg",
		"https://x.supabase.co/storage/v1/object/public/chart-images/1/b.jpg": "1/b.jpg",
		"https://cdn.example.com/chart-images/public/1/c.jpg?token=abc":       "1/c.jpg",
	}
	for in, want := range cases {
		got, ok := PathFromURL(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := PathFromURL("https://example.com/other/x.jpg")
	assert.False(t, ok)
	_, ok = PathFromURL("https://example.com/chart-images/")
	assert.False(t, ok)
}

func TestExtensionForContentType(t *testing.T) {
	assert.Equal(t, "png", ExtensionForContentType("image/png"))
	assert.Equal(t, "webp", ExtensionForContentType("image/webp; q=1"))
	assert.Equal(t, "jpg", ExtensionForContentType("image/jpeg"))
	assert.Equal(t, "jpg", ExtensionForContentType(""))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)

	url, err := store.Upload(ctx, "7/charts/1-abc.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/chart-images/7/charts/1-abc.jpg", url)

	objectPath, ok := store.PathFromURL(url)
	require.True(t, ok)

	rc, contentType, err := store.Open(ctx, objectPath)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "image/jpeg", contentType)

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/chart-images/7/charts/1-abc.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	dir := httptest.NewRecorder()
	store.Handler().ServeHTTP(dir, httptest.NewRequest(http.MethodGet, "/storage/chart-images/7/charts/", nil))
	assert.Equal(t, http.StatusNotFound, dir.Code)

	require.NoError(t, store.Remove(ctx, objectPath))
	require.NoError(t, store.Remove(ctx, objectPath), "removing a missing object is not an error")
	_, _, err = store.Open(ctx, objectPath)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost")
	require.NoError(t, err)
	_, err = store.Upload(context.Background(), "../escape.jpg", strings.NewReader("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
