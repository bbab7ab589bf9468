package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (s *countingSource) Fetch(context.Context) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

func newTestCache(t *testing.T, src Source, now *time.Time) *Cache {
	t.Helper()
	c := NewCache(filepath.Join(t.TempDir(), ".mcphub", CacheFileName), src)
	c.now = func() time.Time { return *now }
	return c
}

func TestCache_FetchesAndStores(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{data: []byte(sampleDoc)}
	c := newTestCache(t, src, &now)

	reg, err := c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, reg.Servers, 3)
	assert.FileExists(t, c.Path())

	// Within TTL the cache is served.
	now = now.Add(30 * time.Minute)
	reg, err = c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, reg.Servers, 3)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_RefetchesAfterTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{data: []byte(sampleDoc)}
	c := newTestCache(t, src, &now)

	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)

	now = now.Add(DefaultTTL + time.Second)
	_, err = c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCache_ForceSkipsFreshCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{data: []byte(sampleDoc)}
	c := newTestCache(t, src, &now)

	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)
	_, err = c.Load(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCache_StaleFallback(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{data: []byte(sampleDoc)}
	c := newTestCache(t, src, &now)

	_, err := c.Load(context.Background(), false)
	require.NoError(t, err)

	src.err = errors.New("network down")
	now = now.Add(48 * time.Hour)
	reg, err := c.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, reg.Servers, 3)
}

func TestCache_NoCacheAndFetchFails(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{err: errors.New("network down")}
	c := newTestCache(t, src, &now)

	_, err := c.Load(context.Background(), false)
	assert.ErrorContains(t, err, "network down")
}

func TestCache_InvalidDocumentNotCached(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := &countingSource{data: []byte("nothing: here\n")}
	c := newTestCache(t, src, &now)

	_, err := c.Load(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoServers)
	_, statErr := os.Stat(c.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/servers.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	data, err := (&HTTPSource{URL: srv.URL + "/servers.yaml"}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(data))

	_, err = (&HTTPSource{URL: srv.URL + "/missing"}).Fetch(context.Background())
	assert.ErrorContains(t, err, "status 404")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0644))

	reg, err := NewCache(filepath.Join(t.TempDir(), CacheFileName), FileSource(path)).Load(context.Background(), false)
	require.NoError(t, err)
	_, ok := reg.Lookup("github-actions")
	assert.True(t, ok)
}
