package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/prepd/prepd/internal/log"
)

const fetchTimeout = 15 * time.Second

// FetchResult is the outcome of fetching one feed.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// cacheMeta records the validators from the last successful fetch of a URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Fetcher downloads ICS feeds with ETag/Last-Modified conditional requests
// and keeps the last good body on disk per URL. A feed that stops responding
// keeps serving its cached copy.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir, typically
// ~/.prepd/ics-cache.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: fetchTimeout},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches every source. Individual failures are logged and
// collected; the result slice only carries sources that produced a body.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, err)
			log.Error("feed fetch failed", err, "feed", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single feed, sending If-None-Match/If-Modified-Since
// from the cache and falling back to the cached body when the network or the
// server fails.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("feed URL is empty")
	}

	dir := filepath.Join(f.cacheDir, urlKey(src.URL))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return FetchResult{}, err
	}

	meta := readMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			log.Info("feed unreachable, serving cached copy", "feed", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}
		f.writeCache(dir, cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		}, body, src)
		log.Debug("feed fetched", "feed", src.ID, "bytes", len(body))
		return FetchResult{Source: src, Body: body, FromCache: false}, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("server sent 304 but no cached body exists")
		}
		log.Debug("feed unchanged, serving cached copy", "feed", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			log.Info("feed returned error status, serving cached copy",
				"feed", src.ID, "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, errors.New("feed fetch: " + resp.Status)
	}
}

// urlKey maps a feed URL to a stable cache directory name.
func urlKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

func readMeta(dir string) cacheMeta {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return cacheMeta{}
	}
	if json.Unmarshal(data, &meta) != nil {
		return cacheMeta{}
	}
	return meta
}

// writeCache persists body before meta so validators never point at a
// missing body. Cache write failures are logged, not fatal; the fresh body
// is already in hand.
func (f *Fetcher) writeCache(dir string, meta cacheMeta, body []byte, src Source) {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0600); err != nil {
		log.Error("feed cache write failed", err, "feed", src.ID)
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		log.Error("feed cache meta encode failed", err, "feed", src.ID)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0600); err != nil {
		log.Error("feed cache meta write failed", err, "feed", src.ID)
	}
}

// redactURL trims a feed URL to scheme and host. Private feed URLs embed
// access tokens in the path or query, so those never reach the log.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
