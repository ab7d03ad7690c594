package edgar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// CacheEntry is one durably cached response, one file per URL.
// An entry is fresh iff now - FetchedAt < TTL. Stale entries are treated as
// absent and overwritten on refetch, never deleted, so the last-known-good
// body stays available for diagnostics.
type CacheEntry struct {
	URL        string    `json:"url"`
	FetchedAt  time.Time `json:"fetched_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Status     int       `json:"status"`
	Body       []byte    `json:"body"`
}

// Fresh reports whether the entry is still inside its TTL window at now.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < time.Duration(e.TTLSeconds)*time.Second
}

// cachePath keys cache files by the sha256 of the URL.
func cachePath(dir, url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+".json")
}

// readCacheEntry loads the cached response for url, if any. Corrupt entries
// are treated as absent.
func readCacheEntry(dir, url string) (*CacheEntry, bool) {
	raw, err := os.ReadFile(cachePath(dir, url))
	if err != nil {
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// writeCacheEntry persists entry, overwriting any stale one for the same URL.
func writeCacheEntry(dir string, entry *CacheEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "edgar: create cache dir %s", dir)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "edgar: marshal cache entry")
	}
	path := cachePath(dir, entry.URL)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrapf(err, "edgar: write cache entry %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "edgar: rename cache entry %s", path)
	}
	return nil
}
