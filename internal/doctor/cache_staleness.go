package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/leeovery/gittask/internal/cache"
	"github.com/leeovery/gittask/internal/store"
)

// CacheStalenessCheck compares the fingerprint stored in the stats cache
// with one computed from the record files. Stats rebuilds a stale cache on
// its own, so a mismatch is a warning.
type CacheStalenessCheck struct{}

func (c *CacheStalenessCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "Cache"
	records, err := getRecords(ctx, storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	var sources []cache.Source
	for _, r := range records {
		if r.FileID == 0 {
			continue
		}
		if r.Task == nil || r.Task.ID != r.FileID {
			// Unreadable records are reported by the syntax and name checks.
			return passed(name)
		}
		sources = append(sources, cache.Source{Name: r.Name, Data: r.Data})
	}

	cachePath := filepath.Join(storeDir, store.CacheFile)
	if _, err := os.Stat(cachePath); errors.Is(err, os.ErrNotExist) {
		return passed(name)
	}

	stored, err := cache.StoredFingerprint(cachePath)
	if err != nil {
		return []CheckResult{failed(name, SeverityWarning, "cache is unreadable: "+err.Error(), suggestRebuild)}
	}
	if stored != cache.Fingerprint(sources) {
		return []CheckResult{failed(name, SeverityWarning, "cache is stale: fingerprint does not match the records", suggestRebuild)}
	}
	return passed(name)
}
