package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheEntriesFollowsTrackedLen(t *testing.T) {
	n := 3
	TrackCacheEntries(func() int { return n })

	if got := testutil.ToFloat64(CacheEntries); got != 3 {
		t.Errorf("expected 3 cache entries, got %f", got)
	}

	n = 5
	if got := testutil.ToFloat64(CacheEntries); got != 5 {
		t.Errorf("expected gauge to follow the cache to 5, got %f", got)
	}
}
