package cache

import (
	"testing"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
)

func TestPoolStatsCacheRoundTripAndInvalidate(t *testing.T) {
	c := NewPoolStatsCache()
	if _, ok := c.Get(promptdomain.VariantScripted); ok {
		t.Fatalf("expected empty cache")
	}

	c.Set(promptdomain.VariantScripted, promptdomain.PoolStats{TotalPrompts: 4})
	got, ok := c.Get(promptdomain.VariantScripted)
	if !ok || got.TotalPrompts != 4 {
		t.Fatalf("expected cached stats, got %+v (ok=%v)", got, ok)
	}
	if _, ok := c.Get(promptdomain.VariantFreeform); ok {
		t.Fatalf("expected variants to be cached separately")
	}

	c.Invalidate(promptdomain.VariantScripted)
	if _, ok := c.Get(promptdomain.VariantScripted); ok {
		t.Fatalf("expected entry to be invalidated")
	}
}

func TestTTLCacheExpires(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("k", 1, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
}
