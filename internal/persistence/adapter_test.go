package persistence

import (
	"testing"
	"time"

	"danmakuproxy/internal/config"
)

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	cfg := config.NewRegistry().Load() // no DatabaseURL/RedisAddr -> memory tier only
	return New(cfg)
}

func TestMemoryTierSaveLoad(t *testing.T) {
	a := testAdapter(t)

	a.Save("animes", []byte(`[{"animeId":1}]`))
	// Save is fire-and-forget; give the goroutine a moment to land.
	time.Sleep(20 * time.Millisecond)

	data, ok, err := a.Load("animes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after save")
	}
	if string(data) != `[{"animeId":1}]` {
		t.Errorf("unexpected value: %s", data)
	}
}

func TestSaveIsHashGuarded(t *testing.T) {
	a := testAdapter(t)
	a.Save("searchCache", []byte(`{"a":1}`))
	time.Sleep(10 * time.Millisecond)

	sum1 := a.hashes["searchCache"]
	a.Save("searchCache", []byte(`{"a":1}`)) // identical value, should be a no-op
	sum2 := a.hashes["searchCache"]

	if sum1 != sum2 {
		t.Error("expected hash to be unchanged for identical repeated write")
	}
}

func TestOverlayRoundTrip(t *testing.T) {
	a := testAdapter(t)

	if err := a.SaveOverlay(map[string]string{"TOKEN": "abc123"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overlay, err := a.LoadOverlay()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overlay["TOKEN"] != "abc123" {
		t.Errorf("expected persisted overlay to round-trip, got %v", overlay)
	}
}
