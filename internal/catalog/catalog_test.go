package catalog

import (
	"testing"

	"danmakuproxy/internal/domain"
)

func newTestCatalog(maxAnimes int) *Catalog {
	return New(Options{MaxAnimes: maxAnimes, MaxLastSelectMap: 1000, SearchCacheMinutes: 1, CommentCacheMinutes: 1})
}

func TestAddEpisodeIsIDStable(t *testing.T) {
	c := newTestCatalog(100)

	first := c.AddEpisode("https://example.com/ep1", "first title")
	second := c.AddEpisode("https://example.com/ep1", "second title")

	if first.ID != second.ID {
		t.Fatalf("expected stable id, got %d and %d", first.ID, second.ID)
	}
	if second.Title != "first title" {
		t.Errorf("expected title from first call to be preserved, got %q", second.Title)
	}

	url, ok := c.FindURLByID(first.ID)
	if !ok || url != "https://example.com/ep1" {
		t.Errorf("FindURLByID mismatch: %q %v", url, ok)
	}
}

func TestAddAnimeMoveToTailOnDuplicate(t *testing.T) {
	c := newTestCatalog(100)

	a := domain.Anime{AnimeID: 1, Links: []domain.Episode{{URL: "u1", Title: "t1"}}}
	b := domain.Anime{AnimeID: 2, Links: []domain.Episode{{URL: "u2", Title: "t2"}}}
	c.AddAnime(a)
	c.AddAnime(b)
	c.AddAnime(a) // duplicate, should move to tail

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 animes after duplicate add, got %d", len(snap))
	}
	if snap[len(snap)-1].AnimeID != 1 {
		t.Errorf("expected duplicate anime moved to tail, got order %+v", snap)
	}
	// episodes must not be re-added: the url still resolves to exactly one id
	ep := c.AddEpisode("u1", "unused")
	if ep.Title != "t1" {
		t.Errorf("expected episode from original add preserved, got %q", ep.Title)
	}
}

func TestEvictionRemovesEpisodeIndex(t *testing.T) {
	const maxAnimes = 5
	c := newTestCatalog(maxAnimes)

	for i := int32(1); i <= maxAnimes+3; i++ {
		c.AddAnime(domain.Anime{
			AnimeID: i,
			Links:   []domain.Episode{{URL: "u" + string(rune('a'+i)), Title: "t"}},
		})
	}

	snap := c.Snapshot()
	if len(snap) != maxAnimes {
		t.Fatalf("expected len(animes) == %d, got %d", maxAnimes, len(snap))
	}

	// The earliest three animes' episode urls must be gone from the index.
	if _, ok := c.FindURLByID(episodeCounterStart); ok {
		t.Error("expected evicted anime's episode to be removed from episode index")
	}
}

func TestSearchCacheHitReturnsEqualResult(t *testing.T) {
	c := newTestCatalog(100)
	want := []domain.Anime{{AnimeID: 42, AnimeTitle: "Arcane(2021)【drama】from tencent"}}
	c.SetSearchCache("arcane", want)

	got, ok := c.GetSearchCache("arcane")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].AnimeID != want[0].AnimeID || got[0].AnimeTitle != want[0].AnimeTitle {
		t.Errorf("expected cached result to equal stored value, got %+v", got)
	}
}

func TestRateLimitExactCount(t *testing.T) {
	c := newTestCatalog(100)
	const limit = 3
	rejected := 0
	for i := 0; i < 5; i++ {
		if !c.CheckRateLimit("1.2.3.4", limit) {
			rejected++
		}
	}
	if rejected != 2 {
		t.Errorf("expected exactly 2 rejections out of 5 requests with limit 3, got %d", rejected)
	}
}
