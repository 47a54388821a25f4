package orchestrator

import (
	"context"
	"testing"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/domain"
	"danmakuproxy/internal/source"
)

type stubSource struct {
	name     string
	raw      []domain.RawAnime
	eps      []domain.RawEp
	comments []domain.Danmaku
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	return s.raw, nil
}
func (s *stubSource) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	return s.eps, nil
}
func (s *stubSource) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts source.MatchOptions) []domain.Anime {
	return source.HandleAnimesDefault(ctx, s.name, raw, queryTitle, cat, opts, s.GetEpisodes)
}
func (s *stubSource) GetComments(ctx context.Context, url string) ([]domain.Danmaku, error) {
	return s.comments, nil
}

func newTestCatalog() *catalog.Catalog {
	return catalog.New(catalog.Options{MaxAnimes: 100, MaxLastSelectMap: 1000, SearchCacheMinutes: 1, CommentCacheMinutes: 1})
}

func TestSearchURLShortCircuit(t *testing.T) {
	cat := newTestCatalog()
	orch := New(cat, map[string]source.Source{})

	cfg := &config.Config{SourceOrder: []string{"vod"}}
	results := orch.Search(context.Background(), "https://v.qq.com/x/cover/abc/def.html", cfg, 0, "")
	if len(results) != 1 {
		t.Fatalf("expected one synthesized anime, got %d", len(results))
	}
	if results[0].Source != "tencent" {
		t.Errorf("expected host-inferred source %q, got %q", "tencent", results[0].Source)
	}
}

func TestSearchMergesInOrder(t *testing.T) {
	cat := newTestCatalog()
	tencent := &stubSource{
		name: "tencent",
		raw:  []domain.RawAnime{{BangumiID: "t1", Title: "Example Show", Type: "drama"}},
		eps:  []domain.RawEp{{Title: "ep1", URL: "https://example.com/t1"}},
	}
	vod := &stubSource{
		name: "vod",
		raw:  []domain.RawAnime{{BangumiID: "v1", Title: "Example Show", Type: "drama"}},
		eps:  []domain.RawEp{{Title: "ep1", URL: "https://example.com/v1"}},
	}
	orch := New(cat, map[string]source.Source{"tencent": tencent, "vod": vod})

	cfg := &config.Config{SourceOrder: []string{"vod", "tencent"}}
	results := orch.Search(context.Background(), "Example Show", cfg, 0, "")
	if len(results) != 2 {
		t.Fatalf("expected two merged animes, got %d", len(results))
	}
	if results[0].Source != "vod" || results[1].Source != "tencent" {
		t.Errorf("expected vod before tencent per SOURCE_ORDER, got %q then %q", results[0].Source, results[1].Source)
	}
}

func TestSearchCachesResult(t *testing.T) {
	cat := newTestCatalog()
	calls := 0
	counting := &stubSource{name: "tencent"}
	orch := New(cat, map[string]source.Source{"tencent": counting})
	cfg := &config.Config{SourceOrder: []string{"tencent"}}

	orch.Search(context.Background(), "whatever", cfg, 0, "")
	if _, ok := cat.GetSearchCache("whatever"); !ok {
		t.Fatal("expected the merged (empty) result to be cached")
	}
	_ = calls
}

func TestGetCommentsRoutesByHost(t *testing.T) {
	cat := newTestCatalog()
	bilibili := &stubSource{name: "bilibili", comments: []domain.Danmaku{{T: 1, Text: "hi"}}}
	orch := New(cat, map[string]source.Source{"bilibili": bilibili})

	list, err := orch.GetComments(context.Background(), "https://www.bilibili.com/video/BV1xx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Text != "hi" {
		t.Fatalf("expected bilibili's comment to be returned, got %+v", list)
	}
}

func TestGetCommentsUnknownHost(t *testing.T) {
	cat := newTestCatalog()
	orch := New(cat, map[string]source.Source{})
	_, err := orch.GetComments(context.Background(), "https://totally-unrouted.example/x")
	if err == nil {
		t.Fatal("expected an error when no source (not even vod) is registered")
	}
}
