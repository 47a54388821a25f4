package match

import (
	"context"
	"strconv"
	"testing"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/domain"
	"danmakuproxy/internal/orchestrator"
	"danmakuproxy/internal/source"
)

// fakeSource stubs a single platform for the match-engine scenarios in
// spec/8: it returns one fixed RawAnime/episode list per Search call and
// delegates normalization to the shared HandleAnimesDefault, exactly like
// a real GenericAPISource-backed adapter would.
type fakeSource struct {
	name    string
	raw     []domain.RawAnime
	epsByID map[string][]domain.RawEp
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	return f.raw, nil
}

func (f *fakeSource) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	return f.epsByID[bangumiID], nil
}

func (f *fakeSource) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts source.MatchOptions) []domain.Anime {
	return source.HandleAnimesDefault(ctx, f.name, raw, queryTitle, cat, opts, f.GetEpisodes)
}

func (f *fakeSource) GetComments(ctx context.Context, url string) ([]domain.Danmaku, error) {
	return nil, nil
}

func tenEpisodes() []domain.RawEp {
	eps := make([]domain.RawEp, 10)
	for i := range eps {
		n := strconv.Itoa(i + 1)
		eps[i] = domain.RawEp{Title: "第" + n + "集", URL: "https://example.com/e" + n}
	}
	return eps
}

func TestMatchSeriesSelectsEpisode(t *testing.T) {
	cat := catalog.New(catalog.Options{MaxAnimes: 100, MaxLastSelectMap: 1000, SearchCacheMinutes: 1, CommentCacheMinutes: 1})
	fs := &fakeSource{
		name: "tencent",
		raw: []domain.RawAnime{{
			BangumiID: "cover/abc",
			Title:     "亲爱的X 2",
			Year:      "2022",
			Type:      "drama",
		}},
		epsByID: map[string][]domain.RawEp{"cover/abc": tenEpisodes()},
	}
	orch := orchestrator.New(cat, map[string]source.Source{"tencent": fs})
	engine := New(orch, cat, nil, nil)

	cfg := &config.Config{SourceOrder: []string{"tencent"}}
	result := engine.Match(context.Background(), cfg, "亲爱的X.S02E07.2160p.WEB-DL.mkv")

	if !result.IsMatched {
		t.Fatal("expected a match")
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected one match, got %d", len(result.Matches))
	}
	got := result.Matches[0]
	if got.AnimeTitle == "" {
		t.Error("expected a non-empty anime title")
	}
	wantURL := "https://example.com/e7"
	url, ok := cat.FindURLByID(got.EpisodeID)
	if !ok || url != wantURL {
		t.Errorf("expected episode 7's url %q, got %q (ok=%v)", wantURL, url, ok)
	}
}

func TestMatchMovie(t *testing.T) {
	cat := catalog.New(catalog.Options{MaxAnimes: 100, MaxLastSelectMap: 1000, SearchCacheMinutes: 1, CommentCacheMinutes: 1})
	fs := &fakeSource{
		name: "tencent",
		raw: []domain.RawAnime{{
			BangumiID: "cover/movie1",
			Title:     "Blood River",
			Year:      "2023",
			Type:      "movie",
		}},
		epsByID: map[string][]domain.RawEp{"cover/movie1": {{Title: "正片", URL: "https://example.com/movie"}}},
	}
	orch := orchestrator.New(cat, map[string]source.Source{"tencent": fs})
	engine := New(orch, cat, nil, nil)

	cfg := &config.Config{SourceOrder: []string{"tencent"}}
	result := engine.Match(context.Background(), cfg, "Blood.River.2023.1080p.BluRay.x264.mkv")

	if !result.IsMatched {
		t.Fatal("expected a match")
	}
	if result.Matches[0].AnimeTitle == "" {
		t.Error("expected a populated anime title for the movie match")
	}
}
