package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/comments"
	"danmakuproxy/internal/domain"
)

// genericSearchItem/genericEpisodeItem are the plain JSON shapes assumed
// for the platforms whose private API is out of scope (spec/1): one
// reasonable, internally-consistent contract per adapter, not a
// reproduction of any platform's real endpoint bytes.
type genericSearchItem struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Year   string  `json:"year"`
	Type   string  `json:"type"`
	Cover  string  `json:"cover"`
	Date   string  `json:"date"`
	Rating float64 `json:"rating"`
}

type genericSearchResponse struct {
	List []genericSearchItem `json:"list"`
}

type genericEpisodeItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type genericEpisodeResponse struct {
	Episodes []genericEpisodeItem `json:"episodes"`
}

// GenericAPISource is the shared adapter shape for platforms that expose a
// clean JSON search/episode/comment API (Tencent, iQiyi, Mango/imgo,
// Bahamut, Renren, Hanjutv): each per-source quirk is a thin wrapper
// around this (Youku and Bilibili need real two-phase/short-link handling
// and get their own files instead).
type GenericAPISource struct {
	platform string
	baseURL  string
	client   *http.Client

	episodesCache *cache.Cache // thread-safe per-source cache, spec/5
}

func NewGenericAPISource(platform, baseURL string, timeout time.Duration) *GenericAPISource {
	return &GenericAPISource{
		platform:      platform,
		baseURL:       baseURL,
		client:        NewHTTPClient(timeout),
		episodesCache: cache.New(10*time.Minute, 20*time.Minute),
	}
}

func (g *GenericAPISource) Name() string { return g.platform }

func (g *GenericAPISource) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	url := fmt.Sprintf("%s/search?keyword=%s", g.baseURL, queryEscape(keyword))
	body, err := fetch(ctx, g.client, url, nil)
	if err != nil {
		logAndEmpty(g.platform, "search", err)
		return nil, nil
	}
	var resp genericSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logAndEmpty(g.platform, "search-decode", err)
		return nil, nil
	}
	out := make([]domain.RawAnime, 0, len(resp.List))
	for _, item := range resp.List {
		out = append(out, domain.RawAnime{
			BangumiID: item.ID,
			Title:     item.Title,
			Year:      item.Year,
			Type:      item.Type,
			ImageURL:  item.Cover,
			StartDate: item.Date,
			Rating:    item.Rating,
		})
	}
	return out, nil
}

func (g *GenericAPISource) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	if cached, ok := g.episodesCache.Get(bangumiID); ok {
		return cached.([]domain.RawEp), nil
	}
	url := fmt.Sprintf("%s/episodes?id=%s", g.baseURL, queryEscape(bangumiID))
	body, err := fetch(ctx, g.client, url, nil)
	if err != nil {
		return nil, err
	}
	var resp genericEpisodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.RawEp, 0, len(resp.Episodes))
	for _, e := range resp.Episodes {
		out = append(out, domain.RawEp{Title: e.Title, URL: e.URL})
	}
	g.episodesCache.Set(bangumiID, out, cache.DefaultExpiration)
	return out, nil
}

func (g *GenericAPISource) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime {
	return HandleAnimesDefault(ctx, g.platform, raw, queryTitle, cat, opts, g.GetEpisodes)
}

func (g *GenericAPISource) GetComments(ctx context.Context, url string) ([]domain.Danmaku, error) {
	body, err := fetch(ctx, g.client, url, nil)
	if err != nil {
		logAndEmpty(g.platform, "getComments", err)
		return nil, nil
	}
	out, err := comments.ParseRaw(body)
	if err != nil {
		logAndEmpty(g.platform, "parseComments", err)
		return nil, nil
	}
	return out, nil
}

func queryEscape(s string) string {
	return url.QueryEscape(s)
}
