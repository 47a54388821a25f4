package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/domain"
)

type tmdbSearchResult struct {
	Results []struct {
		ID            int     `json:"id"`
		Name          string  `json:"name"`
		FirstAirDate  string  `json:"first_air_date"`
		VoteAverage   float64 `json:"vote_average"`
		PosterPath    string  `json:"poster_path"`
	} `json:"results"`
}

// TMDB is a metadata-only source: via Translate it resolves a foreign
// title to Chinese for the Match Engine's TITLE_TO_CHINESE option. It
// returns no episodes, so HandleAnimes drops every search hit it finds
// and it contributes no Anime to a search. Its API
// shape is the real public TMDB v3 contract (unlike the private
// streaming-platform APIs, TMDB is a documented public REST surface).
type TMDB struct {
	apiKey string
	client *http.Client
}

func NewTMDB(apiKey string, timeout time.Duration) *TMDB {
	return &TMDB{apiKey: apiKey, client: NewHTTPClient(timeout)}
}

func (t *TMDB) Name() string { return "tmdb" }

func (t *TMDB) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	if t.apiKey == "" {
		return nil, nil
	}
	reqURL := fmt.Sprintf("https://api.themoviedb.org/3/search/tv?api_key=%s&query=%s",
		url.QueryEscape(t.apiKey), url.QueryEscape(keyword))
	body, err := fetch(ctx, t.client, reqURL, nil)
	if err != nil {
		logAndEmpty(t.Name(), "search", err)
		return nil, nil
	}
	var resp tmdbSearchResult
	if err := json.Unmarshal(body, &resp); err != nil {
		logAndEmpty(t.Name(), "search-decode", err)
		return nil, nil
	}
	out := make([]domain.RawAnime, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, domain.RawAnime{
			BangumiID: fmt.Sprintf("%d", r.ID),
			Title:     r.Name,
			Year:      yearOf(r.FirstAirDate),
			Type:      "other",
			ImageURL:  posterURL(r.PosterPath),
			StartDate: r.FirstAirDate,
			Rating:    r.VoteAverage,
		})
	}
	return out, nil
}

// GetEpisodes is a thin stub: TMDB is consulted for metadata/translation,
// not as a comment-bearing video source, so it contributes no episodes of
// its own under the Source contract.
func (t *TMDB) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	return nil, nil
}

func (t *TMDB) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime {
	return HandleAnimesDefault(ctx, t.Name(), raw, queryTitle, cat, opts, t.GetEpisodes)
}

func (t *TMDB) GetComments(ctx context.Context, url string) ([]domain.Danmaku, error) {
	return nil, nil
}

// Translate resolves a foreign title to its Chinese TMDB listing, used by
// the Match Engine's TITLE_TO_CHINESE option (spec/4.6 step 4).
func (t *TMDB) Translate(ctx context.Context, title string) (string, bool) {
	if t.apiKey == "" {
		return "", false
	}
	reqURL := fmt.Sprintf("https://api.themoviedb.org/3/search/tv?api_key=%s&query=%s&language=zh-CN",
		url.QueryEscape(t.apiKey), url.QueryEscape(title))
	body, err := fetch(ctx, t.client, reqURL, nil)
	if err != nil {
		logAndEmpty(t.Name(), "translate", err)
		return "", false
	}
	var resp tmdbSearchResult
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Results) == 0 {
		return "", false
	}
	return resp.Results[0].Name, true
}

func yearOf(isoDate string) string {
	if len(isoDate) >= 4 {
		return isoDate[:4]
	}
	return ""
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/w342" + path
}
