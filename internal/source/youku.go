package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/comments"
	"danmakuproxy/internal/domain"
)

type youkuTokenResponse struct {
	Token      string `json:"token"`
	SegmentLen int    `json:"segmentSeconds"`
	Duration   int    `json:"durationSeconds"`
}

// Youku is the two-phase adapter spec/5 and spec/9 call out by name: a
// token handshake is required before comments can be fetched, and the
// comment stream itself is paginated into fixed-length time segments that
// must be fetched one request per segment. YOUKU_CONCURRENCY (spec/4.2)
// bounds how many segment requests run at once, fanned out in waves
// rather than unboundedly so a long video can't open hundreds of sockets
// against the upstream at once.
type Youku struct {
	baseURL     string
	concurrency int
	client      *http.Client
	limiter     *rate.Limiter

	tokenCache    *cache.Cache
	episodesCache *cache.Cache
}

func NewYouku(baseURL string, concurrency int, timeout time.Duration) *Youku {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Youku{
		baseURL:     baseURL,
		concurrency: concurrency,
		client:      NewHTTPClient(timeout),
		// limiter paces segment-fetch launches at `concurrency` per
		// second with a burst of the same size, so a long video's
		// wave of requests ramps up instead of bursting all at once.
		limiter:       rate.NewLimiter(rate.Limit(concurrency), concurrency),
		tokenCache:    cache.New(5*time.Minute, 10*time.Minute),
		episodesCache: cache.New(10*time.Minute, 20*time.Minute),
	}
}

func (y *Youku) Name() string { return "youku" }

func (y *Youku) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	reqURL := fmt.Sprintf("%s/search?keyword=%s", y.baseURL, queryEscape(keyword))
	body, err := fetch(ctx, y.client, reqURL, nil)
	if err != nil {
		logAndEmpty(y.Name(), "search", err)
		return nil, nil
	}
	var resp genericSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logAndEmpty(y.Name(), "search-decode", err)
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

func (y *Youku) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	if cached, ok := y.episodesCache.Get(bangumiID); ok {
		return cached.([]domain.RawEp), nil
	}
	reqURL := fmt.Sprintf("%s/episodes?id=%s", y.baseURL, queryEscape(bangumiID))
	body, err := fetch(ctx, y.client, reqURL, nil)
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
	y.episodesCache.Set(bangumiID, out, cache.DefaultExpiration)
	return out, nil
}

func (y *Youku) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime {
	return HandleAnimesDefault(ctx, y.Name(), raw, queryTitle, cat, opts, y.GetEpisodes)
}

// fetchToken is phase one of the handshake: a per-video token that must be
// attached to every subsequent segment request, cached for its own short
// TTL since it's cheap to refetch but expensive to request per-segment.
func (y *Youku) fetchToken(ctx context.Context, videoURL string) (youkuTokenResponse, error) {
	if cached, ok := y.tokenCache.Get(videoURL); ok {
		return cached.(youkuTokenResponse), nil
	}
	reqURL := fmt.Sprintf("%s/token?url=%s", y.baseURL, queryEscape(videoURL))
	body, err := fetch(ctx, y.client, reqURL, nil)
	if err != nil {
		return youkuTokenResponse{}, err
	}
	var tok youkuTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return youkuTokenResponse{}, err
	}
	if tok.SegmentLen <= 0 {
		tok.SegmentLen = 360
	}
	y.tokenCache.Set(videoURL, tok, cache.DefaultExpiration)
	return tok, nil
}

// GetComments is phase two: fetch every time segment of the video's
// comment stream, YoukuConcurrency requests at a time, in ordered waves.
func (y *Youku) GetComments(ctx context.Context, videoURL string) ([]domain.Danmaku, error) {
	tok, err := y.fetchToken(ctx, videoURL)
	if err != nil {
		logAndEmpty(y.Name(), "fetchToken", err)
		return nil, nil
	}
	if tok.Duration <= 0 {
		return nil, nil
	}

	segmentCount := tok.Duration/tok.SegmentLen + 1
	results := make([][]domain.Danmaku, segmentCount)

	var wg sync.WaitGroup
	for start := 0; start < segmentCount && ctx.Err() == nil; start += y.concurrency {
		if start > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		end := start + y.concurrency
		if end > segmentCount {
			end = segmentCount
		}
		for i := start; i < end; i++ {
			if err := y.limiter.Wait(ctx); err != nil {
				break
			}
			wg.Add(1)
			go func(segment int) {
				defer wg.Done()
				results[segment] = y.fetchSegment(ctx, videoURL, tok.Token, segment)
			}(i)
		}
		wg.Wait()
	}

	var out []domain.Danmaku
	for _, segment := range results {
		out = append(out, segment...)
	}
	return out, nil
}

func (y *Youku) fetchSegment(ctx context.Context, videoURL, token string, segment int) []domain.Danmaku {
	reqURL := fmt.Sprintf("%s/danmu?url=%s&token=%s&segment=%d", y.baseURL, queryEscape(videoURL), queryEscape(token), segment)
	body, err := fetch(ctx, y.client, reqURL, nil)
	if err != nil {
		logAndEmpty(y.Name(), "fetchSegment", err)
		return nil
	}
	out, err := comments.ParseRaw(body)
	if err != nil {
		logAndEmpty(y.Name(), "parseSegment", err)
		return nil
	}
	return out
}
