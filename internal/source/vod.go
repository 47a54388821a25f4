package source

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/comments"
	"danmakuproxy/internal/domain"
)

// VOD is the generic VOD-site family adapter (spec/1, /4.2 VOD_SERVERS):
// a configurable set of name@url scraping targets, each scraped the same
// way with goquery, fanned out according to VOD_RETURN_MODE. Grounded in
// the teacher's winbutv submodule, whose go.mod declared goquery/colly/
// go-cache but shipped no source — this is the adapter those dependencies
// were retrieved for.
type VOD struct {
	servers      map[string]string
	returnMode   string
	client       *http.Client
	episodeCache *cache.Cache
}

func NewVOD(servers map[string]string, returnMode string, timeout time.Duration) *VOD {
	if returnMode == "" {
		returnMode = "all"
	}
	return &VOD{
		servers:      servers,
		returnMode:   returnMode,
		client:       NewHTTPClient(timeout),
		episodeCache: cache.New(10*time.Minute, 20*time.Minute),
	}
}

func (v *VOD) Name() string { return "vod" }

// Search scrapes every configured server's search results page. In "all"
// mode every server's hits are merged (server name prefixed onto the
// bangumi id so ids stay globally unique); in "fastest" mode only the
// first server to respond with a non-empty result contributes.
func (v *VOD) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	if len(v.servers) == 0 {
		return nil, nil
	}

	type result struct {
		server string
		animes []domain.RawAnime
	}
	resultChan := make(chan result, len(v.servers))
	var wg sync.WaitGroup

	for name, base := range v.servers {
		wg.Add(1)
		go func(name, base string) {
			defer wg.Done()
			animes := v.searchServer(ctx, name, base, keyword)
			resultChan <- result{server: name, animes: animes}
		}(name, base)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var out []domain.RawAnime
	for r := range resultChan {
		if len(r.animes) == 0 {
			continue
		}
		out = append(out, r.animes...)
		if v.returnMode == "fastest" {
			return out[:len(r.animes)], nil
		}
	}
	return out, nil
}

func (v *VOD) searchServer(ctx context.Context, name, base, keyword string) []domain.RawAnime {
	reqURL := strings.TrimRight(base, "/") + "/vodsearch/" + url.QueryEscape(keyword) + ".html"
	body, err := fetch(ctx, v.client, reqURL, nil)
	if err != nil {
		logAndEmpty("vod:"+name, "search", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logAndEmpty("vod:"+name, "search-parse", err)
		return nil
	}

	var out []domain.RawAnime
	doc.Find(".module-item").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(".module-item-title").First().Text())
		href, _ := s.Find("a").First().Attr("href")
		if title == "" || href == "" {
			return
		}
		out = append(out, domain.RawAnime{
			BangumiID: name + ":" + href,
			Title:     title,
			Type:      "other",
		})
	})
	return out
}

func (v *VOD) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	if cached, ok := v.episodeCache.Get(bangumiID); ok {
		return cached.([]domain.RawEp), nil
	}
	name, href, ok := strings.Cut(bangumiID, ":")
	if !ok {
		return nil, nil
	}
	base, ok := v.servers[name]
	if !ok {
		return nil, nil
	}
	reqURL := strings.TrimRight(base, "/") + href
	body, err := fetch(ctx, v.client, reqURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []domain.RawEp
	doc.Find(".module-play-list a").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		epHref, _ := s.Attr("href")
		if title == "" || epHref == "" {
			return
		}
		out = append(out, domain.RawEp{Title: title, URL: strings.TrimRight(base, "/") + epHref})
	})
	v.episodeCache.Set(bangumiID, out, cache.DefaultExpiration)
	return out, nil
}

func (v *VOD) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime {
	return HandleAnimesDefault(ctx, v.Name(), raw, queryTitle, cat, opts, v.GetEpisodes)
}

// GetComments scrapes the player page for an embedded danmaku JSON blob;
// most VOD sites that proxy third-party players have no native comment
// stream of their own, so a miss here is expected and non-fatal.
func (v *VOD) GetComments(ctx context.Context, rawURL string) ([]domain.Danmaku, error) {
	body, err := fetch(ctx, v.client, rawURL, nil)
	if err != nil {
		logAndEmpty(v.Name(), "getComments", err)
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}
	script := doc.Find("script#danmaku-data").Text()
	if script == "" {
		return nil, nil
	}
	out, err := comments.ParseRaw([]byte(script))
	if err != nil {
		logAndEmpty(v.Name(), "parseComments", err)
		return nil, nil
	}
	return out, nil
}
