package source

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/domain"
)

// Douban is the fallback metadata/translation source for the Match
// Engine's TITLE_TO_CHINESE option (spec/4.6 step 4: "fallback via
// Douban"). Douban's public API was retired years ago, so — like the
// teacher's winbutv adapter — this scrapes the search results page with
// goquery rather than calling a JSON endpoint.
type Douban struct {
	client *http.Client
}

func NewDouban(timeout time.Duration) *Douban {
	return &Douban{client: NewHTTPClient(timeout)}
}

func (d *Douban) Name() string { return "douban" }

func (d *Douban) Search(ctx context.Context, keyword string) ([]domain.RawAnime, error) {
	reqURL := "https://www.douban.com/search?cat=1002&q=" + url.QueryEscape(keyword)
	body, err := fetch(ctx, d.client, reqURL, map[string]string{"Accept-Language": "zh-CN"})
	if err != nil {
		logAndEmpty(d.Name(), "search", err)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logAndEmpty(d.Name(), "search-parse", err)
		return nil, nil
	}

	var out []domain.RawAnime
	doc.Find(".result .content").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("a").First().Text())
		href, _ := s.Find("a").First().Attr("href")
		if title == "" {
			return
		}
		out = append(out, domain.RawAnime{
			BangumiID: href,
			Title:     title,
			Type:      "other",
		})
	})
	return out, nil
}

func (d *Douban) GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error) {
	return nil, nil
}

func (d *Douban) HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime {
	return HandleAnimesDefault(ctx, d.Name(), raw, queryTitle, cat, opts, d.GetEpisodes)
}

func (d *Douban) GetComments(ctx context.Context, url string) ([]domain.Danmaku, error) {
	return nil, nil
}

// Translate returns the title of the first Douban search result for a
// foreign title; the result is not checked for being Chinese.
func (d *Douban) Translate(ctx context.Context, title string) (string, bool) {
	results, err := d.Search(ctx, title)
	if err != nil || len(results) == 0 {
		return "", false
	}
	return results[0].Title, true
}
