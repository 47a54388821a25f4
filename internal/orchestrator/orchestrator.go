// Package orchestrator implements the fan-out/fan-in engine of spec/4.1:
// given a keyword, it queries every enabled Source concurrently, merges
// results in SOURCE_ORDER, filters by title/episode, updates the Catalog's
// last-selected memory, and caches the merged result. It also resolves a
// comment url to the Source responsible for it, by host.
package orchestrator

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/domain"
	"danmakuproxy/internal/source"
	"danmakuproxy/pkg/logger"
)

// StatsRecorder receives one call outcome per source invocation; the
// router's Stats type implements it. Nil-safe: an Orchestrator with no
// recorder attached just skips the bookkeeping.
type StatsRecorder interface {
	RecordCall(source string, success bool, latency time.Duration)
}

// urlRe implements the URL-detection regex from spec/6.
var urlRe = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,6}(:\d+)?(/[^\s]*)?$`)

// LooksLikeURL reports whether keyword is itself a playable url rather
// than a search term (spec/4.1 step 2).
func LooksLikeURL(keyword string) bool {
	return urlRe.MatchString(keyword)
}

// hostRoutes maps a url host substring to the Source name responsible for
// it (spec/4.7 step 5, spec/8 scenario 6). Entries are checked in list
// order and the first substring found in the url wins.
var hostRoutes = []struct {
	substr string
	source string
}{
	{"b23.tv", "bilibili"},
	{"bilibili.com", "bilibili"},
	{"v.qq.com", "tencent"},
	{"iqiyi.com", "iqiyi"},
	{"youku.com", "youku"},
	{"mgtv.com", "imgo"},
	{"ani.gamer.com.tw", "bahamut"},
	{"renren", "renren"},
	{"hanjutv", "hanjutv"},
}

// Orchestrator owns the enabled Source set and drives the fan-out.
type Orchestrator struct {
	cat     *catalog.Catalog
	sources map[string]source.Source // by Name()
	stats   StatsRecorder
}

func New(cat *catalog.Catalog, sources map[string]source.Source) *Orchestrator {
	return &Orchestrator{cat: cat, sources: sources}
}

// SetStatsRecorder attaches the diagnostics counter set (spec's
// supplemented health endpoint). Optional; call before serving traffic.
func (o *Orchestrator) SetStatsRecorder(stats StatsRecorder) {
	o.stats = stats
}

// SourceByName returns the Source registered under name, if enabled.
func (o *Orchestrator) SourceByName(name string) (source.Source, bool) {
	s, ok := o.sources[name]
	return s, ok
}

// SourceForURL routes a comment url to the Source that owns its host,
// falling back to "vod" (the generic scraping family) when no platform
// claims it.
func (o *Orchestrator) SourceForURL(rawURL string) source.Source {
	lower := strings.ToLower(rawURL)
	for _, r := range hostRoutes {
		if strings.Contains(lower, r.substr) {
			if s, ok := o.sources[r.source]; ok {
				return s
			}
		}
	}
	if s, ok := o.sources["vod"]; ok {
		return s
	}
	return nil
}

func enabledSources(order []string) []string {
	if len(order) == 0 {
		return []string{"360", "vod", "renren", "hanjutv"}
	}
	return order
}

// Search implements spec/4.1's Orchestrator.search(keyword): cache check,
// url short-circuit, parallel fan-out across enabled sources, serial merge
// in SOURCE_ORDER, title/episode filtering (delegated into each adapter's
// HandleAnimes), last-selected bookkeeping, and search-cache write-back.
// season is the season hint from the Match Engine's searchAnime call (0
// when there is none); preferSourceName, when non-empty and enabled, is
// searched and merged first (the Match Engine passes the filename's
// platform tag here).
func (o *Orchestrator) Search(ctx context.Context, keyword string, cfg *config.Config, season int, preferSourceName string) []domain.Anime {
	if cached, ok := o.cat.GetSearchCache(keyword); ok {
		return cached
	}

	if LooksLikeURL(keyword) {
		anime := o.synthesizeURLAnime(keyword)
		o.cat.SetSearchCache(keyword, []domain.Anime{anime})
		return []domain.Anime{anime}
	}

	order := enabledSources(cfg.SourceOrder)
	order = reorderPreferred(order, preferSourceName)

	raw := o.fanOutSearch(ctx, order, keyword)

	opts := source.MatchOptions{
		StrictTitleMatch:    cfg.StrictTitleMatch,
		EnableEpisodeFilter: cfg.EnableEpisodeFilter,
		EpisodeTitleFilter:  cfg.CompiledEpisodeRe,
		Season:              season,
	}

	var merged []domain.Anime
	for _, name := range order {
		src, ok := o.sources[name]
		if !ok {
			continue
		}
		animes := src.HandleAnimes(ctx, raw[name], keyword, o.cat, opts)
		merged = append(merged, animes...)
	}

	ids := make([]int32, 0, len(merged))
	for _, a := range merged {
		ids = append(ids, a.AnimeID)
	}
	o.cat.StoreAnimeIDsToMap(ids, keyword)
	o.cat.SetSearchCache(keyword, merged)
	return merged
}

// reorderPreferred moves preferred to the front of order if present,
// leaving the rest of the declared order intact (spec/4.6 step 6).
func reorderPreferred(order []string, preferred string) []string {
	present := false
	for _, name := range order {
		if name == preferred {
			present = true
		}
	}
	if preferred == "" || !present {
		return order
	}
	out := make([]string, 0, len(order))
	out = append(out, preferred)
	for _, name := range order {
		if name != preferred {
			out = append(out, name)
		}
	}
	return out
}

// fanOutSearch invokes Search on every enabled source in parallel and
// waits for all to finish; a slow or failing source contributes an empty
// slice and never blocks or fails its peers (spec/4.1 step 4, spec/7
// point 3).
func (o *Orchestrator) fanOutSearch(ctx context.Context, order []string, keyword string) map[string][]domain.RawAnime {
	out := make(map[string][]domain.RawAnime, len(order))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range order {
		src, ok := o.sources[name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, src source.Source) {
			defer wg.Done()
			start := time.Now()
			results, err := src.Search(ctx, keyword)
			if o.stats != nil {
				o.stats.RecordCall(name, err == nil, time.Since(start))
			}
			if err != nil {
				logger.WithFields(logger.Fields{"source": name, "keyword": keyword}).Warnf("search failed: %v", err)
				results = nil
			}
			mu.Lock()
			out[name] = results
			mu.Unlock()
		}(name, src)
	}
	wg.Wait()
	return out
}

// synthesizeURLAnime builds the single-episode Anime spec/4.1 step 2
// describes when the keyword is itself a playable url.
func (o *Orchestrator) synthesizeURLAnime(rawURL string) domain.Anime {
	platform := inferPlatform(rawURL)
	ep := o.cat.AddEpisode(rawURL, source.EpisodeTitle(platform, rawURL))
	anime := domain.Anime{
		AnimeID:    source.AsciiSum(rawURL),
		BangumiID:  rawURL,
		AnimeTitle: source.FormatTitle(rawURL, "", "other", platform),
		Type:       "other",
		Source:     platform,
		Links:      []domain.Episode{ep},
	}
	anime.EpisodeCount = len(anime.Links)
	o.cat.AddAnime(anime)
	return anime
}

func inferPlatform(rawURL string) string {
	for _, r := range hostRoutes {
		if strings.Contains(strings.ToLower(rawURL), r.substr) {
			return r.source
		}
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}

// GetComments resolves which Source owns rawURL's host and delegates its
// raw comment fetch, applying the Catalog's comment cache around the call
// (spec/3 commentCache, spec/4.4).
func (o *Orchestrator) GetComments(ctx context.Context, rawURL string) ([]domain.Danmaku, error) {
	if cached, ok := o.cat.GetCommentCache(rawURL); ok {
		return cached, nil
	}
	src := o.SourceForURL(rawURL)
	if src == nil {
		return nil, domain.ErrUnknownEpisode
	}
	start := time.Now()
	list, err := src.GetComments(ctx, rawURL)
	if o.stats != nil {
		o.stats.RecordCall(src.Name(), err == nil, time.Since(start))
	}
	if err != nil {
		logger.WithFields(logger.Fields{"url": rawURL}).Warnf("getComments failed: %v", err)
		return nil, nil
	}
	o.cat.SetCommentCache(rawURL, list)
	return list, nil
}
