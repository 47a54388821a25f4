package match

import (
	"context"
	"strings"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/domain"
	"danmakuproxy/internal/orchestrator"
	"danmakuproxy/pkg/logger"
)

// Translator resolves a foreign title to its Chinese equivalent (spec/4.6
// step 4). TMDB and Douban both implement this without being part of the
// Source contract, since translation isn't a search/comment capability.
type Translator interface {
	Translate(ctx context.Context, title string) (string, bool)
}

// Item is one resolved (source, anime, episode) triple, spec/6's
// `matches[]` entry shape.
type Item struct {
	EpisodeID    int32  `json:"episodeId"`
	AnimeID      int32  `json:"animeId"`
	AnimeTitle   string `json:"animeTitle"`
	EpisodeTitle string `json:"episodeTitle"`
	Type         string `json:"type"`
	Shift        int    `json:"shift"`
	ImageURL     string `json:"imageUrl"`
}

// Result is the `/api/v2/match` response body (spec/6).
type Result struct {
	IsMatched bool   `json:"isMatched"`
	Matches   []Item `json:"matches"`
}

// Engine drives spec/4.6 end to end.
type Engine struct {
	orch   *orchestrator.Orchestrator
	cat    *catalog.Catalog
	tmdb   Translator
	douban Translator
}

func New(orch *orchestrator.Orchestrator, cat *catalog.Catalog, tmdb, douban Translator) *Engine {
	return &Engine{orch: orch, cat: cat, tmdb: tmdb, douban: douban}
}

// Match implements spec/4.6 in full: tag extraction, filename parsing,
// optional Chinese translation, preferred-source lookup, platform-ordered
// episode resolution, and first-result fallback.
func (e *Engine) Match(ctx context.Context, cfg *config.Config, fileName string) Result {
	platformTag, rest := ExtractPlatformTag(fileName)
	parsed := ParseFileName(rest)
	title := parsed.Title

	if cfg.TitleToChinese {
		if translated, ok := e.translate(ctx, title); ok {
			title = translated
		}
	}

	preferID, hasPrefer := e.cat.GetPreferAnimeID(title)
	results := e.orch.Search(ctx, title, cfg, parsed.Season, platformTag)

	order := dynamicPlatformOrder(platformTag, cfg.PlatformOrder, results)

	if item, ok := e.selectEpisode(results, order, parsed, hasPrefer && cfg.RememberLastSelect, preferID); ok {
		e.cat.SetPreferByAnimeID(item.AnimeID)
		return Result{IsMatched: true, Matches: []Item{item}}
	}

	// Fallback (spec/4.6 step 7): first result regardless of platform.
	if len(results) > 0 {
		if item, ok := episodeFromAnime(results[0], parsed); ok {
			return Result{IsMatched: true, Matches: []Item{item}}
		}
	}

	logger.WithFields(logger.Fields{"fileName": fileName, "title": title}).Infof("match: no episode resolved")
	return Result{IsMatched: false, Matches: []Item{}}
}

// translate tries TMDB first, falling back to Douban, per spec/4.6 step 4.
func (e *Engine) translate(ctx context.Context, title string) (string, bool) {
	if e.tmdb != nil {
		if t, ok := e.tmdb.Translate(ctx, title); ok && t != "" {
			return t, true
		}
	}
	if e.douban != nil {
		if t, ok := e.douban.Translate(ctx, title); ok && t != "" {
			return t, true
		}
	}
	return "", false
}

// dynamicPlatformOrder builds spec/4.6 step 6's order: preferred platform
// first, then PLATFORM_ORDER, then whatever other source names appear in
// results, each deduplicated.
func dynamicPlatformOrder(preferred string, platformOrder []string, results []domain.Anime) []string {
	seen := make(map[string]bool)
	var order []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}
	add(preferred)
	for _, p := range platformOrder {
		add(strings.ToLower(p))
	}
	for _, a := range results {
		add(a.Source)
	}
	return order
}

// selectEpisode implements spec/4.6 step 6: walk platforms in order, then
// animes within each platform (honoring the REMEMBER_LAST_SELECT prefer
// hint), resolving season/episode or movie selection.
func (e *Engine) selectEpisode(results []domain.Anime, order []string, parsed Parsed, honorPrefer bool, preferID int32) (Item, bool) {
	for _, platform := range order {
		for _, anime := range results {
			if anime.Source != platform {
				continue
			}
			if honorPrefer && anime.AnimeID != preferID {
				continue
			}
			if item, ok := episodeFromAnime(anime, parsed); ok {
				return item, true
			}
		}
	}
	return Item{}, false
}

// episodeFromAnime resolves one anime's episode list (already fetched and
// EPISODE_TITLE_FILTER'd by HandleAnimes) against the parsed filename:
// dedup identical titles keeping the first, then pick by season/episode
// index or, for a movie, episode 1.
func episodeFromAnime(anime domain.Anime, parsed Parsed) (Item, bool) {
	eps := dedupEpisodeTitles(anime.Links)

	if parsed.IsMovie {
		if !looksLikeMovie(anime) {
			return Item{}, false
		}
		if len(eps) == 0 {
			return Item{}, false
		}
		return toItem(anime, eps[0]), true
	}

	if parsed.Episode <= 0 || parsed.Episode > len(eps) {
		return Item{}, false
	}
	return toItem(anime, eps[parsed.Episode-1]), true
}

func looksLikeMovie(anime domain.Anime) bool {
	t := strings.ToLower(anime.Type)
	return t == "movie" || t == "theatrical" || t == "电影"
}

func dedupEpisodeTitles(links []domain.Episode) []domain.Episode {
	seen := make(map[string]bool, len(links))
	out := make([]domain.Episode, 0, len(links))
	for _, l := range links {
		if seen[l.Title] {
			continue
		}
		seen[l.Title] = true
		out = append(out, l)
	}
	return out
}

func toItem(anime domain.Anime, ep domain.Episode) Item {
	return Item{
		EpisodeID:    ep.ID,
		AnimeID:      anime.AnimeID,
		AnimeTitle:   anime.AnimeTitle,
		EpisodeTitle: ep.Title,
		Type:         anime.Type,
		Shift:        0,
		ImageURL:     anime.ImageURL,
	}
}
