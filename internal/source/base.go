package source

import (
	"context"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/domain"
)

// EpisodeFetcher resolves one anime's episode list; passed in so
// HandleAnimesDefault stays adapter-agnostic while still letting each
// platform fetch episodes its own way (each adapter passes its own
// GetEpisodes method).
type EpisodeFetcher func(ctx context.Context, bangumiID string) ([]domain.RawEp, error)

// HandleAnimesDefault is the shared normalize/filter/register routine
// spec/4.1 describes: title-match, episode fetch + filter, Anime
// construction, and Catalog registration. Every adapter in this package
// uses it as-is from its HandleAnimes method.
func HandleAnimesDefault(
	ctx context.Context,
	platform string,
	raw []domain.RawAnime,
	queryTitle string,
	cat *catalog.Catalog,
	opts MatchOptions,
	getEpisodes EpisodeFetcher,
) []domain.Anime {
	var out []domain.Anime
	for _, ra := range raw {
		if queryTitle != "" && !MatchesQuery(ra.Title, queryTitle, opts.StrictTitleMatch, opts.Season) {
			continue
		}

		eps, err := getEpisodes(ctx, ra.BangumiID)
		if err != nil {
			logAndEmpty(platform, "getEpisodes", err)
			continue
		}
		if opts.EnableEpisodeFilter {
			eps = FilterEpisodes(eps, opts.EpisodeTitleFilter)
		}
		if len(eps) == 0 {
			continue
		}

		links := make([]domain.Episode, 0, len(eps))
		for _, e := range eps {
			links = append(links, domain.Episode{URL: e.URL, Title: EpisodeTitle(platform, e.Title)})
		}

		anime := domain.Anime{
			AnimeID:         AsciiSum(ra.BangumiID),
			BangumiID:       ra.BangumiID,
			AnimeTitle:      FormatTitle(ra.Title, ra.Year, ra.Type, platform),
			Type:            ra.Type,
			TypeDescription: ra.Type,
			ImageURL:        ra.ImageURL,
			StartDate:       ra.StartDate,
			EpisodeCount:    len(links),
			Rating:          ra.Rating,
			Source:          platform,
			Links:           links,
		}
		cat.AddAnime(anime)
		out = append(out, anime)
	}
	return out
}
