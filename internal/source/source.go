// Package source defines the Source plugin contract (spec/4.1) and the
// shared helpers every platform adapter needs: the ASCII-sum id hash, the
// display-title formatter, and season-suffix matching. Per-source wire
// detail (scraping, token handshakes, short-link resolution) lives in the
// per-platform files; this file only holds what the contract guarantees.
package source

import (
	"context"
	"regexp"
	"strings"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/domain"
)

// Source is the polymorphic capability every upstream adapter implements.
type Source interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]domain.RawAnime, error)
	GetEpisodes(ctx context.Context, bangumiID string) ([]domain.RawEp, error)
	// HandleAnimes normalizes raw search results into Anime records,
	// fetching episodes as needed, filtering by title match, registering
	// each result with the Catalog, and returning them in discovery order
	// for the orchestrator's merge step.
	HandleAnimes(ctx context.Context, raw []domain.RawAnime, queryTitle string, cat *catalog.Catalog, opts MatchOptions) []domain.Anime
	// GetComments fetches the raw comment stream for an upstream url.
	GetComments(ctx context.Context, url string) ([]domain.Danmaku, error)
}

// MatchOptions carries the orchestrator-level knobs HandleAnimes needs
// without each adapter importing the config package directly.
type MatchOptions struct {
	StrictTitleMatch    bool
	EnableEpisodeFilter bool
	EpisodeTitleFilter  *regexp.Regexp
	// Season is the season hint from the Match Engine's searchAnime call
	// (spec/4.1 step 6 season-suffix tolerance); 0 when there is none.
	Season int
}

// AsciiSum computes the stable hash spec/3 requires: the sum of the ASCII
// (byte) values of the native id, truncated to an int32. Deterministic
// across restarts because it has no process-local salt.
func AsciiSum(bangumiID string) int32 {
	var sum int64
	for _, b := range []byte(bangumiID) {
		sum += int64(b)
	}
	return int32(sum)
}

// FormatTitle builds the display string spec/3 specifies:
// "<cleanTitle>(<year>)【<type>】from <sourceName>".
func FormatTitle(cleanTitle, year, typeDesc, sourceName string) string {
	var b strings.Builder
	b.WriteString(cleanTitle)
	if year != "" {
		b.WriteString("(")
		b.WriteString(year)
		b.WriteString(")")
	}
	if typeDesc != "" {
		b.WriteString("【")
		b.WriteString(typeDesc)
		b.WriteString("】")
	}
	b.WriteString("from ")
	b.WriteString(sourceName)
	return b.String()
}

// EpisodeTitle applies the leading platform tag spec/3 requires.
func EpisodeTitle(platform, title string) string {
	return "【" + platform + "】" + title
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses runs of whitespace to a single space and lowercases,
// used by MatchesQuery's title-match comparisons.
func Normalize(s string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " "))
}

var chineseNumerals = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9, '十': 10,
}

// MatchesQuery implements the title-match rule of spec/4.1: exact/prefix
// match in strict mode, substring otherwise, with season-suffix tolerance.
func MatchesQuery(title, query string, strict bool, season int) bool {
	nt := Normalize(title)
	nq := Normalize(query)

	if strict {
		if nt == nq || strings.HasPrefix(nt, nq) {
			return true
		}
	} else if strings.Contains(nt, nq) {
		return true
	}

	if season > 0 && strings.HasPrefix(nt, nq) {
		residue := strings.TrimSpace(strings.TrimPrefix(nt, nq))
		if residue == "" {
			return false
		}
		if n, ok := parseSeasonResidue(residue); ok && n == season {
			return true
		}
	}
	return false
}

func parseSeasonResidue(residue string) (int, bool) {
	runes := []rune(residue)
	if len(runes) == 1 {
		if n, ok := chineseNumerals[runes[0]]; ok {
			return n, true
		}
	}
	n := 0
	digits := false
	for _, r := range runes {
		if r < '0' || r > '9' {
			break
		}
		digits = true
		n = n*10 + int(r-'0')
	}
	if digits {
		return n, true
	}
	return 0, false
}

// FilterEpisodes drops episodes whose titles match the configured filter
// regex (spec/4.1 step 7), returning the survivors in original order.
func FilterEpisodes(eps []domain.RawEp, filter *regexp.Regexp) []domain.RawEp {
	if filter == nil {
		return eps
	}
	out := eps[:0:0]
	for _, e := range eps {
		if !filter.MatchString(e.Title) {
			out = append(out, e)
		}
	}
	return out
}
