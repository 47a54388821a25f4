package comments

import (
	"bytes"
	"encoding/json"
	"regexp"

	"danmakuproxy/internal/domain"
)

// Options bundles the Config Registry knobs the pipeline needs, so
// Run doesn't take half a dozen scalar parameters.
type Options struct {
	BlockedWords             []*regexp.Regexp
	GroupMinute              int
	DanmuLimit               int
	WhiteRatio               float64
	Palette                  []int
	ConvertTopBottomToScroll bool
}

// Run executes the full pipeline in spec/4.5 order: blocklist filter,
// time-window dedup, density-smoothed downsample, palette recolor. Parse
// is a separate step (ParseRaw) since its input shape varies per source.
func Run(list []domain.Danmaku, opts Options) []domain.Danmaku {
	list = FilterBlocked(list, opts.BlockedWords)
	list = GroupByMinute(list, opts.GroupMinute)
	list = Downsample(list, opts.DanmuLimit)
	list = Recolor(list, opts.WhiteRatio, opts.Palette, opts.ConvertTopBottomToScroll)
	return list
}

type legacyItem struct {
	P string `json:"p"`
	M string `json:"m"`
}

// ParseRaw implements spec/4.5 step 1: detects which of the three input
// shapes a source handed back and normalizes it to []domain.Danmaku.
func ParseRaw(data []byte) ([]domain.Danmaku, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '<' {
		return ParseXML(trimmed)
	}

	// Try the legacy {p, m} shape first.
	var legacy []legacyItem
	if err := json.Unmarshal(trimmed, &legacy); err == nil && len(legacy) > 0 && legacy[0].P != "" {
		out := make([]domain.Danmaku, 0, len(legacy))
		for _, item := range legacy {
			if d, ok := ParseLegacyP(item.P, item.M); ok {
				out = append(out, d)
			}
		}
		return out, nil
	}

	var objects []objectForm
	if err := json.Unmarshal(trimmed, &objects); err != nil {
		return nil, err
	}
	out := make([]domain.Danmaku, 0, len(objects))
	for _, o := range objects {
		out = append(out, ParseObject(o))
	}
	return out, nil
}
