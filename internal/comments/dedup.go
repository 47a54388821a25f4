package comments

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"danmakuproxy/internal/domain"
)

var trailingCountRe = regexp.MustCompile(` x\d+$`)

// GroupByMinute implements spec/4.5 step 3: bucket comments into W-minute
// windows, collapse identical text within a bucket into one record
// (earliest time, "<text> x C" when C>1), and return the result sorted by
// time. W == 0 bypasses the step entirely.
func GroupByMinute(list []domain.Danmaku, windowMinutes int) []domain.Danmaku {
	if windowMinutes <= 0 {
		return list
	}
	windowSeconds := float64(windowMinutes * 60)

	type key struct {
		bucket int64
		text   string
	}
	type group struct {
		earliest domain.Danmaku
		count    int
	}

	groups := make(map[key]*group)
	var order []key

	for _, d := range list {
		bucket := int64(math.Floor(d.T / windowSeconds))
		baseText := trailingCountRe.ReplaceAllString(d.Text, "")
		k := key{bucket: bucket, text: baseText}

		g, ok := groups[k]
		if !ok {
			g = &group{earliest: d}
			g.earliest.Text = baseText
			groups[k] = g
			order = append(order, k)
			continue
		}
		g.count++
		if d.T < g.earliest.T {
			g.earliest.T = d.T
		}
	}

	out := make([]domain.Danmaku, 0, len(order))
	for _, k := range order {
		g := groups[k]
		d := g.earliest
		if g.count > 0 {
			d.Text = fmt.Sprintf("%s x%d", d.Text, g.count+1)
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}
