// Package comments implements the Comment Pipeline (spec/4.5): parsing
// the three raw shapes a Source can hand back, blocklist filtering,
// time-window dedup, density-smoothed downsampling, palette recolor, and
// JSON/XML serialization.
package comments

import (
	"encoding/xml"
	"html"
	"regexp"
	"strconv"
	"strings"

	"danmakuproxy/internal/domain"
)

// biliXML mirrors the Bilibili danmaku segment shape: <i><d p="...">text</d>...</i>.
type biliXML struct {
	XMLName xml.Name   `xml:"i"`
	D       []biliItem `xml:"d"`
}

type biliItem struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// objectForm covers both observed JSON shapes: {timepoint,ct,color,content}
// and {progress,mode,content}. Fields are left as strings/interface{}
// where the two shapes disagree on type, and resolved in ParseObject.
type objectForm struct {
	Timepoint interface{} `json:"timepoint"`
	Progress  interface{} `json:"progress"`
	CT        interface{} `json:"ct"`
	Mode      interface{} `json:"mode"`
	Color     interface{} `json:"color"`
	Content   string      `json:"content"`
}

// ParseXML decodes a Bilibili-style <d p="t,mode,font,color,ts,pool,userHash,id">
// stream into normalized Danmaku records.
func ParseXML(data []byte) ([]domain.Danmaku, error) {
	var doc biliXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make([]domain.Danmaku, 0, len(doc.D))
	for _, item := range doc.D {
		fields := strings.Split(item.P, ",")
		if len(fields) < 4 {
			continue
		}
		t, _ := strconv.ParseFloat(fields[0], 64)
		mode, _ := strconv.Atoi(fields[1])
		color, _ := strconv.Atoi(fields[3])
		out = append(out, domain.Danmaku{
			T:     t,
			Mode:  normalizeMode(mode),
			Color: orDefaultColor(color),
			Text:  DecodeText(item.Text),
		})
	}
	return out, nil
}

// ParseLegacyP parses the legacy 4-field "t,mode,color,source" p string.
func ParseLegacyP(p, text string) (domain.Danmaku, bool) {
	fields := strings.Split(p, ",")
	if len(fields) < 3 {
		return domain.Danmaku{}, false
	}
	t, err1 := strconv.ParseFloat(fields[0], 64)
	mode, err2 := strconv.Atoi(fields[1])
	color, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return domain.Danmaku{}, false
	}
	return domain.Danmaku{
		T:     t,
		Mode:  normalizeMode(mode),
		Color: orDefaultColor(color),
		Text:  DecodeText(text),
	}, true
}

// ParseObject normalizes the object-shaped forms used by several upstream
// JSON comment APIs.
func ParseObject(o objectForm) domain.Danmaku {
	t := toFloat(o.Timepoint)
	if t == 0 {
		t = toFloat(o.Progress) / 1000 // progress is commonly milliseconds
	}
	mode := int(toFloat(o.Mode))
	if mode == 0 {
		mode = 1
	}
	color := int(toFloat(o.Color))
	return domain.Danmaku{
		T:     t,
		Mode:  normalizeMode(mode),
		Color: orDefaultColor(color),
		Text:  DecodeText(o.Content),
	}
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

func normalizeMode(m int) int {
	switch m {
	case 1, 4, 5:
		return m
	default:
		return 1
	}
}

func orDefaultColor(c int) int {
	if c <= 0 {
		return domain.DefaultDanmakuColor
	}
	return c
}

var numericEntityRe = regexp.MustCompile(`&#(\d+);`)

// DecodeText decodes HTML numeric entities and rewrites platform emoji
// shortcodes ([name]) through the multi-platform map; unknown names are
// kept verbatim.
func DecodeText(text string) string {
	decoded := html.UnescapeString(text)
	decoded = numericEntityRe.ReplaceAllStringFunc(decoded, func(m string) string {
		return html.UnescapeString(m)
	})
	return replaceEmoji(decoded)
}
