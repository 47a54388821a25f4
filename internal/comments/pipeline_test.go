package comments

import (
	"math"
	"strings"
	"testing"

	"danmakuproxy/internal/domain"
)

func buildUniformStream(perSecond, seconds int) []domain.Danmaku {
	var out []domain.Danmaku
	for s := 0; s < seconds; s++ {
		for i := 0; i < perSecond; i++ {
			out = append(out, domain.Danmaku{T: float64(s), Mode: 1, Color: domain.DefaultDanmakuColor, Text: "msg"})
		}
	}
	return out
}

func TestDownsampleCapAndSorted(t *testing.T) {
	list := buildUniformStream(100, 100) // 10000 comments, 100/sec over 100s
	out := Downsample(list, 500)

	if len(out) > 500 {
		t.Fatalf("expected at most 500 comments, got %d", len(out))
	}
	if len(out) < 490 {
		t.Fatalf("expected at least 490 comments, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].T < out[i-1].T {
			t.Fatalf("expected time-sorted output, got %v before %v at index %d", out[i-1].T, out[i].T, i)
		}
	}

	perSecond := make(map[int]int)
	for _, d := range out {
		perSecond[int(math.Floor(d.T))]++
	}
	for sec, count := range perSecond {
		if count < 4 || count > 6 {
			t.Errorf("expected 4-6 comments per second, got %d at second %d", count, sec)
		}
	}
}

func TestDownsampleBelowLimitIsUnchanged(t *testing.T) {
	list := buildUniformStream(2, 5)
	out := Downsample(list, 500)
	if len(out) != len(list) {
		t.Errorf("expected no downsampling when under the limit, got %d want %d", len(out), len(list))
	}
}

func TestGroupByMinuteCollapsesDuplicateText(t *testing.T) {
	list := []domain.Danmaku{
		{T: 1, Text: "hi"},
		{T: 5, Text: "hi"},
		{T: 40, Text: "hi"},
		{T: 70, Text: "hi"}, // falls in the next 60s bucket
	}
	out := GroupByMinute(list, 1)

	if len(out) != 2 {
		t.Fatalf("expected 2 grouped records (one per minute bucket), got %d: %+v", len(out), out)
	}
	if out[0].Text != "hi x3" {
		t.Errorf("expected first bucket collapsed to 'hi x3', got %q", out[0].Text)
	}
	if out[0].T != 1 {
		t.Errorf("expected earliest time preserved, got %v", out[0].T)
	}
	if out[1].Text != "hi" {
		t.Errorf("expected second bucket's single entry unchanged, got %q", out[1].Text)
	}
}

func TestGroupByMinuteZeroBypasses(t *testing.T) {
	list := []domain.Danmaku{{T: 1, Text: "hi"}, {T: 2, Text: "hi"}}
	out := GroupByMinute(list, 0)
	if len(out) != 2 {
		t.Errorf("expected GROUP_MINUTE=0 to bypass dedup, got %d records", len(out))
	}
}

func TestRecolorConvergesToWhiteRatio(t *testing.T) {
	const n = 1000
	list := make([]domain.Danmaku, n)
	for i := range list {
		list[i] = domain.Danmaku{T: float64(i), Mode: 1, Text: "x"}
	}
	out := Recolor(list, 30, []int{0xff0000, 0x00ff00}, false)

	white := 0
	for _, d := range out {
		if d.Color == domain.DefaultDanmakuColor {
			white++
		}
	}
	fraction := float64(white) / float64(n)
	if math.Abs(fraction-0.30) > 0.05 {
		t.Errorf("expected white fraction near 0.30, got %v", fraction)
	}
}

func TestRecolorWindowSmoothness(t *testing.T) {
	const n = 1000
	list := make([]domain.Danmaku, n)
	for i := range list {
		list[i] = domain.Danmaku{T: float64(i), Mode: 1, Text: "x"}
	}
	out := Recolor(list, 40, []int{0xff0000}, false)

	const window = 100
	for start := 0; start+window <= len(out); start += window {
		white := 0
		for _, d := range out[start : start+window] {
			if d.Color == domain.DefaultDanmakuColor {
				white++
			}
		}
		fraction := float64(white) / float64(window)
		if math.Abs(fraction-0.40) > 0.05 {
			t.Errorf("window at %d deviates from 0.40 by more than 5pp: got %v", start, fraction)
		}
	}
}

func TestRecolorConvertsTopBottomToScroll(t *testing.T) {
	list := []domain.Danmaku{{Mode: 4}, {Mode: 5}, {Mode: 1}}
	out := Recolor(list, -1, nil, true)
	for _, d := range out {
		if d.Mode != 1 {
			t.Errorf("expected every mode converted to scroll, got %d", d.Mode)
		}
	}
}

func TestParseRawDetectsXML(t *testing.T) {
	xmlData := []byte(`<i><d p="12.50,1,25,16777215,1751533608,0,0,abc">hello</d></i>`)
	out, err := ParseRaw(xmlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Text != "hello" || out[0].T != 12.5 {
		t.Errorf("unexpected parse result: %+v", out)
	}
}

func TestParseRawDetectsLegacyP(t *testing.T) {
	data := []byte(`[{"p":"3.5,1,16777215,tencent","m":"hi there"}]`)
	out, err := ParseRaw(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Text != "hi there" || out[0].T != 3.5 {
		t.Errorf("unexpected parse result: %+v", out)
	}
}

func TestSerializeJSONFormat(t *testing.T) {
	list := []domain.Danmaku{{T: 1.5, Mode: 1, Color: 16777215, Text: "hi"}}
	resp := SerializeJSON(list, "tencent")
	if resp.Count != 1 || resp.Comments[0].CID != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Comments[0].P != "1.50,1,16777215,[tencent]" {
		t.Errorf("unexpected p field: %s", resp.Comments[0].P)
	}
}

func TestSerializeXMLFixedTimestamp(t *testing.T) {
	list := []domain.Danmaku{{T: 1, Mode: 1, Color: 16777215, Text: "hi"}}
	data, err := SerializeXML(list, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "1751533608") || !strings.Contains(string(data), ",0,0,") {
		t.Errorf("expected fixed legacy timestamp and pool/userHash zeroes in output: %s", data)
	}
}
