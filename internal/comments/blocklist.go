package comments

import (
	"regexp"

	"danmakuproxy/internal/domain"
)

// FilterBlocked drops any comment whose text matches one of the compiled
// BLOCKED_WORDS rules (spec/4.5 step 2). The default rule set's length
// filter (/^.{25,}$/) is expected to already be present in rules.
func FilterBlocked(list []domain.Danmaku, rules []*regexp.Regexp) []domain.Danmaku {
	if len(rules) == 0 {
		return list
	}
	out := list[:0:0]
	for _, d := range list {
		blocked := false
		for _, re := range rules {
			if re.MatchString(d.Text) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, d)
		}
	}
	return out
}
