package comments

import "strings"

// emojiMap covers the shortcodes seen across QQ/Tencent, Bilibili, Youku,
// iQiyi, Mango/imgo, and Douyin comment streams. Names not present here
// are kept verbatim, per spec/4.5 step 1.
var emojiMap = map[string]string{
	"[微笑]": "🙂", "[笑]": "😄", "[呲牙]": "😁", "[偷笑]": "🤭",
	"[捂脸]": "🤦", "[哭]": "😭", "[大哭]": "😢", "[抠鼻]": "🤏",
	"[doge]": "🐶", "[二哈]": "🐕", "[吃瓜]": "🍉", "[666]": "👍👍👍",
	"[赞]": "👍", "[鼓掌]": "👏", "[比心]": "❤️", "[爱心]": "❤️",
	"[色]": "😍", "[惊讶]": "😮", "[思考]": "🤔", "[尴尬]": "😬",
	"[酷拽]": "😎", "[奋斗]": "💪", "[OK]": "👌", "[胜利]": "✌️",
	"[嘘]": "🤫", "[晕]": "😵", "[再见]": "👋", "[坏笑]": "😏",
	"[费解]": "😕", "[生气]": "😠", "[吐]": "🤮",
}

var shortcodeDelims = [2]byte{'[', ']'}

// replaceEmoji scans for [name] shortcodes and rewrites known ones,
// leaving unrecognized ones untouched.
func replaceEmoji(text string) string {
	if !strings.ContainsRune(text, rune(shortcodeDelims[0])) {
		return text
	}
	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] == shortcodeDelims[0] {
			if end := strings.IndexByte(text[i:], shortcodeDelims[1]); end != -1 {
				code := text[i : i+end+1]
				if repl, ok := emojiMap[code]; ok {
					b.WriteString(repl)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}
