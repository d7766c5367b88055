package store

import "strings"

// 消息入库前做词表遮蔽，而不是拒绝发送
var defaultBadWords = []string{
	"damn", "hell", "crap", "stupid", "idiot", "dumb",
	"shit", "fuck", "bitch", "bastard", "asshole",
}

// ProfanityFilter 把命中的词替换为等长的星号
type ProfanityFilter struct {
	words []string
}

func NewProfanityFilter() *ProfanityFilter {
	return &ProfanityFilter{words: defaultBadWords}
}

func (f *ProfanityFilter) Clean(text string) string {
	cleaned := text
	lower := strings.ToLower(text)
	for _, w := range f.words {
		idx := 0
		for {
			i := strings.Index(lower[idx:], w)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(w)
			cleaned = cleaned[:start] + strings.Repeat("*", len(w)) + cleaned[end:]
			idx = end
		}
	}
	return cleaned
}
