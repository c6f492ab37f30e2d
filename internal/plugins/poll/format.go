package poll

import (
	"fmt"
	"strings"
)

// maxAnswerLength is where chart answers get cut off.
const maxAnswerLength = 50

// FormatChart renders one line per option in order:
//
//	1 | # (1) Yum
//	2 |   (0) Nope
//
// Bars are padded to the highest score so the counts line up.
func FormatChart(p Poll) string {
	maxScore := 0
	for _, opt := range p.Options {
		if opt.Score > maxScore {
			maxScore = opt.Score
		}
	}

	var b strings.Builder
	for i, opt := range p.Options {
		score := max(opt.Score, 0)
		fmt.Fprintf(&b, "%d | %s%s (%d) %s\n",
			i+1,
			strings.Repeat("#", score),
			strings.Repeat(" ", maxScore-score),
			opt.Score,
			truncate(opt.Answer, maxAnswerLength))
	}
	return b.String()
}

// FormatList renders the room's poll list, one bullet per poll.
func FormatList(entries []ListEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s - %s\n", e.Title, e.Question)
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
