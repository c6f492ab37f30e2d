package poll

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatChart(t *testing.T) {
	tests := []struct {
		name string
		poll Poll
		want string
	}{
		{
			name: "asahi after one vote",
			poll: Poll{Options: []Option{{"Yum", 1}, {"Nope", 0}}},
			want: "1 | # (1) Yum\n2 |   (0) Nope\n",
		},
		{
			name: "no votes",
			poll: Poll{Options: []Option{{"Yum", 0}, {"Nope", 0}}},
			want: "1 |  (0) Yum\n2 |  (0) Nope\n",
		},
		{
			name: "bars align to the highest score",
			poll: Poll{Options: []Option{{"a", 3}, {"b", 1}, {"c", 0}}},
			want: "1 | ### (3) a\n2 | #   (1) b\n3 |     (0) c\n",
		},
		{
			name: "empty poll",
			poll: Poll{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatChart(tt.poll))
		})
	}
}

func TestFormatChart_TruncatesLongAnswers(t *testing.T) {
	exact := strings.Repeat("x", maxAnswerLength)
	long := strings.Repeat("y", maxAnswerLength+10)

	chart := FormatChart(Poll{Options: []Option{{exact, 0}, {long, 0}}})
	lines := strings.Split(strings.TrimSuffix(chart, "\n"), "\n")

	assert.Equal(t, "1 |  (0) "+exact, lines[0])
	assert.Equal(t, "2 |  (0) "+strings.Repeat("y", maxAnswerLength)+"...", lines[1])
}

func TestFormatList(t *testing.T) {
	list := FormatList([]ListEntry{
		{Title: "Asahi", Question: "Is Asahi nice?"},
		{Title: "Kirin", Question: "Better than Asahi?"},
	})
	assert.Equal(t, "• Asahi - Is Asahi nice?\n• Kirin - Better than Asahi?\n", list)
}
