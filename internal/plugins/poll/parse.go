package poll

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// MaxTitleLength is the longest title, in characters, a poll may have.
const MaxTitleLength = 30

const (
	listKey        = "pollList"
	votesKeySuffix = "-votes"
)

var (
	votePattern    = regexp.MustCompile(`^(\S.*?)\s+(\d+)$`)
	numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// NormalizeTitle folds case and trims surrounding space so that titles
// differing only in case name the same poll.
func NormalizeTitle(title string) string {
	return cases.Fold().String(strings.TrimSpace(title))
}

// Key derives the storage key of the poll with this title
func Key(title string) string {
	sum := md5.Sum([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(sum[:])
}

func votesKey(title string) string {
	return NormalizeTitle(title) + votesKeySuffix
}

type definitionError int

const (
	definitionOK definitionError = iota
	definitionMalformed
	definitionTitleTooLong
)

// parseDefinition decodes and validates the JSON given to "poll add".
func parseDefinition(raw string) (Definition, definitionError) {
	var def Definition
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &def); err != nil {
		return Definition{}, definitionMalformed
	}

	def.Title = strings.TrimSpace(def.Title)
	def.Question = strings.TrimSpace(def.Question)
	if def.Title == "" || def.Question == "" || len(def.Options) == 0 {
		return Definition{}, definitionMalformed
	}
	if utf8.RuneCountInString(def.Title) > MaxTitleLength {
		return Definition{}, definitionTitleTooLong
	}
	return def, definitionOK
}

// parseVote splits "<title> <answer number>". ok is false when the text does
// not match or the title is itself a number. An answer too large to
// represent comes back as 0, which no poll has.
func parseVote(text string) (title string, answer int, ok bool) {
	m := votePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", 0, false
	}

	title = strings.TrimSpace(m[1])
	if isNumeric(title) {
		return "", 0, false
	}

	answer, err := strconv.Atoi(m[2])
	if err != nil {
		answer = 0
	}
	return title, answer, true
}

func isNumeric(s string) bool {
	return numericPattern.MatchString(s)
}
