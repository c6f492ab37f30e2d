// Package command holds the parsed form of a user command and the prefix
// tokenizer that turns chat text into one.
package command

import (
	"strings"
	"unicode"

	"roombot/internal/chat"
)

// DefaultPrefix introduces a command in chat text, e.g. "!!poll list".
const DefaultPrefix = "!!"

// Command is a parsed, room-scoped user request. It is immutable once built.
type Command struct {
	origin   int64
	room     string
	userID   int64
	userName string
	verb     string
	text     string
	params   []string
}

// New builds a command from its parts. text is everything after the verb;
// parameters are its whitespace-delimited fields.
func New(origin int64, room string, userID int64, userName, verb, text string) *Command {
	text = strings.TrimSpace(text)
	return &Command{
		origin:   origin,
		room:     room,
		userID:   userID,
		userName: userName,
		verb:     strings.ToLower(verb),
		text:     text,
		params:   strings.Fields(text),
	}
}

// Parse extracts a command from a textual chat message. It reports false when
// the message is not textual or does not start with prefix followed by a verb.
func Parse(msg chat.Message, prefix string) (*Command, bool) {
	if !msg.IsTextual() {
		return nil, false
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, prefix) {
		return nil, false
	}
	content = content[len(prefix):]

	verb, rest := content, ""
	if idx := strings.IndexFunc(content, unicode.IsSpace); idx >= 0 {
		verb, rest = content[:idx], content[idx:]
	}
	if verb == "" {
		return nil, false
	}

	return New(msg.ID, msg.RoomID, msg.UserID, msg.UserName, verb, rest), true
}

// Origin returns the id of the message the command came from
func (c *Command) Origin() int64 { return c.origin }

// Room returns the room the command was issued in
func (c *Command) Room() string { return c.room }

// UserID returns the acting user's id
func (c *Command) UserID() int64 { return c.userID }

// UserName returns the acting user's display name
func (c *Command) UserName() string { return c.userName }

// Verb returns the lower-cased command name
func (c *Command) Verb() string { return c.verb }

// Text returns the raw text following the verb
func (c *Command) Text() string { return c.text }

// Parameters returns a copy of the positional parameters
func (c *Command) Parameters() []string {
	params := make([]string, len(c.params))
	copy(params, c.params)
	return params
}

// ParamCount returns the number of positional parameters
func (c *Command) ParamCount() int { return len(c.params) }

// Parameter returns the parameter at index, or false when out of range.
func (c *Command) Parameter(index int) (string, bool) {
	if index < 0 || index >= len(c.params) {
		return "", false
	}
	return c.params[index], true
}

// TextAfter returns the raw text following the first n parameters, with
// original spacing preserved.
func (c *Command) TextAfter(n int) string {
	rest := c.text
	for i := 0; i < n; i++ {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		rest = rest[idx:]
	}
	return strings.TrimSpace(rest)
}
