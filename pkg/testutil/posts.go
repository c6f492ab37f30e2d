package testutil

import (
	"strings"

	"roombot/internal/chat"
)

// PostTexts returns the text of each post in order
func PostTexts(posts []chat.PostedMessage) []string {
	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}
	return texts
}

// FilterPostsByRoom returns the posts made to room
func FilterPostsByRoom(posts []chat.PostedMessage, room string) []chat.PostedMessage {
	var filtered []chat.PostedMessage
	for _, p := range posts {
		if p.RoomID == room {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// FindPostContaining returns the most recent post whose text contains substr
func FindPostContaining(posts []chat.PostedMessage, substr string) *chat.PostedMessage {
	for i := len(posts) - 1; i >= 0; i-- {
		if strings.Contains(posts[i].Text, substr) {
			post := posts[i]
			return &post
		}
	}
	return nil
}
