package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		eventType int
		want      Kind
		textual   bool
	}{
		{"new message", 1, KindNew, true},
		{"edit message", 2, KindEdit, false},
		{"user enter", 3, KindUserEnter, false},
		{"user leave", 4, KindUserLeave, false},
		{"room edit", 5, KindRoomEdit, false},
		{"star", 6, KindStar, false},
		{"mention", 8, KindMention, true},
		{"delete", 10, KindDelete, false},
		{"unassigned type", 7, KindUnknown, false},
		{"future type", 99, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Classify(&Frame{
				Type: "event",
				Event: &Event{
					EventType: tt.eventType,
					ID:        1,
					MessageID: 2,
					UserID:    3,
					UserName:  "bob",
					RoomID:    "11",
					Content:   "hi",
				},
			})

			assert.Equal(t, tt.want, msg.Kind)
			assert.Equal(t, tt.textual, msg.IsTextual())
			assert.Equal(t, int64(2), msg.ID)
			assert.Equal(t, int64(1), msg.ActionID)
			assert.Equal(t, "11", msg.RoomID)
		})
	}
}

func TestClassify_Heartbeat(t *testing.T) {
	assert.Equal(t, KindHeartbeat, Classify(&Frame{Type: "heartbeat"}).Kind)
	assert.Equal(t, KindHeartbeat, Classify(nil).Kind)
}

func TestClassify_ZeroTimestamp(t *testing.T) {
	msg := Classify(&Frame{Event: &Event{EventType: 1}})
	assert.True(t, msg.Timestamp.IsZero())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "room-edit", KindRoomEdit.String())
	assert.Equal(t, "heartbeat", KindHeartbeat.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
