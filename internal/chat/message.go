package chat

import "time"

// Kind is the closed set of message variants the rest of the bot sees.
type Kind int

const (
	KindUnknown Kind = iota
	KindNew
	KindEdit
	KindDelete
	KindUserEnter
	KindUserLeave
	KindRoomEdit
	KindStar
	KindMention
	KindHeartbeat
)

// Wire event type discriminators
const (
	eventNewMessage     = 1
	eventEditMessage    = 2
	eventUserEnter      = 3
	eventUserLeave      = 4
	eventRoomEdit       = 5
	eventStarMessage    = 6
	eventMentionMessage = 8
	eventDeleteMessage  = 10
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindNew:       "new",
	KindEdit:      "edit",
	KindDelete:    "delete",
	KindUserEnter: "enter",
	KindUserLeave: "leave",
	KindRoomEdit:  "room-edit",
	KindStar:      "star",
	KindMention:   "mention",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Message is a classified inbound chat event.
type Message struct {
	Kind      Kind
	ID        int64
	ActionID  int64
	UserID    int64
	UserName  string
	RoomID    string
	Content   string
	Timestamp time.Time
}

// IsTextual reports whether the message carries user text that may hold a command.
func (m Message) IsTextual() bool {
	return m.Kind == KindNew || m.Kind == KindMention
}

// Classify turns a raw frame into a Message. Frames without an event are heartbeats.
func Classify(frame *Frame) Message {
	if frame == nil || frame.Event == nil {
		return Message{Kind: KindHeartbeat}
	}

	e := frame.Event
	msg := Message{
		Kind:     kindForEventType(e.EventType),
		ID:       e.MessageID,
		ActionID: e.ID,
		UserID:   e.UserID,
		UserName: e.UserName,
		RoomID:   e.RoomID,
		Content:  e.Content,
	}
	if e.TimeStamp > 0 {
		msg.Timestamp = time.Unix(e.TimeStamp, 0).UTC()
	}
	return msg
}

func kindForEventType(eventType int) Kind {
	switch eventType {
	case eventNewMessage:
		return KindNew
	case eventEditMessage:
		return KindEdit
	case eventUserEnter:
		return KindUserEnter
	case eventUserLeave:
		return KindUserLeave
	case eventRoomEdit:
		return KindRoomEdit
	case eventStarMessage:
		return KindStar
	case eventMentionMessage:
		return KindMention
	case eventDeleteMessage:
		return KindDelete
	default:
		return KindUnknown
	}
}
