package chat

import (
	"encoding/json"
)

// Frame represents a base WebSocket frame to/from the chat service
type Frame struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`

	// Set on auth_ok: the account the bot is signed in as
	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// Error represents an error response from the chat service
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// Event is a raw room event as delivered by the chat service.
// EventType is the numeric discriminator classified by Classify.
type Event struct {
	EventType int    `json:"event_type"`
	ID        int64  `json:"id"`
	MessageID int64  `json:"message_id"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	RoomID    string `json:"room_id"`
	Content   string `json:"content,omitempty"`
	TimeStamp int64  `json:"time_stamp"`
}

// PostMessageRequest represents a post_message request
type PostMessageRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	Text      string `json:"text"`
	FixedFont bool   `json:"fixed_font,omitempty"`
	ReplyTo   int64  `json:"reply_to,omitempty"`
}

// JoinRoomRequest represents a join_room request
type JoinRoomRequest struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PostMessageResult is the result payload of a successful post_message
type PostMessageResult struct {
	MessageID int64  `json:"message_id"`
	RoomID    string `json:"room_id"`
}

// MessageHandle identifies a message the bot has posted.
type MessageHandle struct {
	ID     int64
	RoomID string
}

// MessageHandler is called for every classified inbound message
type MessageHandler func(msg Message)

// Subscription represents an active message subscription
type Subscription interface {
	Unsubscribe() error
}

// subscription implements Subscription interface
type subscription struct {
	subID  int
	client *Client
}

func (s *subscription) Unsubscribe() error {
	return s.client.unsubscribe(s.subID)
}
