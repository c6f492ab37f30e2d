package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"roombot/internal/chat"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) write(frame chat.Frame) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(frame)
}

// MockChatServer simulates the chat service WebSocket endpoint: it
// authenticates a token, accepts room joins, records posts and pushes room
// events to connected clients.
type MockChatServer struct {
	server      *httptest.Server
	token       string
	botUserID   int64
	connections []*connWrapper
	connsMu     sync.Mutex

	posted    []chat.PostedMessage
	rooms     []string
	nextMsgID int64
	nextEvent int64
	callsMu   sync.Mutex
}

// NewMockChatServer creates a server that accepts token and signs clients in
// as botUserID
func NewMockChatServer(token string, botUserID int64) *MockChatServer {
	return &MockChatServer{
		token:     token,
		botUserID: botUserID,
		nextMsgID: 5000,
		nextEvent: 9000,
	}
}

// Start starts the mock server on a random local port
func (s *MockChatServer) Start() {
	s.server = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
}

// URL returns the WebSocket URL clients should dial
func (s *MockChatServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Stop closes every connection and the listener
func (s *MockChatServer) Stop() {
	s.connsMu.Lock()
	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
	s.connsMu.Unlock()

	if s.server != nil {
		s.server.Close()
	}
}

func (s *MockChatServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wrapper := &connWrapper{conn: conn}

	defer func() {
		s.connsMu.Lock()
		for i, c := range s.connections {
			if c == wrapper {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
		conn.Close()
	}()

	if err := wrapper.write(chat.Frame{Type: "auth_required"}); err != nil {
		return
	}

	var authMsg chat.AuthMessage
	if err := conn.ReadJSON(&authMsg); err != nil {
		return
	}
	if authMsg.AccessToken != s.token {
		wrapper.write(chat.Frame{Type: "auth_invalid"})
		return
	}
	if err := wrapper.write(chat.Frame{Type: "auth_ok", UserID: s.botUserID, UserName: "roombot"}); err != nil {
		return
	}

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	for {
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			continue
		}

		switch base.Type {
		case "join_room":
			s.handleJoinRoom(wrapper, raw)
		case "post_message":
			s.handlePostMessage(wrapper, raw)
		}
	}
}

func (s *MockChatServer) handleJoinRoom(wrapper *connWrapper, raw json.RawMessage) {
	var req chat.JoinRoomRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}

	s.callsMu.Lock()
	s.rooms = append(s.rooms, req.RoomID)
	s.callsMu.Unlock()

	success := true
	wrapper.write(chat.Frame{ID: req.ID, Type: "result", Success: &success})
}

func (s *MockChatServer) handlePostMessage(wrapper *connWrapper, raw json.RawMessage) {
	var req chat.PostMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}

	s.callsMu.Lock()
	s.nextMsgID++
	handle := chat.MessageHandle{ID: s.nextMsgID, RoomID: req.RoomID}
	s.posted = append(s.posted, chat.PostedMessage{
		RoomID:    req.RoomID,
		Text:      req.Text,
		FixedFont: req.FixedFont,
		ReplyTo:   req.ReplyTo,
		Handle:    handle,
		Time:      time.Now(),
	})
	s.callsMu.Unlock()

	result, _ := json.Marshal(chat.PostMessageResult{MessageID: handle.ID, RoomID: handle.RoomID})
	success := true
	wrapper.write(chat.Frame{ID: req.ID, Type: "result", Success: &success, Result: result})
}

// SendMessage broadcasts a new-message event as if userName said text in
// room, and returns the message id it was given
func (s *MockChatServer) SendMessage(room string, userID int64, userName, text string) int64 {
	s.callsMu.Lock()
	s.nextEvent++
	eventID := s.nextEvent
	s.nextMsgID++
	msgID := s.nextMsgID
	s.callsMu.Unlock()

	s.broadcast(chat.Frame{
		Type: "event",
		Event: &chat.Event{
			EventType: 1,
			ID:        eventID,
			MessageID: msgID,
			UserID:    userID,
			UserName:  userName,
			RoomID:    room,
			Content:   text,
			TimeStamp: time.Now().Unix(),
		},
	})
	return msgID
}

func (s *MockChatServer) broadcast(frame chat.Frame) {
	s.connsMu.Lock()
	wrappers := make([]*connWrapper, len(s.connections))
	copy(wrappers, s.connections)
	s.connsMu.Unlock()

	for _, wrapper := range wrappers {
		wrapper.write(frame)
	}
}

// ConnectionCount returns how many authenticated clients are connected
func (s *MockChatServer) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.connections)
}

// GetPostedMessages returns all posts since the last clear
func (s *MockChatServer) GetPostedMessages() []chat.PostedMessage {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	posts := make([]chat.PostedMessage, len(s.posted))
	copy(posts, s.posted)
	return posts
}

// GetJoinedRooms returns every room a client asked to join
func (s *MockChatServer) GetJoinedRooms() []string {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	rooms := make([]string, len(s.rooms))
	copy(rooms, s.rooms)
	return rooms
}

// ClearPostedMessages resets the post log
func (s *MockChatServer) ClearPostedMessages() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.posted = nil
}

// WaitForPosts polls until at least n posts were recorded or timeout
// elapses, and returns whatever was recorded
func (s *MockChatServer) WaitForPosts(n int, timeout time.Duration) []chat.PostedMessage {
	deadline := time.Now().Add(timeout)
	for {
		posts := s.GetPostedMessages()
		if len(posts) >= n || time.Now().After(deadline) {
			return posts
		}
		time.Sleep(10 * time.Millisecond)
	}
}
