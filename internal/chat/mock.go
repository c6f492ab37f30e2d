package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PostedMessage records a message posted through the MockClient
type PostedMessage struct {
	RoomID    string
	Text      string
	FixedFont bool
	ReplyTo   int64
	Handle    MessageHandle
	Time      time.Time
}

// MockClient implements ChatClient interface for testing
type MockClient struct {
	userID      int64
	subscribers []subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	connected   bool
	connMu      sync.RWMutex
	posted      []PostedMessage
	rooms       []string
	nextMsgID   int64
	postErr     error
	callsMu     sync.Mutex
}

// mockSubscription implements Subscription interface for MockClient
type mockSubscription struct {
	subID int
	mock  *MockClient
}

func (s *mockSubscription) Unsubscribe() error {
	return s.mock.unsubscribe(s.subID)
}

// NewMockClient creates a new mock chat client signed in as userID
func NewMockClient(userID int64) *MockClient {
	return &MockClient{
		userID:    userID,
		posted:    make([]PostedMessage, 0),
		nextMsgID: 1000,
	}
}

// Connect simulates connecting to the chat service
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false

	m.subsMu.Lock()
	m.subscribers = nil
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// UserID returns the simulated bot account id
func (m *MockClient) UserID() int64 {
	return m.userID
}

// JoinRoom records a joined room
func (m *MockClient) JoinRoom(ctx context.Context, room string) error {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.rooms = append(m.rooms, room)
	return nil
}

// PostMessage records a posted message
func (m *MockClient) PostMessage(ctx context.Context, room, text string, fixedFont bool) (MessageHandle, error) {
	return m.record(room, text, fixedFont, 0)
}

// PostReply records a posted reply
func (m *MockClient) PostReply(ctx context.Context, room string, replyTo int64, text string) (MessageHandle, error) {
	return m.record(room, text, false, replyTo)
}

func (m *MockClient) record(room, text string, fixedFont bool, replyTo int64) (MessageHandle, error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	if m.postErr != nil {
		return MessageHandle{}, m.postErr
	}

	m.nextMsgID++
	handle := MessageHandle{ID: m.nextMsgID, RoomID: room}
	m.posted = append(m.posted, PostedMessage{
		RoomID:    room,
		Text:      text,
		FixedFont: fixedFont,
		ReplyTo:   replyTo,
		Handle:    handle,
		Time:      time.Now(),
	})
	return handle, nil
}

// SubscribeMessages registers a message handler
func (m *MockClient) SubscribeMessages(handler MessageHandler) (Subscription, error) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subID := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriberEntry{subID: subID, handler: handler})

	return &mockSubscription{subID: subID, mock: m}, nil
}

func (m *MockClient) unsubscribe(subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for i, entry := range m.subscribers {
		if entry.subID == subID {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			break
		}
	}
	return nil
}

// SimulateMessage delivers a message to all subscribers (for testing)
func (m *MockClient) SimulateMessage(msg Message) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(msg)
	}
}

// SetPostError makes every following post fail with err (nil restores success)
func (m *MockClient) SetPostError(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.postErr = err
}

// GetPostedMessages returns all recorded posts (for testing)
func (m *MockClient) GetPostedMessages() []PostedMessage {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	posts := make([]PostedMessage, len(m.posted))
	copy(posts, m.posted)
	return posts
}

// GetJoinedRooms returns rooms passed to JoinRoom (for testing)
func (m *MockClient) GetJoinedRooms() []string {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	rooms := make([]string, len(m.rooms))
	copy(rooms, m.rooms)
	return rooms
}

// ClearPostedMessages clears the post history (for testing)
func (m *MockClient) ClearPostedMessages() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.posted = make([]PostedMessage, 0)
}
