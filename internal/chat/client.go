package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds how long a request waits for its result frame.
const DefaultRequestTimeout = 10 * time.Second

// ChatClient defines the interface for the chat service WebSocket client
type ChatClient interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	UserID() int64
	JoinRoom(ctx context.Context, room string) error
	PostMessage(ctx context.Context, room, text string, fixedFont bool) (MessageHandle, error)
	PostReply(ctx context.Context, room string, replyTo int64, text string) (MessageHandle, error)
	SubscribeMessages(handler MessageHandler) (Subscription, error)
}

// subscriberEntry holds a handler with its unique subscription ID
type subscriberEntry struct {
	subID   int
	handler MessageHandler
}

// Client implements ChatClient interface
type Client struct {
	url            string
	token          string
	logger         *zap.Logger
	requestTimeout time.Duration
	conn           *websocket.Conn
	connected      bool
	userID         int64
	connMu         sync.RWMutex
	msgID          int
	msgIDMu        sync.Mutex
	pending        map[int]chan Frame
	pendingMu      sync.Mutex
	subscribers    []subscriberEntry
	subsMu         sync.RWMutex
	nextSubID      int
	rooms          map[string]struct{}
	roomsMu        sync.Mutex
	ctx            context.Context
	cancel         context.CancelFunc
	reconnect      bool
	writeMu        sync.Mutex // Protects websocket writes
}

// NewClient creates a new chat service WebSocket client
func NewClient(url, token string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:            url,
		token:          token,
		logger:         logger.Named("chat"),
		requestTimeout: DefaultRequestTimeout,
		pending:        make(map[int]chan Frame),
		rooms:          make(map[string]struct{}),
		ctx:            ctx,
		cancel:         cancel,
		reconnect:      true,
	}
}

// SetRequestTimeout changes the per-request timeout. Zero waits forever.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.requestTimeout = d
}

func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Connect establishes WebSocket connection and authenticates
func (c *Client) Connect() error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	c.conn = conn

	var authRequired Frame
	if err := c.conn.ReadJSON(&authRequired); err != nil {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("failed to read auth_required: %w", err)
	}

	if authRequired.Type != "auth_required" {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("expected auth_required, got %s", authRequired.Type)
	}

	c.writeMu.Lock()
	err = c.conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token})
	c.writeMu.Unlock()

	if err != nil {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("failed to send auth: %w", err)
	}

	var authResponse Frame
	if err := c.conn.ReadJSON(&authResponse); err != nil {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if authResponse.Type == "auth_invalid" {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("authentication failed: invalid token")
	}

	if authResponse.Type != "auth_ok" {
		c.conn.Close()
		c.connMu.Unlock()
		return fmt.Errorf("expected auth_ok, got %s", authResponse.Type)
	}

	c.resetContextLocked()
	c.connected = true
	c.reconnect = true
	c.userID = authResponse.UserID
	c.logger.Info("Connected to chat service",
		zap.Int64("user_id", authResponse.UserID),
		zap.String("user_name", authResponse.UserName))

	go c.receiveMessages()

	// Release lock before rejoining rooms to avoid deadlock
	c.connMu.Unlock()

	c.rejoinRooms()

	return nil
}

// Disconnect closes the WebSocket connection
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Stop any pending reconnect loop even if the connection already dropped
	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}

	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.subsMu.Lock()
	c.subscribers = nil
	c.subsMu.Unlock()

	c.logger.Info("Disconnected from chat service")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// UserID returns the id of the account the client authenticated as
func (c *Client) UserID() int64 {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.userID
}

// nextMsgID returns the next message ID
func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// sendMessage sends a request frame and waits for its result
func (c *Client) sendMessage(ctx context.Context, msgID int, msg interface{}) (*Frame, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, fmt.Errorf("not connected")
	}
	conn := c.conn
	clientCtx := c.ctx
	requestTimeout := c.requestTimeout
	c.connMu.RUnlock()

	respChan := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[msgID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var timeout <-chan time.Time
	if requestTimeout > 0 {
		timer := time.NewTimer(requestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("chat error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return &resp, nil
	case <-timeout:
		return nil, fmt.Errorf("timeout waiting for response")
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-clientCtx.Done():
		return nil, fmt.Errorf("client disconnected")
	}
}

// receiveMessages handles incoming frames in the background
func (c *Client) receiveMessages() {
	c.connMu.RLock()
	conn := c.conn
	ctx := c.ctx
	c.connMu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect()
			return
		}

		switch frame.Type {
		case "event", "heartbeat":
			c.notify(Classify(&frame))
			continue
		}

		// Route response to waiting goroutine
		if frame.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[frame.ID]; ok {
				select {
				case ch <- frame:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", frame.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

// notify hands a classified message to every subscriber
func (c *Client) notify(msg Message) {
	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(msg)
	}
}

// handleDisconnect handles connection loss
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	c.connected = false
	reconnect := c.reconnect
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if !reconnect {
		return
	}

	go c.attemptReconnect()
}

// attemptReconnect tries to reconnect with exponential backoff
func (c *Client) attemptReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		c.connMu.RLock()
		ctx := c.ctx
		c.connMu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}

// JoinRoom asks the chat service to deliver events for a room.
// Joined rooms are rejoined automatically after a reconnect.
func (c *Client) JoinRoom(ctx context.Context, room string) error {
	msgID := c.nextMsgID()
	req := &JoinRoomRequest{
		ID:     msgID,
		Type:   "join_room",
		RoomID: room,
	}

	if _, err := c.sendMessage(ctx, msgID, req); err != nil {
		return fmt.Errorf("failed to join room %s: %w", room, err)
	}

	c.roomsMu.Lock()
	c.rooms[room] = struct{}{}
	c.roomsMu.Unlock()
	return nil
}

func (c *Client) rejoinRooms() {
	c.roomsMu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.roomsMu.Unlock()

	for _, room := range rooms {
		if err := c.JoinRoom(context.Background(), room); err != nil {
			c.logger.Warn("Failed to rejoin room", zap.String("room", room), zap.Error(err))
		}
	}
}

// PostMessage posts text to a room
func (c *Client) PostMessage(ctx context.Context, room, text string, fixedFont bool) (MessageHandle, error) {
	return c.post(ctx, &PostMessageRequest{
		RoomID:    room,
		Text:      text,
		FixedFont: fixedFont,
	})
}

// PostReply posts text to a room as a reply to an existing message
func (c *Client) PostReply(ctx context.Context, room string, replyTo int64, text string) (MessageHandle, error) {
	return c.post(ctx, &PostMessageRequest{
		RoomID:  room,
		Text:    text,
		ReplyTo: replyTo,
	})
}

func (c *Client) post(ctx context.Context, req *PostMessageRequest) (MessageHandle, error) {
	req.ID = c.nextMsgID()
	req.Type = "post_message"

	resp, err := c.sendMessage(ctx, req.ID, req)
	if err != nil {
		return MessageHandle{}, err
	}

	var result PostMessageResult
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return MessageHandle{}, fmt.Errorf("failed to unmarshal post result: %w", err)
		}
	}
	if result.RoomID == "" {
		result.RoomID = req.RoomID
	}

	return MessageHandle{ID: result.MessageID, RoomID: result.RoomID}, nil
}

// SubscribeMessages registers a handler for every classified inbound message
func (c *Client) SubscribeMessages(handler MessageHandler) (Subscription, error) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	subID := c.nextSubID
	c.nextSubID++
	c.subscribers = append(c.subscribers, subscriberEntry{
		subID:   subID,
		handler: handler,
	})

	return &subscription{subID: subID, client: c}, nil
}

// unsubscribe removes a specific subscription by its ID
func (c *Client) unsubscribe(subID int) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for i, entry := range c.subscribers {
		if entry.subID == subID {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			break
		}
	}

	return nil
}
