package engine

import (
	"roombot/internal/chat"
	"roombot/internal/command"
)

// RequestKind identifies what a suspended handler asked for.
type RequestKind int

const (
	RequestPostMessage RequestKind = iota
	RequestPostReply
	RequestExists
	RequestGet
	RequestSet
	RequestUnset
)

var requestKindNames = map[RequestKind]string{
	RequestPostMessage: "post-message",
	RequestPostReply:   "post-reply",
	RequestExists:      "exists",
	RequestGet:         "get",
	RequestSet:         "set",
	RequestUnset:       "unset",
}

func (k RequestKind) String() string {
	if name, ok := requestKindNames[k]; ok {
		return name
	}
	return "unknown"
}

type request struct {
	kind      RequestKind
	room      string
	key       string
	text      string
	fixedFont bool
	replyTo   int64
	value     any
	target    any
	reply     chan result
}

type result struct {
	handle chat.MessageHandle
	ok     bool
	err    error
}

// Session is a handler's only path to I/O. Each method suspends the handler
// until the engine has served the request.
type Session struct {
	requests chan *request
	closed   chan struct{}
}

func (s *Session) do(req *request) result {
	req.reply = make(chan result, 1)
	select {
	case s.requests <- req:
	case <-s.closed:
		return result{err: ErrSessionClosed}
	}
	return <-req.reply
}

// PostMessage sends text to room
func (s *Session) PostMessage(room, text string, fixedFont bool) (chat.MessageHandle, error) {
	res := s.do(&request{kind: RequestPostMessage, room: room, text: text, fixedFont: fixedFont})
	return res.handle, res.err
}

// PostReply answers the message cmd came from, in cmd's room
func (s *Session) PostReply(cmd *command.Command, text string) (chat.MessageHandle, error) {
	res := s.do(&request{kind: RequestPostReply, room: cmd.Room(), replyTo: cmd.Origin(), text: text})
	return res.handle, res.err
}

// Exists reports whether key has a value in room
func (s *Session) Exists(key, room string) (bool, error) {
	res := s.do(&request{kind: RequestExists, key: key, room: room})
	return res.ok, res.err
}

// Get decodes the stored value for key in room into target
func (s *Session) Get(key, room string, target any) error {
	return s.do(&request{kind: RequestGet, key: key, room: room, target: target}).err
}

// Set stores value under key in room
func (s *Session) Set(key, room string, value any) error {
	return s.do(&request{kind: RequestSet, key: key, room: room, value: value}).err
}

// Unset removes key from room, reporting whether it was present
func (s *Session) Unset(key, room string) (bool, error) {
	res := s.do(&request{kind: RequestUnset, key: key, room: room})
	return res.ok, res.err
}
