// Package engine runs plugin handlers as suspendable computations.
//
// A handler is ordinary sequential Go code. Every call it makes on its
// Session hands a single request to the Engine and blocks until the Engine has
// fulfilled it against the chat or storage port. Requests are served one at a
// time in the order the handler issues them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"roombot/internal/chat"
	"roombot/internal/command"
	"roombot/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned by Session methods called after the run that
// owns the session has finished.
var ErrSessionClosed = errors.New("session closed")

// Chat is the chat I/O port the engine posts through.
type Chat interface {
	PostMessage(ctx context.Context, room, text string, fixedFont bool) (chat.MessageHandle, error)
	PostReply(ctx context.Context, room string, replyTo int64, text string) (chat.MessageHandle, error)
}

// Handler is a plugin command endpoint.
type Handler func(ctx context.Context, s *Session, cmd *command.Command) error

// PanicError reports a handler that panicked instead of returning.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Report describes a finished run.
type Report struct {
	Label    string
	Requests []RequestKind
}

// Engine fulfils handler requests against its ports. It holds no state
// between runs, so one Engine serves any number of concurrent runs.
type Engine struct {
	chat   Chat
	store  storage.Store
	logger *zap.Logger
	tracer oteltrace.Tracer
}

// New creates an engine over the given ports
func New(chatPort Chat, store storage.Store, logger *zap.Logger) *Engine {
	return &Engine{
		chat:   chatPort,
		store:  store,
		logger: logger.Named("engine"),
		tracer: otel.Tracer("roombot/engine"),
	}
}

// Run executes handler for cmd until it returns or panics. Side effects the
// handler already caused are not rolled back on failure. label names the
// handler in logs and spans.
func (e *Engine) Run(ctx context.Context, label string, handler Handler, cmd *command.Command) (report Report, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.run", oteltrace.WithAttributes(
		attribute.String("handler", label),
		attribute.String("room", cmd.Room()),
		attribute.String("verb", cmd.Verb()),
	))
	defer func() {
		span.SetAttributes(attribute.Int("requests", len(report.Requests)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	report.Label = label
	session := &Session{
		requests: make(chan *request),
		closed:   make(chan struct{}),
	}
	defer close(session.closed)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		done <- handler(ctx, session, cmd)
	}()

	for {
		select {
		case req := <-session.requests:
			report.Requests = append(report.Requests, req.kind)
			req.reply <- e.fulfil(ctx, req)
		case err = <-done:
			if err != nil {
				e.logger.Debug("Handler failed",
					zap.String("handler", label),
					zap.String("room", cmd.Room()),
					zap.Int("requests", len(report.Requests)),
					zap.Error(err))
			}
			return report, err
		}
	}
}

func (e *Engine) fulfil(ctx context.Context, req *request) result {
	e.logger.Debug("Fulfilling request",
		zap.String("kind", req.kind.String()),
		zap.String("room", req.room),
		zap.String("key", req.key))

	var res result
	switch req.kind {
	case RequestPostMessage:
		res.handle, res.err = e.chat.PostMessage(ctx, req.room, req.text, req.fixedFont)
	case RequestPostReply:
		res.handle, res.err = e.chat.PostReply(ctx, req.room, req.replyTo, req.text)
	case RequestExists:
		res.ok, res.err = e.store.Exists(ctx, req.key, req.room)
	case RequestGet:
		res.err = e.store.Get(ctx, req.key, req.room, req.target)
	case RequestSet:
		res.err = e.store.Set(ctx, req.key, req.room, req.value)
	case RequestUnset:
		res.ok, res.err = e.store.Unset(ctx, req.key, req.room)
	default:
		res.err = fmt.Errorf("unknown request kind %d", req.kind)
	}
	return res
}
