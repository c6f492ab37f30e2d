package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"roombot/internal/chat"
	"roombot/internal/command"
	"roombot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() (*Engine, *chat.MockClient, *storage.MemoryStore) {
	client := chat.NewMockClient(7)
	store := storage.NewMemoryStore()
	return New(client, store, zap.NewNop()), client, store
}

func testCommand() *command.Command {
	return command.New(900, "11", 31, "alice", "poll", "list")
}

func TestEngine_RunsRequestsInOrder(t *testing.T) {
	eng, client, _ := newTestEngine()

	report, err := eng.Run(context.Background(), "ordered", func(ctx context.Context, s *Session, cmd *command.Command) error {
		for _, text := range []string{"one", "two", "three"} {
			if _, err := s.PostMessage(cmd.Room(), text, false); err != nil {
				return err
			}
		}
		_, err := s.PostReply(cmd, "done")
		return err
	}, testCommand())
	require.NoError(t, err)

	posts := client.GetPostedMessages()
	require.Len(t, posts, 4)
	assert.Equal(t, "one", posts[0].Text)
	assert.Equal(t, "two", posts[1].Text)
	assert.Equal(t, "three", posts[2].Text)
	assert.Equal(t, "done", posts[3].Text)
	assert.Equal(t, int64(900), posts[3].ReplyTo)
	assert.Equal(t, "11", posts[3].RoomID)

	assert.Equal(t, "ordered", report.Label)
	assert.Equal(t, []RequestKind{
		RequestPostMessage, RequestPostMessage, RequestPostMessage, RequestPostReply,
	}, report.Requests)
}

func TestEngine_StorageRequests(t *testing.T) {
	eng, _, store := newTestEngine()

	type entry struct {
		Title string `json:"title"`
	}

	_, err := eng.Run(context.Background(), "storage", func(ctx context.Context, s *Session, cmd *command.Command) error {
		ok, err := s.Exists("k", cmd.Room())
		if err != nil || ok {
			return errors.New("expected missing key")
		}
		if err := s.Set("k", cmd.Room(), entry{Title: "Asahi"}); err != nil {
			return err
		}

		var got entry
		if err := s.Get("k", cmd.Room(), &got); err != nil {
			return err
		}
		if got.Title != "Asahi" {
			return errors.New("unexpected value")
		}

		removed, err := s.Unset("k", cmd.Room())
		if err != nil || !removed {
			return errors.New("expected removal")
		}
		return nil
	}, testCommand())
	require.NoError(t, err)

	ok, err := store.Exists(context.Background(), "k", "11")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_MissingKeyReachesHandler(t *testing.T) {
	eng, _, _ := newTestEngine()

	var seen error
	_, err := eng.Run(context.Background(), "missing", func(ctx context.Context, s *Session, cmd *command.Command) error {
		var v string
		seen = s.Get("absent", cmd.Room(), &v)
		return nil
	}, testCommand())
	require.NoError(t, err)

	var missing *storage.MissingKeyError
	require.True(t, errors.As(seen, &missing))
	assert.Equal(t, "absent", missing.Key)
}

func TestEngine_ErrorStopsHandlerButKeepsSideEffects(t *testing.T) {
	eng, client, _ := newTestEngine()
	boom := errors.New("boom")

	report, err := eng.Run(context.Background(), "failing", func(ctx context.Context, s *Session, cmd *command.Command) error {
		if _, err := s.PostMessage(cmd.Room(), "before", false); err != nil {
			return err
		}
		if err := s.Set("k", cmd.Room(), 1); err != nil {
			return err
		}
		return boom
	}, testCommand())

	require.ErrorIs(t, err, boom)
	assert.Len(t, client.GetPostedMessages(), 1)
	assert.Len(t, report.Requests, 2)
}

func TestEngine_PanicBecomesPanicError(t *testing.T) {
	eng, client, _ := newTestEngine()

	_, err := eng.Run(context.Background(), "panicky", func(ctx context.Context, s *Session, cmd *command.Command) error {
		s.PostMessage(cmd.Room(), "first", false)
		panic("kaboom")
	}, testCommand())

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Len(t, client.GetPostedMessages(), 1)
}

func TestEngine_PanicWithErrorUnwraps(t *testing.T) {
	eng, _, _ := newTestEngine()
	cause := errors.New("cause")

	_, err := eng.Run(context.Background(), "panicky", func(ctx context.Context, s *Session, cmd *command.Command) error {
		panic(cause)
	}, testCommand())

	assert.ErrorIs(t, err, cause)
}

func TestEngine_PortErrorIsDeliveredToHandler(t *testing.T) {
	eng, client, _ := newTestEngine()
	client.SetPostError(errors.New("room_not_found"))

	var postErr error
	_, err := eng.Run(context.Background(), "post", func(ctx context.Context, s *Session, cmd *command.Command) error {
		_, postErr = s.PostMessage(cmd.Room(), "hi", false)
		return nil
	}, testCommand())

	require.NoError(t, err, "handler chose to swallow the error")
	require.Error(t, postErr)
	assert.Contains(t, postErr.Error(), "room_not_found")
}

func TestEngine_SessionClosedAfterRun(t *testing.T) {
	eng, client, _ := newTestEngine()

	var leaked *Session
	_, err := eng.Run(context.Background(), "leak", func(ctx context.Context, s *Session, cmd *command.Command) error {
		leaked = s
		return nil
	}, testCommand())
	require.NoError(t, err)

	_, err = leaked.PostMessage("11", "late", false)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, client.GetPostedMessages())
}

func TestEngine_ConcurrentRunsAreIndependent(t *testing.T) {
	eng, client, _ := newTestEngine()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Run(context.Background(), "concurrent", func(ctx context.Context, s *Session, cmd *command.Command) error {
				if i%2 == 0 {
					return errors.New("even runs fail")
				}
				_, err := s.PostMessage(cmd.Room(), "ok", false)
				return err
			}, testCommand())
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	failures := 0
	for range errs {
		failures++
	}
	assert.Equal(t, 5, failures)
	assert.Len(t, client.GetPostedMessages(), 5)
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, "post-reply", RequestPostReply.String())
	assert.Equal(t, "unset", RequestUnset.String())
	assert.Equal(t, "unknown", RequestKind(99).String())
}
