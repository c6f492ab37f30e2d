package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roombot/internal/plugins/poll"
	"roombot/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *testutil.TestEnv) {
	env, err := testutil.NewTestEnv(poll.New)
	require.NoError(t, err)
	return NewServer(env.Registry, env.Store, env.Recorder, env.Logger, 0), env
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandlePlugins(t *testing.T) {
	s, env := newTestServer(t)
	env.Send("12", 31, "alice", "!!plugin disable poll")

	t.Run("default enablement", func(t *testing.T) {
		w := get(t, s, "/api/plugins?room=11")
		require.Equal(t, http.StatusOK, w.Code)

		var response PluginsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, "11", response.Room)
		assert.Equal(t, []string{"plugin"}, response.BuiltIns)
		require.Len(t, response.Plugins, 1)
		assert.Equal(t, "poll", response.Plugins[0].Name)
		assert.True(t, response.Plugins[0].Enabled)
		require.Len(t, response.Plugins[0].Endpoints, 1)
		assert.Equal(t, []string{"poll"}, response.Plugins[0].Endpoints[0].Mapped)
	})

	t.Run("disabled room", func(t *testing.T) {
		w := get(t, s, "/api/plugins?room=12")
		require.Equal(t, http.StatusOK, w.Code)

		var response PluginsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		require.Len(t, response.Plugins, 1)
		assert.False(t, response.Plugins[0].Enabled)
		assert.Empty(t, response.Plugins[0].Endpoints[0].Mapped)
	})

	t.Run("missing room", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/plugins").Code)
	})
}

func TestHandleInvocations(t *testing.T) {
	s, env := newTestServer(t)

	env.Send("11", 31, "alice", "!!poll list")
	env.Send("11", 31, "alice", "!!plugin list")
	env.Clock.Advance(3 * time.Minute)

	w := get(t, s, "/api/invocations?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var response InvocationsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	require.Len(t, response.Invocations, 1)
	latest := response.Invocations[0]
	assert.Equal(t, "builtin/plugin", latest.Handler)
	assert.Equal(t, "3 minutes ago", latest.Age)
	assert.NotEmpty(t, latest.ID)

	assert.Equal(t, 1, response.Stats["poll/Poll"].Runs)
	assert.Equal(t, 1, response.Stats["builtin/plugin"].Runs)
}

func TestHandleInvocations_BadLimit(t *testing.T) {
	s, _ := newTestServer(t)

	for _, limit := range []string{"0", "-2", "many"} {
		t.Run(limit, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/invocations?limit="+limit).Code)
		})
	}
}

func TestHandleSitemap(t *testing.T) {
	s, _ := newTestServer(t)

	w := get(t, s, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/plugins?room=<id>")

	assert.Equal(t, http.StatusNotFound, get(t, s, "/nope").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/health", "/api/plugins?room=11", "/api/invocations"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
	}
}
