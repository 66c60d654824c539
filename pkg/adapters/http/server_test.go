package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	eng     *stagehand.Engine
	streams *StreamManager
	handler http.Handler
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	streams := NewStreamManager(logging.NewNop())
	host := memory.NewHost(memory.WithStep(0.5))
	eng, err := stagehand.New(host,
		stagehand.WithLifecycleHooks(streams.Hooks()),
		stagehand.WithScenes(
			domain.SceneEntry{Identifier: "Menu", Units: []string{"MenuRoot"}, ParameterAllowNull: true},
			domain.SceneEntry{Identifier: "Game", Units: []string{"World", "HUD"}, ParameterType: "game.Session"},
		),
	)
	require.NoError(t, err)

	r := runner.New(eng, runner.WithTickables(host), runner.WithTickInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	opts = append([]Option{WithStreams(streams)}, opts...)
	return &fixture{eng: eng, streams: streams, handler: NewHandler(eng, r, opts...)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Scenes(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/scenes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.SceneEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Menu", list[0].Identifier)

	w = f.do(t, http.MethodGet, "/scenes/Game", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry domain.SceneEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, []string{"World", "HUD"}, entry.Units)

	w = f.do(t, http.MethodGet, "/scenes/Nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_TransitionWait(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/transitions", TransitionRequest{
		Identifier:    "Game",
		ParameterType: "game.Session",
		Parameters:    map[string]any{"level": 2},
		Wait:          true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TransitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "committed", resp.Status)
	assert.Equal(t, "Game", resp.Current)
	assert.NotEmpty(t, resp.ID)

	w = f.do(t, http.MethodGet, "/state", nil)
	var state StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "Game", state.Current)
	assert.Equal(t, domain.StateIdle, state.State)
	assert.False(t, state.Busy)
	assert.EqualValues(t, 2, state.Parameters["game.Session"]["level"])
}

func TestServer_TransitionAccepted(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/transitions", TransitionRequest{Identifier: "Menu"})
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool { return f.eng.CurrentState() == "Menu" }, 5*time.Second, 5*time.Millisecond)
}

func TestServer_TransitionErrors(t *testing.T) {
	f := setup(t)

	cases := []struct {
		name string
		body any
		code int
	}{
		{"missing identifier", TransitionRequest{}, http.StatusBadRequest},
		{"unknown scene", TransitionRequest{Identifier: "Nowhere"}, http.StatusNotFound},
		{"missing parameters", TransitionRequest{Identifier: "Game"}, http.StatusBadRequest},
		{"wrong parameter type", TransitionRequest{Identifier: "Game", ParameterType: "menu.Options"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/transitions", tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/transitions", strings.NewReader("{"))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	f := setup(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("stagehand_up 1\n"))
	})))
	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stagehand_up")

	g := setup(t)
	assert.Equal(t, http.StatusNotFound, g.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestServer_EventStream(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?types=commit", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	require.Eventually(t, func() bool { return f.streams.Len() == 1 }, time.Second, time.Millisecond)
	w := f.do(t, http.MethodPost, "/transitions", TransitionRequest{Identifier: "Menu", Wait: true})
	require.Equal(t, http.StatusOK, w.Code)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"type":"commit"`)
	assert.Contains(t, line, `"identifier":"Menu"`)
}

func TestStreamManager_Filter(t *testing.T) {
	sm := NewStreamManager(logging.NewNop())
	all, cancelAll := sm.Subscribe(nil)
	defer cancelAll()
	commits, cancelCommits := sm.Subscribe(map[domain.EventType]bool{domain.EventCommit: true})

	sm.Broadcast(domain.EventProgress, "p")
	sm.Broadcast(domain.EventCommit, "c")

	assert.Equal(t, "p", <-all)
	assert.Equal(t, "c", <-all)
	assert.Equal(t, "c", <-commits)

	cancelCommits()
	cancelCommits()
	assert.Equal(t, 1, sm.Len())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrTransitionInProgress))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(runner.ErrStopped))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
