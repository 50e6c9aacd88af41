package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/fairway/internal/config"
	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/lifecycle"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/session"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

const dt = 1.0 / 120.0

func newBridge(t *testing.T, mutate func(cfg *config.BridgeConfig)) (*Server, *session.Session) {
	t.Helper()
	cfg := config.Default()
	sess, err := session.New(cfg, log.NewNop(), bus.New(), physics.NewWorld(physics.DefaultConfig(), log.NewNop()))
	require.NoError(t, err)

	bridge := cfg.Bridge
	bridge.Addr = "127.0.0.1:0"
	bridge.Mode = gin.TestMode
	if mutate != nil {
		mutate(&bridge)
	}
	srv, err := New(bridge, sess, log.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = srv.Close()
		_ = sess.Close()
	})
	return srv, sess
}

func perform(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Contains(t, rec.Body.String(), sess.ID())
}

func TestHealthReportsBus(t *testing.T) {
	srv, sess := newBridge(t, nil)
	require.NoError(t, sess.RequestSwing(nil))
	require.NoError(t, sess.Tick(dt))

	rec := perform(srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Bus            bus.EventBusMetrics `json:"bus"`
		Topics         []bus.TopicInfo     `json:"topics"`
		SlowDeliveries uint64              `json:"slowDeliveries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotZero(t, body.Bus.Published)
	require.NotZero(t, body.Bus.DeliveredHandlers)
	require.EqualValues(t, 2, body.Bus.Topics)

	require.Len(t, body.Topics, 2)
	require.Equal(t, lifecycle.Topic, body.Topics[0].Name)
	require.Equal(t, state.Topic, body.Topics[1].Name)
	for _, topic := range body.Topics {
		require.NotZero(t, topic.Subs, topic.Name)
	}
}

func TestState(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"phase":"idle"`)
	require.Contains(t, rec.Body.String(), `"score":0`)
	require.Equal(t, strconv.FormatUint(state.Digest(sess.Snapshot()), 16), rec.Header().Get(DigestHeader))
}

func TestSwing(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodPost, "/swing", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, sess.Tick(dt))
	require.Equal(t, lifecycle.Launched, sess.State())
	require.Equal(t, 1, sess.Snapshot().Score)
}

func TestSwingOverrides(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodPost, "/swing", `{"speed":10,"launchAngleDeg":45}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, sess.Tick(dt))
	vel := sess.Snapshot().Ball.LinearVelocity
	require.InDelta(t, 7.07, vel.Y(), 0.2)
	require.InDelta(t, 7.07, vel.Z(), 0.2)
}

func TestSwingInvalidBody(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodPost, "/swing", `{bad`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, sess.Tick(dt))
	require.Equal(t, lifecycle.Idle, sess.State())
}

func TestReset(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodPost, "/reset?zero_score=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	perform(srv.Handler(), http.MethodPost, "/swing", "")
	require.NoError(t, sess.Tick(dt))
	require.Equal(t, 1, sess.Snapshot().Score)

	rec = perform(srv.Handler(), http.MethodPost, "/reset?zero_score=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, sess.Tick(dt))

	snap := sess.Snapshot()
	require.Equal(t, 0, snap.Score)
	require.Equal(t, "idle", snap.Phase)
}

func TestDevMode(t *testing.T) {
	srv, sess := newBridge(t, nil)

	rec := perform(srv.Handler(), http.MethodPost, "/devmode", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, sess.Tick(dt))
	require.True(t, sess.Snapshot().DevMode)
}

func TestClosedSession(t *testing.T) {
	srv, sess := newBridge(t, nil)
	require.NoError(t, sess.Close())

	rec := perform(srv.Handler(), http.MethodPost, "/swing", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func dial(t *testing.T, srv *Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocketSwing(t *testing.T) {
	srv, sess := newBridge(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(m Message) bool { return m.Type == MessageState })
	require.Equal(t, "idle", first.State.Phase)
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandSwing}))
	require.Eventually(t, func() bool {
		_ = sess.Tick(dt)
		return sess.Snapshot().Score == 1
	}, 2*time.Second, 5*time.Millisecond)

	ev := readUntil(t, conn, func(m Message) bool { return m.Type == MessageEvent })
	require.Equal(t, lifecycle.EventSwingAccepted, ev.Event.Name)
	require.Equal(t, "lifecycle", ev.Event.Source)

	st := readUntil(t, conn, func(m Message) bool { return m.Type == MessageState && m.State.Score == 1 })
	require.Equal(t, "launched", st.State.Phase)
}

func TestWebSocketUnknownCommand(t *testing.T) {
	srv, _ := newBridge(t, nil)

	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Command{Type: "chip"}))
	msg := readUntil(t, conn, func(m Message) bool { return m.Type == MessageError })
	require.Contains(t, msg.Error, "unknown command")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg = readUntil(t, conn, func(m Message) bool { return m.Type == MessageError })
	require.Contains(t, msg.Error, ErrInvalidMessage.Error())
}

func TestWebSocketOrigin(t *testing.T) {
	srv, _ := newBridge(t, func(cfg *config.BridgeConfig) {
		cfg.AllowedOrigins = []string{"http://renderer.local"}
	})

	_, resp, err := dial(t, srv, http.Header{"Origin": []string{"http://elsewhere.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(t, srv, http.Header{"Origin": []string{"http://renderer.local"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestStartStop(t *testing.T) {
	srv, _ := newBridge(t, nil)
	ctx := context.Background()

	require.NoError(t, srv.Start(ctx))
	require.ErrorIs(t, srv.Start(ctx), ErrServerAlreadyRunning)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(ctx))
	require.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)

	require.NoError(t, srv.Close())
	require.ErrorIs(t, srv.Start(ctx), ErrServerClosed)
}
