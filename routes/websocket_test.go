package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhifu/donation-dashboard/models"
	"github.com/zhifu/donation-dashboard/services"
)

type dashboardFrame struct {
	Type      string                   `json:"type"`
	Data      models.DashboardSnapshot `json:"data"`
	Error     string                   `json:"error"`
	Timestamp int64                    `json:"timestamp"`
}

func dialDashboard(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) dashboardFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame dashboardFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestWebSocket_DashboardSession(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), nil))
	defer srv.Close()
	conn := dialDashboard(t, srv, "u1")

	frame := readFrame(t, conn)
	require.Equal(t, "dashboard", frame.Type)
	assert.NotZero(t, frame.Timestamp)
	assert.Equal(t, "u1", frame.Data.UserID)
	assert.False(t, frame.Data.Loading)
	assert.Equal(t, 1, frame.Data.CurrentPage)
	assert.Equal(t, 3, frame.Data.TotalPages)
	assert.Equal(t, 385, frame.Data.TotalPoints)
	assert.Equal(t, models.RankResult{Rank: 2}, frame.Data.Rank)
	require.Len(t, frame.Data.Entries, 2)
	assert.Equal(t, "d1", frame.Data.Entries[0].ID)

	send(t, conn, `{"action":"next"}`)
	frame = readFrame(t, conn)
	assert.Equal(t, 2, frame.Data.CurrentPage)
	assert.Equal(t, "d3", frame.Data.Entries[0].ID)

	send(t, conn, `{"action":"prev"}`)
	frame = readFrame(t, conn)
	assert.Equal(t, 1, frame.Data.CurrentPage)

	send(t, conn, `{"action":"next"}`)
	readFrame(t, conn)
	send(t, conn, `{"action":"refresh"}`)
	frame = readFrame(t, conn)
	assert.Equal(t, "dashboard", frame.Type)
	assert.Equal(t, 1, frame.Data.CurrentPage, "refresh resets to the first page")
}

func TestWebSocket_RejectsBadCommands(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), nil))
	defer srv.Close()
	conn := dialDashboard(t, srv, "u1")
	readFrame(t, conn)

	send(t, conn, `{"action":"jump"}`)
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "unknown action jump", frame.Error)

	send(t, conn, `not json`)
	frame = readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "invalid message", frame.Error)
}

func TestWebSocket_RequiresUserID(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_RequiresOwnerToken(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), fakeVerifier{"good-u1": "u1"}))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=u1"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"&token=good-u1", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "dashboard", readFrame(t, conn).Type)
}

func TestWebSocket_ClientCountInHealth(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), nil))
	defer srv.Close()

	clients := func() int {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			return -1
		}
		defer resp.Body.Close()
		var body struct {
			WSClients int `json:"ws_clients"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return -1
		}
		return body.WSClients
	}

	conn := dialDashboard(t, srv, "u1")
	readFrame(t, conn)
	assert.Eventually(t, func() bool { return clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RequiresOwnerTokenInQuery(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, newStore(), fakeVerifier{"good-u1": "u1"}))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?userId=u1&token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// socketPair returns the client end of a connection whose server end stays
// open until the test ends.
func socketPair(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_CleanupRemovesDeadConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	dashboard := services.NewDashboardService(newStore(), services.DashboardOptions{}, zerolog.Nop())

	newClient := func(conn *websocket.Conn) *wsClient {
		client := &wsClient{id: "c", conn: conn, session: dashboard.NewSession("u1"), send: make(chan []byte, 1)}
		client.ctx, client.cancel = context.WithCancel(context.Background())
		return client
	}
	live := newClient(socketPair(t))
	deadConn := socketPair(t)
	dead := newClient(deadConn)
	require.NoError(t, deadConn.Close())

	hub.clients[live] = true
	hub.clients[dead] = true

	hub.cleanupInvalidConnections()

	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, hub.clients[live])
	assert.Error(t, dead.ctx.Err(), "removed clients are cancelled")
	assert.NoError(t, live.ctx.Err())
}
