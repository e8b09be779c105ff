package statusws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/homeroom/internal/hub"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) hub.State {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var s hub.State
	require.NoError(t, conn.ReadJSON(&s))
	return s
}

func TestStatus_StreamsTransitions(t *testing.T) {
	h := hub.New(hub.State{Status: hub.StatusIdle})
	srv := httptest.NewServer(NewHandler(h, nil))
	defer srv.Close()

	conn := dial(t, srv)
	assert.Equal(t, hub.StatusIdle, readState(t, conn).Status, "current state on connect")

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(hub.State{Status: hub.StatusSyncing})
	assert.Equal(t, hub.StatusSyncing, readState(t, conn).Status)

	at := time.Date(2024, 9, 5, 8, 0, 0, 0, time.UTC)
	h.Publish(hub.State{Status: hub.StatusIdle, LastSync: &at})
	got := readState(t, conn)
	assert.Equal(t, hub.StatusIdle, got.Status)
	require.NotNil(t, got.LastSync)
	assert.True(t, at.Equal(*got.LastSync))
}

func TestStatus_UnsubscribesOnDisconnect(t *testing.T) {
	h := hub.New(hub.State{Status: hub.StatusIdle})
	srv := httptest.NewServer(NewHandler(h, nil))
	defer srv.Close()

	conn := dial(t, srv)
	readState(t, conn)
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return h.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStatus_PlainGet(t *testing.T) {
	h := hub.New(hub.State{Status: hub.StatusError})
	srv := httptest.NewServer(NewHandler(h, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var s hub.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, hub.StatusError, s.Status)
	assert.Nil(t, s.LastSync)
}

func TestListenAndServe_StopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := hub.New(hub.State{Status: hub.StatusIdle})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, addr, NewHandler(h, nil)) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}
