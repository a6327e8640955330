package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_BroadcastsRefresh(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	assert.Equal(t, TypeConnected, read(t, a).Type)
	assert.Equal(t, TypeConnected, read(t, b).Type)
	assert.Equal(t, 2, hub.Count())

	hub.Rendered()
	assert.Equal(t, TypeRefresh, read(t, a).Type)
	assert.Equal(t, TypeRefresh, read(t, b).Type)
}

func TestHub_ClientLeaving(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, nil)
	read(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Count() == 0 }, 5*time.Second, 5*time.Millisecond)
	// broadcasting with nobody connected is a no-op
	hub.Rendered()
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, nil)
	read(t, conn)

	hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err)
	assert.Zero(t, hub.Count())

	// connections after close are turned away
	late := dial(t, srv, nil)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewHub())
	t.Cleanup(srv.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"),
		http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://status.example/live", nil)
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "https://STATUS.example")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "https://other.example")
	assert.False(t, sameOrigin(req))
}
