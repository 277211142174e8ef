package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWSConnSendAndReadLoop(t *testing.T) {
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		require.NoError(t, err)
		wsConn := NewWSConn(conn, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go wsConn.ReadLoop(ctx, func(_ context.Context, data []byte) {
			received <- data
		})

		require.NoError(t, wsConn.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"$/ping"}`)))

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"result"`)

	select {
	case got := <-received:
		require.Contains(t, string(got), "$/ping")
	case <-time.After(time.Second):
		t.Fatal("server did not receive client frame")
	}
}

func TestNewRouterServesHealthz(t *testing.T) {
	r := NewRouter([]string{"*"}, func(http.ResponseWriter, *http.Request) {})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRouterServesMetrics(t *testing.T) {
	r := NewRouter([]string{"*"}, func(http.ResponseWriter, *http.Request) {})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
