package notify

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

// Exercises the real websocket dialer against an in-process server.
func TestChannelOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	tokens := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin" {
			http.NotFound(w, r)
			return
		}
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"type": "transaction",
			"data": map[string]any{"transaction_id": "tx-ws", "amount": 910},
		})
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	streamURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sess := newTestSession(t, "ws-token")
	ch := NewChannel(streamURL, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := ch.Subscribe(ctx)
	go ch.Run(ctx)

	select {
	case tok := <-tokens:
		require.Equal(t, "ws-token", tok, "access token must key the stream connection")
	case <-time.After(2 * time.Second):
		t.Fatal("server saw no connection")
	}

	select {
	case n := <-sub:
		require.Equal(t, KindTransaction, n.Kind)
		require.Equal(t, "tx-ws", n.Transaction.TransactionID)
		require.Equal(t, int64(910), n.Transaction.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}
