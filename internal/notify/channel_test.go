package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qazna.org/backoffice/internal/session"
)

type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 64), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.msgs:
		return 1, m, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func newTestSession(t *testing.T, token string) *session.Manager {
	t.Helper()
	m := session.NewManager(session.NewMemStore())
	if token != "" {
		require.NoError(t, m.SetAuth(token, "refresh", nil))
	}
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestChannelGivesUpAfterRetryBudget(t *testing.T) {
	sess := newTestSession(t, "tok")

	var dials atomic.Int32
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			dials.Add(1)
			return nil, errors.New("refused")
		}),
		WithBackoff(time.Millisecond, 4*time.Millisecond, DefaultMaxRetries),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateGivenUp }, "given up state")

	// Initial attempt plus the full retry budget, then nothing more.
	require.Equal(t, int32(1+DefaultMaxRetries), dials.Load())
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1+DefaultMaxRetries), dials.Load(), "no attempts after give-up")
}

func TestTeardownCancelsPendingRetry(t *testing.T) {
	sess := newTestSession(t, "tok")

	var dials atomic.Int32
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			dials.Add(1)
			return nil, errors.New("refused")
		}),
		WithBackoff(150*time.Millisecond, time.Second, DefaultMaxRetries),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go ch.Run(ctx)

	waitFor(t, time.Second, func() bool { return dials.Load() == 1 }, "first dial")
	// A reconnect timer is pending now; teardown must cancel it.
	cancel()
	time.Sleep(400 * time.Millisecond)
	require.Equal(t, int32(1), dials.Load(), "retry fired after teardown")
}

func TestTokenClearClosesConnection(t *testing.T) {
	sess := newTestSession(t, "tok")

	conn := newFakeConn()
	var dials atomic.Int32
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			dials.Add(1)
			return conn, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, time.Second, func() bool { return ch.State() == StateConnected }, "connected state")

	require.NoError(t, sess.ClearAuth())

	waitFor(t, time.Second, conn.isClosed, "connection closed")
	waitFor(t, time.Second, func() bool { return ch.State() == StateDisconnected }, "disconnected state")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), dials.Load(), "no reconnect without a token")
}

func TestTokenRotationReconnectsWithNewToken(t *testing.T) {
	sess := newTestSession(t, "tok-1")

	var mu sync.Mutex
	var urls []string
	conns := make([]*fakeConn, 0, 2)
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			urls = append(urls, url)
			conn := newFakeConn()
			conns = append(conns, conn)
			return conn, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, time.Second, func() bool { return ch.State() == StateConnected }, "first connect")

	require.NoError(t, sess.SetAuth("tok-2", "refresh-2", nil))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(urls) == 2
	}, "second dial")

	mu.Lock()
	defer mu.Unlock()
	require.True(t, strings.HasSuffix(urls[0], "token=tok-1"), "first dial url: %s", urls[0])
	require.True(t, strings.HasSuffix(urls[1], "token=tok-2"), "second dial url: %s", urls[1])
	require.True(t, conns[0].isClosed(), "stale connection must be closed")
}

func TestBufferKeepsMostRecentFifty(t *testing.T) {
	sess := newTestSession(t, "tok")

	conn := newFakeConn()
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			return conn, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, time.Second, func() bool { return ch.State() == StateConnected }, "connected state")

	for i := 0; i < 60; i++ {
		conn.msgs <- []byte(fmt.Sprintf(`{"type":"loan","data":{"loan_id":"L-%d"}}`, i))
	}

	waitFor(t, time.Second, func() bool { return len(ch.Recent()) == DefaultBufferSize }, "buffer fill")
	// Let any remaining frames drain before asserting contents.
	waitFor(t, time.Second, func() bool {
		recent := ch.Recent()
		return recent[len(recent)-1].Loan != nil && recent[len(recent)-1].Loan.LoanID == "L-59"
	}, "last event")

	recent := ch.Recent()
	require.Len(t, recent, DefaultBufferSize)
	require.Equal(t, "L-10", recent[0].Loan.LoanID, "oldest entries evicted first")
	require.Equal(t, "L-59", recent[len(recent)-1].Loan.LoanID)
}

func TestSubscribeReceivesParsedNotifications(t *testing.T) {
	sess := newTestSession(t, "tok")

	conn := newFakeConn()
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			return conn, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	sub := ch.Subscribe(ctx)
	waitFor(t, time.Second, func() bool { return ch.State() == StateConnected }, "connected state")

	conn.msgs <- []byte(`{"type":"transaction","data":{"transaction_id":"tx-7","amount":100}}`)
	conn.msgs <- []byte(`garbage`)
	conn.msgs <- []byte(`{"type":"user","data":{"username":"bob"}}`)

	var got []Notification
	for len(got) < 2 {
		select {
		case n := <-sub:
			got = append(got, n)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %d notifications", len(got))
		}
	}
	require.Equal(t, KindTransaction, got[0].Kind)
	require.Equal(t, "tx-7", got[0].Transaction.TransactionID)
	require.Equal(t, KindUser, got[1].Kind)
	require.Equal(t, "bob", got[1].User.Username)
}

func TestDisconnectSchedulesRetryAndRecovers(t *testing.T) {
	sess := newTestSession(t, "tok")

	var mu sync.Mutex
	conns := []*fakeConn{}
	ch := NewChannel("ws://stream.test", sess,
		WithDialer(func(ctx context.Context, url string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			conn := newFakeConn()
			conns = append(conns, conn)
			return conn, nil
		}),
		WithBackoff(time.Millisecond, 4*time.Millisecond, DefaultMaxRetries),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, time.Second, func() bool { return ch.State() == StateConnected }, "first connect")

	mu.Lock()
	first := conns[0]
	mu.Unlock()
	first.Close()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 2 && ch.State() == StateConnected
	}, "reconnect")
}
