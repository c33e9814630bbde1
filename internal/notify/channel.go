package notify

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"qazna.org/backoffice/internal/obs"
	"qazna.org/backoffice/internal/session"
)

const (
	// DefaultMaxRetries bounds automatic reconnect attempts per disconnect
	// streak.
	DefaultMaxRetries = 5
	// DefaultBaseDelay is the backoff starting point; attempt n waits
	// min(base<<n, max).
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps the backoff.
	DefaultMaxDelay = 30 * time.Second
	// DefaultBufferSize is how many recent notifications are retained.
	DefaultBufferSize = 50
)

// Conn is the read side of a websocket connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the event stream. Injectable for tests.
type Dialer func(ctx context.Context, url string) (Conn, error)

func defaultDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Channel owns the push connection for one session. It reads the access token
// from the session manager and follows its auth events: a set or rotated
// token tears down any existing connection and opens a fresh one, a cleared
// token shuts the channel down until the next login.
type Channel struct {
	streamURL  string
	sess       *session.Manager
	log        zerolog.Logger
	dial       Dialer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	bufferSize int
	stateFn    func(State)

	mu         sync.Mutex
	ctx        context.Context
	state      State
	retryCount int
	retryTimer *time.Timer
	conn       Conn
	gen        int
	token      string
	closed     bool
	buf        []Notification

	subMu   sync.Mutex
	subs    map[int]chan Notification
	nextSub int
}

// ChannelOption configures the channel.
type ChannelOption func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) ChannelOption {
	return func(c *Channel) { c.dial = d }
}

// WithBackoff overrides the retry schedule.
func WithBackoff(base, max time.Duration, maxRetries int) ChannelOption {
	return func(c *Channel) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithBufferSize overrides the rolling buffer bound.
func WithBufferSize(n int) ChannelOption {
	return func(c *Channel) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithStateFunc registers a callback invoked on every state transition. Used
// to surface the terminal give-up notice to the user.
func WithStateFunc(fn func(State)) ChannelOption {
	return func(c *Channel) { c.stateFn = fn }
}

// WithChannelLogger overrides the shared logger.
func WithChannelLogger(log zerolog.Logger) ChannelOption {
	return func(c *Channel) { c.log = log }
}

// NewChannel constructs a channel against the stream base URL (ws:// or
// wss://). Nothing connects until Run observes a token.
func NewChannel(streamBaseURL string, sess *session.Manager, opts ...ChannelOption) *Channel {
	c := &Channel{
		streamURL:  streamBaseURL,
		sess:       sess,
		log:        obs.Logger(),
		dial:       defaultDialer,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		bufferSize: DefaultBufferSize,
		subs:       make(map[int]chan Notification),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives the channel until the context ends: it connects when a token is
// available, follows session auth events and tears everything down (including
// any pending retry timer) on cancellation. Call it in its own goroutine.
func (c *Channel) Run(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	events := c.sess.Subscribe(ctx)
	if token := c.sess.AccessToken(); token != "" {
		c.tokenAvailable(token)
	}

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case evt, ok := <-events:
			if !ok {
				c.teardown()
				return
			}
			switch evt.Kind {
			case session.EventAuthSet:
				c.tokenAvailable(evt.AccessToken)
			case session.EventAuthCleared:
				c.tokenCleared()
			}
		}
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recent returns a copy of the rolling buffer, oldest first.
func (c *Channel) Recent() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.buf))
	copy(out, c.buf)
	return out
}

// Subscribe registers for live notifications. The channel is closed when the
// context ends; slow subscribers drop rather than block the read loop.
func (c *Channel) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 16)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	go func() {
		<-ctx.Done()
		c.subMu.Lock()
		delete(c.subs, id)
		close(ch)
		c.subMu.Unlock()
	}()

	return ch
}

// tokenAvailable reacts to a new or rotated access token: any existing
// connection is keyed to the old token, so drop it and dial fresh. A cleared
// retry budget is restored only by a full logout/login cycle, not by
// rotation; the retry counter therefore carries over.
func (c *Channel) tokenAvailable(token string) {
	c.mu.Lock()
	c.token = token
	c.dropConnLocked()
	if c.state == StateGivenUp {
		c.mu.Unlock()
		return
	}
	c.connectLocked()
	c.mu.Unlock()
}

// tokenCleared shuts the connection and rests. The next login starts over
// with a fresh retry budget.
func (c *Channel) tokenCleared() {
	c.mu.Lock()
	c.token = ""
	c.retryCount = 0
	c.dropConnLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// teardown ends the channel for good: the owning context is done.
func (c *Channel) teardown() {
	c.mu.Lock()
	c.closed = true
	c.dropConnLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// dropConnLocked invalidates the current connection generation, stops any
// pending retry timer and closes the open connection if there is one.
func (c *Channel) dropConnLocked() {
	c.gen++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// connectLocked dials the stream endpoint for the current token. The lock is
// released around the dial; a generation counter detects teardown or token
// changes that happened meanwhile.
func (c *Channel) connectLocked() {
	if c.closed || c.token == "" {
		return
	}
	c.setStateLocked(StateConnecting)
	myGen := c.gen
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.endpoint(c.token)
	c.mu.Unlock()

	conn, err := c.dial(ctx, endpoint)

	c.mu.Lock()
	if c.closed || c.gen != myGen {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Int("attempt", c.retryCount).Msg("notification stream dial failed")
		c.setStateLocked(StateDisconnected)
		c.scheduleRetryLocked()
		return
	}

	c.conn = conn
	c.retryCount = 0
	c.setStateLocked(StateConnected)
	c.log.Info().Msg("notification stream connected")
	go c.readLoop(conn, myGen)
}

// scheduleRetryLocked arms the single pending reconnect timer, or gives up
// when the budget is spent. The delay doubles per attempt up to the cap.
func (c *Channel) scheduleRetryLocked() {
	if c.retryCount >= c.maxRetries {
		c.setStateLocked(StateGivenUp)
		c.log.Error().Int("retries", c.retryCount).Msg("notification stream gave up; log in again to resume")
		return
	}
	delay := backoffDelay(c.retryCount, c.baseDelay, c.maxDelay)
	c.retryCount++
	myGen := c.gen
	c.retryTimer = time.AfterFunc(delay, func() {
		c.retryFire(myGen)
	})
	c.log.Debug().Dur("delay", delay).Int("attempt", c.retryCount).Msg("notification stream retry scheduled")
}

func (c *Channel) retryFire(myGen int) {
	c.mu.Lock()
	if c.closed || c.gen != myGen || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	obs.ObserveStreamReconnect()
	c.connectLocked()
	c.mu.Unlock()
}

// readLoop consumes frames until the connection breaks, then hands control
// back to the retry machinery unless the connection was superseded.
func (c *Channel) readLoop(conn Conn, myGen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.closed || c.gen != myGen {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.log.Warn().Err(err).Msg("notification stream closed")
			c.setStateLocked(StateDisconnected)
			c.scheduleRetryLocked()
			c.mu.Unlock()
			return
		}

		n, ok := parseNotification(raw, time.Now().UTC())
		if !ok {
			continue
		}
		obs.ObserveStreamEvent(string(n.Kind))

		c.mu.Lock()
		c.buf = append(c.buf, n)
		if len(c.buf) > c.bufferSize {
			c.buf = c.buf[len(c.buf)-c.bufferSize:]
		}
		c.mu.Unlock()

		c.publish(n)
	}
}

func (c *Channel) publish(n Notification) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// setStateLocked records the transition and fires the callback while the
// lock is held; callbacks must be cheap and must not call back into the
// channel.
func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.stateFn != nil {
		c.stateFn(s)
	}
}

func (c *Channel) endpoint(token string) string {
	return c.streamURL + "/admin?token=" + url.QueryEscape(token)
}

// backoffDelay computes min(base<<attempt, max).
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}
