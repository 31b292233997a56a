package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// abandonAfter bounds how long a closed transport waits to deliver a signal.
var abandonAfter = closeGrace

// WSOpener opens gorilla/websocket transports.
type WSOpener struct {
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

// NewWSOpener returns an opener using a dialer with a handshake timeout.
func NewWSOpener(logger zerolog.Logger) *WSOpener {
	return &WSOpener{
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		Logger: logger,
	}
}

// Open validates the target URL and starts dialing in the background. Only
// URL validation errors are returned; network failures arrive as signals.
func (o *WSOpener) Open(target Target, signals chan<- Signal) (Transport, error) {
	raw := target.URL()
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrConstruct, "parse %q: %v", raw, err)
	}
	if u.Scheme != "ws" || u.Hostname() == "" {
		return nil, errors.Wrapf(ErrConstruct, "invalid url %q", raw)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return nil, errors.Wrapf(ErrConstruct, "invalid port %q", target.Port)
	}
	u.RawQuery = escapeQuery(u.RawQuery)

	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		url:     u.String(),
		dialer:  dialer,
		signals: signals,
		logger:  o.Logger,
		cancel:  cancel,
		done:    make(chan struct{}),
		abandon: abandonAfter,
	}
	go t.run(ctx)
	return t, nil
}

// escapeQuery percent-encodes the bytes an HTTP request line cannot carry,
// the same set a browser encodes in a WebSocket query. Everything else,
// including '+' and existing escapes, is sent as written.
func escapeQuery(q string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c <= ' ' || c >= 0x7f, c == '"', c == '<', c == '>', c == '\'':
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// wsTransport is one WebSocket connection attempt.
type wsTransport struct {
	url     string
	dialer  *websocket.Dialer
	signals chan<- Signal
	logger  zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	abandon time.Duration

	mu      sync.Mutex
	closing bool
}

func (t *wsTransport) run(ctx context.Context) {
	defer close(t.done)

	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		t.finish(ctx, errors.Wrapf(err, "dial %s", t.url))
		return
	}
	if t.isClosing() {
		conn.Close()
		t.finish(ctx, nil)
		return
	}

	// The close frame is written here rather than in Close so callers never
	// wait on the network.
	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout),
			)
			conn.Close()
		case <-readDone:
		}
	}()

	t.logger.Debug().Str("url", t.url).Msg("websocket connected")
	t.send(ctx, Signal{Kind: SignalOpen})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(readDone)
			conn.Close()
			t.finish(ctx, err)
			return
		}
		t.send(ctx, Signal{Kind: SignalMessage, Payload: string(data)})
	}
}

func (t *wsTransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

// finish reports the end of the connection. A requested close or a clean
// close frame is a plain close; anything else is an error followed by a
// close, the order a browser reports them in.
func (t *wsTransport) finish(ctx context.Context, err error) {
	if err != nil && !t.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.send(ctx, Signal{Kind: SignalError, Err: err})
	}
	t.send(ctx, Signal{Kind: SignalClose})
}

// send delivers sig to the manager. Once the transport is closed the
// manager may have stopped draining, so delivery is given up after a while.
func (t *wsTransport) send(ctx context.Context, sig Signal) {
	sig.Source = t
	select {
	case t.signals <- sig:
		return
	case <-ctx.Done():
	}

	timer := time.NewTimer(t.abandon)
	defer timer.Stop()
	select {
	case t.signals <- sig:
	case <-timer.C:
		t.logger.Debug().Str("signal", sig.Kind.String()).Msg("dropping signal after close")
	}
}

// Close cancels a pending dial or closes the open connection without
// blocking. It is safe to call more than once.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closing {
		t.closing = true
		t.cancel()
	}
	return nil
}
