package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTransport struct {
	id     int
	closed int
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

type fakeOpener struct {
	targets  []Target
	opened   []*fakeTransport
	signals  chan<- Signal
	err      error
	nilNoErr bool
}

func (o *fakeOpener) Open(target Target, signals chan<- Signal) (Transport, error) {
	o.targets = append(o.targets, target)
	o.signals = signals
	if o.err != nil {
		return nil, o.err
	}
	if o.nilNoErr {
		return nil, nil
	}
	t := &fakeTransport{id: len(o.opened) + 1}
	o.opened = append(o.opened, t)
	return t, nil
}

func (o *fakeOpener) last() *fakeTransport {
	return o.opened[len(o.opened)-1]
}

func newTestManager() (*Manager, *fakeOpener, *Feed) {
	opener := &fakeOpener{}
	feed := &Feed{}
	return NewManager(opener, feed), opener, feed
}

func TestNewTargetDefaults(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   Target
	}{
		{
			name:   "all empty",
			params: Params{},
			want:   Target{Host: "localhost", Port: "7777", Subscription: ".*", Event: ".*"},
		},
		{
			name:   "whitespace counts as empty",
			params: Params{Host: "  ", Port: "\t"},
			want:   Target{Host: "localhost", Port: "7777", Subscription: ".*", Event: ".*"},
		},
		{
			name:   "all set",
			params: Params{Host: "fs1", Port: "9000", Subscription: `\.go$`, Event: "CREATE|REMOVE"},
			want:   Target{Host: "fs1", Port: "9000", Subscription: `\.go$`, Event: "CREATE|REMOVE"},
		},
		{
			name:   "partial",
			params: Params{Port: "8080", Event: "WRITE"},
			want:   Target{Host: "localhost", Port: "8080", Subscription: ".*", Event: "WRITE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewTarget(tt.params); got != tt.want {
				t.Errorf("NewTarget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTargetURL(t *testing.T) {
	target := NewTarget(Params{Host: "example", Port: "1234", Subscription: `src/.*\.go`, Event: "CREATE"})
	want := `ws://example:1234/websocket/filewatch/?subscription=src/.*\.go&event=CREATE`
	if got := target.URL(); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	if got := target.InfoURL(); got != "http://example:1234/filewatch/_info" {
		t.Errorf("InfoURL() = %q", got)
	}
}

func TestConnectNormalizesDefaults(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})

	if len(opener.targets) != 1 {
		t.Fatalf("expected 1 open, got %d", len(opener.targets))
	}
	want := Target{Host: "localhost", Port: "7777", Subscription: ".*", Event: ".*"}
	if opener.targets[0] != want {
		t.Errorf("target = %+v, want %+v", opener.targets[0], want)
	}
	if m.State() != StateConnecting {
		t.Errorf("State() = %v, want connecting", m.State())
	}
	if got, ok := m.Target(); !ok || got != want {
		t.Errorf("Target() = %+v, %v", got, ok)
	}
	if n := feed.Drain(); len(n) != 0 {
		t.Errorf("connect should not notify, got %d notifications", len(n))
	}
}

func TestOpenEmitsWatching(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{Host: "", Port: "", Subscription: "", Event: ""})
	m.Handle(Signal{Kind: SignalOpen, Source: opener.last()})

	notes := feed.Drain()
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].Type != NoteStatus || notes[0].Status != StatusWatching {
		t.Errorf("notification = %+v, want status %q", notes[0], StatusWatching)
	}
	if notes[0].State != StateOpen {
		t.Errorf("notification state = %v, want open", notes[0].State)
	}
	if m.State() != StateOpen {
		t.Errorf("State() = %v, want open", m.State())
	}
}

func TestErrorFailsAndAllowsReconnect(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})
	first := opener.last()
	m.Handle(Signal{Kind: SignalOpen, Source: first})
	feed.Drain()

	m.Handle(Signal{Kind: SignalError, Source: first, Err: errors.New("boom")})

	notes := feed.Drain()
	if len(notes) != 1 || notes[0].Type != NoteError {
		t.Fatalf("expected exactly one error notification, got %+v", notes)
	}
	if first.closed != 1 {
		t.Errorf("transport closed %d times, want 1", first.closed)
	}
	if m.State() != StateFailed {
		t.Errorf("State() = %v, want failed", m.State())
	}

	// The socket's own close after the error belongs to a cleared handle.
	m.Handle(Signal{Kind: SignalClose, Source: first})
	if n := feed.Drain(); len(n) != 0 {
		t.Errorf("close after error should be ignored, got %+v", n)
	}
	if m.State() != StateFailed {
		t.Errorf("State() = %v, want failed", m.State())
	}

	m.Connect(Params{})
	if m.State() != StateConnecting {
		t.Errorf("State() after reconnect = %v, want connecting", m.State())
	}
	if len(opener.opened) != 2 {
		t.Errorf("expected a second transport, got %d", len(opener.opened))
	}
}

func TestErrorWhileConnecting(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})
	m.Handle(Signal{Kind: SignalError, Source: opener.last(), Err: errors.New("refused")})

	if m.State() != StateFailed {
		t.Errorf("State() = %v, want failed", m.State())
	}
	if notes := feed.Drain(); len(notes) != 1 || notes[0].Type != NoteError {
		t.Errorf("expected one error notification, got %+v", notes)
	}
}

func TestConnectTearsDownPrevious(t *testing.T) {
	for _, open := range []bool{false, true} {
		name := "connecting"
		if open {
			name = "open"
		}
		t.Run(name, func(t *testing.T) {
			m, opener, feed := newTestManager()
			m.Connect(Params{Port: "1111"})
			first := opener.last()
			if open {
				m.Handle(Signal{Kind: SignalOpen, Source: first})
			}
			feed.Drain()

			m.Connect(Params{Port: "2222"})
			if first.closed != 1 {
				t.Errorf("previous transport closed %d times, want 1", first.closed)
			}
			if m.State() != StateConnecting {
				t.Errorf("State() = %v, want connecting", m.State())
			}
			if got, _ := m.Target(); got.Port != "2222" {
				t.Errorf("Target().Port = %q, want 2222", got.Port)
			}

			// Late signals from the replaced transport change nothing.
			m.Handle(Signal{Kind: SignalOpen, Source: first})
			m.Handle(Signal{Kind: SignalClose, Source: first})
			if m.State() != StateConnecting {
				t.Errorf("State() = %v after stale signals, want connecting", m.State())
			}
			if n := feed.Drain(); len(n) != 0 {
				t.Errorf("stale signals produced notifications: %+v", n)
			}
		})
	}
}

func TestDisconnectNoop(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Disconnect()
	if m.State() != StateIdle {
		t.Errorf("State() = %v, want idle", m.State())
	}

	m.Connect(Params{})
	tr := opener.last()
	m.Handle(Signal{Kind: SignalOpen, Source: tr})
	m.Handle(Signal{Kind: SignalClose, Source: tr})
	feed.Drain()
	closed := tr.closed

	m.Disconnect()
	if m.State() != StateClosed {
		t.Errorf("State() = %v, want closed", m.State())
	}
	if tr.closed != closed {
		t.Error("disconnect on a closed manager touched the transport")
	}
	if n := feed.Drain(); len(n) != 0 {
		t.Errorf("disconnect on a closed manager notified: %+v", n)
	}
}

func TestDisconnectNoopWhenFailed(t *testing.T) {
	t.Run("runtime error", func(t *testing.T) {
		m, opener, feed := newTestManager()
		m.Connect(Params{})
		tr := opener.last()
		m.Handle(Signal{Kind: SignalOpen, Source: tr})
		m.Handle(Signal{Kind: SignalError, Source: tr, Err: errors.New("reset")})
		feed.Drain()
		closed := tr.closed

		m.Disconnect()
		if m.State() != StateFailed {
			t.Errorf("State() = %v, want failed", m.State())
		}
		if tr.closed != closed {
			t.Error("disconnect on a failed manager touched the transport")
		}
		if n := feed.Drain(); len(n) != 0 {
			t.Errorf("disconnect on a failed manager notified: %+v", n)
		}
	})

	t.Run("construction failure", func(t *testing.T) {
		m, opener, feed := newTestManager()
		opener.err = errors.New("bad url")
		m.Connect(Params{})
		feed.Drain()

		m.Disconnect()
		if m.State() != StateFailed {
			t.Errorf("State() = %v, want failed", m.State())
		}
		if len(opener.opened) != 0 {
			t.Errorf("expected no transports, got %d", len(opener.opened))
		}
		if n := feed.Drain(); len(n) != 0 {
			t.Errorf("disconnect on a failed manager notified: %+v", n)
		}
	})
}

func TestDisconnectWaitsForCloseSignal(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})
	tr := opener.last()
	m.Handle(Signal{Kind: SignalOpen, Source: tr})
	feed.Drain()

	m.Disconnect()
	if tr.closed != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closed)
	}
	if m.State() != StateOpen {
		t.Errorf("State() = %v, want open until the close signal", m.State())
	}

	m.Handle(Signal{Kind: SignalClose, Source: tr})
	notes := feed.Drain()
	if len(notes) != 1 || notes[0].Status != StatusDisconnected {
		t.Fatalf("expected one %q notification, got %+v", StatusDisconnected, notes)
	}
	if m.State() != StateClosed {
		t.Errorf("State() = %v, want closed", m.State())
	}
}

func TestConstructionFailure(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		m, opener, feed := newTestManager()
		opener.err = ErrConstruct
		m.Connect(Params{Port: "nope"})

		if m.State() != StateFailed {
			t.Errorf("State() = %v, want failed", m.State())
		}
		notes := feed.Drain()
		if len(notes) != 1 || notes[0].Type != NoteError {
			t.Fatalf("expected one error notification, got %+v", notes)
		}
		if !errors.Is(notes[0].Err, ErrConstruct) {
			t.Errorf("error = %v, want ErrConstruct", notes[0].Err)
		}
	})

	t.Run("nil transport", func(t *testing.T) {
		m, opener, feed := newTestManager()
		opener.nilNoErr = true
		m.Connect(Params{})

		if m.State() != StateFailed {
			t.Errorf("State() = %v, want failed", m.State())
		}
		if notes := feed.Drain(); len(notes) != 1 || !errors.Is(notes[0].Err, ErrConstruct) {
			t.Errorf("expected one ErrConstruct notification, got %+v", notes)
		}
		m.Disconnect() // nothing to close
	})
}

func TestMessagesClassifiedInOrder(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})
	tr := opener.last()
	m.Handle(Signal{Kind: SignalOpen, Source: tr})
	feed.Drain()

	payloads := []string{`{"create":true}`, `{"deleted":true}`, `{"rename":true}`, `{}`}
	for _, p := range payloads {
		m.Handle(Signal{Kind: SignalMessage, Source: tr, Payload: p})
	}

	want := []Kind{KindCreated, KindDeleted, KindRenamed, KindOther}
	notes := feed.Drain()
	if len(notes) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(notes))
	}
	for i, n := range notes {
		if n.Type != NoteEvent {
			t.Errorf("notes[%d].Type = %v, want event", i, n.Type)
		}
		if n.Event.Kind != want[i] {
			t.Errorf("notes[%d].Event.Kind = %v, want %v", i, n.Event.Kind, want[i])
		}
		if n.Event.Raw != payloads[i] {
			t.Errorf("notes[%d].Event.Raw = %q, want %q", i, n.Event.Raw, payloads[i])
		}
	}
}

func TestParseErrorKeepsConnectionOpen(t *testing.T) {
	m, opener, feed := newTestManager()
	m.Connect(Params{})
	tr := opener.last()
	m.Handle(Signal{Kind: SignalOpen, Source: tr})
	feed.Drain()

	m.Handle(Signal{Kind: SignalMessage, Source: tr, Payload: "not json"})

	notes := feed.Drain()
	if len(notes) != 1 || notes[0].Event.Kind != KindParseError {
		t.Fatalf("expected one parse error event, got %+v", notes)
	}
	if notes[0].Event.Raw != "not json" {
		t.Errorf("Raw = %q", notes[0].Event.Raw)
	}
	if m.State() != StateOpen {
		t.Errorf("State() = %v, want open", m.State())
	}
	if tr.closed != 0 {
		t.Error("parse error closed the transport")
	}
}

func TestRunDispatchesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Notification
	opener := &fakeOpener{}
	m := NewManager(opener, NotifierFunc(func(n Notification) {
		got = append(got, n)
		if n.Status == StatusDisconnected {
			cancel()
		}
	}))
	m.Connect(Params{})
	tr := opener.last()

	opener.signals <- Signal{Kind: SignalOpen, Source: tr}
	opener.signals <- Signal{Kind: SignalMessage, Source: tr, Payload: `{"create":true}`}
	opener.signals <- Signal{Kind: SignalClose, Source: tr}

	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	if got[1].Event.Kind != KindCreated {
		t.Errorf("second notification kind = %v, want created", got[1].Event.Kind)
	}
	if m.State() != StateClosed {
		t.Errorf("State() = %v, want closed", m.State())
	}
}

func TestListenDeliversSignal(t *testing.T) {
	m, opener, _ := newTestManager()
	m.Connect(Params{})
	tr := opener.last()
	opener.signals <- Signal{Kind: SignalOpen, Source: tr}

	msg := m.Listen(context.Background())()
	sm, ok := msg.(SignalMsg)
	if !ok {
		t.Fatalf("Listen() returned %T, want SignalMsg", msg)
	}
	if sm.Signal.Kind != SignalOpen || sm.Signal.Source != Transport(tr) {
		t.Errorf("unexpected signal %+v", sm.Signal)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := m.Listen(ctx)(); msg != nil {
		t.Errorf("Listen() on cancelled context = %v, want nil", msg)
	}
}
