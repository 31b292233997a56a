package client

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	signalBufferSize = 256
	closeGrace       = time.Second
)

// SignalKind identifies a transport lifecycle signal.
type SignalKind int

const (
	SignalOpen SignalKind = iota
	SignalError
	SignalMessage
	SignalClose
)

func (k SignalKind) String() string {
	switch k {
	case SignalOpen:
		return "open"
	case SignalError:
		return "error"
	case SignalMessage:
		return "message"
	case SignalClose:
		return "close"
	default:
		return "unknown"
	}
}

// Signal is a lifecycle event raised by a transport. Source identifies the
// transport so that signals from a replaced transport can be told apart.
type Signal struct {
	Kind    SignalKind
	Source  Transport
	Payload string
	Err     error
}

// Transport is an open or opening connection. Close must be idempotent and
// must eventually cause a SignalClose unless the transport already failed.
type Transport interface {
	Close() error
}

// Opener constructs transports. Open must not block on the network: it
// returns a handle immediately and reports progress through signals.
type Opener interface {
	Open(target Target, signals chan<- Signal) (Transport, error)
}

// SignalMsg carries a transport signal into the Bubble Tea update loop.
type SignalMsg struct{ Signal Signal }

// Manager owns the single active transport and its lifecycle state.
//
// Manager is not safe for concurrent use. Connect, Disconnect and Handle
// must be called from one goroutine; transports only talk to it through the
// signal channel.
type Manager struct {
	opener Opener
	notify Notifier
	logger zerolog.Logger

	signals   chan Signal
	state     State
	target    Target
	transport Transport
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for lifecycle tracing.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an idle manager. A nil notifier discards notifications.
func NewManager(opener Opener, notify Notifier, opts ...ManagerOption) *Manager {
	if notify == nil {
		notify = NotifierFunc(func(Notification) {})
	}
	m := &Manager{
		opener:  opener,
		notify:  notify,
		logger:  zerolog.Nop(),
		signals: make(chan Signal, signalBufferSize),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Target returns the target of the current or last attempt. ok is false
// before the first Connect.
func (m *Manager) Target() (t Target, ok bool) {
	return m.target, m.target != Target{}
}

// Signals returns the receive side of the signal queue.
func (m *Manager) Signals() <-chan Signal {
	return m.signals
}

// Connect tears down any current transport, normalizes p and starts a new
// connection attempt.
func (m *Manager) Connect(p Params) {
	m.teardown()

	m.target = NewTarget(p)
	m.state = StateConnecting
	m.logger.Debug().Str("url", m.target.URL()).Msg("connecting")

	t, err := m.opener.Open(m.target, m.signals)
	if err != nil || t == nil {
		if err == nil {
			err = ErrConstruct
		}
		m.state = StateFailed
		m.logger.Warn().Err(err).Str("url", m.target.URL()).Msg("transport construction failed")
		m.emit(Notification{Type: NoteError, Err: err})
		return
	}
	m.transport = t
}

// Disconnect asks the current transport to close. The Closed state is
// reached when the transport reports its close.
func (m *Manager) Disconnect() {
	if m.transport == nil {
		return
	}
	m.logger.Debug().Str("state", m.state.String()).Msg("disconnect requested")
	if err := m.transport.Close(); err != nil {
		m.logger.Debug().Err(err).Msg("transport close")
	}
}

// Handle dispatches a transport signal to its handler. Signals from a
// transport other than the current one are dropped.
func (m *Manager) Handle(sig Signal) {
	if m.transport == nil || sig.Source != m.transport {
		m.logger.Debug().Str("signal", sig.Kind.String()).Msg("ignoring signal from stale transport")
		return
	}
	switch sig.Kind {
	case SignalOpen:
		m.onOpen()
	case SignalError:
		m.onError(sig.Err)
	case SignalMessage:
		m.onMessage(sig.Payload)
	case SignalClose:
		m.onClose()
	}
}

func (m *Manager) onOpen() {
	if m.state != StateConnecting {
		return
	}
	m.state = StateOpen
	m.logger.Info().Str("service", m.target.Service()).Msg("watching")
	m.emit(Notification{Type: NoteStatus, Status: StatusWatching})
}

func (m *Manager) onError(err error) {
	if err == nil {
		err = errors.New("connection error")
	}
	m.logger.Warn().Err(err).Str("service", m.target.Service()).Msg("transport error")
	m.teardown()
	m.state = StateFailed
	m.emit(Notification{Type: NoteError, Err: err})
}

func (m *Manager) onMessage(payload string) {
	ev := Classify(payload)
	if ev.Kind == KindParseError {
		m.logger.Debug().Err(ev.Err).Str("raw", payload).Msg("unparsable message")
	}
	m.emit(Notification{Type: NoteEvent, Event: ev})
}

func (m *Manager) onClose() {
	m.teardown()
	m.state = StateClosed
	m.logger.Info().Str("service", m.target.Service()).Msg("disconnected")
	m.emit(Notification{Type: NoteStatus, Status: StatusDisconnected})
}

// teardown closes and forgets the current transport. Closing an already
// closed transport is harmless.
func (m *Manager) teardown() {
	if m.transport == nil {
		return
	}
	if err := m.transport.Close(); err != nil {
		m.logger.Debug().Err(err).Msg("transport close")
	}
	m.transport = nil
}

func (m *Manager) emit(n Notification) {
	n.State = m.state
	n.Target = m.target
	m.notify.Notify(n)
}

// Listen returns a Bubble Tea command that waits for the next signal.
// The update loop passes the signal to Handle and then calls Listen again.
func (m *Manager) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-m.signals:
			return SignalMsg{Signal: sig}
		}
	}
}

// Run handles signals until ctx is cancelled. On cancellation it
// disconnects and keeps handling signals until the transport reports its
// close or a short grace period passes.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case sig := <-m.signals:
			m.Handle(sig)
		}
	}
}

func (m *Manager) shutdown() {
	if m.transport == nil {
		return
	}
	m.Disconnect()
	timer := time.NewTimer(closeGrace)
	defer timer.Stop()
	for m.transport != nil {
		select {
		case sig := <-m.signals:
			m.Handle(sig)
		case <-timer.C:
			m.logger.Debug().Msg("close grace period elapsed")
			m.transport = nil
			return
		}
	}
}
