// Package client provides the filewatch connection manager, the change event
// classifier and the HTTP client for the server info endpoint.
// Types mirror the server wire protocol without importing server packages.
package client

import (
	"strings"

	"github.com/pkg/errors"
)

// Connection defaults applied when a parameter is left empty.
const (
	DefaultHost    = "localhost"
	DefaultPort    = "7777"
	DefaultPattern = ".*"
)

// WatchPath is the server path of the change stream endpoint.
const WatchPath = "/websocket/filewatch/"

// InfoPath is the server path of the metadata endpoint.
const InfoPath = "/filewatch/_info"

// ErrConstruct wraps failures to create a transport for a target.
var ErrConstruct = errors.New("transport construction failed")

// Params are the caller supplied connection parameters. Every field is
// optional.
type Params struct {
	Host         string
	Port         string
	Subscription string
	Event        string
}

// Target is a normalized connection target. It is built once per connect
// attempt and never modified afterwards.
type Target struct {
	Host         string
	Port         string
	Subscription string
	Event        string
}

// NewTarget applies the defaults to p. Values are trimmed of surrounding
// whitespace before the empty check.
func NewTarget(p Params) Target {
	return Target{
		Host:         orDefault(p.Host, DefaultHost),
		Port:         orDefault(p.Port, DefaultPort),
		Subscription: orDefault(p.Subscription, DefaultPattern),
		Event:        orDefault(p.Event, DefaultPattern),
	}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

// Service returns "host:port".
func (t Target) Service() string {
	return t.Host + ":" + t.Port
}

// URL returns the WebSocket URL of the change stream. Patterns are passed
// through as-is; the server interprets them as regular expressions.
func (t Target) URL() string {
	return "ws://" + t.Service() + WatchPath +
		"?subscription=" + t.Subscription +
		"&event=" + t.Event
}

// InfoURL returns the HTTP URL of the server info endpoint.
func (t Target) InfoURL() string {
	return "http://" + t.Service() + InfoPath
}

// State is the lifecycle state of a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resting reports whether s is a state from which Connect starts a fresh
// attempt without tearing anything down.
func (s State) Resting() bool {
	return s == StateIdle || s == StateClosed || s == StateFailed
}

// Kind is the display category of a change event.
type Kind int

const (
	KindOther Kind = iota
	KindCreated
	KindDeleted
	KindRenamed
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindDeleted:
		return "deleted"
	case KindRenamed:
		return "renamed"
	case KindParseError:
		return "parse_error"
	default:
		return "other"
	}
}

// ChangeEvent is a classified inbound message. Err is set only for
// KindParseError.
type ChangeEvent struct {
	Raw  string
	Kind Kind
	Err  error
}

// Status texts emitted on lifecycle transitions.
const (
	StatusWatching     = "Watching..."
	StatusDisconnected = "Disconnected"
)

// NotificationType identifies the shape of a Notification.
type NotificationType int

const (
	NoteStatus NotificationType = iota
	NoteError
	NoteEvent
)

// Notification is what the manager hands to the rendering layer.
// Status is set for NoteStatus, Err for NoteError and Event for NoteEvent.
// State is the manager state after the transition.
type Notification struct {
	Type   NotificationType
	Status string
	Err    error
	Event  ChangeEvent
	State  State
	Target Target
}

// Notifier receives notifications. Implementations are called on the
// goroutine that drives the Manager.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Feed is a Notifier that buffers notifications until drained. The TUI
// drains it after every manager call.
type Feed struct {
	pending []Notification
}

// Notify appends n.
func (f *Feed) Notify(n Notification) {
	f.pending = append(f.pending, n)
}

// Drain returns and clears the buffered notifications.
func (f *Feed) Drain() []Notification {
	out := f.pending
	f.pending = nil
	return out
}
