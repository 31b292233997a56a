package printer

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/gyokuro/filewatch/internal/client"
)

func TestNotifyPlain(t *testing.T) {
	tests := []struct {
		name string
		note client.Notification
		want string
	}{
		{
			name: "status",
			note: client.Notification{Type: client.NoteStatus, Status: client.StatusWatching, State: client.StateOpen},
			want: "12:00:00 status      Watching...\n",
		},
		{
			name: "error",
			note: client.Notification{Type: client.NoteError, Err: errors.New("refused")},
			want: "12:00:00 error       Error: refused\n",
		},
		{
			name: "event",
			note: client.Notification{Type: client.NoteEvent, Event: client.ChangeEvent{Raw: `{"create":true}`, Kind: client.KindCreated}},
			want: "12:00:00 created     {\"create\":true}\n",
		},
		{
			name: "parse error",
			note: client.Notification{Type: client.NoteEvent, Event: client.ChangeEvent{Raw: "oops", Kind: client.KindParseError}},
			want: "12:00:00 parse_error oops\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := New(&buf, false)
			p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
			p.Notify(tt.note)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotifyIsANotifier(t *testing.T) {
	var buf bytes.Buffer
	var n client.Notifier = New(&buf, true)
	n.Notify(client.Notification{Type: client.NoteStatus, Status: client.StatusDisconnected})
	if !bytes.Contains(buf.Bytes(), []byte("Disconnected")) {
		t.Errorf("output %q missing status", buf.String())
	}
}
