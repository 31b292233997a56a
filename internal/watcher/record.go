// Package watcher turns file-system changes under a root into change records
// published on a message bus.
package watcher

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Topic is the bus topic change records are published on.
const Topic = "filewatch.changes"

// Record is one change as sent to stream clients. The boolean flags are the
// fields clients classify on.
type Record struct {
	Name    string    `json:"name"`
	Op      string    `json:"op"`
	Create  bool      `json:"create"`
	Deleted bool      `json:"deleted"`
	Rename  bool      `json:"rename"`
	Write   bool      `json:"write"`
	Chmod   bool      `json:"chmod"`
	Time    time.Time `json:"time"`
}

// NewRecord builds a record from an fsnotify event. Name is made relative to
// root with forward slashes.
func NewRecord(ev fsnotify.Event, root string, at time.Time) Record {
	name := ev.Name
	if rel, err := filepath.Rel(root, ev.Name); err == nil {
		name = rel
	}
	return Record{
		Name:    filepath.ToSlash(name),
		Op:      ev.Op.String(),
		Create:  ev.Has(fsnotify.Create),
		Deleted: ev.Has(fsnotify.Remove),
		Rename:  ev.Has(fsnotify.Rename),
		Write:   ev.Has(fsnotify.Write),
		Chmod:   ev.Has(fsnotify.Chmod),
		Time:    at,
	}
}

// Publish encodes rec and publishes it on Topic.
func Publish(pub message.Publisher, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	return pub.Publish(Topic, message.NewMessage(watermill.NewUUID(), b))
}

// Decode parses a bus message payload back into a record.
func Decode(msg *message.Message) (Record, error) {
	var rec Record
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return rec, errors.Wrap(err, "decode record")
	}
	return rec, nil
}
