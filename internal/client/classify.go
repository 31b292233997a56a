package client

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ParseResult is the outcome of Parse: either Parsed or ParseFailure.
type ParseResult interface {
	parseResult()
}

// Parsed holds the classification flags of a well-formed message. Valid JSON
// that is not an object yields a zero Parsed.
type Parsed struct {
	Create  bool
	Deleted bool
	Rename  bool
}

// ParseFailure wraps a message that is not valid JSON.
type ParseFailure struct {
	Raw string
	Err error
}

func (Parsed) parseResult()       {}
func (ParseFailure) parseResult() {}

// Parse decodes raw into a tagged result. Flags use JSON truthiness: false,
// 0, "", null and missing fields are false; everything else is true.
func Parse(raw string) ParseResult {
	data := []byte(raw)
	if !json.Valid(data) {
		return ParseFailure{Raw: raw, Err: errors.New("message is not valid JSON")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Valid JSON that is not an object: nothing to classify on.
		return Parsed{}
	}
	return Parsed{
		Create:  truthy(fields["create"]),
		Deleted: truthy(fields["deleted"]),
		Rename:  truthy(fields["rename"]),
	}
}

func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return false
		}
		return s != ""
	default:
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return false
		}
		return f != 0
	}
}

// Kind returns the category of p. When several flags are set the first in
// the order create, deleted, rename wins.
func (p Parsed) Kind() Kind {
	switch {
	case p.Create:
		return KindCreated
	case p.Deleted:
		return KindDeleted
	case p.Rename:
		return KindRenamed
	default:
		return KindOther
	}
}

// Classify parses raw and returns its change event. It never fails; a
// malformed message becomes a KindParseError event carrying the raw text.
func Classify(raw string) ChangeEvent {
	switch r := Parse(raw).(type) {
	case Parsed:
		return ChangeEvent{Raw: raw, Kind: r.Kind()}
	case ParseFailure:
		return ChangeEvent{Raw: r.Raw, Kind: KindParseError, Err: r.Err}
	default:
		return ChangeEvent{Raw: raw, Kind: KindOther}
	}
}
