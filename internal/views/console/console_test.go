package console

import (
	"strings"
	"testing"
)

func TestAddEntry(t *testing.T) {
	m := New(0)
	m.Add("created", `{"create":true}`)
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != "created" {
		t.Errorf("expected kind 'created', got %q", m.Entries[0].Kind)
	}
}

func TestMaxEntries(t *testing.T) {
	m := New(10)
	for i := 0; i < 25; i++ {
		m.Add("other", "msg")
	}
	if len(m.Entries) != 10 {
		t.Errorf("expected 10 entries, got %d", len(m.Entries))
	}

	d := New(0)
	for i := 0; i < defaultMaxEntries+5; i++ {
		d.Add("other", "msg")
	}
	if len(d.Entries) != defaultMaxEntries {
		t.Errorf("expected %d entries, got %d", defaultMaxEntries, len(d.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New(0)
	for i := 0; i < 20; i++ {
		m.Add("other", "msg")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}
	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 19 {
		t.Errorf("expected offset capped at 19, got %d", m.Offset)
	}
	m.Add("other", "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}

func TestClear(t *testing.T) {
	m := New(0)
	m.Add(KindStatus, "Watching...")
	m.ScrollUp(1)
	m.Clear()
	if len(m.Entries) != 0 || m.Offset != 0 {
		t.Errorf("Clear() left %d entries, offset %d", len(m.Entries), m.Offset)
	}
}

func TestViewEmpty(t *testing.T) {
	v := New(0).View(80, 20)
	if !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New(0)
	m.Add(KindStatus, "Watching...")
	m.Add("deleted", `{"name":"a.txt","deleted":true}`)
	m.Add(KindError, "connection reset")
	v := m.View(100, 20)
	for _, want := range []string{"Watching...", `"deleted":true`, "connection reset"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestViewShowsNewestWhenFull(t *testing.T) {
	m := New(0)
	m.Add("other", "oldest")
	for i := 0; i < 30; i++ {
		m.Add("other", "filler")
	}
	m.Add("other", "newest")
	v := m.View(80, 10)
	if strings.Contains(v, "oldest") {
		t.Error("oldest entry should have scrolled out")
	}
	if !strings.Contains(v, "newest") {
		t.Error("newest entry should be visible")
	}
}
