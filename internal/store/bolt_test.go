package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestJournal(t *testing.T, capacity int) *BoltJournal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewBoltJournal(path, capacity)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndGet(t *testing.T) {
	j := newTestJournal(t, 10)
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	seq, err := j.Append("stack_signal", at, map[string]any{"kind": "started", "status": 0})
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}

	e, err := j.Get(seq)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != "stack_signal" || !e.Time.Equal(at) {
		t.Errorf("entry = %+v", e)
	}
	var data map[string]any
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["kind"] != "started" {
		t.Errorf("data = %s", e.Data)
	}
}

func TestGetNotFound(t *testing.T) {
	j := newTestJournal(t, 10)
	_, err := j.Get(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	j := newTestJournal(t, 10)
	for i := 0; i < 5; i++ {
		if _, err := j.Append("dispatch_outcome", time.Now(), i); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []uint64{5, 4, 3} {
		if got[i].Seq != want {
			t.Errorf("entry %d seq = %d, want %d", i, got[i].Seq, want)
		}
	}

	all, err := j.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("Recent(0) len = %d, want 5", len(all))
	}
}

func TestRingEviction(t *testing.T) {
	j := newTestJournal(t, 4)
	for i := 0; i < 10; i++ {
		if _, err := j.Append("dispatch_outcome", time.Now(), i); err != nil {
			t.Fatal(err)
		}
	}

	n, err := j.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("len = %d, want 4", n)
	}
	if _, err := j.Get(6); !errors.Is(err, ErrNotFound) {
		t.Errorf("seq 6 should be evicted, err = %v", err)
	}
	if _, err := j.Get(7); err != nil {
		t.Errorf("seq 7 should remain: %v", err)
	}
}

func TestReopenKeepsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewBoltJournal(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	j.Append("light_state", time.Now(), nil)
	j.Append("light_state", time.Now(), nil)
	j.Close()

	j, err = NewBoltJournal(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	seq, err := j.Append("light_state", time.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 3 {
		t.Errorf("seq after reopen = %d, want 3", seq)
	}
}

func TestAppendUnencodable(t *testing.T) {
	j := newTestJournal(t, 10)
	if _, err := j.Append("bad", time.Now(), make(chan int)); err == nil {
		t.Error("expected encode error")
	}
	if n, _ := j.Len(); n != 0 {
		t.Errorf("len = %d, want 0", n)
	}
}
