package state

import "testing"

func TestBufferOldestFirstEvictsOldest(t *testing.T) {
	buf := NewBuffer[int](100, OldestFirst)
	for i := 0; i < 250; i++ {
		buf.Append(i)
		if buf.Len() > 100 {
			t.Fatalf("buffer exceeded capacity: %d", buf.Len())
		}
	}
	got := buf.Recent(0)
	if len(got) != 100 {
		t.Fatalf("expected 100 entries, got %d", len(got))
	}
	for i, v := range got {
		if v != 150+i {
			t.Fatalf("entry %d: expected %d, got %d", i, 150+i, v)
		}
	}
}

func TestBufferOldestFirstRecentTail(t *testing.T) {
	buf := NewBuffer[int](5, OldestFirst)
	for i := 1; i <= 4; i++ {
		buf.Append(i)
	}
	got := buf.Recent(2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected recent entries: %v", got)
	}
}

func TestBufferNewestFirst(t *testing.T) {
	buf := NewBuffer[string](50, NewestFirst)
	for i := 0; i < 60; i++ {
		buf.Append(string(rune('A' + i%26)))
	}
	if buf.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", buf.Len())
	}
	buf.Append("latest")
	got := buf.Recent(3)
	if got[0] != "latest" {
		t.Fatalf("expected newest at the front, got %v", got)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
}

func TestBufferRecentClampsLimit(t *testing.T) {
	buf := NewBuffer[int](3, NewestFirst)
	buf.Append(1)
	buf.Append(2)
	if got := buf.Recent(10); len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got := buf.Recent(-1); len(got) != 2 || got[0] != 2 {
		t.Fatalf("expected all entries newest first, got %v", got)
	}
	if buf.Cap() != 3 {
		t.Fatalf("expected cap 3, got %d", buf.Cap())
	}
}

func TestBufferRecentIsCopy(t *testing.T) {
	buf := NewBuffer[int](3, OldestFirst)
	buf.Append(1)
	got := buf.Recent(1)
	got[0] = 99
	if again := buf.Recent(1); again[0] != 1 {
		t.Fatalf("stored entry mutated through returned slice: %v", again)
	}
}
