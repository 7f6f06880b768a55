package containerdiscovery

import "testing"

func TestSnapshotReplaceIsWholesale(t *testing.T) {
	s := NewSnapshot()
	s.Replace([]Container{{ID: "a"}, {ID: "b"}})
	if got := s.All(); len(got) != 2 {
		t.Fatalf("expected 2 containers, got %d", len(got))
	}

	s.Replace([]Container{{ID: "c"}})
	got := s.All()
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected snapshot fully replaced, got %v", got)
	}
}

func TestSnapshotAllReturnsCopy(t *testing.T) {
	s := NewSnapshot()
	s.Replace([]Container{{ID: "a"}})
	got := s.All()
	got[0].ID = "mutated"

	if s.All()[0].ID != "a" {
		t.Fatal("All() must return a copy, not a reference into internal state")
	}
}
