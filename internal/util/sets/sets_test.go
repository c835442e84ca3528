package sets

import (
	"slices"
	"testing"
)

func TestSet(t *testing.T) {
	s := New("b", "a")
	if !s.Has("a") || s.Has("c") {
		t.Fatalf("unexpected membership: %v", s)
	}
	if !s.Add("c") {
		t.Fatalf("adding a new member should report true")
	}
	if s.Add("c") {
		t.Fatalf("adding an existing member should report false")
	}

	c := s.Clone()
	c.Delete("a")
	if !s.Has("a") {
		t.Fatalf("clone must not alias the original")
	}
	if got := Sorted(s); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("Sorted = %v", got)
	}
}
