package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{8, 16, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("NanoID: unexpected character %q in %q", c, id)
			}
		}
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := gen()
		if len(id) != 36 {
			t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestDomainGenerators(t *testing.T) {
	if id := Wizard(); !strings.HasPrefix(id, "wiz_") || len(id) != 40 {
		t.Fatalf("Wizard: got %q", id)
	}
	if id := Session(); !strings.HasPrefix(id, "ses_") || len(id) != 28 {
		t.Fatalf("Session: got %q", id)
	}
	if id := Trace(); len(id) != 16 {
		t.Fatalf("Trace: got %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("w")
	if a, b := gen(), gen(); a != "w1" || b != "w2" {
		t.Fatalf("Sequence: got %q, %q", a, b)
	}
}
