package ids

import (
	"regexp"
	"testing"
)

func TestSubmissionIDShape(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-F]{8}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := SubmissionID()
		if !re.MatchString(id) {
			t.Fatalf("unexpected submission id %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 95 {
		t.Fatalf("submission ids collide too often: %d unique of 100", len(seen))
	}
}

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 50; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
