package postgres

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGeneratorIsMonotonic(t *testing.T) {
	g := NewULIDGenerator()

	prev := g.Generate()
	if _, err := ulid.Parse(prev); err != nil {
		t.Fatalf("not a ULID: %v", err)
	}

	for i := 0; i < 100; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
