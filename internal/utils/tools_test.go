package utils

import "testing"

func TestGenerateUUIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if len(id) != 36 {
			t.Fatalf("unexpected uuid format: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate uuid generated: %q", id)
		}
		seen[id] = struct{}{}
	}
}
