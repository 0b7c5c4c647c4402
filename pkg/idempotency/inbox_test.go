package idempotency

import (
	"testing"
	"time"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	ts := time.Date(2024, time.March, 1, 10, 30, 15, 0, time.UTC)

	k1 := GenerateKey("Observation", "o-1", ts)
	k2 := GenerateKey("Observation", "o-1", ts)
	if k1 != k2 {
		t.Fatalf("same inputs produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Fatalf("expected a hex sha256 key, got %q", k1)
	}
}

func TestGenerateKeyToleratesSubMinuteDrift(t *testing.T) {
	base := time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)

	k1 := GenerateKey("Observation", "o-1", base.Add(5*time.Second))
	k2 := GenerateKey("Observation", "o-1", base.Add(45*time.Second))
	if k1 != k2 {
		t.Fatal("keys within the same minute should match")
	}

	k3 := GenerateKey("Observation", "o-1", base.Add(90*time.Second))
	if k1 == k3 {
		t.Fatal("keys in different minutes should differ")
	}
}

func TestGenerateKeyDistinguishesIdentity(t *testing.T) {
	ts := time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)

	base := GenerateKey("Observation", "o-1", ts)
	if base == GenerateKey("Patient", "o-1", ts) {
		t.Fatal("resource type must participate in the key")
	}
	if base == GenerateKey("Observation", "o-2", ts) {
		t.Fatal("entity id must participate in the key")
	}
}

func TestIsTerminalError(t *testing.T) {
	cases := map[string]bool{
		"Patient validation failed: gender required": true,
		"invalid observation payload":                true,
		"patient not found":                          true,
		"connection refused":                         false,
		"context deadline exceeded":                  false,
	}
	for msg, want := range cases {
		if got := isTerminalError(errorString(msg)); got != want {
			t.Errorf("isTerminalError(%q) = %v, want %v", msg, got, want)
		}
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
