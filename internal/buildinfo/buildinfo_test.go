package buildinfo

import "testing"

func TestString(t *testing.T) {
	if got, want := String(), "claudecoder dev (commit none, built unknown)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
