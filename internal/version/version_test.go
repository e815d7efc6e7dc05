package version

import "testing"

func TestString(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "v0.3.1", "abc123", "2026-10-01"
	if got, want := String(), "chemdex v0.3.1 (abc123, 2026-10-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
