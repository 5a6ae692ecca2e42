package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, commit, date := Info()
	if v != Version || commit != GitCommit || date != BuildDate {
		t.Errorf("Info() = %q, %q, %q", v, commit, date)
	}
}

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.2.3"

	s := String()
	if !strings.HasPrefix(s, "1.2.3 (commit: ") {
		t.Errorf("String() = %q", s)
	}
	if !strings.Contains(s, "go") {
		t.Errorf("String() should include the Go version: %q", s)
	}
}
