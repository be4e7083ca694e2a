package platform

import (
	"errors"
	"testing"
)

func TestResolve_Supported(t *testing.T) {
	tests := []struct {
		signal string
		want   Family
	}{
		{"linux", FamilyLinux},
		{"linux2", FamilyLinux},
		{"win32", FamilyWindows},
		{"cygwin", FamilyWindows},
		{"msys", FamilyWindows},
		{"windows", FamilyWindows},
		{"darwin", FamilyDarwin},
		{"freebsd7", FamilyBSD},
		{"freebsd8", FamilyBSD},
		{"freebsdN", FamilyBSD},
		{"openbsd6", FamilyBSD},
		{"os2", FamilyOther},
		{"osemx", FamilyOther},
		{"riscos", FamilyOther},
		{"atheos", FamilyOther},
	}

	for _, tt := range tests {
		got, err := Resolve(tt.signal)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error: %v", tt.signal, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.signal, got, tt.want)
		}
	}
}

func TestResolve_Unsupported(t *testing.T) {
	for _, signal := range []string{"", "AndyOS", "Linux", "linux-gnu", "win", "Darwin", "freebsd9"} {
		family, err := Resolve(signal)
		if err == nil {
			t.Errorf("Resolve(%q): expected error, got %v", signal, family)
			continue
		}
		var upe *UnsupportedPlatformError
		if !errors.As(err, &upe) {
			t.Errorf("Resolve(%q): error type %T, want *UnsupportedPlatformError", signal, err)
		}
		if family != FamilyUnknown {
			t.Errorf("Resolve(%q) family = %v, want unknown", signal, family)
		}
	}
}

func TestCurrent_Override(t *testing.T) {
	got, err := Current("win32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FamilyWindows {
		t.Errorf("got %v, want windows", got)
	}

	if _, err := Current("plan9-ish"); err == nil {
		t.Error("expected error for unknown override")
	}
}

func TestSignals_AllResolve(t *testing.T) {
	for _, s := range Signals() {
		if _, err := Resolve(s); err != nil {
			t.Errorf("signal %q does not resolve: %v", s, err)
		}
	}
}

func TestFamily_String(t *testing.T) {
	if FamilyBSD.String() != "bsd" {
		t.Errorf("got %q", FamilyBSD.String())
	}
	if Family(42).String() != "Family(42)" {
		t.Errorf("got %q", Family(42).String())
	}
}
