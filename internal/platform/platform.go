// Package platform resolves the operating system family used to pick command syntax.
package platform

import (
	"fmt"
	"runtime"
)

// Family is a coarse operating system category.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyLinux
	FamilyWindows
	FamilyDarwin
	FamilyBSD
	// FamilyOther covers supported niche systems (OS/2, RiscOS, AtheOS).
	FamilyOther
)

var familyNames = map[Family]string{
	FamilyUnknown: "unknown",
	FamilyLinux:   "linux",
	FamilyWindows: "windows",
	FamilyDarwin:  "darwin",
	FamilyBSD:     "bsd",
	FamilyOther:   "other",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// supported maps every accepted signal to its family. Matching is exact.
var supported = map[string]Family{
	"linux":  FamilyLinux,
	"linux2": FamilyLinux,

	"win32":   FamilyWindows,
	"cygwin":  FamilyWindows,
	"msys":    FamilyWindows,
	"windows": FamilyWindows,

	"darwin": FamilyDarwin,

	"freebsd7":  FamilyBSD,
	"freebsd8":  FamilyBSD,
	"freebsdN":  FamilyBSD,
	"openbsd6":  FamilyBSD,
	"freebsd":   FamilyBSD,
	"openbsd":   FamilyBSD,
	"netbsd":    FamilyBSD,
	"dragonfly": FamilyBSD,

	"os2":    FamilyOther,
	"osemx":  FamilyOther,
	"riscos": FamilyOther,
	"atheos": FamilyOther,
}

// UnsupportedPlatformError is returned when a signal does not name a known OS.
type UnsupportedPlatformError struct {
	Signal string
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Signal == "" {
		return "unsupported platform: no operating system signal"
	}
	return fmt.Sprintf("unsupported platform: %q", e.Signal)
}

// Resolve maps an environment signal to a Family.
func Resolve(signal string) (Family, error) {
	if signal == "" {
		return FamilyUnknown, &UnsupportedPlatformError{}
	}
	family, ok := supported[signal]
	if !ok {
		return FamilyUnknown, &UnsupportedPlatformError{Signal: signal}
	}
	return family, nil
}

// Current resolves override when set, otherwise the running GOOS.
func Current(override string) (Family, error) {
	if override != "" {
		return Resolve(override)
	}
	return Resolve(runtime.GOOS)
}

// Signals returns every accepted signal.
func Signals() []string {
	signals := make([]string, 0, len(supported))
	for s := range supported {
		signals = append(signals, s)
	}
	return signals
}
