// Package platform defines the closed set of platforms the environment
// descriptor supports and detects the host platform.
//
// Platform identifiers follow the "cpu-os" double convention used by the
// toolchain and the binary cache (e.g., "x86_64-linux", "aarch64-darwin").
// The set is deliberately closed: the descriptor only enumerates tools for
// these four systems, so any other identifier is a fatal error rather than
// a best-effort guess.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is a supported platform identifier.
type Platform string

const (
	// X8664Linux is 64-bit Intel/AMD Linux.
	X8664Linux Platform = "x86_64-linux"

	// Aarch64Linux is 64-bit ARM Linux.
	Aarch64Linux Platform = "aarch64-linux"

	// X8664Darwin is 64-bit Intel macOS.
	X8664Darwin Platform = "x86_64-darwin"

	// Aarch64Darwin is Apple Silicon macOS.
	Aarch64Darwin Platform = "aarch64-darwin"
)

// All lists every supported platform in a stable order. Used by
// inspection commands and by resolution tests that sweep the full set.
func All() []Platform {
	return []Platform{X8664Linux, Aarch64Linux, X8664Darwin, Aarch64Darwin}
}

// String returns the platform identifier. Satisfies fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsValid checks whether the Platform value is a member of the closed
// supported set.
func (p Platform) IsValid() bool {
	switch p {
	case X8664Linux, Aarch64Linux, X8664Darwin, Aarch64Darwin:
		return true
	default:
		return false
	}
}

// OS returns the operating-system half of the identifier
// ("linux" or "darwin").
func (p Platform) OS() string {
	if i := strings.LastIndex(string(p), "-"); i >= 0 {
		return string(p)[i+1:]
	}
	return string(p)
}

// Arch returns the CPU half of the identifier ("x86_64" or "aarch64").
func (p Platform) Arch() string {
	if i := strings.LastIndex(string(p), "-"); i >= 0 {
		return string(p)[:i]
	}
	return string(p)
}

// IsDarwin reports whether the platform is a member of the Darwin family.
// This predicate drives the only conditional logic in resolution: the
// browser and its automation driver are included iff the platform is NOT
// Darwin-family.
func (p Platform) IsDarwin() bool {
	return p.OS() == "darwin"
}

// Parse converts a string to a Platform. Returns an error for any
// identifier outside the supported set — the descriptor does not
// enumerate tools for other systems, so resolution must abort.
func Parse(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unsupported platform %q (supported: %s)", s, supportedList())
	}
	return p, nil
}

// Detect determines the host platform from the running binary's target.
// runtime.GOOS and runtime.GOARCH are compile-time constants, so detection
// is deterministic for a given binary.
func Detect() (Platform, error) {
	arch, ok := archNames[runtime.GOARCH]
	if !ok {
		return "", fmt.Errorf("unsupported architecture %q (supported: %s)", runtime.GOARCH, supportedList())
	}
	switch runtime.GOOS {
	case "linux", "darwin":
		return Parse(arch + "-" + runtime.GOOS)
	default:
		return "", fmt.Errorf("unsupported operating system %q (supported: %s)", runtime.GOOS, supportedList())
	}
}

// archNames maps Go architecture names to the toolchain's CPU spellings.
var archNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// supportedList renders the supported set for error messages.
func supportedList() string {
	all := All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
