// Package platform resolves the canonical target triple for a host.
//
// A triple is the string "{arch}_{os}" (for example "x86_64_linux") and is
// the key under which platform-specific artifacts are stored and looked up.
// The supported set is closed: an (arch, os) pair outside of it is a hard
// error, never coerced to a near neighbor.
package platform

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Triple is a canonical "{arch}_{os}" platform identifier.
type Triple string

// Supported target triples.
const (
	X8664Linux     Triple = "x86_64_linux"
	Aarch64Linux   Triple = "aarch64_linux"
	X8664Macos     Triple = "x86_64_macos"
	Aarch64Macos   Triple = "aarch64_macos"
	X8664Windows   Triple = "x86_64_windows"
	Aarch64Windows Triple = "aarch64_windows"
)

// supported is the closed set of valid triples.
var supported = map[Triple]bool{
	X8664Linux:     true,
	Aarch64Linux:   true,
	X8664Macos:     true,
	Aarch64Macos:   true,
	X8664Windows:   true,
	Aarch64Windows: true,
}

// UnsupportedPlatformError reports a host or key whose (arch, os) pair is not
// in the supported set. It carries the reported values for diagnostics.
type UnsupportedPlatformError struct {
	Arch string
	OS   string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: arch=%q os=%q (supported: %s)", e.Arch, e.OS, strings.Join(SupportedStrings(), ", "))
}

func (t Triple) String() string {
	return string(t)
}

// ResolveLocal returns the triple for the running host. Architecture names
// "amd64" and "x86_64" fold to x86_64; "arm64" and "aarch64" fold to aarch64.
func ResolveLocal() (Triple, error) {
	return resolve(runtime.GOARCH, runtime.GOOS)
}

// resolve is split out so tests can cover pairs other than the build host's.
func resolve(goarch, goos string) (Triple, error) {
	var arch string
	switch goarch {
	case "amd64", "x86_64":
		arch = "x86_64"
	case "arm64", "aarch64":
		arch = "aarch64"
	default:
		return "", &UnsupportedPlatformError{Arch: goarch, OS: goos}
	}

	var os string
	switch strings.ToLower(goos) {
	case "linux":
		os = "linux"
	case "darwin", "macos":
		os = "macos"
	case "windows":
		os = "windows"
	default:
		return "", &UnsupportedPlatformError{Arch: goarch, OS: goos}
	}

	return Triple(arch + "_" + os), nil
}

// Parse validates a triple received over the wire. The registry uses this to
// reject publishes keyed by triples it could never serve.
func Parse(s string) (Triple, error) {
	t := Triple(s)
	if !supported[t] {
		// Arch names contain an underscore (x86_64), OS names do not, so the
		// split point is the last separator.
		arch, os := s, ""
		if i := strings.LastIndex(s, "_"); i >= 0 {
			arch, os = s[:i], s[i+1:]
		}
		return "", &UnsupportedPlatformError{Arch: arch, OS: os}
	}
	return t, nil
}

// IsSupported reports whether t is a member of the supported triple set.
func IsSupported(t Triple) bool {
	return supported[t]
}

// SupportedStrings returns the supported triples in stable order.
func SupportedStrings() []string {
	out := make([]string, 0, len(supported))
	for t := range supported {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
