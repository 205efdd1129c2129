// Package images maps logical target-OS identifiers to container image
// references. Resolution never fails: unknown identifiers fall back to a
// family default, then to a global default. Whether an image is actually
// pullable is the environment driver's problem, reported at create time.
package images

import "strings"

// Pinned images for the target OS identifiers we support out of the box.
var imageTable = map[string]string{
	"windows-server-2019": "mcr.microsoft.com/windows/servercore:ltsc2019",
	"windows-server-2022": "mcr.microsoft.com/windows/servercore:ltsc2022",
	"windows-server-2025": "mcr.microsoft.com/windows/servercore:ltsc2025",
	"ubuntu-20.04":        "ubuntu:20.04",
	"ubuntu-22.04":        "ubuntu:22.04",
	"ubuntu-24.04":        "ubuntu:24.04",
	"centos-7":            "centos:7",
	"centos-stream9":      "quay.io/centos/centos:stream9",
	"debian-11":           "debian:11",
	"debian-12":           "debian:12",
	"rhel-8":              "registry.access.redhat.com/ubi8/ubi:latest",
	"rhel-9":              "registry.access.redhat.com/ubi9/ubi:latest",
}

// familyDefaults is checked in order so that e.g. "ubuntu-99.99" lands on
// the newest supported ubuntu image rather than the global default.
var familyDefaults = []struct {
	family string
	image  string
}{
	{"windows", "mcr.microsoft.com/windows/servercore:ltsc2022"},
	{"ubuntu", "ubuntu:24.04"},
	{"centos", "quay.io/centos/centos:stream9"},
	{"debian", "debian:12"},
	{"rhel", "registry.access.redhat.com/ubi9/ubi:latest"},
}

// DefaultImage is returned when the identifier matches nothing at all.
const DefaultImage = "ubuntu:22.04"

// Normalize lowercases an OS identifier and folds spaces and underscores
// to dashes, so "Ubuntu 22.04" resolves the same as "ubuntu-22.04".
func Normalize(osIdentifier string) string {
	s := strings.ToLower(strings.TrimSpace(osIdentifier))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}

// Resolve maps a target OS identifier to a container image reference.
// An explicit override wins unchanged; the caller takes responsibility
// for its validity.
func Resolve(osIdentifier, override string) string {
	if override != "" {
		return override
	}

	id := Normalize(osIdentifier)
	if image, ok := imageTable[id]; ok {
		return image
	}

	for _, fd := range familyDefaults {
		if strings.Contains(id, fd.family) {
			return fd.image
		}
	}

	return DefaultImage
}

// IsWindows reports whether the identifier names a Windows target. This
// drives command construction and entrypoint generation downstream.
func IsWindows(osIdentifier string) bool {
	return strings.Contains(Normalize(osIdentifier), "windows")
}
