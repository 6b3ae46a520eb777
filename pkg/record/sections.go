package record

import "fmt"

// Platform selects the object-format flavor of the section names.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
)

// Sections is the pair of linker sections a scanner walks: fixed-stride
// records in one, null-free name blobs in the other, correlated by the
// name_offset field inside each record.
type Sections struct {
	Records string
	Names   string
}

// ParsePlatform validates a target platform name.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformLinux, PlatformDarwin, PlatformWindows:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("unsupported target platform %q (supported: linux, darwin, windows)", s)
	}
}

// SectionsFor returns the well-known section names for a target platform.
// These names are the discovery half of the wire contract; changing them
// strands every scanner build that expects the defaults.
func SectionsFor(p Platform) (Sections, error) {
	switch p {
	case PlatformLinux:
		return Sections{Records: ".security_tests", Names: ".security_names"}, nil
	case PlatformDarwin:
		return Sections{Records: "__DATA,__sectests", Names: "__DATA,__secnames"}, nil
	case PlatformWindows:
		return Sections{Records: ".sectests", Names: ".secnames"}, nil
	default:
		return Sections{}, fmt.Errorf("unsupported target platform %q", p)
	}
}
