package offlinecache

import (
	"fmt"
	"strings"
)

// DefaultManifest lists the assets the MoodMend shell needs to start offline.
var DefaultManifest = []string{
	"/",
	"./moodmend_ui_demo.html",
	"./manifest.json",
	"./icon-192x192.svg",
	"./icon-512x512.svg",
	"./icon-1024x1024.svg",
	"./icon-emotion.svg",
	"./icon-history.svg",
	"https://cdn.jsdelivr.net/npm/chart.js",
}

const dynamicSuffix = "dynamic"

// Registry names the two live cache namespaces and the assets pinned to the
// static one. Bumping Version moves the static namespace to a new name; the
// dynamic namespace is shared across versions.
type Registry struct {
	Prefix   string
	Version  string
	Manifest []string
}

func DefaultRegistry() Registry {
	return Registry{
		Prefix:   "moodmend",
		Version:  "v3",
		Manifest: append([]string(nil), DefaultManifest...),
	}
}

func (r Registry) StaticNamespace() string {
	return r.Prefix + "-" + r.Version
}

func (r Registry) DynamicNamespace() string {
	return r.Prefix + "-" + dynamicSuffix
}

// Stale reports whether name belongs to this application but is neither of
// the live namespaces. Namespaces of other applications are never stale.
func (r Registry) Stale(name string) bool {
	if !strings.HasPrefix(name, r.Prefix+"-") {
		return false
	}
	return name != r.StaticNamespace() && name != r.DynamicNamespace()
}

func (r Registry) Validate() error {
	if r.Prefix == "" {
		return ErrInvalidPrefix(r.Prefix)
	}
	if r.Version == "" || r.Version == dynamicSuffix {
		return ErrInvalidVersion(r.Version)
	}
	if len(r.Manifest) == 0 {
		return ErrEmptyManifest
	}
	for _, uri := range r.Manifest {
		if strings.TrimSpace(uri) == "" {
			return fmt.Errorf("%w: blank entry", ErrEmptyManifest)
		}
	}
	return nil
}
