package offlinecache

import (
	"errors"
	"fmt"
)

var (
	// ErrSeed is returned when the static namespace could not be populated
	// from the manifest. Nothing fetched in that attempt is committed.
	ErrSeed = errors.New("offlinecache: seeding static cache failed")
	// ErrEmptyManifest is returned by Registry.Validate for a manifest with no usable entries.
	ErrEmptyManifest = errors.New("offlinecache: empty manifest")
	ErrUnknownEvent  = errors.New("offlinecache: unknown event")

	errCommit = errors.New("offlinecache: commit seeded assets")
)

func ErrInvalidPrefix(prefix string) error {
	return fmt.Errorf("offlinecache: invalid prefix: %q (must be non-empty)", prefix)
}

func ErrInvalidVersion(version string) error {
	return fmt.Errorf("offlinecache: invalid version: %q (must be non-empty and not %q)", version, dynamicSuffix)
}

func seedError(uri string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSeed, uri, err)
}
