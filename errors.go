package v2vsim

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDensity is returned when the requested vehicle density can not
	// be resolved to an absolute vehicle count.
	ErrInvalidDensity = errors.New("Invalid vehicle density")
	// ErrShapeMismatch is returned when a keyed read or write on the relation
	// store does not match the key's index count.
	ErrShapeMismatch = errors.New("Shape mismatch")
	// ErrMissingKey is returned when a subset key has not been registered.
	ErrMissingKey = errors.New("Missing key")
	// ErrGeometry is returned for degenerate geometry, e.g. interpolating an
	// interior point of a zero-length street.
	ErrGeometry = errors.New("Degenerate geometry")
	// ErrCacheMiss is returned when a cached map blob is absent or unreadable.
	ErrCacheMiss = errors.New("Cache miss")
)
