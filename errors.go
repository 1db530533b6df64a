package geocluster

import "errors"

// Sentinel error kinds. Callers compare with errors.Is; call sites wrap
// these with context via fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidArgument is returned by New/Load when a construction
	// parameter is out of range (radius <= 0, minPoints < 1,
	// minZoom > maxZoom, a non-finite coordinate from getX/getY).
	ErrInvalidArgument = errors.New("geocluster: invalid argument")

	// ErrNotLoaded is returned by the immutable Index's Search,
	// GetChildren, GetLeaves and GetClusterExpansionZoom when issued
	// before Load has completed successfully. MutableIndex never
	// returns it.
	ErrNotLoaded = errors.New("geocluster: index not loaded")

	// ErrNotFound is returned for an unknown cluster id, or an unknown
	// point passed to Remove/ModifyPointData on the mutable index.
	ErrNotFound = errors.New("geocluster: not found")
)
