package geocluster

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/mapengine/geocluster/internal/geo"
)

const (
	defaultRadius    = 40.0
	defaultExtent    = 512.0
	defaultMinPoints = 2
	defaultMinZoom   = 0
	defaultMaxZoom   = 16
	defaultNodeSize  = 64
)

// Options configures a clustering engine. GetX and GetY are required;
// every other field has a zero-value-means-default fallback mirroring
// the teacher constructor's single-epsilon default.
//
// P is the caller's own point type. The spatial indices hold only the
// projected coordinates derived from each point; Index keeps the
// caller's input slice and refers to points by their position in it,
// while MutableIndex stores each point value in a map keyed by handle.
type Options[P any] struct {
	// Radius is the cluster inclusion radius, in pixels at tile size
	// Extent. Default 40.
	Radius float64
	// Extent is the tile size (pixels) used to translate Radius into
	// projected [0,1]^2 units. Default 512.
	Extent float64
	// MinPoints is the minimum combined numPoints required to form a
	// cluster. Default 2.
	MinPoints int
	// MinZoom is the coarsest zoom at which layers are built. Default 0.
	MinZoom int
	// MaxZoom is the finest zoom at which clustering is considered.
	// Default 16.
	MaxZoom int
	// NodeSize is the KD-tree leaf block size (immutable index only).
	// Default 64.
	NodeSize int

	// GetX and GetY extract projection-space coordinates from a point.
	// Required.
	GetX func(p P) float64
	GetY func(p P) float64

	// Project/Unproject override the default Web-Mercator-like
	// projection (internal/geo). Supply geo.Identity for callers whose
	// GetX/GetY already return unit-square coordinates.
	Project   func(x, y float64) (px, py float64)
	Unproject func(x, y float64) (ux, uy float64)

	// MapPointToProperties/ReduceProperties implement the map/reduce
	// aggregation protocol (§4.6). Both optional; both must be set
	// together or neither.
	MapPointToProperties func(p P) any
	ReduceProperties     func(acc any, other any)

	// ExtractClusterData/CombineClusterData implement the alternative,
	// monoid-style aggregation protocol, coexisting independently with
	// the map/reduce pair above.
	ExtractClusterData func(p P) any
	CombineClusterData func(acc any, other any) any

	// GenerateUUID supplies opaque cluster identifiers for the mutable
	// index. Defaults to github.com/google/uuid. Out of scope as a
	// hash/UUID provider per the core spec: this is the pluggable seam.
	GenerateUUID func() string
}

func (o Options[P]) withDefaults() Options[P] {
	if o.Radius == 0 {
		o.Radius = defaultRadius
	}
	if o.Extent == 0 {
		o.Extent = defaultExtent
	}
	if o.MinPoints == 0 {
		o.MinPoints = defaultMinPoints
	}
	if o.MaxZoom == 0 {
		o.MaxZoom = defaultMaxZoom
	}
	if o.NodeSize == 0 {
		o.NodeSize = defaultNodeSize
	}
	if o.Project == nil {
		o.Project = geo.ToUnitSquare
	}
	if o.Unproject == nil {
		o.Unproject = geo.FromUnitSquare
	}
	if o.GenerateUUID == nil {
		o.GenerateUUID = func() string { return uuid.NewString() }
	}
	return o
}

func (o Options[P]) validate() error {
	if o.Radius <= 0 {
		return fmt.Errorf("geocluster: radius must be > 0: %w", ErrInvalidArgument)
	}
	if o.MinPoints < 1 {
		return fmt.Errorf("geocluster: minPoints must be >= 1: %w", ErrInvalidArgument)
	}
	if o.MinZoom > o.MaxZoom {
		return fmt.Errorf("geocluster: minZoom (%d) > maxZoom (%d): %w", o.MinZoom, o.MaxZoom, ErrInvalidArgument)
	}
	if o.GetX == nil || o.GetY == nil {
		return fmt.Errorf("geocluster: getX/getY are required: %w", ErrInvalidArgument)
	}
	if (o.MapPointToProperties == nil) != (o.ReduceProperties == nil) {
		return fmt.Errorf("geocluster: mapPointToProperties and reduceProperties must be set together: %w", ErrInvalidArgument)
	}
	if (o.ExtractClusterData == nil) != (o.CombineClusterData == nil) {
		return fmt.Errorf("geocluster: extractClusterData and combineClusterData must be set together: %w", ErrInvalidArgument)
	}
	return nil
}

func checkFinite(x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("geocluster: coordinate extractor returned non-finite value: %w", ErrInvalidArgument)
	}
	return nil
}

// radiusAt returns r_z = radius / (extent * 2^z), the inclusion radius
// in projected [0,1]^2 units at zoom z.
func radiusAt[P any](o Options[P], zoom int) float64 {
	return o.Radius / (o.Extent * math.Pow(2, float64(zoom)))
}
