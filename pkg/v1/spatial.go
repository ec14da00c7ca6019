package cityatlas

import (
	"github.com/dhconnelly/rtreego"
)

// LatLng is a WGS-84 coordinate in decimal degrees.
//
// Field order follows the map-view convention (latitude first), matching
// bookmark centers and popup anchors.
type LatLng struct {
	Lat float64
	Lng float64
}

// Bounds represents a geographic bounding box in WGS-84 coordinates.
//
// Coordinates are in decimal degrees.
type Bounds struct {
	MinLon float64 // Western edge
	MaxLon float64 // Eastern edge
	MinLat float64 // Southern edge
	MaxLat float64 // Northern edge
}

// Contains returns true if the point (lon, lat) is within the bounds.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon &&
		lat >= b.MinLat && lat <= b.MaxLat
}

// Intersects returns true if the given bounds intersects with this bounds.
func (b Bounds) Intersects(other Bounds) bool {
	return !(other.MaxLon < b.MinLon ||
		other.MinLon > b.MaxLon ||
		other.MaxLat < b.MinLat ||
		other.MinLat > b.MaxLat)
}

// Union returns the smallest bounds containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	out := b
	if other.MinLon < out.MinLon {
		out.MinLon = other.MinLon
	}
	if other.MaxLon > out.MaxLon {
		out.MaxLon = other.MaxLon
	}
	if other.MinLat < out.MinLat {
		out.MinLat = other.MinLat
	}
	if other.MaxLat > out.MaxLat {
		out.MaxLat = other.MaxLat
	}
	return out
}

// Center returns the midpoint of the bounds.
//
// This is the popup anchor for polygon features.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLon + b.MaxLon) / 2,
	}
}

// Expand returns a new Bounds expanded by the given margin in all directions.
//
// Margin is in decimal degrees.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
	}
}

// FeatureIndex provides fast spatial queries over normalized descriptors.
//
// The index backs direct map interaction: a click is resolved to the
// descriptor whose footprint contains it, and viewport queries return only
// descriptors whose bounds intersect the view. Spatial queries are O(log N)
// with the R-tree, compared to O(N) with linear scan.
//
// The index is rebuilt wholesale whenever any layer's dataset changes; it
// never mutates incrementally.
type FeatureIndex struct {
	rtree *rtreego.Rtree
	count int
}

// indexedDescriptor adapts a Descriptor to the rtreego.Spatial interface.
type indexedDescriptor struct {
	desc Descriptor
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e indexedDescriptor) Bounds() rtreego.Rect {
	return e.rect
}

// pointFootprint is the half-width, in degrees, of the rectangle a point
// descriptor occupies in the index. It doubles as the click tolerance for
// point features.
const pointFootprint = 0.0005

// NewFeatureIndex builds a spatial index over the given descriptors.
//
// Descriptors without a location or bounds are skipped; they remain
// searchable by name but cannot be hit by map clicks.
func NewFeatureIndex(descriptors []Descriptor) *FeatureIndex {
	rtree := rtreego.NewTree(2, 25, 50)
	count := 0

	for _, d := range descriptors {
		rect, ok := descriptorRect(d)
		if !ok {
			continue
		}
		rtree.Insert(indexedDescriptor{desc: d, rect: rect})
		count++
	}

	return &FeatureIndex{rtree: rtree, count: count}
}

// descriptorRect converts a descriptor footprint to an R-tree rectangle.
func descriptorRect(d Descriptor) (rtreego.Rect, bool) {
	switch {
	case d.Bounds != nil:
		b := *d.Bounds
		point := rtreego.Point{b.MinLon, b.MinLat}
		lengths := []float64{
			b.MaxLon - b.MinLon,
			b.MaxLat - b.MinLat,
		}
		// Degenerate polygons still need a non-zero extent
		for i := range lengths {
			if lengths[i] <= 0 {
				lengths[i] = pointFootprint
			}
		}
		rect, err := rtreego.NewRect(point, lengths)
		if err != nil {
			return rtreego.Rect{}, false
		}
		return rect, true
	case d.Location != nil:
		p := *d.Location
		point := rtreego.Point{p.Lng - pointFootprint, p.Lat - pointFootprint}
		lengths := []float64{2 * pointFootprint, 2 * pointFootprint}
		rect, err := rtreego.NewRect(point, lengths)
		if err != nil {
			return rtreego.Rect{}, false
		}
		return rect, true
	}
	return rtreego.Rect{}, false
}

// Search returns all descriptors whose footprint intersects the given bounds.
//
// Results preserve no particular order; callers needing the layer
// aggregation order should use the search index instead.
func (x *FeatureIndex) Search(bounds Bounds) []Descriptor {
	point := rtreego.Point{bounds.MinLon, bounds.MinLat}
	lengths := []float64{
		bounds.MaxLon - bounds.MinLon,
		bounds.MaxLat - bounds.MinLat,
	}
	for i := range lengths {
		if lengths[i] <= 0 {
			lengths[i] = pointFootprint
		}
	}
	queryRect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return nil
	}

	spatials := x.rtree.SearchIntersect(queryRect)
	result := make([]Descriptor, 0, len(spatials))
	for _, spatial := range spatials {
		result = append(result, spatial.(indexedDescriptor).desc)
	}
	return result
}

// LocateAt resolves a map click to the descriptor under it.
//
// Polygon descriptors match when their bounds contain the point; point
// descriptors match within the click tolerance. When several features
// overlap, point features win over polygons so markers stay clickable
// inside wards.
func (x *FeatureIndex) LocateAt(p LatLng) (Descriptor, bool) {
	probe := Bounds{
		MinLon: p.Lng - pointFootprint,
		MaxLon: p.Lng + pointFootprint,
		MinLat: p.Lat - pointFootprint,
		MaxLat: p.Lat + pointFootprint,
	}

	var polygon Descriptor
	havePolygon := false
	for _, d := range x.Search(probe) {
		switch d.Kind {
		case KindPoint:
			return d, true
		case KindPolygon:
			if d.Bounds != nil && d.Bounds.Contains(p.Lng, p.Lat) && !havePolygon {
				polygon = d
				havePolygon = true
			}
		}
	}
	return polygon, havePolygon
}

// Count returns the number of indexed descriptors.
func (x *FeatureIndex) Count() int {
	return x.count
}
