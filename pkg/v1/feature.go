package cityatlas

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind classifies a layer's features by geometry.
type Kind int

const (
	// KindPolygon marks area features such as administrative boundaries.
	KindPolygon Kind = iota

	// KindPoint marks point features such as amenities or census records.
	KindPoint
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "Polygon"
	case KindPoint:
		return "Point"
	default:
		return "Unknown"
	}
}

// SourceRef is an opaque reference to one raw feature inside its owning
// dataset.
//
// A ref stays resolvable only as long as the dataset that produced it is the
// layer's current dataset; reloading or hiding the layer invalidates every
// ref minted from the previous dataset.
type SourceRef struct {
	Layer string
	Index int

	// gen ties the ref to one dataset generation so stale refs stop
	// resolving after a reload.
	gen uint64
}

// Dataset is one layer's raw feature collection.
//
// Datasets are replaced wholesale on reload and dropped entirely when the
// owning layer is hidden. A hidden layer holds no dataset.
type Dataset struct {
	Layer      string
	Kind       Kind
	Collection *geojson.FeatureCollection

	gen uint64
}

// Len returns the number of raw features in the dataset.
func (ds *Dataset) Len() int {
	if ds == nil || ds.Collection == nil {
		return 0
	}
	return len(ds.Collection.Features)
}

// Ref returns the source reference for the i-th raw feature.
func (ds *Dataset) Ref(i int) SourceRef {
	return SourceRef{Layer: ds.Layer, Index: i, gen: ds.gen}
}

// Resolve returns the raw feature a ref points at, or false when the ref
// belongs to another layer, a superseded dataset generation, or an index
// that no longer exists.
func (ds *Dataset) Resolve(ref SourceRef) (*geojson.Feature, bool) {
	if ds == nil || ds.Collection == nil {
		return nil, false
	}
	if ref.Layer != ds.Layer || ref.gen != ds.gen {
		return nil, false
	}
	if ref.Index < 0 || ref.Index >= len(ds.Collection.Features) {
		return nil, false
	}
	return ds.Collection.Features[ref.Index], true
}

// Descriptor is a normalized, search-indexable summary of one raw feature.
//
// Location is set only for point kinds, Bounds only for polygon kinds.
// Descriptors are immutable once created and are regenerated whenever the
// source dataset changes.
type Descriptor struct {
	Kind        Kind
	DisplayName string
	Location    *LatLng
	Bounds      *Bounds
	Ref         SourceRef
}

// Anchor returns the representative location for the descriptor: the
// bounding-box center for polygons, the point coordinate for points.
func (d Descriptor) Anchor() (LatLng, bool) {
	switch {
	case d.Location != nil:
		return *d.Location, true
	case d.Bounds != nil:
		return d.Bounds.Center(), true
	}
	return LatLng{}, false
}

// Extractor describes how to normalize one layer's raw features: which
// geometry kind to keep and, in order, which properties to try for the
// display name.
type Extractor struct {
	Kind Kind

	// NameProperties is tried in order; the first property that resolves
	// to a non-empty value wins. Dotted paths descend into nested
	// objects ("tags.name").
	NameProperties []string
}

// Normalize converts a raw dataset into descriptors.
//
// Raw features without a usable geometry for the extractor's kind are
// skipped: a point dataset drops non-Point geometries, a polygon dataset
// drops anything that is not a Polygon or MultiPolygon, and features with
// no geometry at all are always dropped.
//
// The function is pure. It returns a freshly allocated slice on every call
// and never aliases coordinate data owned by the dataset, so a later reload
// cannot mutate descriptors already handed out.
func Normalize(ds *Dataset, ex Extractor) []Descriptor {
	if ds.Len() == 0 {
		return []Descriptor{}
	}

	out := make([]Descriptor, 0, ds.Len())
	for i, f := range ds.Collection.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		d := Descriptor{
			Kind:        ex.Kind,
			DisplayName: resolveName(f.Properties, ex.NameProperties, ex.Kind),
			Ref:         ds.Ref(i),
		}

		switch ex.Kind {
		case KindPoint:
			pt, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			d.Location = &LatLng{Lat: pt[1], Lng: pt[0]}
		case KindPolygon:
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				if len(g) == 0 || len(g[0]) == 0 {
					continue
				}
			case orb.MultiPolygon:
				if len(g) == 0 {
					continue
				}
			default:
				continue
			}
			b := f.Geometry.Bound()
			d.Bounds = &Bounds{
				MinLon: b.Min[0],
				MaxLon: b.Max[0],
				MinLat: b.Min[1],
				MaxLat: b.Max[1],
			}
		default:
			continue
		}

		out = append(out, d)
	}
	return out
}

// resolveName applies the ordered name lookup policy: first candidate
// property with a non-empty value wins, otherwise the fixed fallback
// literal for the kind.
func resolveName(props geojson.Properties, candidates []string, kind Kind) string {
	for _, path := range candidates {
		if name := lookupProperty(props, path); name != "" {
			return name
		}
	}
	return "Unnamed " + kind.String()
}

// lookupProperty resolves one candidate path against a property map,
// descending into nested objects at each dot.
func lookupProperty(props map[string]interface{}, path string) string {
	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(props)

	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}
