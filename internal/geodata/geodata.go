// Package geodata decodes and merges GeoJSON feature collections.
package geodata

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Decode parses a GeoJSON FeatureCollection.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal feature collection: %w", err)
	}
	return fc, nil
}

// Merge concatenates the features arrays of all parts, in part order, into
// one collection. Nil parts are skipped.
func Merge(parts []*geojson.FeatureCollection) *geojson.FeatureCollection {
	merged := geojson.NewFeatureCollection()
	for _, part := range parts {
		if part == nil {
			continue
		}
		merged.Features = append(merged.Features, part.Features...)
	}
	return merged
}
