// Package overpass fetches amenity data from an Overpass interpreter and
// translates the response into a GeoJSON point collection.
package overpass

import (
	"fmt"
	"net/http"
	"sort"

	goverpass "github.com/MeKo-Christian/go-overpass"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Fetch runs one query against the interpreter endpoint and returns the
// translated point collection. One call, no retries; a failure leaves the
// caller's layer empty until its next visibility toggle re-triggers the
// query.
func Fetch(endpoint, query string, client *http.Client) (*geojson.FeatureCollection, error) {
	if client == nil {
		client = http.DefaultClient
	}
	c := goverpass.NewWithSettings(endpoint, 1, client)
	result, err := c.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}
	return Translate(&result), nil
}

// Translate converts an Overpass result into a point FeatureCollection.
//
// Nodes become points directly. Ways with resolvable member nodes become a
// single point at the vertex centroid, so amenities mapped as building
// outlines still get a marker. Elements are emitted in ascending id order,
// nodes before ways, to keep downstream aggregation order stable.
func Translate(result *goverpass.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if result == nil {
		return fc
	}

	nodeIDs := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	for _, id := range nodeIDs {
		node := result.Nodes[id]
		if node == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{node.Lon, node.Lat})
		f.Properties = tagProperties(node.Tags, "node", id)
		fc.Append(f)
	}

	wayIDs := make([]int64, 0, len(result.Ways))
	for id := range result.Ways {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })

	for _, id := range wayIDs {
		way := result.Ways[id]
		if way == nil || len(way.Nodes) == 0 {
			continue
		}
		var lon, lat float64
		n := 0
		for _, member := range way.Nodes {
			if member == nil {
				continue
			}
			lon += member.Lon
			lat += member.Lat
			n++
		}
		if n == 0 {
			continue
		}
		f := geojson.NewFeature(orb.Point{lon / float64(n), lat / float64(n)})
		f.Properties = tagProperties(way.Tags, "way", id)
		fc.Append(f)
	}

	return fc
}

func tagProperties(tags map[string]string, osmType string, id int64) geojson.Properties {
	props := geojson.Properties{
		"osm_type": osmType,
		"osm_id":   id,
	}
	for k, v := range tags {
		props[k] = v
	}
	return props
}
