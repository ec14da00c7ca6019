// Package cityatlas composes heterogeneous geospatial layers (administrative
// boundary polygons, point datasets, remote-queried amenities, and elevation
// raster tiles) behind one engine that loads each layer independently,
// normalizes features into searchable descriptors, and coordinates a single
// cross-layer selection.
//
// # Basic Usage
//
//	cfg, err := cityatlas.LoadConfig("atlas.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := cityatlas.NewEngine(cfg, view, cityatlas.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	// Showing a layer triggers its load; hiding it drops the dataset.
//	engine.SetLayerVisible(ctx, "wards", true)
//
// # Loading Model
//
// Every layer loads independently and best-effort. A failed fetch leaves that
// layer empty and is logged once; it never disables another layer and is
// never retried until the layer's visibility is toggled again. Sharded
// datasets are fetched with all parts in flight at once and assembled from
// whichever parts survive.
//
// # Search and Selection
//
//	for _, d := range engine.Search("school") {
//	    fmt.Println(d.DisplayName)
//	}
//	engine.SelectResult(results[0]) // fits the viewport, opens the popup
//
// At most one feature is selected at a time, and at most one popup is open
// across all layers. Hiding the layer that owns the selection clears it.
//
// # Integration
//
// The engine renders nothing itself. The embedding application supplies a
// MapView (viewport and image overlays) and one LayerRenderer per vector
// layer (popup handles); both are small interfaces defined in this package.
package cityatlas
