package main

import (
	"context"
	"fmt"
	"image"
	"log"

	cityatlas "github.com/geowerk/cityatlas/pkg/v1"
)

// consoleView prints viewport instructions instead of driving a map widget.
type consoleView struct{}

func (consoleView) FitBounds(b cityatlas.Bounds) {
	fmt.Printf("view: fit [%.4f,%.4f] to [%.4f,%.4f]\n",
		b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

func (consoleView) SetView(center cityatlas.LatLng, zoom int) {
	fmt.Printf("view: center (%.4f, %.4f) zoom %d\n", center.Lat, center.Lng, zoom)
}

func (consoleView) AddImageOverlay(name string, b cityatlas.Bounds, img image.Image) (cityatlas.OverlayHandle, error) {
	fmt.Printf("view: overlay %s\n", name)
	return noopOverlay{}, nil
}

type noopOverlay struct{}

func (noopOverlay) Remove() {}

func main() {
	// Load the layer catalog
	cfg, err := cityatlas.LoadConfig("atlas.toml")
	if err != nil {
		log.Fatal(err)
	}

	engine, err := cityatlas.NewEngine(cfg, consoleView{}, cityatlas.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Showing a layer triggers its load
	if err := engine.SetLayerVisible(ctx, "wards", true); err != nil {
		log.Fatal(err)
	}

	// Print what loaded
	for _, lc := range cfg.Layers {
		if stats, ok := engine.Stats(lc.ID); ok {
			fmt.Printf("layer %s: %d/%d resources in %s\n",
				stats.Layer, stats.Loaded, stats.Requested, stats.Duration)
		}
	}

	fmt.Printf("features: %d\n", len(engine.Descriptors()))

	// Hiding a layer drops its dataset
	engine.SetLayerVisible(ctx, "wards", false)
}
