package main

import (
	"context"
	"fmt"
	"image"
	"log"

	cityatlas "github.com/geowerk/cityatlas/pkg/v1"
)

type consoleView struct{}

func (consoleView) FitBounds(b cityatlas.Bounds) {
	fmt.Printf("view: fit bounds around (%.4f, %.4f)\n", b.Center().Lat, b.Center().Lng)
}

func (consoleView) SetView(center cityatlas.LatLng, zoom int) {
	fmt.Printf("view: center (%.4f, %.4f) zoom %d\n", center.Lat, center.Lng, zoom)
}

func (consoleView) AddImageOverlay(string, cityatlas.Bounds, image.Image) (cityatlas.OverlayHandle, error) {
	return noopOverlay{}, nil
}

type noopOverlay struct{}

func (noopOverlay) Remove() {}

// consoleRenderer stands in for a real map layer: it accepts datasets and
// opens popups as console output.
type consoleRenderer struct {
	layer string
}

func (r *consoleRenderer) Layer() string { return r.layer }

func (r *consoleRenderer) SetDataset(ds *cityatlas.Dataset) {
	if ds == nil {
		fmt.Printf("renderer %s: cleared\n", r.layer)
		return
	}
	fmt.Printf("renderer %s: %d features\n", r.layer, ds.Len())
}

func (r *consoleRenderer) OpenPopup(ref cityatlas.SourceRef, at cityatlas.LatLng) (cityatlas.PopupHandle, bool) {
	fmt.Printf("popup: %s feature %d at (%.4f, %.4f)\n", ref.Layer, ref.Index, at.Lat, at.Lng)
	return consolePopup{}, true
}

type consolePopup struct{}

func (consolePopup) Close() { fmt.Println("popup: closed") }

func main() {
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
	for _, lc := range cfg.Layers {
		engine.RegisterRenderer(&consoleRenderer{layer: lc.ID})
		if err := engine.SetLayerVisible(ctx, lc.ID, true); err != nil {
			log.Fatal(err)
		}
	}

	// Search across every visible layer at once
	results := engine.Search("school")
	for i, d := range results {
		fmt.Printf("%d. [%s] %s\n", i+1, d.Kind, d.DisplayName)
	}
	if len(results) == 0 {
		return
	}

	// Selecting a result moves the viewport and opens its popup
	engine.SelectResult(results[0])

	// A direct map click selects whatever feature sits under it; the new
	// selection closes the previous popup first
	if d, ok := engine.SelectAt(cityatlas.LatLng{Lat: 12.9716, Lng: 77.5946}); ok {
		fmt.Printf("clicked: %s\n", d.DisplayName)
	}
}
