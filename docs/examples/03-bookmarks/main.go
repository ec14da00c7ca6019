package main

import (
	"fmt"
	"image"
	"log"

	cityatlas "github.com/geowerk/cityatlas/pkg/v1"
)

type noopView struct{}

func (noopView) FitBounds(cityatlas.Bounds)    {}
func (noopView) SetView(cityatlas.LatLng, int) {}
func (noopView) AddImageOverlay(string, cityatlas.Bounds, image.Image) (cityatlas.OverlayHandle, error) {
	return noopOverlay{}, nil
}

type noopOverlay struct{}

func (noopOverlay) Remove() {}

func main() {
	cfg, err := cityatlas.LoadConfig("atlas.toml")
	if err != nil {
		log.Fatal(err)
	}

	engine, err := cityatlas.NewEngine(cfg, noopView{}, cityatlas.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	store := engine.Bookmarks()

	// Save the current viewport
	b, err := store.Add("City center", cityatlas.LatLng{Lat: 12.9716, Lng: 77.5946}, 14)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("saved %s (%s)\n", b.Name, b.ID)

	// Bookmarks survive restarts: the list below comes from the store
	// file named in the catalog
	for _, b := range store.All() {
		fmt.Printf("%s: (%.4f, %.4f) zoom %d\n", b.Name, b.Center[0], b.Center[1], b.Zoom)
	}

	// Remove by id
	if removed, err := store.Delete(b.ID); err != nil {
		log.Fatal(err)
	} else if removed {
		fmt.Println("deleted")
	}
}
