package cityatlas

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/geowerk/cityatlas/internal/rasterio"
)

func newTestPipeline(t *testing.T, tiles map[string]*rasterio.Tile, failNames ...string) (*RasterPipeline, *fakeView, *test.Hook, []TileSource, func()) {
	t.Helper()

	failing := make(map[string]bool)
	for _, name := range failNames {
		failing[name] = true
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if failing[name] {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, name)
	}))

	log, hook := test.NewNullLogger()
	loader := NewLoader(srv.Client(), log, LoadOptions{Workers: 2})
	view := &fakeView{}

	p := NewRasterPipeline(loader, log, view)
	p.decode = func(name string, data []byte) (*rasterio.Tile, error) {
		tile, ok := tiles[name]
		if !ok {
			return nil, fmt.Errorf("no fixture for tile %s", name)
		}
		return tile, nil
	}

	var sources []TileSource
	for name := range tiles {
		sources = append(sources, TileSource{Name: name, URL: srv.URL + "/" + name})
	}
	for _, name := range failNames {
		if _, ok := tiles[name]; !ok {
			sources = append(sources, TileSource{Name: name, URL: srv.URL + "/" + name})
		}
	}

	return p, view, hook, sources, srv.Close
}

func gridTile(name string, values []float64, min, max float64) *rasterio.Tile {
	return &rasterio.Tile{
		Name:     name,
		Width:    len(values),
		Height:   1,
		Values:   values,
		Min:      min,
		Max:      max,
		HasRange: true,
		Extent:   rasterio.Extent{MinX: 77.0, MinY: 12.0, MaxX: 78.0, MaxY: 13.0},
	}
}

func TestRasterGlobalNormalization(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"north": gridTile("north", []float64{100}, 0, 100),
		"south": gridTile("south", []float64{100}, 50, 200),
	}
	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	placed := view.placed()
	if len(placed) != 2 {
		t.Fatalf("expected 2 overlays, got %d", len(placed))
	}

	// The global range is [0, 200], so the same elevation shades the same
	// gray in both tiles: (100-0)/200*255 = 127.
	for _, overlay := range placed {
		c := overlay.img.At(0, 0).(color.NRGBA)
		if c.R != 127 || c.G != 127 || c.B != 127 || c.A != 255 {
			t.Errorf("tile %s: expected gray 127, got %+v", overlay.name, c)
		}
	}

	if p.OverlayCount() != 2 {
		t.Errorf("expected 2 live overlays, got %d", p.OverlayCount())
	}
}

func TestRasterNoDataTransparent(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"only": gridTile("only", []float64{50, math.NaN(), -9999}, 0, 100),
	}
	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	placed := view.placed()
	if len(placed) != 1 {
		t.Fatalf("expected 1 overlay, got %d", len(placed))
	}
	img := placed[0].img

	if c := img.At(0, 0).(color.NRGBA); c.A != 255 {
		t.Errorf("valid sample should be opaque, got alpha %d", c.A)
	}
	if c := img.At(1, 0).(color.NRGBA); c.A != 0 {
		t.Errorf("NaN sample should be transparent, got alpha %d", c.A)
	}
	if c := img.At(2, 0).(color.NRGBA); c.A != 0 {
		t.Errorf("sentinel sample should be transparent, got alpha %d", c.A)
	}
}

func TestRasterNoUsableRangeAborts(t *testing.T) {
	noRange := gridTile("flat", []float64{1}, 0, 0)
	noRange.HasRange = false
	tiles := map[string]*rasterio.Tile{"flat": noRange}

	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()

	err := p.Load(context.Background(), "elevation", sources)
	if err == nil {
		t.Fatal("expected ErrNoUsableRange")
	}
	if _, ok := err.(*ErrNoUsableRange); !ok {
		t.Fatalf("expected ErrNoUsableRange, got %T", err)
	}
	if len(view.placed()) != 0 {
		t.Error("no overlays should be drawn when the render aborts")
	}
}

func TestRasterSkipsFailedTile(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"good": gridTile("good", []float64{25}, 0, 100),
	}
	p, view, hook, sources, done := newTestPipeline(t, tiles, "broken")
	defer done()

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatalf("surviving tile should carry the layer: %v", err)
	}

	if len(view.placed()) != 1 {
		t.Fatalf("expected only the surviving tile, got %d overlays", len(view.placed()))
	}
	if n := warnCount(hook); n != 1 {
		t.Errorf("expected 1 warning for the skipped tile, got %d", n)
	}

	// The skipped tile contributes nothing to the range: gray derives from
	// the survivor's [0, 100] alone, (25-0)/100*255 = 63.
	c := view.placed()[0].img.At(0, 0).(color.NRGBA)
	if c.R != 63 {
		t.Errorf("expected gray 63 from the survivor's range, got %d", c.R)
	}
}

func TestRasterReloadReplacesOverlays(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"a": gridTile("a", []float64{10}, 0, 100),
	}
	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatal(err)
	}
	first := view.placed()[0].handle

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatal(err)
	}
	if first.removeCount() != 1 {
		t.Error("reload should remove the previous overlay set")
	}
	if p.OverlayCount() != 1 {
		t.Errorf("expected 1 live overlay after reload, got %d", p.OverlayCount())
	}
}

func TestRasterLayersIndependent(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"shared": gridTile("shared", []float64{10}, 0, 100),
	}
	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()
	ctx := context.Background()

	if err := p.Load(ctx, "elev-a", sources); err != nil {
		t.Fatal(err)
	}
	if err := p.Load(ctx, "elev-b", sources); err != nil {
		t.Fatal(err)
	}

	placed := view.placed()
	if len(placed) != 2 {
		t.Fatalf("expected one overlay per layer, got %d", len(placed))
	}
	first, second := placed[0].handle, placed[1].handle

	// Loading the second layer must not release the first layer's overlay.
	if first.removeCount() != 0 {
		t.Fatal("loading another raster layer removed the first layer's overlay")
	}
	if p.OverlayCount() != 2 {
		t.Fatalf("expected 2 live overlays, got %d", p.OverlayCount())
	}

	// Removing one layer leaves the other's overlays on the map.
	p.RemoveLayer("elev-a")
	if first.removeCount() != 1 {
		t.Error("removed layer's overlay should be released")
	}
	if second.removeCount() != 0 {
		t.Error("other layer's overlay must stay")
	}
	if p.OverlayCount() != 1 {
		t.Errorf("expected 1 live overlay, got %d", p.OverlayCount())
	}

	// Repeat and unknown-layer removals are harmless.
	p.RemoveLayer("elev-a")
	p.RemoveLayer("never-loaded")
	if first.removeCount() != 1 {
		t.Error("repeat removal must not release the handle again")
	}
}

func TestRasterRemoveAllIdempotent(t *testing.T) {
	tiles := map[string]*rasterio.Tile{
		"a": gridTile("a", []float64{10}, 0, 100),
	}
	p, view, _, sources, done := newTestPipeline(t, tiles)
	defer done()

	// Removing with nothing drawn is harmless.
	p.RemoveAll()

	if err := p.Load(context.Background(), "elevation", sources); err != nil {
		t.Fatal(err)
	}
	handle := view.placed()[0].handle

	p.RemoveAll()
	p.RemoveAll()
	if handle.removeCount() != 1 {
		t.Errorf("overlay removed %d times, want 1", handle.removeCount())
	}
	if p.OverlayCount() != 0 {
		t.Errorf("expected 0 live overlays, got %d", p.OverlayCount())
	}
}

func TestGrayscaleColorFunc(t *testing.T) {
	fn := GrayscaleColorFunc(0, 200)

	if gray, ok := fn(0); !ok || gray != 0 {
		t.Errorf("min value: gray=%d ok=%v", gray, ok)
	}
	if gray, ok := fn(200); !ok || gray != 255 {
		t.Errorf("max value: gray=%d ok=%v", gray, ok)
	}
	if gray, ok := fn(300); !ok || gray != 255 {
		t.Errorf("above-range value should clamp to 255, got %d ok=%v", gray, ok)
	}
	if _, ok := fn(math.NaN()); ok {
		t.Error("NaN should be no-data")
	}
	if _, ok := fn(-9999); ok {
		t.Error("sentinel should be no-data")
	}
	if _, ok := fn(-12000); ok {
		t.Error("values below the sentinel should be no-data")
	}

	// A zero-width range must not divide by zero.
	flat := GrayscaleColorFunc(50, 50)
	if gray, ok := flat(50); !ok || gray != 0 {
		t.Errorf("flat range: gray=%d ok=%v", gray, ok)
	}
}

func TestGlobalRange(t *testing.T) {
	tiles := []*rasterio.Tile{
		gridTile("a", nil, 10, 100),
		nil,
		gridTile("b", nil, -5, 40),
	}
	min, max, ok := globalRange(tiles)
	if !ok || min != -5 || max != 100 {
		t.Errorf("got [%g, %g] ok=%v", min, max, ok)
	}

	if _, _, ok := globalRange([]*rasterio.Tile{nil}); ok {
		t.Error("all-nil tiles should yield no range")
	}
}
