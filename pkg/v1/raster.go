package cityatlas

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geowerk/cityatlas/internal/rasterio"
)

// TileSource names one raster tile resource.
type TileSource struct {
	Name string
	URL  string
}

// ColorFunc maps one raster sample to an 8-bit grayscale intensity.
// ok=false means the sample is no-data and no pixel is drawn.
type ColorFunc func(v float64) (gray uint8, ok bool)

// noDataCutoff is the sentinel band: samples at or below it carry no
// measurement and render fully transparent.
const noDataCutoff = -9999

// GrayscaleColorFunc builds the shared color function for a global value
// range.
//
// Values normalize to [0,1] via (v-min)/(max-min), with a range of zero
// substituted by 1 to avoid division by zero, then map to a grayscale
// intensity clamped to [0,255]. Every tile of a layer shares one such
// function so shading stays consistent across tile boundaries.
func GrayscaleColorFunc(min, max float64) ColorFunc {
	span := max - min
	if span == 0 {
		span = 1
	}
	return func(v float64) (uint8, bool) {
		if math.IsNaN(v) || v <= noDataCutoff {
			return 0, false
		}
		intensity := (v - min) / span * 255
		if intensity < 0 {
			intensity = 0
		}
		if intensity > 255 {
			intensity = 255
		}
		return uint8(intensity), true
	}
}

// RasterPipeline loads a multi-tile raster layer and paints every tile with
// one globally normalized color ramp.
//
// The global range is the min/max across the declared ranges of all tiles
// that loaded; per-tile normalization would shade the same elevation
// differently on each side of a tile boundary.
type RasterPipeline struct {
	loader *Loader
	log    *logrus.Logger
	view   MapView

	// decode is swappable so the normalization path is testable without
	// GDAL bindings.
	decode func(name string, data []byte) (*rasterio.Tile, error)

	// overlays is keyed by layer id: each raster layer exclusively owns
	// its handles, so loading or hiding one layer never touches another.
	mu       sync.Mutex
	overlays map[string][]OverlayHandle
}

// NewRasterPipeline creates a pipeline that fetches through the given
// loader and places overlays on the given view.
func NewRasterPipeline(loader *Loader, log *logrus.Logger, view MapView) *RasterPipeline {
	return &RasterPipeline{
		loader:   loader,
		log:      log,
		view:     view,
		decode:   rasterio.Decode,
		overlays: make(map[string][]OverlayHandle),
	}
}

// tileResult carries one settled tile fetch+decode back to the collector.
type tileResult struct {
	index int
	tile  *rasterio.Tile
	err   error
}

// Load fetches, decodes, normalizes, and overlays the named tiles.
//
// Tiles that fail to fetch or parse are skipped with a logged warning and
// excluded from range computation; they are not retried. If zero tiles
// yield a usable declared range the layer render is aborted: the error is
// logged and ErrNoUsableRange returned, and nothing is drawn.
func (p *RasterPipeline) Load(ctx context.Context, layer string, tiles []TileSource) error {
	// Release this layer's previous overlays before rendering a
	// replacement set. Other raster layers keep theirs.
	p.RemoveLayer(layer)

	if len(tiles) == 0 {
		p.log.Warnf("layer %s: raster source with no tiles", layer)
		return &ErrNoUsableRange{Layer: layer}
	}

	workers := p.loader.opts.Workers
	if workers > len(tiles) {
		workers = len(tiles)
	}

	jobs := make(chan int, len(tiles))
	results := make(chan tileResult, len(tiles))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				src := tiles[index]
				body, err := p.loader.fetchBytes(ctx, src.URL)
				if err != nil {
					results <- tileResult{index: index, err: err}
					continue
				}
				tile, err := p.decode(src.Name, body)
				results <- tileResult{index: index, tile: tile, err: err}
			}
		}()
	}

	for i := range tiles {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*rasterio.Tile, len(tiles))
	settled := 0
	for result := range results {
		settled++
		if p.loader.opts.Progress != nil {
			p.loader.opts.Progress(settled, len(tiles))
		}
		if result.err != nil {
			p.log.Warnf("layer %s: tile %s skipped: %v", layer, tiles[result.index].Name, result.err)
			continue
		}
		ordered[result.index] = result.tile
	}

	globalMin, globalMax, ok := globalRange(ordered)
	if !ok {
		err := &ErrNoUsableRange{Layer: layer}
		p.log.Errorf("layer %s: render aborted: %v", layer, err)
		return err
	}

	colorFn := GrayscaleColorFunc(globalMin, globalMax)

	p.mu.Lock()
	defer p.mu.Unlock()
	drawn := 0
	for _, tile := range ordered {
		if tile == nil {
			continue
		}
		img := renderTile(tile, colorFn)
		bounds := Bounds{
			MinLon: tile.Extent.MinX,
			MaxLon: tile.Extent.MaxX,
			MinLat: tile.Extent.MinY,
			MaxLat: tile.Extent.MaxY,
		}
		handle, err := p.view.AddImageOverlay(tile.Name, bounds, img)
		if err != nil {
			p.log.Warnf("layer %s: tile %s overlay failed: %v", layer, tile.Name, err)
			continue
		}
		p.overlays[layer] = append(p.overlays[layer], handle)
		drawn++
	}

	p.log.Infof("layer %s: %d tiles normalized to range [%g, %g]", layer, drawn, globalMin, globalMax)
	return nil
}

// RemoveLayer releases every overlay one layer placed on the map.
// Idempotent: safe to call with zero tiles present.
func (p *RasterPipeline) RemoveLayer(layer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, handle := range p.overlays[layer] {
		handle.Remove()
	}
	delete(p.overlays, layer)
}

// RemoveAll releases every overlay this pipeline placed on the map, across
// all layers. Used on engine teardown. Idempotent.
func (p *RasterPipeline) RemoveAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for layer, handles := range p.overlays {
		for _, handle := range handles {
			handle.Remove()
		}
		delete(p.overlays, layer)
	}
}

// OverlayCount returns the number of live tile overlays across all layers.
func (p *RasterPipeline) OverlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, handles := range p.overlays {
		n += len(handles)
	}
	return n
}

// globalRange computes the min/max across the declared ranges of all
// successfully loaded tiles. ok=false when no tile has a usable range.
func globalRange(tiles []*rasterio.Tile) (min, max float64, ok bool) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, tile := range tiles {
		if tile == nil || !tile.HasRange {
			continue
		}
		if tile.Min < min {
			min = tile.Min
		}
		if tile.Max > max {
			max = tile.Max
		}
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}

// renderTile paints one tile grid through the shared color function.
// No-data samples stay fully transparent.
func renderTile(tile *rasterio.Tile, fn ColorFunc) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, tile.Width, tile.Height))
	for y := 0; y < tile.Height; y++ {
		for x := 0; x < tile.Width; x++ {
			v := tile.Values[y*tile.Width+x]
			gray, ok := fn(v)
			if !ok {
				continue
			}
			img.SetNRGBA(x, y, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}
