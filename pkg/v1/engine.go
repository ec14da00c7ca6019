package cityatlas

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// Engine aggregates every configured layer behind one visibility map, one
// search index, and one selection.
//
// Layers load lazily: toggling a layer visible triggers its load, toggling
// it hidden drops its dataset; nothing is cached across a hide. All engine
// state is mutated by user-triggered events only (toggle, search selection,
// map click); in-flight loads deliver their results back through the
// engine's own mutation path.
type Engine struct {
	cfg    *Config
	log    *logrus.Logger
	view   MapView
	loader *Loader
	raster *RasterPipeline
	coord  *Coordinator
	search *SearchIndex
	marks  *BookmarkStore

	mu          sync.Mutex
	visible     map[string]bool
	datasets    map[string]*Dataset
	renderers   map[string]LayerRenderer
	descriptors []Descriptor
	spatial     *FeatureIndex
	gen         uint64
}

// NewEngine creates an engine for the given catalog and map view.
func NewEngine(cfg *Config, view MapView, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if view == nil {
		return nil, fmt.Errorf("nil map view")
	}
	if opts.Logger == nil {
		opts.Logger = newDefaultLogger()
	}

	e := &Engine{
		cfg:       cfg,
		log:       opts.Logger,
		view:      view,
		search:    NewSearchIndex(),
		visible:   make(map[string]bool),
		datasets:  make(map[string]*Dataset),
		renderers: make(map[string]LayerRenderer),
		spatial:   NewFeatureIndex(nil),
	}
	e.loader = NewLoader(opts.Client, opts.Logger, opts.Load)
	e.raster = NewRasterPipeline(e.loader, opts.Logger, view)
	e.coord = NewCoordinator(opts.Logger, e.anchorFor)
	e.marks = OpenBookmarkStore(cfg.Bookmarks.Path, opts.Logger)

	if len(cfg.Map.Center) == 2 {
		view.SetView(LatLng{Lat: cfg.Map.Center[0], Lng: cfg.Map.Center[1]}, cfg.Map.Zoom)
	}

	return e, nil
}

// SetLayerVisible toggles a layer.
//
// Turning a layer on triggers its load; turning it off drops its dataset,
// releases its overlays, and clears any selection the layer owns.
// Setting the current value again is a no-op: in particular it does not
// re-trigger a load whose fetch previously failed; only a full off/on
// toggle retries.
//
// Load failures are logged, never returned: the only error here is an
// unknown layer id.
func (e *Engine) SetLayerVisible(ctx context.Context, layerID string, visible bool) error {
	lc, ok := e.cfg.Layer(layerID)
	if !ok {
		return &ErrUnknownLayer{ID: layerID}
	}

	e.mu.Lock()
	if e.visible[layerID] == visible {
		e.mu.Unlock()
		return nil
	}
	e.visible[layerID] = visible
	e.mu.Unlock()

	if visible {
		e.loadLayer(ctx, lc)
	} else {
		e.unloadLayer(lc)
	}
	return nil
}

// LayerVisible reports a layer's visibility.
func (e *Engine) LayerVisible(layerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible[layerID]
}

// Dataset returns a layer's current dataset, if loaded.
func (e *Engine) Dataset(layerID string) (*Dataset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ds, ok := e.datasets[layerID]
	return ds, ok
}

// Descriptors returns the current flattened descriptor list in layer
// aggregation order.
func (e *Engine) Descriptors() []Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Descriptor, len(e.descriptors))
	copy(out, e.descriptors)
	return out
}

// Search queries the flattened index. See SearchIndex for semantics.
func (e *Engine) Search(query string) []Descriptor {
	return e.search.Query(query)
}

// SelectResult applies a search selection: the descriptor's feature becomes
// the process-wide selection, the viewport fits its bounds (or centers on
// its location at a close zoom), and the stored query and results clear.
func (e *Engine) SelectResult(d Descriptor) {
	e.coord.Select(d.Ref)
	switch {
	case d.Bounds != nil:
		e.view.FitBounds(*d.Bounds)
	case d.Location != nil:
		e.view.SetView(*d.Location, searchResultZoom)
	}
	e.search.Reset()
}

// SelectAt resolves a direct map click to a feature and selects it.
func (e *Engine) SelectAt(p LatLng) (Descriptor, bool) {
	e.mu.Lock()
	spatial := e.spatial
	e.mu.Unlock()

	d, ok := spatial.LocateAt(p)
	if !ok {
		return Descriptor{}, false
	}
	e.coord.Select(d.Ref)
	return d, true
}

// Selected returns the current selection, if any.
func (e *Engine) Selected() (SourceRef, bool) {
	return e.coord.Selected()
}

// RegisterRenderer attaches a layer renderer. If the layer already has a
// dataset the renderer receives it immediately.
func (e *Engine) RegisterRenderer(r LayerRenderer) {
	e.coord.Register(r)

	e.mu.Lock()
	e.renderers[r.Layer()] = r
	ds := e.datasets[r.Layer()]
	e.mu.Unlock()

	if ds != nil {
		r.SetDataset(ds)
	}
}

// RenderPass notifies the engine that a layer renderer finished drawing, so
// a pending popup for that layer can open.
func (e *Engine) RenderPass(layerID string) {
	e.coord.RenderPass(layerID)
}

// SpatialIndex returns the current descriptor spatial index.
func (e *Engine) SpatialIndex() *FeatureIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spatial
}

// Bookmarks returns the engine's bookmark store.
func (e *Engine) Bookmarks() *BookmarkStore {
	return e.marks
}

// Stats returns the most recent load statistics for a layer.
func (e *Engine) Stats(layerID string) (LoadStats, bool) {
	return e.loader.Stats(layerID)
}

// Close releases everything the engine placed on the map: raster overlays
// and any open popup. Safe to call more than once.
func (e *Engine) Close() {
	e.raster.RemoveAll()
	e.coord.Clear()
}

// loadLayer dispatches a visibility-triggered load. Failures are already
// logged by the loader; they leave the layer empty.
func (e *Engine) loadLayer(ctx context.Context, lc *LayerConfig) {
	switch lc.Source {
	case "raster":
		sources := make([]TileSource, len(lc.Tiles))
		for i, t := range lc.Tiles {
			sources[i] = TileSource{Name: t.Name, URL: t.URL}
		}
		// Best-effort; a range failure already aborted the render.
		_ = e.raster.Load(ctx, lc.ID, sources)
	case "file":
		kind, _ := parseKind(lc.Kind)
		ds, err := e.loader.LoadSingle(ctx, lc.ID, kind, lc.URL)
		if err == nil {
			e.storeDataset(ds)
		}
	case "sharded":
		kind, _ := parseKind(lc.Kind)
		ds := e.loader.LoadSharded(ctx, lc.ID, kind, lc.URL, lc.Parts)
		e.storeDataset(ds)
	case "overpass":
		ds, err := e.loader.LoadOverpass(ctx, lc.ID, e.cfg.Overpass.Endpoint, lc.Query)
		if err == nil {
			e.storeDataset(ds)
		}
	}
}

// storeDataset installs a freshly loaded dataset, stamps its generation,
// and rebuilds the flattened indexes.
func (e *Engine) storeDataset(ds *Dataset) {
	e.mu.Lock()
	if !e.visible[ds.Layer] {
		// Layer was hidden while the load was in flight; drop the result.
		e.mu.Unlock()
		return
	}
	e.gen++
	ds.gen = e.gen
	_, replaced := e.datasets[ds.Layer]
	e.datasets[ds.Layer] = ds
	e.rebuildLocked()
	r := e.renderers[ds.Layer]
	e.mu.Unlock()

	if replaced {
		// Refs minted from the previous dataset no longer resolve.
		e.coord.DropLayer(ds.Layer)
	}
	if r != nil {
		r.SetDataset(ds)
	}
}

// unloadLayer drops a hidden layer's dataset and everything derived from it.
func (e *Engine) unloadLayer(lc *LayerConfig) {
	e.mu.Lock()
	delete(e.datasets, lc.ID)
	e.rebuildLocked()
	r := e.renderers[lc.ID]
	e.mu.Unlock()

	e.coord.DropLayer(lc.ID)
	if lc.Source == "raster" {
		e.raster.RemoveLayer(lc.ID)
	}
	if r != nil {
		r.SetDataset(nil)
	}
}

// rebuildLocked regenerates the flattened descriptor list and both indexes
// from the currently loaded datasets, in catalog order. Must hold e.mu.
func (e *Engine) rebuildLocked() {
	var all []Descriptor
	for i := range e.cfg.Layers {
		lc := &e.cfg.Layers[i]
		ds, ok := e.datasets[lc.ID]
		if !ok {
			continue
		}
		all = append(all, Normalize(ds, lc.Extractor())...)
	}
	e.descriptors = all
	e.search.Rebuild(all)
	e.spatial = NewFeatureIndex(all)
}

// anchorFor resolves a selection ref to its popup anchor against the live
// datasets: bounding-box center for polygons, the coordinate for points.
// ok=false means the ref is stale.
func (e *Engine) anchorFor(ref SourceRef) (LatLng, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ds := e.datasets[ref.Layer]
	f, ok := ds.Resolve(ref)
	if !ok || f.Geometry == nil {
		return LatLng{}, false
	}

	if pt, isPoint := f.Geometry.(orb.Point); isPoint {
		return LatLng{Lat: pt[1], Lng: pt[0]}, true
	}
	c := f.Geometry.Bound().Center()
	return LatLng{Lat: c[1], Lng: c[0]}, true
}
