package cityatlas

import (
	"image"
	"sync"
)

// fakeOverlay records Remove calls so tests can check overlay lifecycle.
type fakeOverlay struct {
	mu      sync.Mutex
	removed int
}

func (o *fakeOverlay) Remove() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed++
}

func (o *fakeOverlay) removeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.removed
}

// placedOverlay is one AddImageOverlay call captured by fakeView.
type placedOverlay struct {
	name   string
	bounds Bounds
	img    image.Image
	handle *fakeOverlay
}

// fakeView captures every viewport instruction the engine issues.
type fakeView struct {
	mu       sync.Mutex
	fits     []Bounds
	centers  []LatLng
	zooms    []int
	overlays []*placedOverlay
}

func (v *fakeView) FitBounds(b Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fits = append(v.fits, b)
}

func (v *fakeView) SetView(center LatLng, zoom int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.centers = append(v.centers, center)
	v.zooms = append(v.zooms, zoom)
}

func (v *fakeView) AddImageOverlay(name string, b Bounds, img image.Image) (OverlayHandle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	placed := &placedOverlay{name: name, bounds: b, img: img, handle: &fakeOverlay{}}
	v.overlays = append(v.overlays, placed)
	return placed.handle, nil
}

func (v *fakeView) placed() []*placedOverlay {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*placedOverlay, len(v.overlays))
	copy(out, v.overlays)
	return out
}

// fakePopup records Close calls.
type fakePopup struct {
	mu     sync.Mutex
	closed int
}

func (p *fakePopup) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePopup) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeRenderer implements LayerRenderer with a switchable ready flag so
// tests can exercise the lazy popup retry path.
type fakeRenderer struct {
	mu       sync.Mutex
	layer    string
	ready    bool
	datasets []*Dataset
	popups   []*fakePopup
}

func newFakeRenderer(layer string) *fakeRenderer {
	return &fakeRenderer{layer: layer, ready: true}
}

func (r *fakeRenderer) Layer() string { return r.layer }

func (r *fakeRenderer) SetDataset(ds *Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets = append(r.datasets, ds)
}

func (r *fakeRenderer) OpenPopup(ref SourceRef, at LatLng) (PopupHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return nil, false
	}
	p := &fakePopup{}
	r.popups = append(r.popups, p)
	return p, true
}

func (r *fakeRenderer) setReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = ready
}

func (r *fakeRenderer) lastDataset() *Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.datasets) == 0 {
		return nil
	}
	return r.datasets[len(r.datasets)-1]
}

func (r *fakeRenderer) datasetCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.datasets)
}

func (r *fakeRenderer) openPopups() []*fakePopup {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*fakePopup, len(r.popups))
	copy(out, r.popups)
	return out
}
