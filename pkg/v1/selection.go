package cityatlas

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Coordinator owns the single process-wide selection.
//
// It is a two-state machine: Idle (no feature selected) and Selected. A new
// selection supersedes the old one, closing its popup first, so at most one
// popup is open at any instant across all layers. Hiding the layer that
// owns the selection, or replacing its dataset so the ref stops resolving,
// transitions back to Idle.
//
// Renderers create their on-map handles lazily, so a popup that cannot open
// yet stays pending and is retried on each subsequent render pass of the
// owning layer rather than being dropped.
//
// The coordinator is the only writer of selection state; everything else
// reads through Selected.
type Coordinator struct {
	mu        sync.Mutex
	log       *logrus.Logger
	renderers map[string]LayerRenderer

	// anchor resolves a ref to its representative location: bounds
	// center for polygons, the point itself for points. ok=false means
	// the ref is stale.
	anchor func(SourceRef) (LatLng, bool)

	selected     SourceRef
	hasSelection bool
	popup        PopupHandle
	pendingPopup bool
}

// NewCoordinator creates a coordinator. The anchor function is supplied by
// the engine, which can resolve refs against live datasets.
func NewCoordinator(log *logrus.Logger, anchor func(SourceRef) (LatLng, bool)) *Coordinator {
	return &Coordinator{
		log:       log,
		renderers: make(map[string]LayerRenderer),
		anchor:    anchor,
	}
}

// Register adds a layer renderer. A second renderer for the same layer
// replaces the first.
func (c *Coordinator) Register(r LayerRenderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers[r.Layer()] = r
}

// Select makes ref the current selection, superseding any previous one.
// The previously open popup, if any, closes before the new one opens.
func (c *Coordinator) Select(ref SourceRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closePopupLocked()
	c.selected = ref
	c.hasSelection = true
	c.pendingPopup = true
	c.tryOpenLocked()
}

// Selected returns the current selection, if any.
func (c *Coordinator) Selected() (SourceRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasSelection
}

// Clear transitions to Idle, closing any open popup.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// DropLayer clears the selection if the given layer owns it. Called when a
// layer is hidden or its dataset replaced.
func (c *Coordinator) DropLayer(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasSelection && c.selected.Layer == layer {
		c.log.Debugf("layer %s: selection cleared", layer)
		c.clearLocked()
	}
}

// RenderPass notifies the coordinator that a layer renderer finished a draw
// pass. A popup still pending for that layer is retried now that its
// rendering handle may exist.
func (c *Coordinator) RenderPass(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasSelection && c.selected.Layer == layer {
		c.tryOpenLocked()
	}
}

// PopupOpen reports whether a popup is currently open.
func (c *Coordinator) PopupOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popup != nil
}

// tryOpenLocked attempts to open the pending popup. Must hold c.mu.
func (c *Coordinator) tryOpenLocked() {
	if !c.pendingPopup {
		return
	}

	at, ok := c.anchor(c.selected)
	if !ok {
		// Stale reference: the owning dataset changed underneath the
		// selection. Recover by resetting to Idle.
		c.log.Debugf("layer %s: stale selection dropped", c.selected.Layer)
		c.clearLocked()
		return
	}

	r, ok := c.renderers[c.selected.Layer]
	if !ok {
		return // no renderer yet, stay pending
	}

	handle, ok := r.OpenPopup(c.selected, at)
	if !ok {
		return // handle not rendered yet, retry on next render pass
	}
	c.popup = handle
	c.pendingPopup = false
}

// clearLocked resets to Idle. Must hold c.mu.
func (c *Coordinator) clearLocked() {
	c.closePopupLocked()
	c.selected = SourceRef{}
	c.hasSelection = false
	c.pendingPopup = false
}

// closePopupLocked closes the open popup, if any. Must hold c.mu.
func (c *Coordinator) closePopupLocked() {
	if c.popup != nil {
		c.popup.Close()
		c.popup = nil
	}
}
