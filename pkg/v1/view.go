package cityatlas

import "image"

// MapView is the engine's handle on the embedding application's map widget.
//
// The engine never renders; it only instructs the viewport and hands over
// finished raster images. Implementations wrap whatever mapping library the
// application uses.
type MapView interface {
	// FitBounds moves the viewport to show the given bounds.
	FitBounds(b Bounds)

	// SetView centers the viewport at the given point and zoom level.
	SetView(center LatLng, zoom int)

	// AddImageOverlay places a georeferenced image on the map and returns
	// a handle that removes it. The engine owns the handle's lifecycle.
	AddImageOverlay(name string, b Bounds, img image.Image) (OverlayHandle, error)
}

// OverlayHandle releases one overlay placed on the map.
//
// Remove must be safe to call more than once.
type OverlayHandle interface {
	Remove()
}

// PopupHandle closes one open on-map popup.
type PopupHandle interface {
	Close()
}

// LayerRenderer is implemented by the embedding application, one per vector
// layer. The renderer exclusively owns its layer's rendered handles.
type LayerRenderer interface {
	// Layer returns the id of the layer this renderer draws.
	Layer() string

	// SetDataset hands the renderer its layer's current dataset, or nil
	// when the layer was hidden. The renderer must release every handle
	// from the previous dataset before drawing the new one.
	SetDataset(ds *Dataset)

	// OpenPopup opens the popup for the referenced feature at the given
	// anchor. It returns ok=false when the feature's rendering handle
	// does not exist yet (map libraries create handles lazily), in
	// which case the selection coordinator retries on the next render
	// pass.
	//
	// OpenPopup is invoked with selection state locked and must not call
	// back into the engine or coordinator (Select, RenderPass, Clear);
	// doing so deadlocks. Open the popup and return.
	OpenPopup(ref SourceRef, at LatLng) (PopupHandle, bool)
}
