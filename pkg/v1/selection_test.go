package cityatlas

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

// fixedAnchor resolves every ref to the same location, optionally treating
// one layer's refs as stale.
func fixedAnchor(staleLayer string) func(SourceRef) (LatLng, bool) {
	return func(ref SourceRef) (LatLng, bool) {
		if ref.Layer == staleLayer {
			return LatLng{}, false
		}
		return LatLng{Lat: 12.97, Lng: 77.59}, true
	}
}

func TestSelectOpensSinglePopup(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor(""))

	wards := newFakeRenderer("wards")
	amenities := newFakeRenderer("amenities")
	c.Register(wards)
	c.Register(amenities)

	refA := SourceRef{Layer: "wards", Index: 0}
	refB := SourceRef{Layer: "amenities", Index: 3}

	c.Select(refA)
	if sel, ok := c.Selected(); !ok || sel != refA {
		t.Fatalf("expected selection %+v, got %+v ok=%v", refA, sel, ok)
	}
	if !c.PopupOpen() {
		t.Fatal("popup should be open after select")
	}

	// Selecting on another layer supersedes: the first popup closes, and
	// exactly one popup is open afterwards.
	c.Select(refB)
	if sel, _ := c.Selected(); sel != refB {
		t.Errorf("expected selection to move to %+v, got %+v", refB, sel)
	}

	wardPopups := wards.openPopups()
	if len(wardPopups) != 1 || wardPopups[0].closeCount() != 1 {
		t.Error("superseded popup should have been closed exactly once")
	}
	amenityPopups := amenities.openPopups()
	if len(amenityPopups) != 1 || amenityPopups[0].closeCount() != 0 {
		t.Error("new popup should be open")
	}
}

func TestDropLayerClearsOwningSelection(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor(""))
	c.Register(newFakeRenderer("wards"))

	c.Select(SourceRef{Layer: "wards", Index: 0})

	// Dropping an unrelated layer leaves the selection alone.
	c.DropLayer("amenities")
	if _, ok := c.Selected(); !ok {
		t.Fatal("unrelated layer drop should not clear the selection")
	}

	c.DropLayer("wards")
	if _, ok := c.Selected(); ok {
		t.Error("hiding the owning layer should clear the selection")
	}
	if c.PopupOpen() {
		t.Error("popup should be closed after the owning layer drops")
	}
}

func TestPendingPopupRetriesOnRenderPass(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor(""))

	r := newFakeRenderer("wards")
	r.setReady(false)
	c.Register(r)

	ref := SourceRef{Layer: "wards", Index: 2}
	c.Select(ref)

	// The handle does not exist yet: the selection holds, but no popup.
	if _, ok := c.Selected(); !ok {
		t.Fatal("selection should hold while the popup is pending")
	}
	if c.PopupOpen() {
		t.Fatal("popup should not open before the renderer is ready")
	}

	// Render passes while still not ready keep it pending.
	c.RenderPass("wards")
	if c.PopupOpen() {
		t.Fatal("popup opened before the renderer was ready")
	}

	r.setReady(true)
	c.RenderPass("wards")
	if !c.PopupOpen() {
		t.Error("popup should open once the renderer is ready")
	}

	// Later render passes must not open a second popup.
	c.RenderPass("wards")
	if len(r.openPopups()) != 1 {
		t.Errorf("expected exactly one popup, got %d", len(r.openPopups()))
	}
}

func TestSelectWithoutRendererStaysPending(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor(""))

	ref := SourceRef{Layer: "wards", Index: 0}
	c.Select(ref)
	if _, ok := c.Selected(); !ok {
		t.Fatal("selection should hold with no renderer registered")
	}

	r := newFakeRenderer("wards")
	c.Register(r)
	c.RenderPass("wards")
	if !c.PopupOpen() {
		t.Error("popup should open after a renderer registers and renders")
	}
}

func TestStaleSelectionResetsToIdle(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor("wards"))
	c.Register(newFakeRenderer("wards"))

	c.Select(SourceRef{Layer: "wards", Index: 0})
	if _, ok := c.Selected(); ok {
		t.Error("a selection whose ref no longer resolves should reset to idle")
	}
	if c.PopupOpen() {
		t.Error("no popup should be open for a stale selection")
	}
}

func TestClear(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCoordinator(log, fixedAnchor(""))
	c.Register(newFakeRenderer("wards"))

	c.Select(SourceRef{Layer: "wards", Index: 0})
	c.Clear()
	if _, ok := c.Selected(); ok {
		t.Error("clear should reset the selection")
	}
	if c.PopupOpen() {
		t.Error("clear should close the popup")
	}

	// Clearing an idle coordinator is harmless.
	c.Clear()
}
