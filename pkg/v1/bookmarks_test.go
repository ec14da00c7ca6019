package cityatlas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestBookmarkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	log, _ := test.NewNullLogger()

	s := OpenBookmarkStore(path, log)
	if s.Len() != 0 {
		t.Fatalf("fresh store should be empty, got %d", s.Len())
	}

	b, err := s.Add("Office", LatLng{Lat: 12.97, Lng: 77.59}, 15)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.ID == "" {
		t.Error("bookmark should receive an id")
	}

	s.Add("Home", LatLng{Lat: 13.01, Lng: 77.55}, 16)

	// A fresh store over the same file sees both, in saved order, with
	// name, center, and zoom intact.
	reopened := OpenBookmarkStore(path, log)
	items := reopened.All()
	if len(items) != 2 {
		t.Fatalf("expected 2 bookmarks after reopen, got %d", len(items))
	}
	if items[0].Name != "Office" || items[1].Name != "Home" {
		t.Errorf("order not preserved: %q, %q", items[0].Name, items[1].Name)
	}
	if items[0].Center != [2]float64{12.97, 77.59} || items[0].Zoom != 15 {
		t.Errorf("viewport not preserved: %+v", items[0])
	}
}

func TestBookmarkDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	log, _ := test.NewNullLogger()

	s := OpenBookmarkStore(path, log)
	a, _ := s.Add("A", LatLng{}, 10)
	s.Add("B", LatLng{}, 11)

	removed, err := s.Delete(a.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	if removed, _ := s.Delete("no-such-id"); removed {
		t.Error("deleting a missing id should report false")
	}

	// The deletion is persisted, not just in memory.
	reopened := OpenBookmarkStore(path, log)
	items := reopened.All()
	if len(items) != 1 || items[0].Name != "B" {
		t.Errorf("unexpected persisted list: %+v", items)
	}
}

func TestBookmarkStoreMissingFile(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := OpenBookmarkStore(filepath.Join(t.TempDir(), "never-written.json"), log)
	if s.Len() != 0 {
		t.Errorf("missing file should open empty, got %d", s.Len())
	}
	// A missing file is the normal first run, not worth a warning.
	if n := warnCount(hook); n != 0 {
		t.Errorf("expected no warnings for a missing file, got %d", n)
	}
}

func TestBookmarkStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	log, hook := test.NewNullLogger()
	s := OpenBookmarkStore(path, log)
	if s.Len() != 0 {
		t.Errorf("corrupt file should open empty, got %d", s.Len())
	}
	if n := warnCount(hook); n != 1 {
		t.Errorf("expected 1 warning for the corrupt file, got %d", n)
	}

	// The store still works; the next mutation rewrites the file cleanly.
	if _, err := s.Add("Fresh", LatLng{Lat: 1, Lng: 2}, 9); err != nil {
		t.Fatalf("Add after corrupt open: %v", err)
	}
	reopened := OpenBookmarkStore(path, log)
	if reopened.Len() != 1 {
		t.Errorf("expected the rewritten file to hold 1 bookmark, got %d", reopened.Len())
	}
}
