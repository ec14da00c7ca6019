package cityatlas

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

// Bookmark is one saved viewport.
type Bookmark struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Center [2]float64 `json:"center"` // [lat, lng]
	Zoom   int        `json:"zoom"`
}

// BookmarkStore persists an ordered bookmark list in one JSON file.
//
// The file is read once when the store opens and rewritten wholesale on
// every mutation. A missing or corrupt file yields an empty list, never an
// error surfaced to the user.
type BookmarkStore struct {
	mu    sync.Mutex
	path  string
	log   *logrus.Logger
	items []Bookmark
}

// OpenBookmarkStore opens the store at path, reading whatever list is
// already there.
func OpenBookmarkStore(path string, log *logrus.Logger) *BookmarkStore {
	s := &BookmarkStore{path: path, log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("bookmarks: read %s failed, starting empty: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.items); err != nil {
		log.Warnf("bookmarks: %s is corrupt, starting empty: %v", path, err)
		s.items = nil
	}
	return s
}

// All returns a copy of the bookmark list in saved order.
func (s *BookmarkStore) All() []Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bookmark, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of saved bookmarks.
func (s *BookmarkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add appends a bookmark and rewrites the store file.
func (s *BookmarkStore) Add(name string, center LatLng, zoom int) (Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := shortid.Generate()
	b := Bookmark{
		ID:     id,
		Name:   name,
		Center: [2]float64{center.Lat, center.Lng},
		Zoom:   zoom,
	}
	s.items = append(s.items, b)
	return b, s.persistLocked()
}

// Delete removes the bookmark with the given id and rewrites the store
// file. Returns false when no bookmark has that id.
func (s *BookmarkStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.items {
		if b.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, s.persistLocked()
		}
	}
	return false, nil
}

// persistLocked rewrites the store file. Must hold s.mu.
func (s *BookmarkStore) persistLocked() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Warnf("bookmarks: write %s failed: %v", s.path, err)
		return err
	}
	return nil
}
