package cityatlas

import (
	"fmt"
)

// ErrFetchFailed indicates a resource fetch returned an error or a non-200
// status. Fetches are best-effort: the error is logged, the affected dataset
// stays absent or partial, and nothing is retried until the next visibility
// toggle.
type ErrFetchFailed struct {
	URL    string
	Status int
	Err    error
}

func (e *ErrFetchFailed) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *ErrFetchFailed) Unwrap() error { return e.Err }

// ErrMalformedResource indicates a fetched resource could not be parsed.
type ErrMalformedResource struct {
	URL string
	Err error
}

func (e *ErrMalformedResource) Error() string {
	return fmt.Sprintf("malformed resource %s: %v", e.URL, e.Err)
}

func (e *ErrMalformedResource) Unwrap() error { return e.Err }

// ErrNoUsableRange indicates no raster tile in a layer yielded a usable
// declared value range, so normalization and rendering were skipped.
type ErrNoUsableRange struct {
	Layer string
}

func (e *ErrNoUsableRange) Error() string {
	return fmt.Sprintf("raster layer %s: no tile yielded a usable value range", e.Layer)
}

// ErrUnknownLayer indicates a layer id not present in the configuration.
type ErrUnknownLayer struct {
	ID string
}

func (e *ErrUnknownLayer) Error() string {
	return fmt.Sprintf("unknown layer: %s", e.ID)
}
