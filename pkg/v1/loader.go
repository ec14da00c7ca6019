package cityatlas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/geowerk/cityatlas/internal/geodata"
	"github.com/geowerk/cityatlas/internal/overpass"
)

// Loader retrieves layer datasets over HTTP.
//
// Every retrieval path is best-effort: a failed fetch is logged, leaves the
// dataset absent or partial, and is never retried automatically. The next
// visibility toggle is the only retry trigger. No layer failure propagates
// to or disables any other layer.
type Loader struct {
	client *http.Client
	log    *logrus.Logger
	opts   LoadOptions

	mu    sync.Mutex
	stats map[string]LoadStats
}

// LoadStats records the outcome of the most recent load for a layer.
type LoadStats struct {
	Layer     string
	Requested int // Resources requested (1 for single and overpass loads)
	Loaded    int // Resources fetched and parsed successfully
	Failed    int // Resources skipped after fetch or parse failure
	Duration  time.Duration
}

// NewLoader creates a loader. A nil client falls back to
// http.DefaultClient; a nil logger discards nothing and must be supplied by
// the engine.
func NewLoader(client *http.Client, log *logrus.Logger, opts LoadOptions) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultLoadOptions().Workers
	}
	return &Loader{
		client: client,
		log:    log,
		opts:   opts,
		stats:  make(map[string]LoadStats),
	}
}

// Stats returns the most recent load statistics for a layer.
func (l *Loader) Stats(layer string) (LoadStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[layer]
	return s, ok
}

func (l *Loader) recordStats(s LoadStats) {
	l.mu.Lock()
	l.stats[s.Layer] = s
	l.mu.Unlock()
}

// LoadSingle fetches a single-resource layer.
//
// A fetch or parse failure is reported once as a logged error and leaves
// the dataset absent: the returned dataset is nil and the caller stores
// nothing.
func (l *Loader) LoadSingle(ctx context.Context, layer string, kind Kind, url string) (*Dataset, error) {
	start := time.Now()

	body, err := l.fetchBytes(ctx, url)
	if err != nil {
		l.log.Errorf("layer %s: load failed: %v", layer, err)
		l.recordStats(LoadStats{Layer: layer, Requested: 1, Failed: 1, Duration: time.Since(start)})
		return nil, err
	}

	fc, err := geodata.Decode(body)
	if err != nil {
		perr := &ErrMalformedResource{URL: url, Err: err}
		l.log.Errorf("layer %s: load failed: %v", layer, perr)
		l.recordStats(LoadStats{Layer: layer, Requested: 1, Failed: 1, Duration: time.Since(start)})
		return nil, perr
	}

	l.recordStats(LoadStats{Layer: layer, Requested: 1, Loaded: 1, Duration: time.Since(start)})
	l.log.Infof("layer %s: loaded %d features", layer, len(fc.Features))
	return &Dataset{Layer: layer, Kind: kind, Collection: fc}, nil
}

// shardResult carries one settled part fetch back to the collector.
// Failures travel as values so no part can abort the aggregate load.
type shardResult struct {
	index int
	fc    *geojson.FeatureCollection
	err   error
}

// LoadSharded fetches a layer split across numbered parts.
//
// All part fetches are issued concurrently and the dataset is assembled
// only after every fetch has settled. Completion is "all settled", not
// "first success". A part that fails or is malformed is skipped with one
// logged warning; the layer becomes the concatenation, in part order, of
// whatever parts survived, possibly empty.
//
// The URL template receives the 1-based part number via fmt.Sprintf.
func (l *Loader) LoadSharded(ctx context.Context, layer string, kind Kind, urlTemplate string, parts int) *Dataset {
	start := time.Now()

	if parts <= 0 {
		l.log.Warnf("layer %s: sharded source with no parts", layer)
		return &Dataset{Layer: layer, Kind: kind, Collection: geojson.NewFeatureCollection()}
	}

	workers := l.opts.Workers
	if workers > parts {
		workers = parts
	}

	jobs := make(chan int, parts)
	results := make(chan shardResult, parts)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				url := fmt.Sprintf(urlTemplate, index+1)
				fc, err := l.fetchCollection(ctx, url)
				results <- shardResult{index: index, fc: fc, err: err}
			}
		}()
	}

	for i := 0; i < parts; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*geojson.FeatureCollection, parts)
	settled := 0
	failed := 0
	for result := range results {
		settled++
		if l.opts.Progress != nil {
			l.opts.Progress(settled, parts)
		}
		if result.err != nil {
			failed++
			l.log.Warnf("layer %s: part %d/%d skipped: %v", layer, result.index+1, parts, result.err)
			continue
		}
		ordered[result.index] = result.fc
	}

	merged := geodata.Merge(ordered)
	l.recordStats(LoadStats{
		Layer:     layer,
		Requested: parts,
		Loaded:    parts - failed,
		Failed:    failed,
		Duration:  time.Since(start),
	})
	l.log.Infof("layer %s: loaded %d features from %d/%d parts",
		layer, len(merged.Features), parts-failed, parts)

	return &Dataset{Layer: layer, Kind: kind, Collection: merged}
}

// LoadOverpass fetches a point layer from an Overpass-style interpreter.
//
// On failure the dataset stays absent and the layer renders empty until the
// next visibility toggle re-triggers the query.
func (l *Loader) LoadOverpass(ctx context.Context, layer, endpoint, query string) (*Dataset, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		l.log.Errorf("layer %s: load canceled: %v", layer, err)
		return nil, err
	}

	fc, err := overpass.Fetch(endpoint, query, l.client)
	if err != nil {
		l.log.Errorf("layer %s: load failed: %v", layer, err)
		l.recordStats(LoadStats{Layer: layer, Requested: 1, Failed: 1, Duration: time.Since(start)})
		return nil, err
	}

	l.recordStats(LoadStats{Layer: layer, Requested: 1, Loaded: 1, Duration: time.Since(start)})
	l.log.Infof("layer %s: loaded %d features from interpreter", layer, len(fc.Features))
	return &Dataset{Layer: layer, Kind: KindPoint, Collection: fc}, nil
}

// fetchCollection fetches and decodes one GeoJSON resource.
func (l *Loader) fetchCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	body, err := l.fetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	fc, err := geodata.Decode(body)
	if err != nil {
		return nil, &ErrMalformedResource{URL: url, Err: err}
	}
	return fc, nil
}

// fetchBytes performs one GET and returns the response body.
func (l *Loader) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ErrFetchFailed{URL: url, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &ErrFetchFailed{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ErrFetchFailed{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrFetchFailed{URL: url, Err: err}
	}
	return body, nil
}
