// Package rasterio decodes fetched raster tile bytes into value grids.
//
// GDAL needs a real file path, so tile bytes are spooled to a uniquely named
// temporary file that is removed as soon as the dataset is read.
package rasterio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// Extent is the tile's georeferenced footprint in dataset coordinates
// (longitude/latitude for the elevation tiles this engine consumes).
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Tile is one decoded raster tile: the first band's value grid in row-major
// order plus the declared value range of its valid samples.
type Tile struct {
	Name   string
	Width  int
	Height int

	// Values holds the band grid; no-data samples are NaN.
	Values []float64

	// Min and Max are the declared per-band range. HasRange is false when
	// the band held no valid sample at all.
	Min      float64
	Max      float64
	HasRange bool

	Extent Extent
}

// Decode parses raster tile bytes into a Tile.
func Decode(name string, data []byte) (*Tile, error) {
	registerOnce.Do(func() {
		gdal.RegisterAll()
	})

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("cityatlas-%s.tif", uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("spool tile %s: %w", name, err)
	}
	defer os.Remove(tmp)

	sds, err := gdal.Open(tmp, gdal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open tile %s: %w", name, err)
	}
	defer sds.Close()

	bands := sds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("tile %s has no raster bands", name)
	}
	band := bands[0]
	st := band.Structure()

	tile := &Tile{
		Name:   name,
		Width:  st.SizeX,
		Height: st.SizeY,
		Values: make([]float64, st.SizeX*st.SizeY),
	}
	if err := band.IO(gdal.IORead, 0, 0, tile.Values, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("read tile %s band: %w", name, err)
	}

	nodata, hasNodata := band.NoData()
	tile.Min = math.Inf(1)
	tile.Max = math.Inf(-1)
	for i, v := range tile.Values {
		if math.IsNaN(v) || (hasNodata && v == nodata) {
			tile.Values[i] = math.NaN()
			continue
		}
		if v < tile.Min {
			tile.Min = v
		}
		if v > tile.Max {
			tile.Max = v
		}
		tile.HasRange = true
	}
	if !tile.HasRange {
		tile.Min, tile.Max = 0, 0
	}

	gt, err := sds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("tile %s geotransform: %w", name, err)
	}
	tile.Extent = extentFromTransform(gt, st.SizeX, st.SizeY)

	return tile, nil
}

// extentFromTransform derives the footprint from an affine geotransform.
// Only axis-aligned transforms occur in practice; rotation terms are
// ignored.
func extentFromTransform(gt [6]float64, width, height int) Extent {
	x0 := gt[0]
	x1 := gt[0] + gt[1]*float64(width)
	y0 := gt[3]
	y1 := gt[3] + gt[5]*float64(height)

	ext := Extent{MinX: x0, MaxX: x1, MinY: y1, MaxY: y0}
	if ext.MinX > ext.MaxX {
		ext.MinX, ext.MaxX = ext.MaxX, ext.MinX
	}
	if ext.MinY > ext.MaxY {
		ext.MinY, ext.MaxY = ext.MaxY, ext.MinY
	}
	return ext
}
