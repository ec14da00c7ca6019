package cityatlas

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the layer catalog: which layers exist, where their data lives,
// and how their features are named.
//
// The catalog is TOML, loaded with viper. Layer order in the file is the
// aggregation order used by search.
type Config struct {
	Map       MapConfig       `mapstructure:"map"`
	Overpass  OverpassConfig  `mapstructure:"overpass"`
	Bookmarks BookmarksConfig `mapstructure:"bookmarks"`
	Layers    []LayerConfig   `mapstructure:"layers"`
}

// MapConfig holds the initial viewport.
type MapConfig struct {
	Center []float64 `mapstructure:"center"` // [lat, lng]
	Zoom   int       `mapstructure:"zoom"`
}

// OverpassConfig names the interpreter endpoint used by overpass-sourced
// layers.
type OverpassConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// BookmarksConfig locates the bookmark store file.
type BookmarksConfig struct {
	Path string `mapstructure:"path"`
}

// LayerConfig describes one layer.
type LayerConfig struct {
	ID    string `mapstructure:"id"`
	Title string `mapstructure:"title"`

	// Kind is "polygon", "point", or "raster".
	Kind string `mapstructure:"kind"`

	// Source is the retrieval pattern: "file" (one stored resource),
	// "sharded" (numbered parts), "overpass" (interpreter query), or
	// "raster" (named tile list).
	Source string `mapstructure:"source"`

	// URL is the resource location; for sharded sources it is a
	// fmt.Sprintf template receiving the 1-based part number.
	URL string `mapstructure:"url"`

	// Parts is the shard count for sharded sources.
	Parts int `mapstructure:"parts"`

	// Query is the interpreter query body for overpass sources.
	Query string `mapstructure:"query"`

	// NameProperties is the ordered display-name lookup list.
	NameProperties []string `mapstructure:"name_properties"`

	// Tiles names the raster resources for raster sources.
	Tiles []TileConfig `mapstructure:"tiles"`
}

// TileConfig names one raster tile resource.
type TileConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// LoadConfig reads and validates a TOML layer catalog.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)

	v.SetDefault("map.zoom", 12)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("bookmarks.path", "bookmarks.json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i := range c.Layers {
		lc := &c.Layers[i]
		if lc.ID == "" {
			return fmt.Errorf("layer %d: missing id", i)
		}
		if seen[lc.ID] {
			return fmt.Errorf("layer %s: duplicate id", lc.ID)
		}
		seen[lc.ID] = true

		if _, err := parseKind(lc.Kind); err != nil && lc.Source != "raster" {
			return fmt.Errorf("layer %s: %w", lc.ID, err)
		}

		switch lc.Source {
		case "file":
			if lc.URL == "" {
				return fmt.Errorf("layer %s: file source needs a url", lc.ID)
			}
		case "sharded":
			if lc.URL == "" {
				return fmt.Errorf("layer %s: sharded source needs a url template", lc.ID)
			}
			// The template receives exactly one part number.
			if strings.Count(lc.URL, "%d") != 1 {
				return fmt.Errorf("layer %s: sharded url template needs exactly one %%d", lc.ID)
			}
			if lc.Parts <= 0 {
				return fmt.Errorf("layer %s: sharded source needs parts > 0", lc.ID)
			}
		case "overpass":
			if lc.Query == "" {
				return fmt.Errorf("layer %s: overpass source needs a query", lc.ID)
			}
		case "raster":
			if len(lc.Tiles) == 0 {
				return fmt.Errorf("layer %s: raster source needs tiles", lc.ID)
			}
		default:
			return fmt.Errorf("layer %s: unknown source %q", lc.ID, lc.Source)
		}
	}
	return nil
}

// Layer returns the configuration for a layer id.
func (c *Config) Layer(id string) (*LayerConfig, bool) {
	for i := range c.Layers {
		if c.Layers[i].ID == id {
			return &c.Layers[i], true
		}
	}
	return nil, false
}

// Extractor returns the normalization policy for a vector layer.
func (lc *LayerConfig) Extractor() Extractor {
	kind, _ := parseKind(lc.Kind)
	return Extractor{Kind: kind, NameProperties: lc.NameProperties}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "polygon":
		return KindPolygon, nil
	case "point":
		return KindPoint, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}
