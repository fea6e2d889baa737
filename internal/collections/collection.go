// Package collections holds the catalogued Sentinel collections: their asset templates,
// metadata filenames and the endpoints scenes are read from.
//
// Definitions are embedded JSON documents. A Registry is built once at startup and passed
// to transforms explicitly; optional YAML settings override endpoints per collection.
package collections

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// Collection identifiers.
const (
	SentinelS1L1C = "sentinel-s1-l1c"
	SentinelS2L1C = "sentinel-s2-l1c"
	SentinelS2L2A = "sentinel-s2-l2a"
)

// ErrUnsupportedCollection is returned for collection ids with no definition.
var ErrUnsupportedCollection = errors.New("unsupported collection")

//go:embed data/*.json
var definitions embed.FS

// Family is the scene family a collection belongs to.
type Family string

const (
	// Radar scenes are Sentinel-1 SAR products described by productInfo.json and annotation XML.
	Radar Family = "radar"
	// Optical scenes are Sentinel-2 MSI tiles described by tileInfo.json.
	Optical Family = "optical"
)

// Layout is how asset files are arranged under a scene's base URL.
type Layout string

const (
	// Flat places every band file directly under the base URL.
	Flat Layout = "flat"
	// Grouped places band files under resolution directories (R10m, R20m, R60m).
	Grouped Layout = "grouped"
	// Polarization derives data assets from annotation filenames.
	Polarization Layout = "polarization"
)

type (
	// Collection is the definition of one catalogued collection.
	Collection struct {
		ID           string                `json:"id"`
		Title        string                `json:"title"`
		Description  string                `json:"description"`
		License      string                `json:"license"`
		Family       Family                `json:"family"`
		Layout       Layout                `json:"layout"`
		MetadataFile string                `json:"metadata_file"`
		Extensions   []string              `json:"stac_extensions"`
		Endpoints    Endpoints             `json:"endpoints"`
		Files        map[string]string     `json:"files,omitempty"`          // asset name -> path under asset base
		MetaFiles    map[string]string     `json:"metadata_files,omitempty"` // asset name -> path under metadata base
		Resolutions  []Resolution          `json:"resolutions,omitempty"`
		Assets       map[string]stac.Asset `json:"assets"`
	}

	// Resolution is one band group of a grouped layout.
	Resolution struct {
		Name  string   `json:"name"`
		GSD   float64  `json:"gsd"`
		Bands []string `json:"bands"`
	}

	// Endpoints locate a collection's metadata, assets and inventory.
	Endpoints struct {
		MetadataURL     string `json:"metadata_url"     yaml:"metadata_url"`
		AssetURL        string `json:"asset_url"        yaml:"asset_url"`
		InventoryBucket string `json:"inventory_bucket" yaml:"inventory_bucket"`
		InventoryPrefix string `json:"inventory_prefix" yaml:"inventory_prefix"`
		Region          string `json:"region"           yaml:"region"`
	}
)

// Asset returns a copy of the named template, or false when the collection has none.
func (c *Collection) Asset(name string) (stac.Asset, bool) {
	tmpl, ok := c.Assets[name]
	if !ok {
		return stac.Asset{}, false
	}

	tmpl.Roles = slices.Clone(tmpl.Roles)
	tmpl.Bands = slices.Clone(tmpl.Bands)

	return tmpl, true
}

// Suffix turns "R10m" into "10m", used in grouped asset keys like "B02_10m".
func (r Resolution) Suffix() string {
	return strings.TrimPrefix(r.Name, "R")
}

// MetadataURL returns the URL of an inventory key on the metadata endpoint.
func (c *Collection) MetadataURL(key string) string {
	return JoinURL(c.Endpoints.MetadataURL, key)
}

// AssetBase returns the asset base URL of the scene whose metadata file lives at key.
func (c *Collection) AssetBase(key string) string {
	return JoinURL(c.Endpoints.AssetURL, path.Dir(key))
}

// MetadataBase returns the metadata base URL of the scene whose metadata file lives at key.
func (c *Collection) MetadataBase(key string) string {
	return JoinURL(c.Endpoints.MetadataURL, path.Dir(key))
}

// JoinURL joins base and a relative path with exactly one slash.
func JoinURL(base, rel string) string {
	rel = strings.TrimLeft(rel, "/")
	if base == "" {
		return rel
	}

	if rel == "" || rel == "." {
		return strings.TrimRight(base, "/")
	}

	return strings.TrimRight(base, "/") + "/" + rel
}

// Registry maps collection ids to definitions.
type Registry struct {
	collections map[string]*Collection
}

// NewRegistry loads the embedded collection definitions.
func NewRegistry() (*Registry, error) {
	return LoadRegistry(definitions, "data")
}

// LoadRegistry loads every *.json definition in dir of fsys.
func LoadRegistry(fsys fs.FS, dir string) (*Registry, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list collection definitions: %w", err)
	}

	reg := &Registry{collections: make(map[string]*Collection, len(files))}

	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read collection definition %s: %w", file, err)
		}

		var c Collection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse collection definition %s: %w", file, err)
		}

		if c.ID == "" {
			return nil, fmt.Errorf("collection definition %s has no id", file)
		}

		reg.collections[c.ID] = &c
	}

	return reg, nil
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Collection, error) {
	c, ok := r.collections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedCollection, id, strings.Join(r.IDs(), ", "))
	}

	return c, nil
}

// IDs returns the registered collection ids in sorted order.
func (r *Registry) IDs() []string {
	return slices.Sorted(maps.Keys(r.collections))
}

// All returns every registered collection sorted by id.
func (r *Registry) All() []*Collection {
	out := make([]*Collection, 0, len(r.collections))
	for _, id := range r.IDs() {
		out = append(out, r.collections[id])
	}

	return out
}

// Apply overrides endpoints with non-empty values from settings.
// Settings for unknown collections are ignored.
func (r *Registry) Apply(settings *Settings) {
	if settings == nil {
		return
	}

	for id, ep := range settings.Collections {
		c, ok := r.collections[id]
		if !ok {
			continue
		}

		c.Endpoints = c.Endpoints.merge(ep)
	}
}

func (e Endpoints) merge(override Endpoints) Endpoints {
	if override.MetadataURL != "" {
		e.MetadataURL = override.MetadataURL
	}

	if override.AssetURL != "" {
		e.AssetURL = override.AssetURL
	}

	if override.InventoryBucket != "" {
		e.InventoryBucket = override.InventoryBucket
	}

	if override.InventoryPrefix != "" {
		e.InventoryPrefix = override.InventoryPrefix
	}

	if override.Region != "" {
		e.Region = override.Region
	}

	return e
}
