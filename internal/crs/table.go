package crs

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Table is a local registry of projection definitions keyed by EPSG code.
// It is safe for concurrent use.
type Table struct {
	mu   sync.RWMutex
	defs map[int]string
}

// NewTable returns a table preloaded with the systems rasters in this
// workspace commonly arrive in.
func NewTable() *Table {
	t := &Table{defs: make(map[int]string)}

	t.defs[4326] = "+proj=longlat +datum=WGS84 +no_defs"
	t.defs[4258] = "+proj=longlat +ellps=GRS80 +no_defs"
	t.defs[4269] = "+proj=longlat +datum=NAD83 +no_defs"

	webMercator := "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs"
	t.defs[3857] = webMercator
	t.defs[3785] = webMercator
	t.defs[900913] = webMercator
	t.defs[3395] = "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"

	for zone := 1; zone <= 60; zone++ {
		t.defs[UTMCode(zone, false)] = UTMDefinition(zone, false)
		t.defs[UTMCode(zone, true)] = UTMDefinition(zone, true)
	}
	// ETRS89 / UTM
	for zone := 28; zone <= 38; zone++ {
		t.defs[25800+zone] = fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80 +units=m +no_defs", zone)
	}
	// NAD83 / UTM
	for zone := 1; zone <= 23; zone++ {
		t.defs[26900+zone] = fmt.Sprintf("+proj=utm +zone=%d +datum=NAD83 +units=m +no_defs", zone)
	}

	t.defs[27700] = "+proj=tmerc +lat_0=49 +lon_0=-2 +k=0.9996012717 +x_0=400000 +y_0=-100000 +ellps=airy +units=m +no_defs"
	t.defs[2056] = "+proj=somerc +lat_0=46.9524055555556 +lon_0=7.43958333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +units=m +no_defs"

	return t
}

// Lookup returns the definition registered for code.
func (t *Table) Lookup(code int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.defs[code]
	return def, ok
}

// Register adds or replaces a definition. The text must parse.
func (t *Table) Register(code int, def string) error {
	if _, err := ParseDefinition(def); err != nil {
		return fmt.Errorf("register EPSG:%d: %w", code, err)
	}
	t.mu.Lock()
	t.defs[code] = def
	t.mu.Unlock()
	return nil
}

// Len returns the number of registered definitions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.defs)
}

// definitionsFile is the YAML layout accepted by LoadDefinitions:
//
//	definitions:
//	  "EPSG:2193": "+proj=tmerc ..."
//	  "29193": "+proj=utm ..."
type definitionsFile struct {
	Definitions map[string]string `yaml:"definitions"`
}

// LoadDefinitions registers every entry of a YAML definitions file and
// returns how many were added.
func (t *Table) LoadDefinitions(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read definitions: %w", err)
	}
	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse definitions %s: %w", path, err)
	}
	for id, def := range f.Definitions {
		code, ok := ParseCode(id)
		if !ok {
			return 0, fmt.Errorf("%w: definition key %q has no code", ErrInvalidDefinition, id)
		}
		if err := t.Register(code, def); err != nil {
			return 0, err
		}
	}
	diagf("loaded %d definitions from %s", len(f.Definitions), path)
	return len(f.Definitions), nil
}
