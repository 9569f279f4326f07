package catalogue

import (
	"fmt"
	"os"
	"time"

	"aster/internal/engine/ports"

	"gopkg.in/yaml.v3"
)

// Manifest selects and tunes the tools a deployment exposes. It is loaded
// from a yaml file next to the engine configuration.
type Manifest struct {
	// Enabled lists tool names to expose. Empty means every registered tool.
	Enabled []string `yaml:"enabled"`
	// Disabled lists tool names to hide even when Enabled is empty.
	Disabled []string `yaml:"disabled"`
	// Cache tunes the shared result cache.
	Cache struct {
		MaxSize int      `yaml:"max_size"`
		TTL     string   `yaml:"ttl"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"cache"`
}

// LoadManifest reads a tool manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}
	return &m, nil
}

// CacheConfig converts the manifest cache section into a CacheConfig,
// falling back to defaults for unset fields.
func (m *Manifest) CacheConfig() CacheConfig {
	config := DefaultCacheConfig()
	if m == nil {
		return config
	}
	if m.Cache.MaxSize > 0 {
		config.MaxSize = m.Cache.MaxSize
	}
	if m.Cache.TTL != "" {
		if ttl, err := time.ParseDuration(m.Cache.TTL); err == nil && ttl > 0 {
			config.TTL = ttl
		}
	}
	if len(m.Cache.Exclude) > 0 {
		config.ExcludeTools = append(config.ExcludeTools, m.Cache.Exclude...)
	}
	return config
}

// Apply returns a catalogue view honouring the manifest's enable and
// disable lists. A nil manifest returns the registry unchanged.
func (m *Manifest) Apply(registry *Registry) ports.Catalogue {
	if m == nil {
		return registry
	}

	if len(m.Enabled) > 0 {
		enabled := make(map[string]bool, len(m.Enabled))
		for _, name := range m.Enabled {
			enabled[name] = true
		}
		var exclude []string
		for _, def := range registry.List() {
			if !enabled[def.Name] {
				exclude = append(exclude, def.Name)
			}
		}
		exclude = append(exclude, m.Disabled...)
		return registry.Without(exclude...)
	}

	if len(m.Disabled) > 0 {
		return registry.Without(m.Disabled...)
	}
	return registry
}
