package catalogue

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
enabled:
  - read_file
  - list_dir
disabled:
  - write_file
cache:
  max_size: 64
  ttl: 30s
  exclude:
    - list_dir
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m.Enabled) != 2 || m.Enabled[0] != "read_file" {
		t.Fatalf("enabled parsed wrong: %v", m.Enabled)
	}

	config := m.CacheConfig()
	if config.MaxSize != 64 {
		t.Errorf("max_size = %d, want 64", config.MaxSize)
	}
	if config.TTL != 30*time.Second {
		t.Errorf("ttl = %s, want 30s", config.TTL)
	}
	found := false
	for _, name := range config.ExcludeTools {
		if name == "list_dir" {
			found = true
		}
	}
	if !found {
		t.Errorf("manifest exclusion missing from cache config: %v", config.ExcludeTools)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should error")
	}
	path := writeManifest(t, "enabled: [unbalanced")
	if _, err := LoadManifest(path); err == nil {
		t.Error("invalid yaml should error")
	}
}

func TestNilManifestIsTransparent(t *testing.T) {
	var m *Manifest

	config := m.CacheConfig()
	if config.MaxSize != defaultCacheMaxSize || config.TTL != defaultCacheTTL {
		t.Fatalf("nil manifest should yield defaults: %+v", config)
	}

	r := NewRegistry()
	_ = r.RegisterStatic(&fakeTool{name: "read_file"})
	if got := m.Apply(r); got != any(r) {
		t.Fatal("nil manifest should return the registry unchanged")
	}
}

func TestManifestApplyEnabledList(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterStatic(&fakeTool{name: "read_file"})
	_ = r.RegisterStatic(&fakeTool{name: "write_file"})
	_ = r.RegisterStatic(&fakeTool{name: "list_dir"})

	m := &Manifest{Enabled: []string{"read_file", "list_dir"}, Disabled: []string{"list_dir"}}
	view := m.Apply(r)

	defs := view.List()
	if len(defs) != 1 || defs[0].Name != "read_file" {
		t.Fatalf("expected only read_file, got %+v", defs)
	}
}

func TestManifestApplyDisabledOnly(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterStatic(&fakeTool{name: "read_file"})
	_ = r.RegisterStatic(&fakeTool{name: "write_file"})

	m := &Manifest{Disabled: []string{"write_file"}}
	view := m.Apply(r)

	if _, err := view.Get("write_file"); err == nil {
		t.Fatal("disabled tool still visible")
	}
	if _, err := view.Get("read_file"); err != nil {
		t.Fatalf("enabled tool hidden: %v", err)
	}
}
