package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNames(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, NamesFile), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadItemNames_FileNotFound(t *testing.T) {
	cfg, err := LoadItemNames(t.TempDir())
	if err != nil {
		t.Fatalf("LoadItemNames() returned error for missing file: %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadItemNames() returned nil")
	}
	if len(cfg.Names) != 0 {
		t.Errorf("expected empty Names map, got %v", cfg.Names)
	}
}

func TestLoadItemNames_ValidLines(t *testing.T) {
	dir := t.TempDir()
	writeNames(t, dir, `# item display names
P001=Apple Juice 1L

P002 = Potato Chips 150g
`)

	cfg, err := LoadItemNames(dir)
	if err != nil {
		t.Fatalf("LoadItemNames() error: %v", err)
	}

	tests := []struct {
		id   string
		name string
	}{
		{"P001", "Apple Juice 1L"},
		{"P002", "Potato Chips 150g"},
	}
	for _, tt := range tests {
		if got := cfg.Names[tt.id]; got != tt.name {
			t.Errorf("Names[%q] = %q, want %q", tt.id, got, tt.name)
		}
	}
}

func TestLoadItemNames_InvalidLinesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeNames(t, dir, `noequalssign
=missingid
P003=Milk=2L
 =
P004=
`)

	cfg, err := LoadItemNames(dir)
	if err != nil {
		t.Fatalf("LoadItemNames() error: %v", err)
	}
	if len(cfg.Names) != 1 {
		t.Errorf("expected 1 name, got %d: %v", len(cfg.Names), cfg.Names)
	}
	if got := cfg.Names["P003"]; got != "Milk=2L" {
		t.Errorf("Names[\"P003\"] = %q, want %q", got, "Milk=2L")
	}
}

func TestItemNames_Apply(t *testing.T) {
	n := &ItemNames{Names: map[string]string{"P001": "Juice (override)"}}
	base := map[string]string{"P001": "Juice", "P002": "Chips"}

	got := n.Apply(base)
	if got["P001"] != "Juice (override)" {
		t.Errorf("override not applied: %q", got["P001"])
	}
	if got["P002"] != "Chips" {
		t.Errorf("base name lost: %q", got["P002"])
	}
	if base["P001"] != "Juice" {
		t.Error("Apply must not modify its argument")
	}

	if got := n.Apply(nil); len(got) != 1 {
		t.Errorf("Apply(nil) = %v", got)
	}
}
