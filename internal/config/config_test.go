package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecNumericDefaults(t *testing.T) {
	d := Default()
	if d.PlacementGridMM != 2.54 {
		t.Errorf("placement grid default: got %v, want 2.54", d.PlacementGridMM)
	}
	if d.PositionToleranceMM != 2.54 {
		t.Errorf("position tolerance default: got %v, want 2.54", d.PositionToleranceMM)
	}
	if d.PageMarginMM != 12.7 {
		t.Errorf("page margin default: got %v, want 12.7", d.PageMarginMM)
	}
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kisync.yaml")
	// Deliberately sparse: a project file need not repeat every default,
	// only the fields it wants to change.
	if err := os.WriteFile(path, []byte("strict: true\npage_margin_mm: 5\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !opts.Strict {
		t.Error("expected strict to round-trip true")
	}
	if opts.PageMarginMM != 5 {
		t.Errorf("expected overridden page margin 5, got %v", opts.PageMarginMM)
	}
	if opts.PlacementGridMM != 2.54 {
		t.Errorf("expected the omitted placement grid field to keep its default, got %v", opts.PlacementGridMM)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}
