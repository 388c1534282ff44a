package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "pairvm.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindPairvmTomlWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeManifest(t, root, "[vm]\ncapacity = 64\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok, err := findPairvmToml(nested)
	if err != nil {
		t.Fatalf("findPairvmToml: %v", err)
	}
	if !ok {
		t.Fatal("manifest not found")
	}
	if got != want {
		t.Errorf("found %q, want %q", got, want)
	}
}

func TestLoadProjectManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[vm]\ncapacity = 64\nstack_max = 32\ngc_threshold = 8\n")

	m, ok, err := loadProjectManifest(root)
	if err != nil {
		t.Fatalf("loadProjectManifest: %v", err)
	}
	if !ok {
		t.Fatal("manifest not found")
	}
	if m.Root != root {
		t.Errorf("Root = %q, want %q", m.Root, root)
	}
	limits := m.Config.VM
	if limits.Capacity != 64 || limits.StackMax != 32 || limits.GCThreshold != 8 {
		t.Errorf("limits = %+v, want 64/32/8", limits)
	}
}

func TestLoadProjectConfigPartial(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, "[vm]\ncapacity = 16\n")

	cfg, err := loadProjectConfig(path)
	if err != nil {
		t.Fatalf("loadProjectConfig: %v", err)
	}
	if cfg.VM.Capacity != 16 {
		t.Errorf("Capacity = %d, want 16", cfg.VM.Capacity)
	}
	// Unset fields stay zero so the VM defaults apply.
	if cfg.VM.StackMax != 0 || cfg.VM.GCThreshold != 0 {
		t.Errorf("unset limits = %+v, want zeros", cfg.VM)
	}
}

func TestLoadProjectConfigRejectsBadValues(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, "[vm]\ncapacity = -1\n")

	_, err := loadProjectConfig(path)
	if err == nil {
		t.Fatal("expected error for negative capacity, got nil")
	}
	// Zero means unset, so the message must name the actual bound.
	if !strings.Contains(err.Error(), "must not be negative") {
		t.Errorf("error %q does not name the accepted range", err)
	}

	broken := writeManifest(t, t.TempDir(), "[vm\ncapacity = 1\n")
	if _, err := loadProjectConfig(broken); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}
