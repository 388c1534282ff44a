package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	VM vmLimits `toml:"vm"`
}

type vmLimits struct {
	Capacity    int `toml:"capacity"`
	StackMax    int `toml:"stack_max"`
	GCThreshold int `toml:"gc_threshold"`
}

// findPairvmToml walks up from startDir looking for a pairvm.toml manifest.
func findPairvmToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "pairvm.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadProjectManifest loads the nearest manifest. ok=false means none found,
// which is not an error; the defaults apply.
func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findPairvmToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if cfg.VM.Capacity < 0 {
		return projectConfig{}, fmt.Errorf("%s: vm.capacity must not be negative", path)
	}
	if cfg.VM.StackMax < 0 {
		return projectConfig{}, fmt.Errorf("%s: vm.stack_max must not be negative", path)
	}
	if cfg.VM.GCThreshold < 0 {
		return projectConfig{}, fmt.Errorf("%s: vm.gc_threshold must not be negative", path)
	}
	return cfg, nil
}
