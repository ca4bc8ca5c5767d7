package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFile is the manifest name inside a plugin directory.
const ManifestFile = "manifest.json"

// Manifest is the part of a plugin manifest the core reads.
type Manifest struct {
	Name                  string       `json:"Name"`
	Version               string       `json:"Version"`
	Category              string       `json:"Category"`
	CategoryIcon          string       `json:"CategoryIcon"`
	DeviceNamespace       string       `json:"DeviceNamespace"`
	PropertyInspectorPath string       `json:"PropertyInspectorPath"`
	Actions               []Definition `json:"Actions"`
}

// ReadManifest reads dir/manifest.json. The plugin uuid is the directory
// name. Relative icon and inspector paths are resolved against dir, and
// states still showing the placeholder image take the action icon.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, dir, err)
	}

	plugin := filepath.Base(dir)
	if m.Category == "" {
		m.Category = m.Name
	}
	if m.CategoryIcon != "" {
		m.CategoryIcon = resolve(dir, m.CategoryIcon)
	}

	for i := range m.Actions {
		a := &m.Actions[i]
		if a.UUID == "" {
			return Manifest{}, fmt.Errorf("%w: %s: action %d has no uuid", ErrInvalidManifest, dir, i)
		}
		a.Plugin = plugin
		if a.Icon != "" {
			a.Icon = resolve(dir, a.Icon)
		}
		switch {
		case a.PropertyInspector != "":
			a.PropertyInspector = resolve(dir, a.PropertyInspector)
		case m.PropertyInspectorPath != "":
			a.PropertyInspector = resolve(dir, m.PropertyInspectorPath)
		}
		if len(a.States) == 0 {
			a.States = []State{DefaultState()}
		}
		for s := range a.States {
			st := &a.States[s]
			if st.Image == DefaultImage {
				st.Image = a.Icon
			} else if st.Image != "" {
				st.Image = resolve(dir, st.Image)
			}
		}
	}
	return m, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// LoadPlugins reads the manifest of every plugin directory under dir and
// registers its actions. claim, when non-nil, receives each declared
// device namespace. It returns the loaded plugin uuids, sorted, and the
// joined errors of plugins that failed to load.
func (c *Catalog) LoadPlugins(dir string, claim func(namespace, plugin string)) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plugins directory: %w", err)
	}

	var loaded []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := ReadManifest(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.Register(m.Category, m.CategoryIcon, m.Actions...)
		if claim != nil && m.DeviceNamespace != "" {
			claim(m.DeviceNamespace, e.Name())
		}
		loaded = append(loaded, e.Name())
	}
	sort.Strings(loaded)
	return loaded, errors.Join(errs...)
}
