package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/dactilo/internal/logging"
)

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// manifestFile is the manifest every plugin directory carries.
const manifestFile = "plugin.json"

// Manager holds the plugins found in one directory.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewManager creates a Manager for pluginDir. Nothing is loaded until
// Discover.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		logger:    logging.WithComponent("plugins"),
	}
}

// Discover rescans the plugin directory and replaces the known plugins. Each
// subdirectory with a plugin.json is a candidate; broken ones are logged and
// skipped. When two directories declare the same name the first in directory
// order wins. A missing directory yields no plugins.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read plugin dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())

		p, err := loadPlugin(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			m.logger.Warn().Err(err).Str("dir", dir).Msg("Skipping plugin")
			continue
		}
		if prev, ok := found[p.Manifest.Name]; ok {
			m.logger.Warn().Str("name", p.Manifest.Name).Str("dir", dir).Str("kept", prev.Path).Msg("Skipping duplicate plugin")
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.logger.Info().Int("count", len(found)).Str("dir", m.pluginDir).Msg("Plugins discovered")
	return nil
}

// loadPlugin reads and checks the plugin in dir. It returns an error wrapping
// os.ErrNotExist when dir has no manifest.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	exe := filepath.Join(dir, manifest.Executable)
	info, err := os.Stat(exe)
	if err != nil {
		return nil, fmt.Errorf("executable %s not found", manifest.Executable)
	}
	if info.IsDir() || (runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0) {
		return nil, fmt.Errorf("executable %s is not runnable", manifest.Executable)
	}

	return &Plugin{Manifest: manifest, Path: dir, Executable: exe}, nil
}

// Get returns a plugin by name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	m.mu.RUnlock()

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
