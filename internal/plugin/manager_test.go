package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writePlugin creates root/dir with a manifest. For Manifest values the
// declared executable is written too, runnable unless noExec is set.
func writePlugin(t *testing.T, root, dir string, manifest any, noExec bool) {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	var data []byte
	switch m := manifest.(type) {
	case string:
		data = []byte(m)
	case Manifest:
		var err error
		if data, err = json.Marshal(m); err != nil {
			t.Fatalf("failed to marshal manifest: %v", err)
		}
		if m.Executable != "" {
			mode := os.FileMode(0755)
			if noExec {
				mode = 0644
			}
			if err := os.WriteFile(filepath.Join(pluginDir, m.Executable), []byte("#!/bin/sh\n"), mode); err != nil {
				t.Fatalf("failed to write executable: %v", err)
			}
		}
	}
	if err := os.WriteFile(filepath.Join(pluginDir, manifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func discover(t *testing.T, root string) *Manager {
	t.Helper()
	manager := NewManager(root)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	return manager
}

func names(plugins []*Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Manifest.Name
	}
	return out
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "speak", Manifest{
		Name:        "speak",
		Version:     "1.0.0",
		Description: "Speaks recognized words",
		Executable:  "speak",
		Actions:     []string{"say"},
	}, false)
	writePlugin(t, root, "keyboard", Manifest{
		Name:       "keyboard",
		Version:    "1.0.0",
		Executable: "keyboard",
		Actions:    []string{"type", "keystroke"},
	}, false)

	manager := discover(t, root)

	plugins := manager.List()
	if got := names(plugins); len(got) != 2 || got[0] != "keyboard" || got[1] != "speak" {
		t.Fatalf("List() = %v, want [keyboard speak]", got)
	}

	speak, err := manager.Get("speak")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if speak.Path != filepath.Join(root, "speak") {
		t.Errorf("Path = %q", speak.Path)
	}
	if speak.Executable != filepath.Join(root, "speak", "speak") {
		t.Errorf("Executable = %q", speak.Executable)
	}
	if !speak.Manifest.HasAction("say") || speak.Manifest.HasAction("type") {
		t.Error("HasAction() does not match the manifest")
	}
}

func TestManager_Discover_SkipsBrokenPlugins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not checked on Windows")
	}
	root := t.TempDir()
	writePlugin(t, root, "broken", "{not json", false)
	writePlugin(t, root, "nameless", Manifest{Executable: "x", Actions: []string{"run"}}, false)
	writePlugin(t, root, "no-actions", Manifest{Name: "quiet", Executable: "quiet"}, false)
	writePlugin(t, root, "escape", Manifest{Name: "escape", Executable: "../escape", Actions: []string{"run"}}, false)
	writePlugin(t, root, "not-exec", Manifest{Name: "plain", Executable: "plain", Actions: []string{"run"}}, true)
	writePlugin(t, root, "good", Manifest{Name: "good", Executable: "good", Actions: []string{"run"}}, false)

	// Manifest pointing at a file that does not exist
	writePlugin(t, root, "ghost", `{"name":"ghost","executable":"ghost","actions":["run"]}`, false)

	// Plain files and directories without a manifest are ignored
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	if got := names(discover(t, root).List()); len(got) != 1 || got[0] != "good" {
		t.Errorf("List() = %v, want only the good plugin", got)
	}
}

func TestManager_Discover_DuplicateNames(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "a-speak", Manifest{Name: "speak", Version: "1", Executable: "run", Actions: []string{"say"}}, false)
	writePlugin(t, root, "b-speak", Manifest{Name: "speak", Version: "2", Executable: "run", Actions: []string{"say"}}, false)

	p, err := discover(t, root).Get("speak")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Manifest.Version != "1" {
		t.Errorf("kept version %q, want the first directory's", p.Manifest.Version)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "a", Manifest{Name: "a", Executable: "a", Actions: []string{"run"}}, false)

	manager := discover(t, root)
	if _, err := manager.Get("a"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "a")); err != nil {
		t.Fatal(err)
	}
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("a"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() after removal error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := discover(t, filepath.Join(t.TempDir(), "missing"))
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	if _, err := discover(t, t.TempDir()).Get("nope"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_PluginDir(t *testing.T) {
	if got := NewManager("/some/path").PluginDir(); got != "/some/path" {
		t.Errorf("PluginDir() = %q", got)
	}
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr bool
	}{
		{"valid", Manifest{Name: "speak", Executable: "speak", Actions: []string{"say"}}, false},
		{"nested executable", Manifest{Name: "speak", Executable: "bin/speak", Actions: []string{"say"}}, false},
		{"no name", Manifest{Executable: "speak", Actions: []string{"say"}}, true},
		{"no executable", Manifest{Name: "speak", Actions: []string{"say"}}, true},
		{"absolute executable", Manifest{Name: "speak", Executable: "/bin/sh", Actions: []string{"say"}}, true},
		{"parent executable", Manifest{Name: "speak", Executable: "../sh", Actions: []string{"say"}}, true},
		{"no actions", Manifest{Name: "speak", Executable: "speak"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
