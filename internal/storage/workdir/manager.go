// Package workdir manages the on-disk archive of built snapshots and the
// inventory history kept across them in project/project.json.
package workdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/mitchellh/go-homedir"

	"pontopology/internal/graph"
	"pontopology/internal/inventory"
)

const (
	EnvWorkdir = "PONTOPO_WORKDIR"
	appDir     = "pontopology"

	snapshotsDir = "snapshots"
	projectDir   = "project"

	// compressedExt marks files written as snappy framed streams.
	compressedExt = ".sz"
)

type Manager struct {
	path string
	// cfgPath is the per-user file remembering the last chosen workdir.
	cfgPath string
	// Compress writes session files as snappy streams.
	Compress bool
}

// NewManager resolves the workdir in this order: explicit (from
// configuration), $PONTOPO_WORKDIR, the per-user config file, the OS data
// directory.
func NewManager(explicit string) (*Manager, error) {
	m := &Manager{cfgPath: userConfigPath()}
	p, err := resolveInitialPath(explicit, m.cfgPath)
	if err != nil {
		return nil, err
	}
	m.path = p
	return m, nil
}

func (m *Manager) Path() string {
	return m.path
}

// SetPath changes the workdir and remembers it in the per-user config file.
func (m *Manager) SetPath(p string) error {
	abs, err := expand(p)
	if err != nil {
		return err
	}
	m.path = abs
	if err := ensureDir(filepath.Dir(m.cfgPath)); err != nil {
		return err
	}
	b, err := json.MarshalIndent(map[string]string{"workdir": m.path}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.cfgPath, b, 0o600)
}

// EnsureStructure creates the root, snapshots/ and project/.
func (m *Manager) EnsureStructure() error {
	if m.path == "" {
		return errors.New("workdir not set")
	}
	for _, d := range []string{m.path, filepath.Join(m.path, snapshotsDir), filepath.Join(m.path, projectDir)} {
		if err := ensureDir(d); err != nil {
			return err
		}
	}
	return nil
}

type SnapshotSession struct {
	Path string
}

// NewSnapshotSession creates snapshots/<timestamp>_<generation prefix>/.
func (m *Manager) NewSnapshotSession(generation string, now time.Time) (SnapshotSession, error) {
	name := now.UTC().Format("2006-01-02_150405")
	if g := strings.ReplaceAll(generation, "-", ""); g != "" {
		name += "_" + g[:min(8, len(g))]
	}
	dir := filepath.Join(m.path, snapshotsDir, name)
	if err := ensureDir(dir); err != nil {
		return SnapshotSession{}, err
	}
	return SnapshotSession{Path: dir}, nil
}

// SaveJSON writes v as indented JSON into the session folder and returns the
// file path. With Compress set the file is a snappy stream named <file>.sz.
func (m *Manager) SaveJSON(sess SnapshotSession, filename string, v any) (string, error) {
	if strings.TrimSpace(sess.Path) == "" {
		return "", errors.New("empty session path")
	}
	if err := ensureDir(sess.Path); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	full := filepath.Join(sess.Path, filename)
	if !m.Compress {
		return full, os.WriteFile(full, b, 0o600)
	}

	full += compressedExt
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	w := snappy.NewBufferedWriter(f)
	if _, err := w.Write(b); err != nil {
		f.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return "", err
	}
	return full, f.Close()
}

// LoadJSON reads a file written by SaveJSON, compressed or not.
func LoadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, compressedExt) {
		r = snappy.NewReader(f)
	}
	return json.NewDecoder(r).Decode(v)
}

// Archive stores one snapshot with the inputs it was built from and merges
// it into the project history.
func (m *Manager) Archive(snap graph.Snapshot, inputs inventory.Collections, now time.Time) (SnapshotSession, error) {
	if err := m.EnsureStructure(); err != nil {
		return SnapshotSession{}, err
	}
	sess, err := m.NewSnapshotSession(snap.Generation, now)
	if err != nil {
		return SnapshotSession{}, err
	}
	if _, err := m.SaveJSON(sess, "snapshot.json", snap); err != nil {
		return sess, fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := m.SaveJSON(sess, "inputs.json", inputs); err != nil {
		return sess, fmt.Errorf("save inputs: %w", err)
	}
	if err := m.MergeProject(snap, now); err != nil {
		return sess, fmt.Errorf("merge project: %w", err)
	}
	return sess, nil
}

// Helpers

func ensureDir(p string) error {
	return os.MkdirAll(p, 0o755)
}

func expand(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("empty path")
	}
	p, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

func dataDir() string {
	if v := os.Getenv("LOCALAPPDATA"); v != "" {
		return filepath.Join(v, appDir)
	}
	home, err := homedir.Dir()
	if err != nil || home == "" {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDir)
	case "windows":
		return filepath.Join(home, "AppData", "Local", appDir)
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDir)
		}
		return filepath.Join(home, ".local", "share", appDir)
	}
}

func userConfigPath() string {
	return filepath.Join(dataDir(), "config.json")
}

func resolveInitialPath(explicit, cfg string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return expand(explicit)
	}
	if env := strings.TrimSpace(os.Getenv(EnvWorkdir)); env != "" {
		return expand(env)
	}
	if b, err := os.ReadFile(cfg); err == nil {
		var m map[string]string
		if json.Unmarshal(b, &m) == nil {
			if w := strings.TrimSpace(m["workdir"]); w != "" {
				return expand(w)
			}
		}
	}
	return filepath.Join(dataDir(), "workspace"), nil
}
