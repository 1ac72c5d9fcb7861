package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RuntimeDirs holds the runtime paths:
//
//	{base}/                 - runtime root
//	{base}/locks/           - per-device lock files
//	{base}/captures/        - default capture output
//
// RuntimeDirs is immutable after construction. Use NewRuntimeDirs to
// create one.
type RuntimeDirs struct {
	base     string
	locks    string
	captures string
}

// NewRuntimeDirs creates RuntimeDirs rooted at base, which must be an
// absolute path.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}
	base = filepath.Clean(base)
	return RuntimeDirs{
		base:     base,
		locks:    filepath.Join(base, "locks"),
		captures: filepath.Join(base, "captures"),
	}, nil
}

// Base returns the runtime root.
func (d RuntimeDirs) Base() string { return d.base }

// Captures returns the default capture directory.
func (d RuntimeDirs) Captures() string { return d.captures }

// DeviceLock returns the lock file guarding a DRM device, for example
// {base}/locks/dev-dri-card0.lock.
func (d RuntimeDirs) DeviceLock(devicePath string) string {
	name := strings.Trim(filepath.Clean(devicePath), string(filepath.Separator))
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	return filepath.Join(d.locks, name+".lock")
}

// EnsureDirectories creates the runtime directories.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.locks, d.captures} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
