// Package paths resolves the configuration directory, the data directory and
// the default store location.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "bmmgr"

// DefaultStoreFile is the store created in the data directory when no store
// location is configured.
const DefaultStoreFile = "bookmarks.db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "BMMGR_CONFIG_DIR"
	EnvDataDir   = "BMMGR_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $<xdgEnv>/bmmgr on Linux, falling back to ~/<fallback>/bmmgr,
// and os.UserConfigDir()/bmmgr elsewhere.
func xdgDir(xdgEnv string, fallback ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), AppName)...), nil
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/bmmgr (fallback ~/.config/bmmgr)
// macOS:   ~/Library/Application Support/bmmgr
// Windows: %APPDATA%/bmmgr
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/bmmgr (fallback ~/.local/share/bmmgr)
// macOS, Windows: same as the config directory.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > BMMGR_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > BMMGR_DATA_DIR env > DefaultDataDir().
func ResolveDataDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ResolveStore returns the store location: flag > configured value >
// <dataDir>/bookmarks.db. Relative locations are kept as given so the
// backend naming convention still applies to them.
func ResolveStore(flag, configured, dataDir string) string {
	switch {
	case flag != "":
		return flag
	case configured != "":
		return configured
	default:
		return filepath.Join(dataDir, DefaultStoreFile)
	}
}
