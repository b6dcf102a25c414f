package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform swaps platformDir for the duration of a test.
func fakePlatform(t *testing.T, goos string) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.goos = goos
	platformDir.homeDir = func() (string, error) { return "/home/u", nil }
	platformDir.userConfigDir = func() (string, error) { return "/cfg", nil }
}

func TestDefaultDirs(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		xdgConfig  string
		xdgData    string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			xdgConfig:  "/xdg/config",
			xdgData:    "/xdg/data",
			wantConfig: "/xdg/config/bmmgr",
			wantData:   "/xdg/data/bmmgr",
		},
		{
			name:       "linux home fallback",
			goos:       "linux",
			wantConfig: "/home/u/.config/bmmgr",
			wantData:   "/home/u/.local/share/bmmgr",
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			xdgConfig:  "/xdg/config",
			wantConfig: "/cfg/bmmgr",
			wantData:   "/cfg/bmmgr",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakePlatform(t, tt.goos)
			t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)
			t.Setenv("XDG_DATA_HOME", tt.xdgData)

			got, err := DefaultConfigDir()
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantConfig), got)

			got, err = DefaultDataDir()
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantData), got)
		})
	}
}

func TestDefaultDirsPropagateErrors(t *testing.T) {
	fakePlatform(t, "linux")
	t.Setenv("XDG_CONFIG_HOME", "")
	platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }

	_, err := DefaultConfigDir()
	assert.Error(t, err)
}

func TestResolveConfigDir(t *testing.T) {
	fakePlatform(t, "linux")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name   string
		flag   string
		envVal string
		want   string
	}{
		{name: "flag wins over env", flag: "/explicit/config", envVal: "/env/config", want: "/explicit/config"},
		{name: "env wins when flag empty", envVal: "/env/config", want: "/env/config"},
		{name: "platform default when both empty", want: "/home/u/.config/bmmgr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	fakePlatform(t, "linux")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name   string
		flag   string
		envVal string
		want   string
	}{
		{name: "flag wins over env", flag: "/flag/data", envVal: "/env/data", want: "/flag/data"},
		{name: "env wins when flag empty", envVal: "/env/data", want: "/env/data"},
		{name: "platform default when both empty", want: "/home/u/.local/share/bmmgr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}

	t.Run("relative flag becomes absolute", func(t *testing.T) {
		t.Setenv(EnvDataDir, "")
		got, err := ResolveDataDir("relative/path")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)
	})
}

func TestResolveStore(t *testing.T) {
	assert.Equal(t, "flag.jsonl", ResolveStore("flag.jsonl", "cfg.db", "/data"))
	assert.Equal(t, "cfg.db", ResolveStore("", "cfg.db", "/data"))
	assert.Equal(t, filepath.Join("/data", DefaultStoreFile), ResolveStore("", "", "/data"))
}
