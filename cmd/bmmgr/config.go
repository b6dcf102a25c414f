// Config loading for the bmmgr CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/bookmarks/internal/enrich"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "BMMGR"

	// Config keys.
	cfgKeyStore         = "store"
	cfgKeyIconCache     = "icon_cache"
	cfgKeyHTTPTimeout   = "http.timeout"
	cfgKeyHTTPRetries   = "http.retries"
	cfgKeyHTTPWorkers   = "http.workers"
	cfgKeyHTTPUserAgent = "http.user_agent"
	cfgKeyLogFormat     = "log.format"

	// defaultIconCacheDir is created under the data directory.
	defaultIconCacheDir = "icons"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# bmmgr configuration

# Storage location (overridable by --store). The suffix picks the backend:
#   *.db      relational
#   *.jsonl   append-only log
#   *.njsonl  append-only log without icon payloads
#   a directory holding bookmarks.jsonl and icons.zip
# Default: <data-dir>/bookmarks.db
# store:

# Icon cache directory for update-icon. Default: <data-dir>/icons
# icon_cache:

http:
  timeout: 60s
  retries: 3
  # Concurrent fetches; 0 means unbounded.
  workers: 0
  # user_agent:

log:
  # text or json
  format: text
`

// config is the resolved configuration of one invocation.
type config struct {
	Store     string
	IconCache string
	Timeout   time.Duration
	Retries   int
	Workers   int
	UserAgent string
	LogFormat string
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. BMMGR_* environment variables override file
// values.
func loadConfig(configDir, dataDir string) (*config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyStore, "")
	v.SetDefault(cfgKeyIconCache, "")
	v.SetDefault(cfgKeyHTTPTimeout, enrich.DefaultTimeout)
	v.SetDefault(cfgKeyHTTPRetries, enrich.DefaultRetries)
	v.SetDefault(cfgKeyHTTPWorkers, 0)
	v.SetDefault(cfgKeyHTTPUserAgent, "bmmgr/"+version)
	v.SetDefault(cfgKeyLogFormat, logFormatText)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &config{
		Store:     v.GetString(cfgKeyStore),
		IconCache: v.GetString(cfgKeyIconCache),
		Timeout:   v.GetDuration(cfgKeyHTTPTimeout),
		Retries:   v.GetInt(cfgKeyHTTPRetries),
		Workers:   v.GetInt(cfgKeyHTTPWorkers),
		UserAgent: v.GetString(cfgKeyHTTPUserAgent),
		LogFormat: v.GetString(cfgKeyLogFormat),
	}
	if cfg.IconCache == "" {
		cfg.IconCache = filepath.Join(dataDir, defaultIconCacheDir)
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
