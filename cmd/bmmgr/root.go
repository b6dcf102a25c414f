// Root command for the bmmgr CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bookmarks/internal/enrich"
	"github.com/mesh-intelligence/bookmarks/internal/paths"
	"github.com/mesh-intelligence/bookmarks/internal/store"
	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

// app carries the global flags and the state PersistentPreRunE resolves
// for every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flagStore     string
	flagConfigDir string
	flagDataDir   string
	flagLogFormat string
	flagVerbose   int
	flagJSON      bool

	cfg      *config
	location string
	logger   *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "bmmgr",
		Short: "bmmgr manages bookmarks and their icons",
		Long: `bmmgr stores bookmarks in a relational database or an append-only
log and embeds their icons as data URLs fetched from the network.

The storage location picks the backend: *.db, *.jsonl, *.njsonl or an
existing directory.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagStore, "store", "", "storage location (default: <data-dir>/bookmarks.db)")
	pf.StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/bmmgr)")
	pf.StringVar(&a.flagDataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/bmmgr)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "log format: text or json")
	pf.CountVarP(&a.flagVerbose, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVar(&a.flagJSON, "json", false, "print records as JSON")

	root.AddCommand(
		newVersionCmd(a),
		newQueryCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newModifyCmd(a),
		newUpdateIconCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// setup resolves directories, loads config.yaml and builds the logger.
// Flags win over the file.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.flagConfigDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	dataDir, err := paths.ResolveDataDir(a.flagDataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg, err := loadConfig(configDir, dataDir)
	if err != nil {
		return err
	}
	if a.flagLogFormat != "" {
		cfg.LogFormat = a.flagLogFormat
	}
	if cfg.LogFormat != logFormatText && cfg.LogFormat != logFormatJSON {
		return fmt.Errorf("%w: log format %q (want %s or %s)", errUsage, cfg.LogFormat, logFormatText, logFormatJSON)
	}

	a.cfg = cfg
	a.location = paths.ResolveStore(a.flagStore, cfg.Store, dataDir)
	if a.flagStore == "" && cfg.Store == "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("ensure data dir: %w", err)
		}
	}
	a.logger = newLogger(a.stderr, cfg.LogFormat, verbosityLevel(a.flagVerbose))
	a.logger.Debug("configuration loaded", "config_dir", configDir, "data_dir", dataDir, "store", a.location)
	return nil
}

// openStore opens the resolved storage location. The caller must Close it.
func (a *app) openStore() (types.Store, error) {
	s, err := store.Open(a.location, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// newEnricher builds an Enricher from the HTTP configuration. cacheDir may
// be empty to disable the disk cache.
func (a *app) newEnricher(cacheDir string, titles, force bool) *enrich.Enricher {
	return enrich.New(enrich.Options{
		Client:    enrich.NewHTTPClient(a.cfg.Timeout),
		CacheDir:  cacheDir,
		Titles:    titles,
		Force:     force,
		Retries:   a.cfg.Retries,
		Workers:   a.cfg.Workers,
		UserAgent: a.cfg.UserAgent,
		Logger:    a.logger,
	})
}
