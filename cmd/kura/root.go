package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/pkg/utils"
)

const defaultConfigName = "kura.yaml"

// app carries what every command needs once the root has run.
type app struct {
	configPath string
	debug      bool
	backend    string
	database   string

	cfg          *config.Config
	resolvedPath string
	logger       *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "kura",
		Short: "Ingest documents into a searchable store and ask questions about them",
		Long: `kura extracts text from PDF, plain text, HTML, DOCX, PPTX and XLSX files,
splits it into overlapping fragments, stores everything in a single database
and attaches embeddings so the fragments can be searched by meaning.

Example usage:
  kura ingest ./docs --recursive        # store and embed a directory
  kura search "quarterly revenue"       # nearest fragments
  kura ask "what changed in Q3?"        # answer from retrieved context
  kura chat                             # interactive question loop`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+defaultConfigName+" when present)")
	pf.BoolVar(&a.debug, "debug", false, "enable debug logging")
	pf.StringVar(&a.backend, "backend", "", "storage backend: sqlite, memory or postgres")
	pf.StringVarP(&a.database, "database", "d", "", "database file (sqlite) or DSN (postgres)")

	root.AddCommand(
		newIngestCmd(a),
		newEmbedCmd(a),
		newSearchCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newStatusCmd(a),
		newDocumentsCmd(a),
		newDeleteCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStorageFlags(cfg, a.backend, a.database)
	a.cfg = cfg
	a.resolvedPath = resolved

	debug := cfg.Debug || a.debug
	logger, err := utils.NewCLILogger(debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return nil
}

// loadConfig loads path. With no path it uses ./kura.yaml when that file
// exists and the built-in defaults otherwise. It returns the config and the
// path actually loaded, empty for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, defaultConfigName)
		if _, err := os.Stat(fallback); err != nil {
			return config.Default(), "", nil
		}
		path = fallback
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// applyStorageFlags lets --backend and --database override the config file.
func applyStorageFlags(cfg *config.Config, backend, database string) {
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if database == "" {
		return
	}
	if cfg.Storage.Backend == "postgres" {
		cfg.Storage.PostgresDSN = database
		return
	}
	cfg.Storage.DatabasePath = database
}
