package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/internal/config"
	"github.com/matzehuels/planbridge/internal/connect"
	"github.com/matzehuels/planbridge/pkg/archive"
	"github.com/matzehuels/planbridge/pkg/buildinfo"
	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "planbridge"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Planbridge connects ProductBoard planning with Azure DevOps",
		Long: `Planbridge builds planning hierarchies from ProductBoard and workspace stories,
moves workspaces between environments as validated snapshots, and syncs
ProductBoard features into Azure DevOps work items.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/planbridge/config.toml)")

	root.AddCommand(c.hierarchyCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.workspacesCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	c.registerCompletions(root)

	return root
}

// =============================================================================
// Environment
// =============================================================================

// config loads the configuration once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// openRepo connects to the configured Postgres database, applying
// migrations first when the config asks for it.
func (c *CLI) openRepo(ctx context.Context) (*store.PostgresStore, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"no database configured (set PLANBRIDGE_DATABASE_URL or [database] url in the config file)")
	}
	repo, err := store.OpenPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Database.MigrateAtStart {
		if err := store.ApplyMigrations(ctx, repo.DB(), store.Migrations()); err != nil {
			repo.Close()
			return nil, err
		}
		c.Logger.Debug("migrations applied")
	}
	return repo, nil
}

// openCache returns the response cache: Redis when configured, otherwise a
// file cache under the cache directory.
func (c *CLI) openCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// openArchive connects to the configured snapshot archive.
func (c *CLI) openArchive(ctx context.Context) (archive.Archive, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Mongo.URI == "" {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"no snapshot archive configured (set PLANBRIDGE_MONGO_URI or [mongo] uri in the config file)")
	}
	m, err := archive.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// newConnector builds a connector reading credentials from the local
// credential store.
func (c *CLI) newConnector(ctx context.Context, noCache bool) (*connect.Connector, func(), error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	creds, err := session.NewFileStore("")
	if err != nil {
		return nil, nil, err
	}
	backend, err := c.openCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}
	conn := &connect.Connector{Credentials: creds, Cache: backend, Config: cfg, Logger: c.Logger}
	return conn, func() { backend.Close() }, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/planbridge/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
