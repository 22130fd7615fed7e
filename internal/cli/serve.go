package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/internal/config"
	"github.com/matzehuels/planbridge/internal/connect"
	"github.com/matzehuels/planbridge/internal/server"
	"github.com/matzehuels/planbridge/pkg/archive"
	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr   string // listen address, overrides the config
	memory bool   // keep workspaces in memory instead of Postgres
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the planbridge HTTP API.

Workspaces are stored in Postgres. With Redis configured, credentials and
cached ProductBoard responses are shared between instances; otherwise they
live on local disk. With Mongo configured, exports are archived there;
otherwise the archive is kept in memory.

--memory replaces Postgres with an in-memory store, which is useful for
trying out imports and hierarchies without a database.`,
		Example: `  planbridge serve
  planbridge serve --memory --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8787)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep workspaces in memory instead of Postgres")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	var repo store.Repository
	if opts.memory {
		repo = store.NewMemoryStore()
		c.Logger.Warn("using in-memory store, data is lost on exit")
	} else {
		pg, err := c.openRepo(ctx)
		if err != nil {
			return err
		}
		repo = pg
	}
	defer repo.Close()

	backend, creds, err := c.serverState(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var arch archive.Archive = archive.NewMemory()
	if cfg.Mongo.URI != "" {
		if arch, err = c.openArchive(ctx); err != nil {
			return err
		}
	} else {
		c.Logger.Info("no mongo configured, snapshot archive kept in memory")
	}
	defer arch.Close(context.WithoutCancel(ctx))

	srv := server.New(server.Options{
		Repo:         repo,
		Archive:      arch,
		Credentials:  creds,
		Connector:    &connect.Connector{Credentials: creds, Cache: backend, Config: cfg, Logger: c.Logger},
		Logger:       c.Logger,
		CORSOrigin:   cfg.Server.CORSOrigin,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

// serverState returns the response cache and credential store. Both share
// one Redis client when Redis is configured; closing the cache closes it.
func (c *CLI) serverState(ctx context.Context, cfg *config.Config) (cache.Cache, session.Store, error) {
	if cfg.Redis.URL == "" {
		creds, err := session.NewFileStore("")
		if err != nil {
			return nil, nil, err
		}
		backend, err := c.openCache(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		return backend, creds, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	c.Logger.Info("using redis for cache and credentials")
	return cache.NewRedisCacheFromClient(client, cfg.Redis.Prefix), session.NewRedisStore(client, ""), nil
}
