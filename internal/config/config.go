// Package config loads planbridge settings from a TOML file and the
// environment.
//
// Values are resolved in order: built-in defaults, then the config file,
// then environment variables. A missing config file is not an error.
//
// Example config.toml:
//
//	[database]
//	url = "postgres://planbridge@localhost:5432/planbridge?sslmode=disable"
//	migrate_at_start = true
//
//	[azure_devops]
//	organization = "contoso"
//	project = "Shop"
//
//	[cache]
//	ttl = "30m"
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/integrations/productboard"
)

const appName = "planbridge"

// Config holds every setting of the CLI and the API server.
type Config struct {
	Database     Database     `toml:"database"`
	Redis        Redis        `toml:"redis"`
	Mongo        Mongo        `toml:"mongo"`
	ProductBoard ProductBoard `toml:"productboard"`
	AzureDevOps  AzureDevOps  `toml:"azure_devops"`
	Server       Server       `toml:"server"`
	Cache        Cache        `toml:"cache"`
}

// Database configures the Postgres repository. An empty URL selects the
// in-memory repository.
type Database struct {
	URL            string `toml:"url"`
	MigrateAtStart bool   `toml:"migrate_at_start"`
}

// Redis configures the shared HTTP cache and the server credential store.
type Redis struct {
	URL    string `toml:"url"`
	Prefix string `toml:"prefix"`
}

// Mongo configures the snapshot archive. An empty URI disables archiving.
type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ProductBoard holds the default ProductBoard connection.
type ProductBoard struct {
	Token   string `toml:"token"`
	BaseURL string `toml:"base_url"`
}

// AzureDevOps holds the default Azure DevOps connection.
type AzureDevOps struct {
	Organization string `toml:"organization"`
	Project      string `toml:"project"`
	Token        string `toml:"token"`
	BaseURL      string `toml:"base_url"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string        `toml:"addr"`
	CORSOrigin      string        `toml:"cors_origin"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
}

// Cache configures response caching.
type Cache struct {
	TTL time.Duration `toml:"ttl"`
	Dir string        `toml:"dir"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Redis: Redis{Prefix: appName + ":cache:"},
		Mongo: Mongo{Database: appName, Collection: "snapshots"},
		ProductBoard: ProductBoard{
			BaseURL: productboard.DefaultBaseURL,
		},
		AzureDevOps: AzureDevOps{
			BaseURL: azuredevops.DefaultBaseURL,
		},
		Server: Server{
			Addr:            ":8787",
			CORSOrigin:      "*",
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Cache: Cache{TTL: 30 * time.Minute},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/planbridge/config.toml, falling back
// to ~/.config/planbridge/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config file at path (or [DefaultPath] when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve config path")
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		switch {
		case stderrors.Is(err, fs.ErrNotExist) && !explicit:
		case stderrors.Is(err, fs.ErrNotExist):
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "config file %s", path)
		default:
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config file %s", path)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults. It does not read the
// environment.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// envVars maps environment variables onto the settings they override.
var envVars = map[string]func(*Config, string){
	"PLANBRIDGE_DATABASE_URL": func(c *Config, v string) { c.Database.URL = v },
	"PLANBRIDGE_REDIS_URL":    func(c *Config, v string) { c.Redis.URL = v },
	"PLANBRIDGE_MONGO_URI":    func(c *Config, v string) { c.Mongo.URI = v },
	"PLANBRIDGE_ADDR":         func(c *Config, v string) { c.Server.Addr = v },
	"PLANBRIDGE_CORS_ORIGIN":  func(c *Config, v string) { c.Server.CORSOrigin = v },
	"PRODUCTBOARD_TOKEN":      func(c *Config, v string) { c.ProductBoard.Token = v },
	"PRODUCTBOARD_BASE_URL":   func(c *Config, v string) { c.ProductBoard.BaseURL = v },
	"AZURE_DEVOPS_ORG":        func(c *Config, v string) { c.AzureDevOps.Organization = v },
	"AZURE_DEVOPS_PROJECT":    func(c *Config, v string) { c.AzureDevOps.Project = v },
	"AZURE_DEVOPS_TOKEN":      func(c *Config, v string) { c.AzureDevOps.Token = v },
	"AZURE_DEVOPS_BASE_URL":   func(c *Config, v string) { c.AzureDevOps.BaseURL = v },
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, set := range envVars {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			set(c, strings.TrimSpace(v))
		}
	}
}

// Validate checks that every configured value is usable.
func (c *Config) Validate() error {
	var problems []string
	check := func(field string, err error) {
		if err != nil {
			problems = append(problems, field+": "+errors.UserMessage(err))
		}
	}

	check("productboard.base_url", errors.ValidateURL(c.ProductBoard.BaseURL))
	check("azure_devops.base_url", errors.ValidateURL(c.AzureDevOps.BaseURL))
	if c.AzureDevOps.Organization != "" {
		check("azure_devops.organization", errors.ValidateOrganization(c.AzureDevOps.Organization))
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, "cache.ttl: must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout: must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "server.max_body_bytes: must be positive")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		problems = append(problems, "server.addr: required")
	}

	if len(problems) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid configuration: %d problem(s)", len(problems)).WithDetails(problems...)
	}
	return nil
}

// HasAzureDevOps reports whether a default Azure DevOps connection is set.
func (c *Config) HasAzureDevOps() bool {
	return c.AzureDevOps.Organization != "" && c.AzureDevOps.Project != "" && c.AzureDevOps.Token != ""
}
