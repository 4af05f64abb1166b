// Package config loads the fedsql configuration file.
//
// A config names the connections the executor may target and the defaults
// each run starts from. Values come from, in increasing priority: built-in
// defaults, the YAML file, and FEDSQL_* environment variables (for example
// FEDSQL_EXECUTOR_TIMEOUT=5s). Connection DSNs may reference ${VARS}, which
// are resolved from the process environment first and then from .env and
// .env.local next to the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
)

// AppFs is the filesystem configs are read from. Tests swap in
// afero.NewMemMapFs().
var AppFs = afero.NewOsFs()

// FileName is the config file searched for when no path is given.
const FileName = "fedsql"

// Config is the top-level configuration.
type Config struct {
	Executor    Executor     `mapstructure:"executor" yaml:"executor"`
	Connections []Connection `mapstructure:"connections" yaml:"connections"`

	// History is the default SQLite history database. Empty disables it.
	History string `mapstructure:"history" yaml:"history,omitempty"`

	// Path is the file the config was read from, empty when none was found.
	Path string `mapstructure:"-" yaml:"-"`
}

// Executor holds per-run defaults.
type Executor struct {
	Dialect                  string        `mapstructure:"dialect" yaml:"dialect"`
	Timeout                  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	AddProvenance            bool          `mapstructure:"add_provenance" yaml:"add_provenance"`
	MaxConcurrentConnections int           `mapstructure:"max_concurrent_connections" yaml:"max_concurrent_connections"`
	MaxResultRows            int           `mapstructure:"max_result_rows" yaml:"max_result_rows"`
}

// Connection is one configured database.
type Connection struct {
	ID   string `mapstructure:"id" yaml:"id"`
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// Load reads the config at path, or searches ./fedsql.yaml and
// ~/.config/fedsql/fedsql.yaml when path is empty. A missing file is only
// an error when path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("FEDSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fedsql"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	dir := "."
	if cfg.Path != "" {
		dir = filepath.Dir(cfg.Path)
	}
	dotenv, err := loadDotenv(dir)
	if err != nil {
		return nil, err
	}

	for i := range cfg.Connections {
		c := &cfg.Connections[i]
		c.DSN = expand(c.DSN, dotenv)
		if c.Name == "" {
			c.Name = c.ID
		}
		if d, err := queryir.ParseDialect(c.Type); err == nil {
			c.Type = string(d)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("executor.dialect", string(queryir.Postgres))
	v.SetDefault("executor.timeout", federation.DefaultTimeout)
	v.SetDefault("executor.add_provenance", true)
	v.SetDefault("executor.max_concurrent_connections", 0)
	v.SetDefault("executor.max_result_rows", 0)
	v.SetDefault("history", "")
}

// loadDotenv parses .env then .env.local in dir; later files win.
// The process environment is left untouched.
func loadDotenv(dir string) (map[string]string, error) {
	values := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		f, err := AppFs.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		parsed, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for k, val := range parsed {
			values[k] = val
		}
	}
	return values, nil
}

// expand resolves ${VAR} and $VAR, preferring the process environment.
func expand(s string, dotenv map[string]string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return dotenv[key]
	})
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := queryir.ParseDialect(c.Executor.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("executor.dialect: %w", err))
	}
	if c.Executor.Timeout < 0 {
		errs = append(errs, fmt.Errorf("executor.timeout: must not be negative"))
	}
	if c.Executor.MaxConcurrentConnections < 0 {
		errs = append(errs, fmt.Errorf("executor.max_concurrent_connections: must not be negative"))
	}
	if c.Executor.MaxResultRows < 0 {
		errs = append(errs, fmt.Errorf("executor.max_result_rows: must not be negative"))
	}

	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		if conn.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id: required", field))
		} else if seen[conn.ID] {
			errs = append(errs, fmt.Errorf("%s.id: duplicate id %q", field, conn.ID))
		}
		seen[conn.ID] = true

		if _, err := queryir.ParseDialect(conn.Type); err != nil {
			errs = append(errs, fmt.Errorf("%s.type: %w", field, err))
		}
	}

	return errors.Join(errs...)
}

// Connection returns the connection with the given ID.
func (c *Config) Connection(id string) (Connection, bool) {
	for _, conn := range c.Connections {
		if conn.ID == id {
			return conn, true
		}
	}
	return Connection{}, false
}

// ConnectionIDs returns every configured ID in file order.
func (c *Config) ConnectionIDs() []string {
	ids := make([]string, len(c.Connections))
	for i, conn := range c.Connections {
		ids[i] = conn.ID
	}
	return ids
}

// QueryOptions converts the executor defaults to federation options.
// The dialect must already have passed Validate.
func (e Executor) QueryOptions() []federation.QueryOption {
	dialect, _ := queryir.ParseDialect(e.Dialect)
	return []federation.QueryOption{
		federation.WithDialect(dialect),
		federation.WithTimeout(e.Timeout),
		federation.WithProvenance(e.AddProvenance),
		federation.WithMaxConcurrency(e.MaxConcurrentConnections),
		federation.WithMaxRows(e.MaxResultRows),
	}
}
