package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for emistr-mcp.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (the database password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config
	// DebugEndpoints mounts /debug/anonymization. Refused in production.
	DebugEndpoints bool `yaml:"debug_endpoints" env:"DEBUG_ENDPOINTS"`

	Database      DatabaseConfig      `yaml:"database"`
	Anonymization AnonymizationConfig `yaml:"anonymization"`
	Limits        LimitsConfig        `yaml:"limits"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// DatabaseConfig describes the eMISTR production database. The connection
// is only ever used for reads.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"3306"`
	User     string `yaml:"user" env:"DB_USER" env-default:"root"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DB_NAME" env-default:"sud_utf8_aaa"`
	Schema   string `yaml:"schema" env:"DB_SCHEMA" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path" env:"DB_PATH" env-default:""`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	// AcquireTimeout bounds waiting for a pooled connection.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"DB_ACQUIRE_TIMEOUT" env-default:"10s"`
	// QueryTimeout bounds a whole operation, all of its queries included.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"DB_QUERY_TIMEOUT" env-default:"30s"`
}

// AnonymizationConfig controls pseudonymization of personal data.
// Enabled defaults to true in Load rather than through env-default: cleanenv
// applies env-default to every zero value, which would turn an explicit
// `enabled: false` back on.
type AnonymizationConfig struct {
	Enabled bool `yaml:"enabled" env:"ANONYMIZATION_ENABLED"`
}

// LimitsConfig bounds the size of list results.
type LimitsConfig struct {
	MaxQueryResults int `yaml:"max_query_results" env:"MAX_QUERY_RESULTS" env-default:"1000"`
	DefaultPageSize int `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE" env-default:"50"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// TracingConfig selects where invocation spans go. "none" still records
// spans, so trace ids appear in the logs, but exports nothing; "log" writes
// every finished span to the logger at debug level.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" env:"TRACING_EXPORTER" env-default:"none"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

// TracingExporters are the accepted tracing.exporter values.
var TracingExporters = []string{"none", "log"}

// Flags are the command line options of the server binary.
type Flags struct {
	ConfigPath  string
	ShowVersion bool
	PrintConfig bool
	// explicit is true when --config was given on the command line.
	explicit bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	flags := pflag.NewFlagSet("emistr-mcp", pflag.ContinueOnError)
	flags.StringVarP(&f.ConfigPath, "config", "c", DefaultConfigPath, "path to the YAML configuration file")
	flags.BoolVar(&f.ShowVersion, "version", false, "print the version and exit")
	flags.BoolVar(&f.PrintConfig, "print-config", false, "print the effective configuration as YAML and exit")
	if err := flags.Parse(args); err != nil {
		return Flags{}, err
	}
	f.explicit = flags.Changed("config")
	return f, nil
}

// Load reads configuration from the YAML file at f.ConfigPath with
// environment variable overrides. A missing default config file is not an
// error: configuration then comes from the environment alone. A missing file
// named explicitly with --config is.
func Load(f Flags, version string) (*Config, error) {
	cfg := &Config{
		Version:       version,
		Anonymization: AnonymizationConfig{Enabled: true},
	}

	path := f.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	err := cleanenv.ReadConfig(path, cfg)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !f.explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Database.Host = datasource.ResolveHostForDocker(cfg.Database.Host)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that defaults and env parsing cannot. The
// driver must name a dialect registered with the datasource package, so the
// dialect packages have to be imported before Validate runs.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if !datasource.IsRegistered(c.Database.Driver) {
		names := make([]string, 0, 4)
		for _, info := range datasource.RegisteredDialects() {
			names = append(names, info.Name)
		}
		return fmt.Errorf("unsupported database driver %q (available: %s)", c.Database.Driver, strings.Join(names, ", "))
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return errors.New("database.path is required for the sqlite driver")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must not be negative, got %d", c.Database.MaxIdleConns)
	}
	if c.Database.AcquireTimeout <= 0 || c.Database.QueryTimeout <= 0 {
		return errors.New("database timeouts must be positive")
	}
	if c.Limits.MaxQueryResults <= 0 {
		return fmt.Errorf("limits.max_query_results must be positive, got %d", c.Limits.MaxQueryResults)
	}
	if c.Limits.DefaultPageSize <= 0 {
		return fmt.Errorf("limits.default_page_size must be positive, got %d", c.Limits.DefaultPageSize)
	}
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if !slices.Contains(TracingExporters, c.Tracing.Exporter) {
		return fmt.Errorf("unsupported tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}
	if c.DebugEndpoints && c.Env == "production" {
		return errors.New("debug_endpoints must not be enabled in production")
	}
	return nil
}

// YAML renders the effective configuration. Secrets are not included.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	return out, nil
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// ToDatasource converts the database section into the pool configuration.
func (c *DatabaseConfig) ToDatasource() datasource.Config {
	return datasource.Config{
		Driver:          c.Driver,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		Schema:          c.Schema,
		SSLMode:         c.SSLMode,
		Path:            c.Path,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		AcquireTimeout:  c.AcquireTimeout,
		QueryTimeout:    c.QueryTimeout,
	}
}
