// Package config loads the service configuration with viper: defaults, an
// optional YAML file and PONTOPO_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pontopology/internal/index"
	"pontopology/internal/topology"
)

const EnvPrefix = "PONTOPO"

type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Source   SourceConfig   `mapstructure:"source" yaml:"source"`
	SNMP     SNMPConfig     `mapstructure:"snmp" yaml:"snmp"`
	Topology TopologyConfig `mapstructure:"topology" yaml:"topology"`
	Refresh  RefreshConfig  `mapstructure:"refresh" yaml:"refresh"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Workdir  WorkdirConfig  `mapstructure:"workdir" yaml:"workdir"`
}

type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	// RefreshRate limits POST /api/topology/refresh, requests per second.
	RefreshRate  float64 `mapstructure:"refresh_rate" yaml:"refresh_rate"`
	RefreshBurst int     `mapstructure:"refresh_burst" yaml:"refresh_burst"`
	WebSocket    bool    `mapstructure:"websocket" yaml:"websocket"`
}

// Source kinds.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceRESTAPI  = "restapi"
)

type SourceConfig struct {
	Kind     string         `mapstructure:"kind" yaml:"kind"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	RESTAPI  RESTAPIConfig  `mapstructure:"restapi" yaml:"restapi"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type RESTAPIConfig struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	Token    string        `mapstructure:"token" yaml:"token"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
}

type SNMPConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Community   string        `mapstructure:"community" yaml:"community"`
	Version     string        `mapstructure:"version" yaml:"version"`
	Port        int           `mapstructure:"port" yaml:"port"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries     int           `mapstructure:"retries" yaml:"retries"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
}

type TopologyConfig struct {
	MaxOnuNodes            int       `mapstructure:"max_onu_nodes" yaml:"max_onu_nodes"`
	LayerSpacing           []float64 `mapstructure:"layer_spacing" yaml:"layer_spacing"`
	Baselines              []float64 `mapstructure:"baselines" yaml:"baselines"`
	Placeholder            string    `mapstructure:"placeholder" yaml:"placeholder"`
	CustomerPlaceholder    string    `mapstructure:"customer_placeholder" yaml:"customer_placeholder"`
	MaterializeCableRoutes bool      `mapstructure:"materialize_cable_routes" yaml:"materialize_cable_routes"`
	// ParentPolicy names the ODP to OLT resolution rule, see index.PolicyByName.
	ParentPolicy string `mapstructure:"parent_policy" yaml:"parent_policy"`
}

type RefreshConfig struct {
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
}

type WorkdirConfig struct {
	Path             string `mapstructure:"path" yaml:"path"`
	ArchiveSnapshots bool   `mapstructure:"archive_snapshots" yaml:"archive_snapshots"`
	Compress         bool   `mapstructure:"compress" yaml:"compress"`
}

func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pontopology")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.refresh_rate", 1.0)
	v.SetDefault("server.refresh_burst", 3)
	v.SetDefault("server.websocket", true)

	// -- Source --
	v.SetDefault("source.kind", SourceStatic)
	v.SetDefault("source.postgres.dsn", "")
	v.SetDefault("source.restapi.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("source.restapi.token", "")
	v.SetDefault("source.restapi.timeout", "10s")
	v.SetDefault("source.restapi.page_size", 100)

	// -- SNMP --
	v.SetDefault("snmp.enabled", false)
	v.SetDefault("snmp.community", "public")
	v.SetDefault("snmp.version", "2c")
	v.SetDefault("snmp.port", 161)
	v.SetDefault("snmp.timeout", "3s")
	v.SetDefault("snmp.retries", 1)
	v.SetDefault("snmp.concurrency", 8)

	// -- Topology --
	v.SetDefault("topology.max_onu_nodes", 20)
	v.SetDefault("topology.layer_spacing", []float64{250, 200, 150})
	v.SetDefault("topology.baselines", []float64{0, 200, 400})
	v.SetDefault("topology.placeholder", "-")
	v.SetDefault("topology.customer_placeholder", "No Customer")
	v.SetDefault("topology.materialize_cable_routes", false)
	v.SetDefault("topology.parent_policy", index.PolicyFirstOLTFallback)

	// -- Refresh --
	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("refresh.fetch_timeout", "10s")

	// -- Auth --
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")

	// -- Workdir --
	v.SetDefault("workdir.path", "")
	v.SetDefault("workdir.archive_snapshots", false)
	v.SetDefault("workdir.compress", false)
}

// Bind wires env overrides: PONTOPO_SOURCE_POSTGRES_DSN and so on.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// secrets are usually injected through the environment only
	_ = v.BindEnv("auth.secret", EnvPrefix+"_AUTH_SECRET")
	_ = v.BindEnv("source.restapi.token", EnvPrefix+"_SOURCE_RESTAPI_TOKEN")
	_ = v.BindEnv("source.postgres.dsn", EnvPrefix+"_SOURCE_POSTGRES_DSN", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case SourceStatic:
	case SourcePostgres:
		if c.Source.Postgres.DSN == "" {
			errs = append(errs, errors.New("source.postgres.dsn is required for the postgres source"))
		}
	case SourceRESTAPI:
		if c.Source.RESTAPI.BaseURL == "" {
			errs = append(errs, errors.New("source.restapi.base_url is required for the restapi source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not one of static, postgres, restapi", c.Source.Kind))
	}
	if c.Topology.MaxOnuNodes < 0 {
		errs = append(errs, errors.New("topology.max_onu_nodes must not be negative"))
	}
	if len(c.Topology.LayerSpacing) != 3 {
		errs = append(errs, errors.New("topology.layer_spacing needs exactly 3 values"))
	}
	if len(c.Topology.Baselines) != 3 {
		errs = append(errs, errors.New("topology.baselines needs exactly 3 values"))
	}
	if _, ok := index.PolicyByName(c.Topology.ParentPolicy); !ok {
		errs = append(errs, fmt.Errorf("topology.parent_policy %q is unknown", c.Topology.ParentPolicy))
	}
	if c.Refresh.FetchTimeout <= 0 {
		errs = append(errs, errors.New("refresh.fetch_timeout must be positive"))
	}
	if c.Refresh.Interval < 0 {
		errs = append(errs, errors.New("refresh.interval must not be negative"))
	}
	if c.Auth.Enabled && len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must be at least 32 characters when auth is enabled"))
	}
	if c.SNMP.Enabled && c.SNMP.Concurrency <= 0 {
		errs = append(errs, errors.New("snmp.concurrency must be a positive integer"))
	}
	return errors.Join(errs...)
}

// Options converts the topology section to assembler options.
func (t TopologyConfig) Options() topology.Options {
	o := topology.DefaultOptions()
	o.MaxOnuNodes = t.MaxOnuNodes
	copy(o.LayerSpacing[:], t.LayerSpacing)
	copy(o.Baselines[:], t.Baselines)
	if t.Placeholder != "" {
		o.Placeholder = t.Placeholder
	}
	if t.CustomerPlaceholder != "" {
		o.CustomerPlaceholder = t.CustomerPlaceholder
	}
	o.MaterializeCableRoutes = t.MaterializeCableRoutes
	return o
}

// Policy returns the configured parent policy, falling back to the default
// for unknown names (Validate rejects those).
func (t TopologyConfig) Policy() index.ParentPolicy {
	p, ok := index.PolicyByName(t.ParentPolicy)
	if !ok {
		return index.FirstOLTFallback{}
	}
	return p
}
