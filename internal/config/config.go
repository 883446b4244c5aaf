package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTP        `json:"http"`
	Tester      Tester      `json:"tester"`
	Persistence Persistence `json:"persistence"`
	Events      Events      `json:"events"`
}

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type Database struct {
	Driver          DatabaseDriver `json:"driver"`
	Database        string         `json:"database"`
	Username        string         `json:"username"`
	Password        string         `json:"password"`
	Host            string         `json:"host"`
	Port            uint16         `json:"port"`
	ExtraParameters string         `json:"extra_parameters" yaml:"extra_parameters"`
}

type ScriptsDriver string

const (
	ScriptsDriverFilesystem ScriptsDriver = "filesystem"
	ScriptsDriverS3         ScriptsDriver = "s3"
)

type S3 struct {
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
}

// Scripts is where saved sandbox scripts live.
type Scripts struct {
	Driver    ScriptsDriver `json:"driver"`
	Directory string        `json:"directory"`
	S3        S3            `json:"s3"`
}

type Persistence struct {
	Database         Database      `json:"database"`
	Scripts          Scripts       `json:"scripts"`
	HistoryRetention time.Duration `json:"history_retention" yaml:"history_retention"`
}

type NATS struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

type Events struct {
	NATS NATS `json:"nats"`
}

type Sandbox struct {
	Enabled bool `json:"enabled"`
}

type Tester struct {
	DefaultEndpoint    string        `json:"default_endpoint" yaml:"default_endpoint"`
	Sandbox            Sandbox       `json:"sandbox"`
	SessionIdleTimeout time.Duration `json:"session_idle_timeout" yaml:"session_idle_timeout"`
}

type HTTPListener struct {
	IPV4Host string `json:"ipv4_host" yaml:"ipv4_host"`
	IPV6Host string `json:"ipv6_host" yaml:"ipv6_host"`
	Port     uint16 `json:"port"`
}

type Tracing struct {
	Enabled      bool   `json:"enabled"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

type PProf struct {
	Enabled bool `json:"enabled"`
}

type Metrics struct {
	HTTPListener `yaml:",inline"`
	Enabled      bool `json:"enabled"`
}

type HTTP struct {
	HTTPListener   `yaml:",inline"`
	Tracing        Tracing  `json:"tracing"`
	PProf          PProf    `json:"pprof"`
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
	Metrics        Metrics  `json:"metrics"`
	CORSHosts      []string `json:"cors_hosts" yaml:"cors_hosts"`
}

//nolint:golint,gochecknoglobals
var (
	ConfigFileKey               = "config"
	HTTPIPV4HostKey             = "http.ipv4_host"
	HTTPIPV6HostKey             = "http.ipv6_host"
	HTTPPortKey                 = "http.port"
	HTTPTracingEnabledKey       = "http.tracing.enabled"
	HTTPTracingOTLPEndKey       = "http.tracing.otlp_endpoint"
	HTTPPProfEnabledKey         = "http.pprof.enabled"
	HTTPTrustedProxiesKey       = "http.trusted_proxies"
	HTTPMetricsEnabledKey       = "http.metrics.enabled"
	HTTPMetricsIPV4HostKey      = "http.metrics.ipv4_host"
	HTTPMetricsIPV6HostKey      = "http.metrics.ipv6_host"
	HTTPMetricsPortKey          = "http.metrics.port"
	HTTPCORSHostsKey            = "http.cors_hosts"
	TesterDefaultEndpointKey    = "tester.default_endpoint"
	TesterSandboxEnabledKey     = "tester.sandbox.enabled"
	TesterSessionIdleTimeoutKey = "tester.session_idle_timeout"

	PersistenceDatabaseDriverKey          = "persistence.database.driver"
	PersistenceDatabaseDatabaseKey        = "persistence.database.database"
	PersistenceDatabaseUsernameKey        = "persistence.database.username"
	PersistenceDatabasePasswordKey        = "persistence.database.password"
	PersistenceDatabaseHostKey            = "persistence.database.host"
	PersistenceDatabasePortKey            = "persistence.database.port"
	PersistenceDatabaseExtraParametersKey = "persistence.database.extra_parameters"
	PersistenceHistoryRetentionKey        = "persistence.history_retention"
	PersistenceScriptsDriverKey           = "persistence.scripts.driver"
	PersistenceScriptsDirectoryKey        = "persistence.scripts.directory"
	PersistenceScriptsS3RegionKey         = "persistence.scripts.s3.region"
	PersistenceScriptsS3BucketKey         = "persistence.scripts.s3.bucket"
	PersistenceScriptsS3EndpointKey       = "persistence.scripts.s3.endpoint"
	EventsNATSEnabledKey                  = "events.nats.enabled"
	EventsNATSURLKey                      = "events.nats.url"
	EventsNATSSubjectKey                  = "events.nats.subject"
)

const (
	DefaultConfigPath               = "config.yaml"
	DefaultHTTPIPV4Host             = "0.0.0.0"
	DefaultHTTPIPV6Host             = "::"
	DefaultHTTPPort                 = 8080
	DefaultHTTPMetricsIPV4Host      = "127.0.0.1"
	DefaultHTTPMetricsIPV6Host      = "::1"
	DefaultHTTPMetricsPort          = 8081
	DefaultTesterEndpoint           = "http://127.0.0.1:8545"
	DefaultTesterSandboxEnabled     = true
	DefaultTesterSessionIdleTimeout = 30 * time.Minute

	DefaultPersistenceDatabaseDriver   = DatabaseDriverSQLite
	DefaultPersistenceDatabaseDatabase = "rpc-tester.db"
	DefaultPersistenceHistoryRetention = 7 * 24 * time.Hour
	DefaultPersistenceScriptsDriver    = ScriptsDriverFilesystem
	DefaultPersistenceScriptsDirectory = "scripts/"
	DefaultEventsNATSURL               = "nats://127.0.0.1:4222"
	DefaultEventsNATSSubject           = "rpc-tester.events"
)

func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(ConfigFileKey, "c", DefaultConfigPath, "Config file path")
	cmd.Flags().String(HTTPIPV4HostKey, DefaultHTTPIPV4Host, "HTTP server IPv4 host")
	cmd.Flags().String(HTTPIPV6HostKey, DefaultHTTPIPV6Host, "HTTP server IPv6 host")
	cmd.Flags().Uint16(HTTPPortKey, DefaultHTTPPort, "HTTP server port")
	cmd.Flags().Bool(HTTPTracingEnabledKey, false, "Enable Open Telemetry tracing")
	cmd.Flags().String(HTTPTracingOTLPEndKey, "", "Open Telemetry endpoint")
	cmd.Flags().Bool(HTTPPProfEnabledKey, false, "Enable pprof")
	cmd.Flags().StringSlice(HTTPTrustedProxiesKey, []string{}, "Comma-separated list of trusted proxies")
	cmd.Flags().Bool(HTTPMetricsEnabledKey, false, "Enable metrics server")
	cmd.Flags().String(HTTPMetricsIPV4HostKey, DefaultHTTPMetricsIPV4Host, "Metrics server IPv4 host")
	cmd.Flags().String(HTTPMetricsIPV6HostKey, DefaultHTTPMetricsIPV6Host, "Metrics server IPv6 host")
	cmd.Flags().Uint16(HTTPMetricsPortKey, DefaultHTTPMetricsPort, "Metrics server port")
	cmd.Flags().StringSlice(HTTPCORSHostsKey, []string{}, "Comma-separated list of CORS hosts")
	cmd.Flags().String(PersistenceDatabaseDriverKey, string(DefaultPersistenceDatabaseDriver), "Database driver (sqlite, mysql or postgres)")
	cmd.Flags().String(PersistenceDatabaseDatabaseKey, DefaultPersistenceDatabaseDatabase, "Database name, or file path for sqlite")
	cmd.Flags().String(PersistenceDatabaseUsernameKey, "", "Database username")
	cmd.Flags().String(PersistenceDatabasePasswordKey, "", "Database password")
	cmd.Flags().String(PersistenceDatabaseHostKey, "", "Database host")
	cmd.Flags().Uint16(PersistenceDatabasePortKey, 0, "Database port")
	cmd.Flags().String(PersistenceDatabaseExtraParametersKey, "", "Database extra parameters")
	cmd.Flags().Duration(PersistenceHistoryRetentionKey, DefaultPersistenceHistoryRetention, "Delete request history older than this")
	cmd.Flags().String(PersistenceScriptsDriverKey, string(DefaultPersistenceScriptsDriver), "Saved script storage (filesystem or s3)")
	cmd.Flags().String(PersistenceScriptsDirectoryKey, DefaultPersistenceScriptsDirectory, "Saved script directory")
	cmd.Flags().String(PersistenceScriptsS3RegionKey, "", "Saved script S3 region")
	cmd.Flags().String(PersistenceScriptsS3BucketKey, "", "Saved script S3 bucket")
	cmd.Flags().String(PersistenceScriptsS3EndpointKey, "", "Saved script S3 endpoint, for S3 compatible stores")
	cmd.Flags().Bool(EventsNATSEnabledKey, false, "Forward session events to NATS")
	cmd.Flags().String(EventsNATSURLKey, DefaultEventsNATSURL, "NATS server URL")
	cmd.Flags().String(EventsNATSSubjectKey, DefaultEventsNATSSubject, "NATS subject prefix for session events")
	RegisterTesterFlags(cmd)
}

// RegisterTesterFlags registers the flags shared by the server and the
// one-shot commands.
func RegisterTesterFlags(cmd *cobra.Command) {
	cmd.Flags().String(TesterDefaultEndpointKey, DefaultTesterEndpoint, "Endpoint a session starts with and resets to")
	cmd.Flags().Bool(TesterSandboxEnabledKey, DefaultTesterSandboxEnabled, "Enable the live sandbox")
	cmd.Flags().Duration(TesterSessionIdleTimeoutKey, DefaultTesterSessionIdleTimeout, "Close sessions idle for longer than this")
}

var (
	ErrOTLPEndpointRequired    = errors.New("OTLP endpoint is required when tracing is enabled")
	ErrDefaultEndpointRequired = errors.New("Default endpoint is required")
	ErrDefaultEndpointInvalid  = errors.New("Default endpoint must be an http or https URL")
	ErrIdleTimeoutInvalid      = errors.New("Session idle timeout must be positive")
	ErrPortConflict            = errors.New("HTTP and metrics ports must differ")
	ErrDatabaseDriverInvalid   = errors.New("Database driver must be sqlite, mysql or postgres")
	ErrDBHostRequired          = errors.New("Database host is required")
	ErrDBDatabaseRequired      = errors.New("Database name is required")
	ErrHistoryRetentionInvalid = errors.New("History retention must be positive")
	ErrScriptsDriverInvalid    = errors.New("Scripts driver must be filesystem or s3")
	ErrScriptsDirRequired      = errors.New("Scripts directory is required")
	ErrS3BucketRequired        = errors.New("S3 bucket is required")
	ErrNATSURLRequired         = errors.New("NATS URL is required when event forwarding is enabled")
	ErrNATSSubjectRequired     = errors.New("NATS subject is required when event forwarding is enabled")
)

func (c *Config) Validate() error {
	if c.HTTP.Tracing.Enabled && c.HTTP.Tracing.OTLPEndpoint == "" {
		return ErrOTLPEndpointRequired
	}
	if c.HTTP.Metrics.Enabled && c.HTTP.Metrics.Port == c.HTTP.Port {
		return ErrPortConflict
	}
	if c.Tester.DefaultEndpoint == "" {
		return ErrDefaultEndpointRequired
	}
	u, err := url.Parse(c.Tester.DefaultEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrDefaultEndpointInvalid
	}
	if c.Tester.SessionIdleTimeout <= 0 {
		return ErrIdleTimeoutInvalid
	}

	switch c.Persistence.Database.Driver {
	case DatabaseDriverSQLite:
	case DatabaseDriverMySQL, DatabaseDriverPostgres:
		if c.Persistence.Database.Host == "" {
			return ErrDBHostRequired
		}
	default:
		return ErrDatabaseDriverInvalid
	}
	if c.Persistence.Database.Database == "" {
		return ErrDBDatabaseRequired
	}
	if c.Persistence.HistoryRetention <= 0 {
		return ErrHistoryRetentionInvalid
	}

	switch c.Persistence.Scripts.Driver {
	case ScriptsDriverFilesystem:
		if c.Persistence.Scripts.Directory == "" {
			return ErrScriptsDirRequired
		}
	case ScriptsDriverS3:
		if c.Persistence.Scripts.S3.Bucket == "" {
			return ErrS3BucketRequired
		}
	default:
		return ErrScriptsDriverInvalid
	}

	if c.Events.NATS.Enabled {
		if c.Events.NATS.URL == "" {
			return ErrNATSURLRequired
		}
		if c.Events.NATS.Subject == "" {
			return ErrNATSSubjectRequired
		}
	}

	return nil
}

func LoadConfig(cmd *cobra.Command) (*Config, error) {
	var config Config
	config.Tester.Sandbox.Enabled = DefaultTesterSandboxEnabled

	// Load flags from envs
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if ctx.Err() != nil {
			return
		}
		optName := strings.ReplaceAll(strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"), ".", "__")
		if val, ok := os.LookupEnv(optName); !f.Changed && ok {
			if err := f.Value.Set(val); err != nil {
				cancel(err)
			}
			f.Changed = true
		}
	})
	if ctx.Err() != nil {
		return &config, fmt.Errorf("failed to load env: %w", context.Cause(ctx))
	}

	configPath, err := cmd.Flags().GetString(ConfigFileKey)
	if err != nil {
		return &config, fmt.Errorf("failed to get config path: %w", err)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &config, fmt.Errorf("failed to read config: %w", err)
		} else if err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				return &config, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	err = overrideFlags(&config, cmd)
	if err != nil {
		return &config, fmt.Errorf("failed to override flags: %w", err)
	}

	// Defaults
	if config.HTTP.IPV4Host == "" {
		config.HTTP.IPV4Host = DefaultHTTPIPV4Host
	}
	if config.HTTP.IPV6Host == "" {
		config.HTTP.IPV6Host = DefaultHTTPIPV6Host
	}
	if config.HTTP.Port == 0 {
		config.HTTP.Port = DefaultHTTPPort
	}
	if config.HTTP.Metrics.IPV4Host == "" {
		config.HTTP.Metrics.IPV4Host = DefaultHTTPMetricsIPV4Host
	}
	if config.HTTP.Metrics.IPV6Host == "" {
		config.HTTP.Metrics.IPV6Host = DefaultHTTPMetricsIPV6Host
	}
	if config.HTTP.Metrics.Port == 0 {
		config.HTTP.Metrics.Port = DefaultHTTPMetricsPort
	}
	if config.Tester.DefaultEndpoint == "" {
		config.Tester.DefaultEndpoint = DefaultTesterEndpoint
	}
	if config.Tester.SessionIdleTimeout == 0 {
		config.Tester.SessionIdleTimeout = DefaultTesterSessionIdleTimeout
	}
	if config.Persistence.Database.Driver == "" {
		config.Persistence.Database.Driver = DefaultPersistenceDatabaseDriver
	}
	if config.Persistence.Database.Database == "" {
		config.Persistence.Database.Database = DefaultPersistenceDatabaseDatabase
	}
	if config.Persistence.HistoryRetention == 0 {
		config.Persistence.HistoryRetention = DefaultPersistenceHistoryRetention
	}
	if config.Persistence.Scripts.Driver == "" {
		config.Persistence.Scripts.Driver = DefaultPersistenceScriptsDriver
	}
	if config.Persistence.Scripts.Directory == "" {
		config.Persistence.Scripts.Directory = DefaultPersistenceScriptsDirectory
	}
	if config.Events.NATS.URL == "" {
		config.Events.NATS.URL = DefaultEventsNATSURL
	}
	if config.Events.NATS.Subject == "" {
		config.Events.NATS.Subject = DefaultEventsNATSSubject
	}

	return &config, nil
}

// overrideFlags copies every flag the user set, by hand or through the
// environment, over the file values. Flags a command did not register are
// skipped so the one-shot commands can share this loader.
func overrideFlags(config *Config, cmd *cobra.Command) error {
	var err error
	changed := func(name string) bool {
		return cmd.Flags().Lookup(name) != nil && cmd.Flags().Changed(name)
	}

	if changed(HTTPIPV4HostKey) {
		config.HTTP.IPV4Host, err = cmd.Flags().GetString(HTTPIPV4HostKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP IPv4 host: %w", err)
		}
	}

	if changed(HTTPIPV6HostKey) {
		config.HTTP.IPV6Host, err = cmd.Flags().GetString(HTTPIPV6HostKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP IPv6 host: %w", err)
		}
	}

	if changed(HTTPPortKey) {
		config.HTTP.Port, err = cmd.Flags().GetUint16(HTTPPortKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP port: %w", err)
		}
	}

	if changed(HTTPPProfEnabledKey) {
		config.HTTP.PProf.Enabled, err = cmd.Flags().GetBool(HTTPPProfEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get pprof enabled: %w", err)
		}
	}

	if changed(HTTPTrustedProxiesKey) {
		config.HTTP.TrustedProxies, err = cmd.Flags().GetStringSlice(HTTPTrustedProxiesKey)
		if err != nil {
			return fmt.Errorf("failed to get trusted proxies: %w", err)
		}
	}

	if changed(HTTPMetricsEnabledKey) {
		config.HTTP.Metrics.Enabled, err = cmd.Flags().GetBool(HTTPMetricsEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics enabled: %w", err)
		}
	}

	if changed(HTTPMetricsIPV4HostKey) {
		config.HTTP.Metrics.IPV4Host, err = cmd.Flags().GetString(HTTPMetricsIPV4HostKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics IPv4 host: %w", err)
		}
	}

	if changed(HTTPMetricsIPV6HostKey) {
		config.HTTP.Metrics.IPV6Host, err = cmd.Flags().GetString(HTTPMetricsIPV6HostKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics IPv6 host: %w", err)
		}
	}

	if changed(HTTPMetricsPortKey) {
		config.HTTP.Metrics.Port, err = cmd.Flags().GetUint16(HTTPMetricsPortKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics port: %w", err)
		}
	}

	if changed(HTTPTracingEnabledKey) {
		config.HTTP.Tracing.Enabled, err = cmd.Flags().GetBool(HTTPTracingEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing enabled: %w", err)
		}
	}

	if changed(HTTPTracingOTLPEndKey) {
		config.HTTP.Tracing.OTLPEndpoint, err = cmd.Flags().GetString(HTTPTracingOTLPEndKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing OTLP endpoint: %w", err)
		}
	}

	if changed(HTTPCORSHostsKey) {
		config.HTTP.CORSHosts, err = cmd.Flags().GetStringSlice(HTTPCORSHostsKey)
		if err != nil {
			return fmt.Errorf("failed to get CORS hosts: %w", err)
		}
	}

	if changed(TesterDefaultEndpointKey) {
		config.Tester.DefaultEndpoint, err = cmd.Flags().GetString(TesterDefaultEndpointKey)
		if err != nil {
			return fmt.Errorf("failed to get default endpoint: %w", err)
		}
	}

	if changed(TesterSandboxEnabledKey) {
		config.Tester.Sandbox.Enabled, err = cmd.Flags().GetBool(TesterSandboxEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get sandbox enabled: %w", err)
		}
	}

	if changed(TesterSessionIdleTimeoutKey) {
		config.Tester.SessionIdleTimeout, err = cmd.Flags().GetDuration(TesterSessionIdleTimeoutKey)
		if err != nil {
			return fmt.Errorf("failed to get session idle timeout: %w", err)
		}
	}

	if changed(PersistenceDatabaseDriverKey) {
		driver, err := cmd.Flags().GetString(PersistenceDatabaseDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get database driver: %w", err)
		}
		config.Persistence.Database.Driver = DatabaseDriver(strings.ToLower(driver))
	}

	if changed(PersistenceDatabaseDatabaseKey) {
		config.Persistence.Database.Database, err = cmd.Flags().GetString(PersistenceDatabaseDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get database name: %w", err)
		}
	}

	if changed(PersistenceDatabaseUsernameKey) {
		config.Persistence.Database.Username, err = cmd.Flags().GetString(PersistenceDatabaseUsernameKey)
		if err != nil {
			return fmt.Errorf("failed to get database username: %w", err)
		}
	}

	if changed(PersistenceDatabasePasswordKey) {
		config.Persistence.Database.Password, err = cmd.Flags().GetString(PersistenceDatabasePasswordKey)
		if err != nil {
			return fmt.Errorf("failed to get database password: %w", err)
		}
	}

	if changed(PersistenceDatabaseHostKey) {
		config.Persistence.Database.Host, err = cmd.Flags().GetString(PersistenceDatabaseHostKey)
		if err != nil {
			return fmt.Errorf("failed to get database host: %w", err)
		}
	}

	if changed(PersistenceDatabasePortKey) {
		config.Persistence.Database.Port, err = cmd.Flags().GetUint16(PersistenceDatabasePortKey)
		if err != nil {
			return fmt.Errorf("failed to get database port: %w", err)
		}
	}

	if changed(PersistenceDatabaseExtraParametersKey) {
		config.Persistence.Database.ExtraParameters, err = cmd.Flags().GetString(PersistenceDatabaseExtraParametersKey)
		if err != nil {
			return fmt.Errorf("failed to get database extra parameters: %w", err)
		}
	}

	if changed(PersistenceHistoryRetentionKey) {
		config.Persistence.HistoryRetention, err = cmd.Flags().GetDuration(PersistenceHistoryRetentionKey)
		if err != nil {
			return fmt.Errorf("failed to get history retention: %w", err)
		}
	}

	if changed(PersistenceScriptsDriverKey) {
		driver, err := cmd.Flags().GetString(PersistenceScriptsDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get scripts driver: %w", err)
		}
		config.Persistence.Scripts.Driver = ScriptsDriver(strings.ToLower(driver))
	}

	if changed(PersistenceScriptsDirectoryKey) {
		config.Persistence.Scripts.Directory, err = cmd.Flags().GetString(PersistenceScriptsDirectoryKey)
		if err != nil {
			return fmt.Errorf("failed to get scripts directory: %w", err)
		}
	}

	if changed(PersistenceScriptsS3RegionKey) {
		config.Persistence.Scripts.S3.Region, err = cmd.Flags().GetString(PersistenceScriptsS3RegionKey)
		if err != nil {
			return fmt.Errorf("failed to get scripts S3 region: %w", err)
		}
	}

	if changed(PersistenceScriptsS3BucketKey) {
		config.Persistence.Scripts.S3.Bucket, err = cmd.Flags().GetString(PersistenceScriptsS3BucketKey)
		if err != nil {
			return fmt.Errorf("failed to get scripts S3 bucket: %w", err)
		}
	}

	if changed(PersistenceScriptsS3EndpointKey) {
		config.Persistence.Scripts.S3.Endpoint, err = cmd.Flags().GetString(PersistenceScriptsS3EndpointKey)
		if err != nil {
			return fmt.Errorf("failed to get scripts S3 endpoint: %w", err)
		}
	}

	if changed(EventsNATSEnabledKey) {
		config.Events.NATS.Enabled, err = cmd.Flags().GetBool(EventsNATSEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS enabled: %w", err)
		}
	}

	if changed(EventsNATSURLKey) {
		config.Events.NATS.URL, err = cmd.Flags().GetString(EventsNATSURLKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS URL: %w", err)
		}
	}

	if changed(EventsNATSSubjectKey) {
		config.Events.NATS.Subject, err = cmd.Flags().GetString(EventsNATSSubjectKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS subject: %w", err)
		}
	}

	return nil
}
