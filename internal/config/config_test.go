package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/USA-RedDragon/rpc-tester/cmd"
	"github.com/USA-RedDragon/rpc-tester/internal/config"
)

func TestExampleConfig(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "../../config.example.yaml"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.HTTP.Port != 8080 {
		t.Errorf("unexpected HTTP port: %d", testConfig.HTTP.Port)
	}
	if !testConfig.HTTP.Metrics.Enabled || testConfig.HTTP.Metrics.Port != 8081 {
		t.Errorf("unexpected metrics config: %+v", testConfig.HTTP.Metrics)
	}
	if testConfig.Tester.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("unexpected idle timeout: %v", testConfig.Tester.SessionIdleTimeout)
	}
	if len(testConfig.HTTP.CORSHosts) != 1 {
		t.Errorf("unexpected CORS hosts: %v", testConfig.HTTP.CORSHosts)
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", ""})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Tester.DefaultEndpoint != config.DefaultTesterEndpoint {
		t.Errorf("unexpected default endpoint: %s", testConfig.Tester.DefaultEndpoint)
	}
	if !testConfig.Tester.Sandbox.Enabled {
		t.Error("sandbox should be enabled by default")
	}
	if testConfig.Tester.SessionIdleTimeout != config.DefaultTesterSessionIdleTimeout {
		t.Errorf("unexpected idle timeout: %v", testConfig.Tester.SessionIdleTimeout)
	}
	if testConfig.Persistence.Database.Driver != config.DatabaseDriverSQLite {
		t.Errorf("unexpected database driver: %s", testConfig.Persistence.Database.Driver)
	}
	if testConfig.Persistence.Database.Database != config.DefaultPersistenceDatabaseDatabase {
		t.Errorf("unexpected database: %s", testConfig.Persistence.Database.Database)
	}
	if testConfig.Persistence.HistoryRetention != config.DefaultPersistenceHistoryRetention {
		t.Errorf("unexpected history retention: %v", testConfig.Persistence.HistoryRetention)
	}
	if testConfig.Persistence.Scripts.Driver != config.ScriptsDriverFilesystem {
		t.Errorf("unexpected scripts driver: %s", testConfig.Persistence.Scripts.Driver)
	}
	if testConfig.Events.NATS.Enabled {
		t.Error("NATS forwarding should be disabled by default")
	}
	if testConfig.Events.NATS.Subject != config.DefaultEventsNATSSubject {
		t.Errorf("unexpected NATS subject: %s", testConfig.Events.NATS.Subject)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("tester:\n  default_endpoint: http://file:8545\n  sandbox:\n    enabled: false\n"), 0600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err = cmd.ParseFlags([]string{"--config", path})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Tester.DefaultEndpoint != "http://file:8545" {
		t.Errorf("unexpected default endpoint: %s", testConfig.Tester.DefaultEndpoint)
	}
	if testConfig.Tester.Sandbox.Enabled {
		t.Error("sandbox should be disabled by the file")
	}

	err = cmd.ParseFlags([]string{"--config", path, "--tester.default_endpoint", "https://flag:443"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err = config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if testConfig.Tester.DefaultEndpoint != "https://flag:443" {
		t.Errorf("unexpected default endpoint: %s", testConfig.Tester.DefaultEndpoint)
	}
}

func TestMissingOTLPEndpoint(t *testing.T) {
	t.Parallel()

	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "", "--http.tracing.enabled", "true"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); !errors.Is(err, config.ErrOTLPEndpointRequired) {
		t.Errorf("unexpected error: %v", err)
	}

	err = cmd.ParseFlags([]string{"--http.tracing.enabled", "true", "--http.tracing.otlp_endpoint", "dummy"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err = config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInvalidDefaultEndpoint(t *testing.T) {
	t.Parallel()
	for _, endpoint := range []string{"ftp://node:21", "not a url", "http://"} {
		cmd := cmd.NewCommand("testing", "deadbeef")
		cmd.SetContext(context.Background())
		err := cmd.ParseFlags([]string{"--config", "", "--tester.default_endpoint", endpoint})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		testConfig, err := config.LoadConfig(cmd)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := testConfig.Validate(); !errors.Is(err, config.ErrDefaultEndpointInvalid) {
			t.Errorf("unexpected error for %q: %v", endpoint, err)
		}
	}
}

func TestPortConflict(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "", "--http.metrics.enabled", "true", "--http.port", "9000", "--http.metrics.port", "9000"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); !errors.Is(err, config.ErrPortConflict) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNonPositiveIdleTimeout(t *testing.T) {
	t.Parallel()
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	err := cmd.ParseFlags([]string{"--config", "", "--tester.session_idle_timeout", "-1s"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	testConfig, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := testConfig.Validate(); !errors.Is(err, config.ErrIdleTimeoutInvalid) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPersistenceValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		args []string
		want error
	}{
		{[]string{"--persistence.database.driver", "oracle"}, config.ErrDatabaseDriverInvalid},
		{[]string{"--persistence.database.driver", "POSTGRES"}, config.ErrDBHostRequired},
		{[]string{"--persistence.database.driver", "mysql", "--persistence.database.host", "db"}, nil},
		{[]string{"--persistence.history_retention", "-1h"}, config.ErrHistoryRetentionInvalid},
		{[]string{"--persistence.scripts.driver", "ftp"}, config.ErrScriptsDriverInvalid},
		{[]string{"--persistence.scripts.driver", "s3"}, config.ErrS3BucketRequired},
		{[]string{"--persistence.scripts.driver", "s3", "--persistence.scripts.s3.bucket", "scripts"}, nil},
		{[]string{"--events.nats.enabled", "true", "--events.nats.subject", ""}, nil},
	}
	for _, tc := range cases {
		cmd := cmd.NewCommand("testing", "deadbeef")
		cmd.SetContext(context.Background())
		err := cmd.ParseFlags(append([]string{"--config", ""}, tc.args...))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		testConfig, err := config.LoadConfig(cmd)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		err = testConfig.Validate()
		if tc.want == nil && err != nil {
			t.Errorf("unexpected error for %v: %v", tc.args, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("expected %v for %v, got %v", tc.want, tc.args, err)
		}
	}
}

// Parallel tests are not allowed with t.Setenv
//
//nolint:golint,paralleltest
func TestEnvConfig(t *testing.T) {
	cmd := cmd.NewCommand("testing", "deadbeef")
	cmd.SetContext(context.Background())
	t.Setenv("CONFIG", "")
	t.Setenv("HTTP__PORT", "8087")
	t.Setenv("HTTP__METRICS__PORT", "8088")
	t.Setenv("HTTP__METRICS__IPV4_HOST", "0.0.0.0")
	t.Setenv("HTTP__METRICS__IPV6_HOST", "::0")
	t.Setenv("HTTP__IPV4_HOST", "127.0.0.1")
	t.Setenv("HTTP__IPV6_HOST", "::1")
	t.Setenv("HTTP__PPROF__ENABLED", "true")
	t.Setenv("HTTP__TRUSTED_PROXIES", "127.0.0.1,127.0.0.2")
	t.Setenv("HTTP__METRICS__ENABLED", "true")
	t.Setenv("HTTP__TRACING__ENABLED", "true")
	t.Setenv("HTTP__TRACING__OTLP_ENDPOINT", "http://localhost:4317")
	t.Setenv("HTTP__CORS_HOSTS", "http://localhost:8080,http://localhost:8081")
	t.Setenv("TESTER__DEFAULT_ENDPOINT", "https://rpc.example.org")
	t.Setenv("TESTER__SANDBOX__ENABLED", "false")
	t.Setenv("TESTER__SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("PERSISTENCE__DATABASE__DRIVER", "postgres")
	t.Setenv("PERSISTENCE__DATABASE__HOST", "db.internal")
	t.Setenv("PERSISTENCE__DATABASE__PORT", "5433")
	t.Setenv("PERSISTENCE__SCRIPTS__DRIVER", "s3")
	t.Setenv("PERSISTENCE__SCRIPTS__S3__BUCKET", "scripts")
	t.Setenv("EVENTS__NATS__ENABLED", "true")
	t.Setenv("EVENTS__NATS__URL", "nats://nats:4222")
	err := cmd.ParseFlags([]string{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	config, err := config.LoadConfig(cmd)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if config.HTTP.Port != 8087 {
		t.Errorf("unexpected HTTP port: %d", config.HTTP.Port)
	}
	if config.HTTP.Metrics.Port != 8088 {
		t.Errorf("unexpected metrics port: %d", config.HTTP.Metrics.Port)
	}
	if config.HTTP.Metrics.IPV4Host != "0.0.0.0" {
		t.Errorf("unexpected metrics IPv4 host: %s", config.HTTP.Metrics.IPV4Host)
	}
	if config.HTTP.Metrics.IPV6Host != "::0" {
		t.Errorf("unexpected metrics IPv6 host: %s", config.HTTP.Metrics.IPV6Host)
	}
	if config.HTTP.IPV4Host != "127.0.0.1" {
		t.Errorf("unexpected HTTP IPv4 host: %s", config.HTTP.IPV4Host)
	}
	if config.HTTP.IPV6Host != "::1" {
		t.Errorf("unexpected HTTP IPv6 host: %s", config.HTTP.IPV6Host)
	}
	if !config.HTTP.PProf.Enabled {
		t.Error("pprof should be enabled")
	}
	if len(config.HTTP.TrustedProxies) != 2 {
		t.Errorf("unexpected trusted proxies: %v", config.HTTP.TrustedProxies)
	}
	if !config.HTTP.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
	if !config.HTTP.Tracing.Enabled || config.HTTP.Tracing.OTLPEndpoint != "http://localhost:4317" {
		t.Errorf("unexpected tracing config: %+v", config.HTTP.Tracing)
	}
	if len(config.HTTP.CORSHosts) != 2 {
		t.Errorf("unexpected CORS hosts: %v", config.HTTP.CORSHosts)
	}
	if config.Tester.DefaultEndpoint != "https://rpc.example.org" {
		t.Errorf("unexpected default endpoint: %s", config.Tester.DefaultEndpoint)
	}
	if config.Tester.Sandbox.Enabled {
		t.Error("sandbox should be disabled")
	}
	if config.Tester.SessionIdleTimeout != 5*time.Minute {
		t.Errorf("unexpected idle timeout: %v", config.Tester.SessionIdleTimeout)
	}
	if config.Persistence.Database.Driver != "postgres" || config.Persistence.Database.Host != "db.internal" || config.Persistence.Database.Port != 5433 {
		t.Errorf("unexpected database config: %+v", config.Persistence.Database)
	}
	if config.Persistence.Scripts.Driver != "s3" || config.Persistence.Scripts.S3.Bucket != "scripts" {
		t.Errorf("unexpected scripts config: %+v", config.Persistence.Scripts)
	}
	if !config.Events.NATS.Enabled || config.Events.NATS.URL != "nats://nats:4222" {
		t.Errorf("unexpected NATS config: %+v", config.Events.NATS)
	}
}
