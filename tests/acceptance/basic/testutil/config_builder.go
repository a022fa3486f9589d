package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/pkg/types"
)

// ConfigBuilder builds a typed gateway config from TestEnvironmentConfig.
// Optional sections are nil by default; suites that exercise them fill the
// exported fields before writing.
type ConfigBuilder struct {
	testConfig *TestEnvironmentConfig
	redisAddr  string

	RateLimit   *configtypes.RateLimitConfig
	Entitlement *configtypes.EntitlementConfig
	TLS         *configtypes.TLSConfig
	EventFile   *configtypes.EventFileConfig
	ClientIP    *types.ClientIPConfig
}

// NewConfigBuilder creates a new config builder
func NewConfigBuilder(testConfig *TestEnvironmentConfig, redisAddr string) *ConfigBuilder {
	return &ConfigBuilder{
		testConfig: testConfig,
		redisAddr:  redisAddr,
	}
}

// BuildGatewayConfig builds the Rewrite Gateway configuration
func (b *ConfigBuilder) BuildGatewayConfig() *configtypes.RgConfig {
	cfg := &configtypes.RgConfig{
		Server: configtypes.ServerConfig{
			Listen:  fmt.Sprintf(":%d", b.testConfig.Gateway.Port),
			Timeout: types.Duration(b.parseDuration(b.testConfig.Gateway.Timeout)),
		},
		Origin: configtypes.GlobalOriginConfig{
			Timeout: ptrDuration(5 * time.Second),
			// Fixture upstreams listen on loopback
			ValidateOriginIP: ptrBool(false),
		},
		Headers: &types.HeadersConfig{
			SafeRequest: []string{"Accept-Language", "X-Custom-Req"},
		},
		Log: configtypes.LogConfig{
			Level: b.testConfig.Gateway.Log.Level,
			Console: configtypes.ConsoleLogConfig{
				Enabled: true,
				Format:  b.testConfig.Gateway.Log.Format,
			},
		},
		Metrics: configtypes.MetricsConfig{
			Enabled:   true,
			Listen:    fmt.Sprintf("127.0.0.1:%d", b.testConfig.Gateway.MetricsPort),
			Path:      "/metrics",
			Namespace: "edgelift",
		},
		Hosts: configtypes.HostsIncludeConfig{
			Include: "hosts.d/",
		},
		RgID: "test-rg",
		Internal: configtypes.InternalConfig{
			Listen:  fmt.Sprintf("127.0.0.1:%d", b.testConfig.Gateway.InternalPort),
			AuthKey: b.testConfig.Test.InternalAuthKey,
		},
	}

	if b.redisAddr != "" {
		cfg.Redis = &configtypes.RedisConfig{
			Addr:     b.redisAddr,
			Password: b.testConfig.Redis.Password,
			DB:       b.testConfig.Redis.DB,
		}
	}
	if b.RateLimit != nil {
		cfg.RateLimit = b.RateLimit
	}
	if b.Entitlement != nil {
		cfg.Entitlement = b.Entitlement
	}
	if b.TLS != nil {
		cfg.Server.TLS = *b.TLS
	}
	if b.EventFile != nil {
		cfg.EventLogging = &configtypes.EventLoggingConfig{File: *b.EventFile}
	}
	if b.ClientIP != nil {
		cfg.ClientIP = b.ClientIP
	}

	return cfg
}

// WriteTestConfigs writes the gateway config to the temp directory and copies
// hosts.d/ from fixtures alongside it.
func (b *ConfigBuilder) WriteTestConfigs(tempDir string) error {
	gwConfig := b.BuildGatewayConfig()

	gwData, err := yaml.Marshal(gwConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway config: %w", err)
	}

	gwPath := filepath.Join(tempDir, "rewrite-gateway.yaml")
	if err := os.WriteFile(gwPath, gwData, 0644); err != nil {
		return fmt.Errorf("failed to write gateway config: %w", err)
	}

	// Copy hosts.d/ directory from fixtures
	hostsFixtureDir := filepath.Join("fixtures", "hosts.d")
	hostsDestDir := filepath.Join(tempDir, "hosts.d")

	if err := os.MkdirAll(hostsDestDir, 0755); err != nil {
		return fmt.Errorf("failed to create hosts.d directory: %w", err)
	}

	hostFiles, err := filepath.Glob(filepath.Join(hostsFixtureDir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to glob host files: %w", err)
	}

	for _, srcFile := range hostFiles {
		data, err := os.ReadFile(srcFile)
		if err != nil {
			return fmt.Errorf("failed to read host file %s: %w", srcFile, err)
		}

		destFile := filepath.Join(hostsDestDir, filepath.Base(srcFile))
		if err := os.WriteFile(destFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write host file %s: %w", destFile, err)
		}
	}

	return nil
}

// LoadHostsConfig loads hosts from the fixtures hosts.d/ directory for test
// validation
func LoadHostsConfig() (*configtypes.HostsConfig, error) {
	hostsDir := filepath.Join("fixtures", "hosts.d")

	hostFiles, err := filepath.Glob(filepath.Join(hostsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob host files: %w", err)
	}

	if len(hostFiles) == 0 {
		return nil, fmt.Errorf("no host files found in %s", hostsDir)
	}

	var allHosts []types.Host
	for _, file := range hostFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read host file %s: %w", file, err)
		}

		var hostsConfig configtypes.HostsConfig
		if err := yaml.Unmarshal(data, &hostsConfig); err != nil {
			return nil, fmt.Errorf("failed to parse host file %s: %w", file, err)
		}

		allHosts = append(allHosts, hostsConfig.Hosts...)
	}

	return &configtypes.HostsConfig{Hosts: allHosts}, nil
}

// GetHost gets a host by ID from hosts config
func GetHost(hostsConfig *configtypes.HostsConfig, hostID int) (*types.Host, error) {
	for i := range hostsConfig.Hosts {
		if hostsConfig.Hosts[i].ID == hostID {
			return &hostsConfig.Hosts[i], nil
		}
	}
	return nil, fmt.Errorf("host with ID %d not found", hostID)
}

// parseDuration is a helper that safely parses duration strings
func (b *ConfigBuilder) parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		// Zero for invalid durations - config validation will catch this
		return 0
	}
	return d
}

// ptrDuration returns a pointer to a types.Duration value
func ptrDuration(d time.Duration) *types.Duration {
	v := types.Duration(d)
	return &v
}

// ptrBool returns a pointer to a bool value
func ptrBool(b bool) *bool {
	return &b
}
