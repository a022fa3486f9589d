package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TestEnvironmentConfig represents the unified test environment configuration
type TestEnvironmentConfig struct {
	TestServer struct {
		Port    int    `yaml:"port"`
		Address string `yaml:"address"`
	} `yaml:"test_server"`

	Gateway struct {
		Port         int    `yaml:"port"`
		HTTPSPort    int    `yaml:"https_port"`
		InternalPort int    `yaml:"internal_port"`
		MetricsPort  int    `yaml:"metrics_port"`
		Address      string `yaml:"address"`
		Timeout      string `yaml:"timeout"`

		Log struct {
			Level  string `yaml:"level"`
			Format string `yaml:"format"`
		} `yaml:"log"`
	} `yaml:"gateway"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Test struct {
		InternalAuthKey    string `yaml:"internal_auth_key"`
		StartupTimeout     string `yaml:"startup_timeout"`
		HealthCheckTimeout string `yaml:"health_check_timeout"`
		HTTPClientTimeout  string `yaml:"http_client_timeout"`
	} `yaml:"test"`
}

// LoadTestConfig loads the test configuration from test_config.yaml
func LoadTestConfig() (*TestEnvironmentConfig, error) {
	// Find test_config.yaml relative to the test module root
	configPath := filepath.Join("fixtures", "test_config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read test config: %w", err)
	}

	var config TestEnvironmentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse test config: %w", err)
	}

	return &config, nil
}

// GatewayBaseURL returns the rewrite gateway base URL
func (c *TestEnvironmentConfig) GatewayBaseURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Gateway.Port)
}

// GatewayHTTPSBaseURL returns the rewrite gateway TLS base URL
func (c *TestEnvironmentConfig) GatewayHTTPSBaseURL() string {
	return fmt.Sprintf("https://localhost:%d", c.Gateway.HTTPSPort)
}

// InternalBaseURL returns the management API base URL
func (c *TestEnvironmentConfig) InternalBaseURL() string {
	return fmt.Sprintf("http://localhost:%d", c.Gateway.InternalPort)
}

// TestPagesURL returns the test pages server base URL
func (c *TestEnvironmentConfig) TestPagesURL() string {
	return fmt.Sprintf("http://localhost:%d", c.TestServer.Port)
}

// StartupTimeout returns the startup timeout as duration
func (c *TestEnvironmentConfig) StartupTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Test.StartupTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// HealthCheckTimeout returns the health check timeout as duration
func (c *TestEnvironmentConfig) HealthCheckTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Test.HealthCheckTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// HTTPClientTimeout returns the HTTP client timeout as duration
func (c *TestEnvironmentConfig) HTTPClientTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Test.HTTPClientTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}
