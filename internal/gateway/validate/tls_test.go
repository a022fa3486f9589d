package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgelift/gateway/internal/common/configtypes"
)

func makeTLSConfig(enabled bool, listen, certFile, keyFile string) *configtypes.RgConfig {
	return &configtypes.RgConfig{
		Server: configtypes.ServerConfig{
			Listen: ":8080",
			TLS: configtypes.TLSConfig{
				Enabled:  enabled,
				Listen:   listen,
				CertFile: certFile,
				KeyFile:  keyFile,
			},
		},
		Internal: configtypes.InternalConfig{
			Listen:  ":10071",
			AuthKey: "test-auth-key-0123456789abcdef",
		},
	}
}

// writeTLSFiles creates placeholder cert/key files and returns the directory
// they live in. Paths passed to the validator are relative to that directory.
func writeTLSFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert.pem"), []byte("cert"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key.pem"), []byte("key"), 0o600))
	return dir
}

func collectorMessages(collector *ErrorCollector) []string {
	msgs := make([]string, 0, collector.Count())
	for _, e := range collector.Errors() {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestValidateTLSConfig_Disabled(t *testing.T) {
	// Disabled TLS skips all checks, even with every field missing
	cfg := makeTLSConfig(false, "", "", "")
	collector := NewErrorCollector()

	validateTLSConfig(cfg, t.TempDir(), "gateway.yaml", collector)

	assert.False(t, collector.HasErrors())
}

func TestValidateTLSConfig_RequiredFields(t *testing.T) {
	dir := writeTLSFiles(t)

	t.Run("all fields present", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "cert.pem", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
	})

	t.Run("missing listen", func(t *testing.T) {
		cfg := makeTLSConfig(true, "", "cert.pem", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"TLS enabled but tls.listen not specified"))
	})

	t.Run("missing cert_file", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"TLS enabled but tls.cert_file not specified"))
	})

	t.Run("missing key_file", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "cert.pem", "")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"TLS enabled but tls.key_file not specified"))
	})

	t.Run("all fields missing", func(t *testing.T) {
		cfg := makeTLSConfig(true, "", "", "")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.Equal(t, 3, collector.Count())
	})
}

func TestValidateTLSConfig_ListenAddress(t *testing.T) {
	dir := writeTLSFiles(t)

	valid := []string{":8443", "0.0.0.0:8443", "127.0.0.1:8443"}
	for _, listen := range valid {
		t.Run("valid "+listen, func(t *testing.T) {
			cfg := makeTLSConfig(true, listen, "cert.pem", "key.pem")
			collector := NewErrorCollector()

			validateTLSConfig(cfg, dir, "gateway.yaml", collector)

			assert.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
		})
	}

	invalid := []string{"8443", ":0", ":99999", "host:port:extra"}
	for _, listen := range invalid {
		t.Run("invalid "+listen, func(t *testing.T) {
			cfg := makeTLSConfig(true, listen, "cert.pem", "key.pem")
			collector := NewErrorCollector()

			validateTLSConfig(cfg, dir, "gateway.yaml", collector)

			assert.True(t, containsMessage(collectorMessages(collector),
				"TLS listen address invalid"), "errors: %v", collector.Errors())
		})
	}
}

func TestValidateTLSConfig_FileValidation(t *testing.T) {
	dir := writeTLSFiles(t)

	t.Run("nonexistent cert_file", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "missing-cert.pem", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"TLS cert_file not found"), "errors: %v", collector.Errors())
	})

	t.Run("nonexistent key_file", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "cert.pem", "missing-key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"TLS key_file not found"), "errors: %v", collector.Errors())
	})

	t.Run("absolute paths", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443",
			filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
		collector := NewErrorCollector()

		// configDir deliberately elsewhere, absolute paths must still resolve
		validateTLSConfig(cfg, t.TempDir(), "gateway.yaml", collector)

		assert.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
	})
}

func TestValidateTLSConfig_PortConflicts(t *testing.T) {
	dir := writeTLSFiles(t)

	t.Run("conflict with server listen", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8080", "cert.pem", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"conflicts with server.listen"), "errors: %v", collector.Errors())
	})

	t.Run("conflict with metrics listen", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":9090", "cert.pem", "key.pem")
		cfg.Metrics = configtypes.MetricsConfig{Enabled: true, Listen: ":9090"}
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"conflicts with metrics.listen"), "errors: %v", collector.Errors())
	})

	t.Run("disabled metrics on same port is not a conflict", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":9090", "cert.pem", "key.pem")
		cfg.Metrics = configtypes.MetricsConfig{Enabled: false, Listen: ":9090"}
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
	})

	t.Run("conflict with internal listen", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":10071", "cert.pem", "key.pem")
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.True(t, containsMessage(collectorMessages(collector),
			"conflicts with internal.listen"), "errors: %v", collector.Errors())
	})

	t.Run("distinct ports pass", func(t *testing.T) {
		cfg := makeTLSConfig(true, ":8443", "cert.pem", "key.pem")
		cfg.Metrics = configtypes.MetricsConfig{Enabled: true, Listen: ":9090"}
		collector := NewErrorCollector()

		validateTLSConfig(cfg, dir, "gateway.yaml", collector)

		assert.False(t, collector.HasErrors(), "errors: %v", collector.Errors())
	})
}

func TestExtractPort(t *testing.T) {
	tests := []struct {
		listen   string
		wantPort int
		wantErr  bool
	}{
		{":8080", 8080, false},
		{"0.0.0.0:9090", 9090, false},
		{"127.0.0.1:10071", 10071, false},
		{"", 0, false},
		{"8080", 0, true},
		{":abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			port, err := extractPort(tt.listen)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
