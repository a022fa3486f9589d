package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/pkg/types"
)

func prepTestHost() *types.Host {
	return &types.Host{
		ID:      1,
		Domain:  "example.com",
		Domains: []string{"example.com"},
		Origin:  types.OriginConfig{URL: "http://10.0.4.12:8080"},
	}
}

func TestPrepareHost_NilHost(t *testing.T) {
	err := PrepareHost(nil, "test", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host cannot be nil")
}

func TestPrepareHost_NilLogger(t *testing.T) {
	err := PrepareHost(prepTestHost(), "test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
}

func TestPrepareHost_MinimalHost(t *testing.T) {
	host := prepTestHost()
	require.NoError(t, PrepareHost(host, "test", zap.NewNop()))
}

func TestPrepareHost_ExpandsUAAliases(t *testing.T) {
	host := prepTestHost()
	host.Context = &types.ContextConfig{
		AutomationUA: []string{"$WPCLI", "MyBot/*"},
	}

	require.NoError(t, PrepareHost(host, "hosts.yaml:host_id=1", zap.NewNop()))

	assert.Equal(t, []string{"*wp-cli*", "WP-CLI/*", "MyBot/*"}, host.Context.AutomationUA)
	// Patterns compiled from the expanded list
	require.Len(t, host.Context.UAPatterns, 3)
	assert.True(t, host.Context.UAPatterns[0].Match("WP-CLI/2.9.0 wp-cli something"))
}

func TestPrepareHost_UnknownAliasFails(t *testing.T) {
	host := prepTestHost()
	host.Context = &types.ContextConfig{
		AutomationUA: []string{"$Bogus"},
	}

	err := PrepareHost(host, "hosts.yaml:host_id=1", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "automation_ua")
	assert.Contains(t, err.Error(), "$Bogus")
}

func TestPrepareHost_CompilesContextPatterns(t *testing.T) {
	host := prepTestHost()
	host.Context = &types.ContextConfig{
		ManagementPaths: []string{"/backend/*"},
		LoginCookies:    []string{"session_*"},
	}

	require.NoError(t, PrepareHost(host, "test", zap.NewNop()))

	require.Len(t, host.Context.ManagementPatterns, 1)
	assert.True(t, host.Context.ManagementPatterns[0].Match("/backend/dashboard"))
	require.Len(t, host.Context.CookiePatterns, 1)
	assert.True(t, host.Context.CookiePatterns[0].Match("session_abc"))
}

func TestPrepareHost_InvalidContextPatternFails(t *testing.T) {
	host := prepTestHost()
	host.Context = &types.ContextConfig{
		ManagementPaths: []string{"~/[broken"},
	}

	err := PrepareHost(host, "test", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestPrepareHost_NormalizesHostRewrite(t *testing.T) {
	host := prepTestHost()
	host.Rewrite = &types.RewriteConfig{
		EdgeDomain:           " CDN.Example.COM ",
		AllowedOriginDomains: []string{"Assets.Example.com.", " media.example.com "},
		Extensions:           []string{"JPG", ".WebP", " png "},
	}

	require.NoError(t, PrepareHost(host, "test", zap.NewNop()))

	assert.Equal(t, "cdn.example.com", host.Rewrite.EdgeDomain)
	assert.Equal(t, []string{"assets.example.com", "media.example.com"}, host.Rewrite.AllowedOriginDomains)
	assert.Equal(t, []string{".jpg", ".webp", ".png"}, host.Rewrite.Extensions)
}

func TestPrepareHost_NormalizesRuleRewrite(t *testing.T) {
	host := prepTestHost()
	host.URLRules = []types.URLRule{
		{
			Match:  "/gallery/*",
			Action: types.ActionRewrite,
			Rewrite: &types.RewriteConfig{
				EdgeDomain:    "Gallery-CDN.Example.com",
				ExtensionsAdd: []string{"TIFF"},
			},
		},
	}

	require.NoError(t, PrepareHost(host, "test", zap.NewNop()))

	require.Len(t, host.URLRules, 1)
	require.NotNil(t, host.URLRules[0].Rewrite)
	assert.Equal(t, "gallery-cdn.example.com", host.URLRules[0].Rewrite.EdgeDomain)
	assert.Equal(t, []string{".tiff"}, host.URLRules[0].Rewrite.ExtensionsAdd)
}

func TestPrepareHost_SortsURLRules(t *testing.T) {
	host := prepTestHost()
	host.URLRules = []types.URLRule{
		{Match: "/blog/*", Action: types.ActionPassthrough},
		{Match: "/blog/featured", Action: types.ActionRewrite},
	}

	require.NoError(t, PrepareHost(host, "test", zap.NewNop()))

	require.Len(t, host.URLRules, 2)
	assert.Equal(t, "/blog/featured", host.URLRules[0].GetMatchPatterns()[0])
	assert.Equal(t, "/blog/*", host.URLRules[1].GetMatchPatterns()[0])
}

func TestPrepareHost_InvalidRulePatternFails(t *testing.T) {
	host := prepTestHost()
	host.URLRules = []types.URLRule{
		{Match: "~/[broken", Action: types.ActionPassthrough},
	}

	err := PrepareHost(host, "test", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sort URL rules")
}
