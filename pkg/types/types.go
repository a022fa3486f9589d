package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edgelift/gateway/pkg/pattern"
)

// HeadersConfig defines safe request and response headers configuration.
// Supports both replacement (safe_*) and additive (safe_*_add) directives.
// At each config level, only ONE of safe_request/safe_request_add can be used (same for response).
type HeadersConfig struct {
	// SafeRequest replaces parent's request headers list
	SafeRequest []string `yaml:"safe_request,omitempty" json:"safe_request,omitempty"`
	// SafeRequestAdd adds to parent's request headers list
	SafeRequestAdd []string `yaml:"safe_request_add,omitempty" json:"safe_request_add,omitempty"`
	// SafeResponse replaces parent's response headers list
	SafeResponse []string `yaml:"safe_response,omitempty" json:"safe_response,omitempty"`
	// SafeResponseAdd adds to parent's response headers list
	SafeResponseAdd []string `yaml:"safe_response_add,omitempty" json:"safe_response_add,omitempty"`
}

// ClientIPConfig defines HTTP headers for extracting the client's real IP address.
type ClientIPConfig struct {
	Headers []string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// OriginConfig defines how the gateway reaches a host's upstream server.
type OriginConfig struct {
	URL              string    `yaml:"url" json:"url"`                                                   // Upstream base URL, e.g. http://10.0.4.12:8080
	Timeout          *Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`                       // Fetch timeout (nil = inherit global)
	ValidateOriginIP *bool     `yaml:"validate_origin_ip,omitempty" json:"validate_origin_ip,omitempty"` // Reject upstreams resolving to loopback/link-local addresses
}

// RewriteConfig defines media URL rewriting behavior.
// Can be specified at global, host, and rule levels with deep merge semantics.
type RewriteConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`         // Enable/disable rewriting (pointer for override detection)
	EdgeDomain string `yaml:"edge_domain,omitempty" json:"edge_domain,omitempty"` // Bare edge hostname, e.g. cdn.edgelift.io; empty disables rewriting

	// AllowedOriginDomains replaces parent's allow-list. A URL is eligible when its
	// host equals an entry or ends with "." + entry. Empty at every level means
	// the host's own domains.
	AllowedOriginDomains []string `yaml:"allowed_origin_domains,omitempty" json:"allowed_origin_domains,omitempty"`
	// AllowedOriginDomainsAdd adds to parent's allow-list
	AllowedOriginDomainsAdd []string `yaml:"allowed_origin_domains_add,omitempty" json:"allowed_origin_domains_add,omitempty"`

	// Extensions replaces the supported media extension set (entries include the leading dot)
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	// ExtensionsAdd adds to parent's extension set
	ExtensionsAdd []string `yaml:"extensions_add,omitempty" json:"extensions_add,omitempty"`

	InjectRecoveryScript *bool `yaml:"inject_recovery_script,omitempty" json:"inject_recovery_script,omitempty"` // Inject the client recovery script into rewritten pages
}

// ContextConfig defines how requests are classified into rewriting contexts.
// Pattern lists use replacement semantics (child replaces parent completely).
type ContextConfig struct {
	ManagementPaths []string `yaml:"management_paths,omitempty" json:"management_paths,omitempty"` // Administrative surfaces
	APIPaths        []string `yaml:"api_paths,omitempty" json:"api_paths,omitempty"`               // Machine-to-machine endpoints
	CronPaths       []string `yaml:"cron_paths,omitempty" json:"cron_paths,omitempty"`             // Scheduled background jobs
	RPCPaths        []string `yaml:"rpc_paths,omitempty" json:"rpc_paths,omitempty"`               // Legacy RPC endpoints
	InstallPaths    []string `yaml:"install_paths,omitempty" json:"install_paths,omitempty"`       // Installation/setup flows
	AsyncPaths      []string `yaml:"async_paths,omitempty" json:"async_paths,omitempty"`           // Async sub-request endpoints called from management pages
	AutosavePaths   []string `yaml:"autosave_paths,omitempty" json:"autosave_paths,omitempty"`     // Draft autosave endpoints

	// LoginCookies are cookie NAME patterns whose presence marks an authenticated operator
	LoginCookies []string `yaml:"login_cookies,omitempty" json:"login_cookies,omitempty"`
	// AutomationUA are User-Agent patterns of automation/CLI clients
	AutomationUA []string `yaml:"automation_ua,omitempty" json:"automation_ua,omitempty"`

	AllowAuthenticatedVisitors *bool `yaml:"allow_authenticated_visitors,omitempty" json:"allow_authenticated_visitors,omitempty"` // Treat authenticated async sub-requests as visitor traffic
	AllowManagementRewrite     *bool `yaml:"allow_management_rewrite,omitempty" json:"allow_management_rewrite,omitempty"`         // Rewrite media on management surfaces too

	// Compiled pattern sets, populated by CompilePatterns
	ManagementPatterns []*pattern.Pattern `yaml:"-" json:"-"`
	APIPatterns        []*pattern.Pattern `yaml:"-" json:"-"`
	CronPatterns       []*pattern.Pattern `yaml:"-" json:"-"`
	RPCPatterns        []*pattern.Pattern `yaml:"-" json:"-"`
	InstallPatterns    []*pattern.Pattern `yaml:"-" json:"-"`
	AsyncPatterns      []*pattern.Pattern `yaml:"-" json:"-"`
	AutosavePatterns   []*pattern.Pattern `yaml:"-" json:"-"`
	CookiePatterns     []*pattern.Pattern `yaml:"-" json:"-"`
	UAPatterns         []*pattern.Pattern `yaml:"-" json:"-"`
}

// CompilePatterns pre-compiles all pattern lists using the unified pattern package:
// - No prefix: exact match (case-sensitive)
// - * wildcard: matches any characters
// - ~ prefix: case-sensitive regexp
// - ~* prefix: case-insensitive regexp
func (c *ContextConfig) CompilePatterns() error {
	compile := func(field string, raw []string) ([]*pattern.Pattern, error) {
		if len(raw) == 0 {
			return nil, nil
		}
		compiled := make([]*pattern.Pattern, len(raw))
		for i, pat := range raw {
			p, err := pattern.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("invalid %s pattern '%s': %w", field, pat, err)
			}
			compiled[i] = p
		}
		return compiled, nil
	}

	var err error
	if c.ManagementPatterns, err = compile("management_paths", c.ManagementPaths); err != nil {
		return err
	}
	if c.APIPatterns, err = compile("api_paths", c.APIPaths); err != nil {
		return err
	}
	if c.CronPatterns, err = compile("cron_paths", c.CronPaths); err != nil {
		return err
	}
	if c.RPCPatterns, err = compile("rpc_paths", c.RPCPaths); err != nil {
		return err
	}
	if c.InstallPatterns, err = compile("install_paths", c.InstallPaths); err != nil {
		return err
	}
	if c.AsyncPatterns, err = compile("async_paths", c.AsyncPaths); err != nil {
		return err
	}
	if c.AutosavePatterns, err = compile("autosave_paths", c.AutosavePaths); err != nil {
		return err
	}
	if c.CookiePatterns, err = compile("login_cookies", c.LoginCookies); err != nil {
		return err
	}
	if c.UAPatterns, err = compile("automation_ua", c.AutomationUA); err != nil {
		return err
	}
	return nil
}

// Host represents a domain configuration
type Host struct {
	ID         int             `yaml:"id" json:"id"`
	Domain     string          `yaml:"-" json:"-"`
	Domains    []string        `yaml:"-" json:"domain"`
	LicenseKey string          `yaml:"license_key" json:"license_key"`
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Origin     OriginConfig    `yaml:"origin" json:"origin"`
	Rewrite    *RewriteConfig  `yaml:"rewrite,omitempty" json:"rewrite,omitempty"`     // Host-level rewrite override
	Context    *ContextConfig  `yaml:"context,omitempty" json:"context,omitempty"`     // Host-level context classification override
	Headers    *HeadersConfig  `yaml:"headers,omitempty" json:"headers,omitempty"`     // Host-level headers override
	ClientIP   *ClientIPConfig `yaml:"client_ip,omitempty" json:"client_ip,omitempty"` // Host-level client IP override
	URLRules   []URLRule       `yaml:"url_rules,omitempty" json:"url_rules,omitempty"` // URL pattern rules
}

// UnmarshalYAML implements custom YAML unmarshaling for Host.
// Handles both string and array formats for domain field and strips trailing dots (FQDN normalization).
func (h *Host) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type hostAlias Host
	type hostRaw struct {
		hostAlias `yaml:",inline"`
		Domain    interface{} `yaml:"domain"`
	}

	var raw hostRaw
	if err := unmarshal(&raw); err != nil {
		return err
	}

	// Copy all fields from the alias
	*h = Host(raw.hostAlias)

	// Handle domain field (string or array)
	switch v := raw.Domain.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			h.Domains = []string{strings.TrimSuffix(trimmed, ".")}
		}
	case []interface{}:
		var domains []string
		for _, d := range v {
			if s, ok := d.(string); ok {
				trimmed := strings.TrimSpace(s)
				if trimmed != "" {
					domains = append(domains, strings.TrimSuffix(trimmed, "."))
				}
			}
		}
		h.Domains = domains
	case nil:
		// Domain not specified, leave Domains empty
	default:
		return fmt.Errorf("domain must be a string or array of strings, got %T", raw.Domain)
	}

	// Set primary Domain from first element
	if len(h.Domains) > 0 {
		h.Domain = h.Domains[0]
	}

	return nil
}

// MarshalYAML implements yaml.Marshaler for Host.
// Outputs Domains as "domain" field (single string if one domain, array if multiple).
func (h Host) MarshalYAML() (interface{}, error) {
	type hostAlias Host

	result := struct {
		hostAlias `yaml:",inline"`
		Domain    interface{} `yaml:"domain,omitempty"`
	}{
		hostAlias: hostAlias(h),
	}

	switch len(h.Domains) {
	case 0:
		result.Domain = nil
	case 1:
		result.Domain = h.Domains[0]
	default:
		result.Domain = h.Domains
	}

	return result, nil
}

// UnmarshalJSON implements json.Unmarshaler for Host.
// Handles both string and array formats for domain field and strips trailing dots.
func (h *Host) UnmarshalJSON(data []byte) error {
	type hostAlias Host
	type hostRaw struct {
		hostAlias
		Domain json.RawMessage `json:"domain"`
	}

	var raw hostRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*h = Host(raw.hostAlias)

	if len(raw.Domain) == 0 || string(raw.Domain) == "null" {
		return nil
	}

	// Try string first
	var single string
	if err := json.Unmarshal(raw.Domain, &single); err == nil {
		trimmed := strings.TrimSpace(single)
		if trimmed != "" {
			h.Domains = []string{strings.TrimSuffix(trimmed, ".")}
		}
	} else {
		var arr []string
		if err := json.Unmarshal(raw.Domain, &arr); err != nil {
			return fmt.Errorf("domain must be a string or array of strings")
		}
		var domains []string
		for _, d := range arr {
			trimmed := strings.TrimSpace(d)
			if trimmed != "" {
				domains = append(domains, strings.TrimSuffix(trimmed, "."))
			}
		}
		h.Domains = domains
	}

	if len(h.Domains) > 0 {
		h.Domain = h.Domains[0]
	}

	return nil
}

// DefaultMediaExtensions is the stock extension set for rewrite eligibility.
// Covers raster and vector images, common video/audio containers, and HLS
// manifests/segments. Entries carry the leading dot and are lowercase.
var DefaultMediaExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".bmp", ".ico", ".tif", ".tiff",
	".svg",
	".mp4", ".m4v", ".webm", ".ogv", ".mov",
	".mp3", ".m4a", ".aac", ".ogg", ".oga", ".opus", ".wav", ".flac",
	".m3u8", ".ts",
}

// Default context classification patterns. Tuned for the common CMS layouts the
// gateway fronts; hosts override them per deployment.
var (
	DefaultManagementPaths = []string{"/wp-admin/*", "/admin/*"}
	DefaultAPIPaths        = []string{"/wp-json/*", "/api/*"}
	DefaultCronPaths       = []string{"/wp-cron.php", "/cron/*"}
	DefaultRPCPaths        = []string{"/xmlrpc.php"}
	DefaultInstallPaths    = []string{"/wp-admin/install.php", "/wp-admin/setup-config.php", "/install/*"}
	DefaultAsyncPaths      = []string{"/wp-admin/admin-ajax.php", "/wp-admin/async-upload.php"}
	DefaultAutosavePaths   = []string{"~/autosaves(/|$)"}
	DefaultLoginCookies    = []string{"wordpress_logged_in_*", "wordpress_sec_*"}
	DefaultAutomationUA    = []string{"*wp-cli*", "WordPress/*"}
)

// GatewayInfo describes a gateway instance for the internal stats endpoint.
type GatewayInfo struct {
	InstanceID string    `json:"instance_id"`
	Address    string    `json:"address"`
	StartedAt  time.Time `json:"started_at"`
}

// Duration wraps time.Duration with extended YAML parsing support for days and weeks
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for extended duration formats
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	// Try standard parsing first (handles: ns, us, ms, s, m, h)
	dur, err := time.ParseDuration(s)
	if err == nil {
		*d = Duration(dur)
		return nil
	}

	// Parse extended formats: d (days), w (weeks)
	dur, err = parseExtendedDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Duration.
// Accepts both numbers (nanoseconds, backward-compatible) and strings ("15s", "24h", "30d", "2w").
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ns int64
	if err := json.Unmarshal(data, &ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or number, got %s", string(data))
	}

	dur, err := time.ParseDuration(s)
	if err == nil {
		*d = Duration(dur)
		return nil
	}

	dur, err = parseExtendedDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler for Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ToDuration converts types.Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer for Duration
func (d Duration) String() string {
	return time.Duration(d).String()
}

// parseExtendedDuration parses duration strings with extended suffixes: d (days), w (weeks)
// Examples: "30d", "2w", "1.5d"
func parseExtendedDuration(s string) (time.Duration, error) {
	// Regex: optional sign, number (int or float), suffix (d or w)
	re := regexp.MustCompile(`^(-?)(\d+(?:\.\d+)?)(d|w)$`)
	matches := re.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid format, expected format like '30d' or '2w'")
	}

	sign := matches[1]
	valueStr := matches[2]
	suffix := matches[3]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}

	if sign == "-" {
		value = -value
	}

	var duration time.Duration
	switch suffix {
	case "d":
		duration = time.Duration(value * float64(24*time.Hour))
	case "w":
		duration = time.Duration(value * float64(7*24*time.Hour))
	default:
		return 0, fmt.Errorf("unsupported suffix %q", suffix)
	}

	return duration, nil
}
