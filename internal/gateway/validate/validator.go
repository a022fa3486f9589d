package validate

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/yamlutil"
	"github.com/edgelift/gateway/pkg/types"
)

// requestHeadersDenyList contains headers that must NEVER be forwarded to origin.
// These headers could cause security issues or break HTTP semantics if forwarded.
var requestHeadersDenyList = map[string]bool{
	"host":              true,
	"content-length":    true,
	"transfer-encoding": true,
	"connection":        true,
	"upgrade":           true,
	"keep-alive":        true,
	"te":                true,
	"trailer":           true,
}

// requestHeadersDenyListPrefixes contains header prefixes that are blocked.
var requestHeadersDenyListPrefixes = []string{
	"proxy-",
}

const suspiciousDurationThreshold = 1 * time.Millisecond

// validateDurationUnit checks if a duration value is suspiciously small, indicating missing unit suffix
func validateDurationUnit(value time.Duration, fieldName string, filename string, collector *ErrorCollector) {
	if value > 0 && value < suspiciousDurationThreshold {
		collector.AddWarning(filename, 0,
			"%s value %s is suspiciously small. Did you forget the unit suffix (s, ms, m, h)?",
			fieldName, value)
	}
}

// isValidHTTPHeaderChar checks if a character is valid in an HTTP header name per RFC 7230
// Valid chars: A-Z a-z 0-9 ! # $ % & ' * + - . ^ _ ` | ~
func isValidHTTPHeaderChar(char rune) bool {
	return (char >= 'A' && char <= 'Z') ||
		(char >= 'a' && char <= 'z') ||
		(char >= '0' && char <= '9') ||
		char == '!' || char == '#' || char == '$' || char == '%' ||
		char == '&' || char == '\'' || char == '*' || char == '+' ||
		char == '-' || char == '.' || char == '^' || char == '_' ||
		char == '`' || char == '|' || char == '~'
}

// ValidateHTTPHeaderName validates a single HTTP header name per RFC 7230
func ValidateHTTPHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name cannot be empty")
	}

	for i, char := range name {
		if !isValidHTTPHeaderChar(char) {
			if char == ' ' {
				return fmt.Errorf("header name %q contains invalid space at position %d", name, i)
			} else if char == ':' {
				return fmt.Errorf("header name %q contains invalid colon at position %d", name, i)
			} else if char < 32 || char == 127 {
				return fmt.Errorf("header name %q contains invalid control character at position %d", name, i)
			} else {
				return fmt.Errorf("header name %q contains invalid character %q at position %d", name, char, i)
			}
		}
	}

	return nil
}

// validateHeadersConfig validates a HeadersConfig at any config level.
// It checks mutual exclusivity, deny-list compliance, and header name validity.
func validateHeadersConfig(headers *types.HeadersConfig, level string) error {
	if headers == nil {
		return nil
	}

	// Check mutual exclusivity for request headers
	if len(headers.SafeRequest) > 0 && len(headers.SafeRequestAdd) > 0 {
		return fmt.Errorf("%s: cannot use both safe_request and safe_request_add", level)
	}

	// Check mutual exclusivity for response headers
	if len(headers.SafeResponse) > 0 && len(headers.SafeResponseAdd) > 0 {
		return fmt.Errorf("%s: cannot use both safe_response and safe_response_add", level)
	}

	// Validate safe_request headers
	for i, header := range headers.SafeRequest {
		if err := validateRequestHeader(header); err != nil {
			return fmt.Errorf("%s safe_request[%d]: %w", level, i, err)
		}
	}

	// Validate safe_request_add headers
	for i, header := range headers.SafeRequestAdd {
		if err := validateRequestHeader(header); err != nil {
			return fmt.Errorf("%s safe_request_add[%d]: %w", level, i, err)
		}
	}

	// Validate safe_response headers (just name validity, no deny-list)
	for i, header := range headers.SafeResponse {
		if err := ValidateHTTPHeaderName(header); err != nil {
			return fmt.Errorf("%s safe_response[%d]: %w", level, i, err)
		}
	}

	// Validate safe_response_add headers
	for i, header := range headers.SafeResponseAdd {
		if err := ValidateHTTPHeaderName(header); err != nil {
			return fmt.Errorf("%s safe_response_add[%d]: %w", level, i, err)
		}
	}

	return nil
}

// validateRequestHeader checks if a header is valid for request forwarding.
func validateRequestHeader(header string) error {
	if err := ValidateHTTPHeaderName(header); err != nil {
		return err
	}
	return validateRequestHeaderNotDenied(header)
}

// validateRequestHeaderNotDenied checks if a header is in the deny-list.
func validateRequestHeaderNotDenied(header string) error {
	headerLower := strings.ToLower(header)

	// Check exact matches
	if requestHeadersDenyList[headerLower] {
		return fmt.Errorf("header %q is blocked for security reasons", header)
	}

	// Check prefixes
	for _, prefix := range requestHeadersDenyListPrefixes {
		if strings.HasPrefix(headerLower, prefix) {
			return fmt.Errorf("header %q is blocked (prefix %q not allowed)", header, prefix)
		}
	}

	return nil
}

// ValidateConfiguration validates configuration files without external dependencies
// Returns validation result with any errors found
func ValidateConfiguration(configPath string) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:      true,
		ConfigPath: configPath,
	}

	collector := NewErrorCollector()

	// Load and validate main config
	rgConfig, err := loadAndValidateMainConfig(configPath, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rgConfig == nil {
		// YAML syntax errors were collected, skip further validation
		result.Valid = false
		result.Errors = collector.Errors()
		return result, nil
	}

	// Load hosts using include pattern from config
	hostsConfig, _, err := loadAndValidateHostsFromInclude(rgConfig, configPath, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to load hosts config: %w", err)
	}
	if hostsConfig == nil {
		// YAML syntax errors were collected, skip further validation
		result.Valid = false
		result.Errors = collector.Errors()
		return result, nil
	}

	// Validate cross-config dependencies (without external service checks)
	validateCrossConfig(rgConfig, hostsConfig, filepath.Base(configPath), collector)

	// Set result
	if collector.HasErrors() {
		result.Valid = false
		result.Errors = collector.Errors()
	}
	result.Warnings = collector.Warnings()

	return result, nil
}

// loadAndValidateMainConfig loads and validates main configuration
func loadAndValidateMainConfig(path string, collector *ErrorCollector) (*configtypes.RgConfig, error) {
	// Check file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg configtypes.RgConfig
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		collector.Add(filepath.Base(path), 0, "YAML syntax error: %v", err)
		return nil, nil
	}

	// Load line tracker
	lineTracker, err := NewLineTracker(path)
	if err != nil {
		// Line tracking failed, continue without line numbers
		lineTracker = nil
	}

	filename := filepath.Base(path)

	// Validate server configuration
	validateServerConfig(&cfg, filename, lineTracker, collector)

	// Validate Redis configuration
	validateRedisConfig(&cfg, filename, lineTracker, collector)

	// Validate metrics configuration
	validateMetricsConfig(&cfg, filename, lineTracker, collector)

	// Validate internal server configuration
	validateInternalConfig(&cfg, filename, lineTracker, collector)

	// Validate log configuration
	validateLogConfig(&cfg, filename, lineTracker, collector)

	// Validate global origin configuration
	validateGlobalOriginConfig(&cfg, filename, lineTracker, collector)

	// Validate global rewrite configuration
	validateGlobalRewriteConfig(&cfg, filename, collector)

	// Validate global context configuration
	validateGlobalContextConfig(&cfg, filename, collector)

	// Validate safe_headers
	validateHeadersConfigGlobal(&cfg, filename, collector)

	// Validate client_ip
	validateClientIPConfigGlobal(&cfg, filename, collector)

	// Validate entitlement configuration
	validateEntitlementConfig(&cfg, filename, collector)

	// Validate rate limit configuration
	validateRateLimitConfig(&cfg, filename, collector)

	// Validate event logging
	validateEventLoggingConfig(&cfg, filename, collector)

	// Validate timeout ranges
	validateTimeoutRanges(&cfg, filename, collector)

	// Validate TLS configuration
	validateTLSConfig(&cfg, filepath.Dir(path), filename, collector)

	return &cfg, nil
}

// loadAndValidateHostsFromInclude loads hosts from include pattern and validates them
func loadAndValidateHostsFromInclude(rgConfig *configtypes.RgConfig, configPath string, collector *ErrorCollector) (*configtypes.HostsConfig, []string, error) {
	if rgConfig.Hosts.Include == "" {
		return nil, nil, fmt.Errorf("hosts.include is required in configuration")
	}

	// Resolve include path (relative to config directory)
	configDir := filepath.Dir(configPath)
	includePath := rgConfig.Hosts.Include
	if !filepath.IsAbs(includePath) {
		includePath = filepath.Join(configDir, includePath)
	}

	// Check if it's a directory or glob pattern
	fileInfo, err := os.Stat(includePath)
	if err == nil && fileInfo.IsDir() {
		// It's a directory - append /*.yaml pattern
		includePath = filepath.Join(includePath, "*.yaml")
	}

	// Glob for matching files
	files, err := filepath.Glob(includePath)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid glob pattern '%s': %w", rgConfig.Hosts.Include, err)
	}

	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no host files found matching pattern '%s'", rgConfig.Hosts.Include)
	}

	// Load and merge all host files
	var allHosts []types.Host
	seenIDs := make(map[int]string)        // Track host IDs to detect duplicates across files
	seenDomains := make(map[string]string) // Track domains to detect duplicates across files

	entitlementEnabled := rgConfig.Entitlement != nil && rgConfig.Entitlement.Enabled

	for _, file := range files {
		hosts, err := loadAndValidateHostsConfig(file, entitlementEnabled, collector)
		if err != nil {
			return nil, nil, err
		}
		if hosts == nil {
			// YAML syntax errors were collected, continue to collect all errors
			continue
		}

		// Check for duplicate host IDs and domains across files
		for _, host := range hosts.Hosts {
			if existingFile, exists := seenIDs[host.ID]; exists {
				collector.Add(filepath.Base(file), 0, "duplicate host ID %d found in '%s' (already defined in '%s')",
					host.ID, filepath.Base(file), filepath.Base(existingFile))
			}
			seenIDs[host.ID] = file

			// Check for duplicate domains across files
			for _, domain := range host.Domains {
				normalizedDomain := strings.ToLower(domain)
				if existingFile, exists := seenDomains[normalizedDomain]; exists {
					collector.Add(filepath.Base(file), 0, "duplicate domain %q found in '%s' (already defined in '%s')",
						domain, filepath.Base(file), filepath.Base(existingFile))
				}
				seenDomains[normalizedDomain] = file
			}
		}

		allHosts = append(allHosts, hosts.Hosts...)
	}

	if len(allHosts) == 0 {
		// If collector already has errors (e.g., YAML syntax errors), don't add a misleading generic error
		if collector.HasErrors() {
			return nil, files, nil
		}
		return nil, nil, fmt.Errorf("no hosts loaded from pattern '%s'", rgConfig.Hosts.Include)
	}

	return &configtypes.HostsConfig{Hosts: allHosts}, files, nil
}

// loadAndValidateHostsConfig loads and validates hosts configuration from a single file
func loadAndValidateHostsConfig(path string, entitlementEnabled bool, collector *ErrorCollector) (*configtypes.HostsConfig, error) {
	// Check file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("hosts file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}

	var hosts configtypes.HostsConfig
	if err := yamlutil.UnmarshalStrict(data, &hosts); err != nil {
		errMsg := fmt.Sprintf("YAML syntax error: %v", err)

		// Provide helpful hints for common mistakes
		errStr := err.Error()
		if strings.Contains(errStr, "cannot unmarshal") && strings.Contains(errStr, "into types.OriginConfig") {
			errMsg += "\n  → Hint: 'origin' must be a mapping with a 'url' key"
			errMsg += "\n  → Correct: origin: { url: http://10.0.4.12:8080 }"
			errMsg += "\n  → Incorrect: origin: http://10.0.4.12:8080"
		}

		collector.Add(filepath.Base(path), 0, "%s", errMsg)
		return nil, nil
	}

	// Load line tracker for hosts file
	hostsTracker, err := NewHostsLineTracker(path)
	if err != nil {
		// Line tracking failed, continue without line numbers
		hostsTracker = nil
	}

	// Validate hosts
	validateHosts(&hosts, filepath.Base(path), entitlementEnabled, hostsTracker, collector)

	return &hosts, nil
}

// validateServerConfig validates server configuration
func validateServerConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	lineNum := 0
	if lt != nil {
		lineNum = lt.GetServerLine("listen")
	}
	if cfg.Server.Listen == "" {
		collector.Add(filename, lineNum, "server.listen is required")
	} else if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		collector.Add(filename, lineNum, "invalid server.listen: %v", err)
	}

	if lt != nil {
		lineNum = lt.GetServerLine("timeout")
	}
	if cfg.Server.Timeout <= 0 {
		collector.Add(filename, lineNum, "server.timeout must be positive, got %s", cfg.Server.Timeout)
	}
}

// extractPort parses the port from a listen address (e.g., ":8080" -> 8080, "192.168.1.1:8443" -> 8443).
func extractPort(listen string) (int, error) {
	if listen == "" {
		return 0, nil
	}
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

// resolvePath resolves a file path relative to configDir.
// If path is absolute, it is used as-is. Otherwise, it is joined with configDir.
// Symlinks are resolved using filepath.EvalSymlinks.
func resolvePath(path, configDir string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = path
	} else {
		resolved = filepath.Join(configDir, path)
	}

	// Resolve symlinks
	resolved, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		return "", err
	}

	return resolved, nil
}

// validateTLSConfig validates TLS configuration for HTTPS support.
// configDir is the directory containing the config file, used for resolving relative paths.
func validateTLSConfig(cfg *configtypes.RgConfig, configDir string, filename string, collector *ErrorCollector) {
	tls := cfg.Server.TLS
	if !tls.Enabled {
		return
	}

	// Validate required fields
	if tls.Listen == "" {
		collector.Add(filename, 0, "TLS enabled but tls.listen not specified")
	}
	if tls.CertFile == "" {
		collector.Add(filename, 0, "TLS enabled but tls.cert_file not specified")
	}
	if tls.KeyFile == "" {
		collector.Add(filename, 0, "TLS enabled but tls.key_file not specified")
	}

	// Validate listen address format (only if listen is provided)
	var tlsPort int
	if tls.Listen != "" {
		var err error
		tlsPort, err = extractPort(tls.Listen)
		if err != nil {
			collector.Add(filename, 0, "TLS listen address invalid: %s", tls.Listen)
		} else if tlsPort < 1 || tlsPort > 65535 {
			collector.Add(filename, 0, "TLS listen address invalid: %s", tls.Listen)
		}
	}

	// Validate cert_file (only if path is provided)
	if tls.CertFile != "" {
		certPath, err := resolvePath(tls.CertFile, configDir)
		if err != nil {
			collector.Add(filename, 0, "TLS cert_file not found: %s", tls.CertFile)
		} else if certFile, err := os.Open(certPath); err != nil {
			if os.IsNotExist(err) {
				collector.Add(filename, 0, "TLS cert_file not found: %s", certPath)
			} else {
				collector.Add(filename, 0, "TLS cert_file not readable: %s: %v", certPath, err)
			}
		} else {
			certFile.Close()
		}
	}

	// Validate key_file (only if path is provided)
	if tls.KeyFile != "" {
		keyPath, err := resolvePath(tls.KeyFile, configDir)
		if err != nil {
			collector.Add(filename, 0, "TLS key_file not found: %s", tls.KeyFile)
		} else if keyFile, err := os.Open(keyPath); err != nil {
			if os.IsNotExist(err) {
				collector.Add(filename, 0, "TLS key_file not found: %s", keyPath)
			} else {
				collector.Add(filename, 0, "TLS key_file not readable: %s: %v", keyPath, err)
			}
		} else {
			keyFile.Close()
		}
	}

	// Check for port conflicts (only if we have a valid TLS port)
	if tlsPort > 0 {
		httpPort, err := extractPort(cfg.Server.Listen)
		if err == nil && httpPort > 0 && httpPort == tlsPort {
			collector.Add(filename, 0, "TLS listen port conflicts with server.listen: both use port %d", tlsPort)
		}

		metricsPort := 0
		if cfg.Metrics.Enabled {
			metricsPort, _ = configtypes.GetPortFromListen(cfg.Metrics.Listen)
		}
		if metricsPort > 0 && metricsPort == tlsPort {
			collector.Add(filename, 0, "TLS listen port %d conflicts with metrics.listen", tlsPort)
		}

		internalPort, err := extractPort(cfg.Internal.Listen)
		if err == nil && internalPort > 0 && internalPort == tlsPort {
			collector.Add(filename, 0, "TLS listen port %d conflicts with internal.listen", tlsPort)
		}
	}
}

// validateRedisConfig validates Redis configuration
func validateRedisConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	if cfg.Redis == nil {
		return
	}

	lineNum := 0
	if lt != nil {
		lineNum = lt.GetRedisLine("addr")
	}
	if cfg.Redis.Addr == "" {
		collector.Add(filename, lineNum, "redis.addr is required when redis is configured")
	}
}

// validateMetricsConfig validates metrics configuration
func validateMetricsConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	// Validate metrics listen address
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			collector.Add(filename, 0, "metrics.listen is required when metrics enabled")
		} else if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			collector.Add(filename, 0, "invalid metrics.listen: %v", err)
		}
	}

	// Validate metrics.listen port differs from server.listen port when metrics enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" && cfg.Server.Listen != "" {
		metricsPort, err1 := configtypes.GetPortFromListen(cfg.Metrics.Listen)
		serverPort, err2 := configtypes.GetPortFromListen(cfg.Server.Listen)
		if err1 == nil && err2 == nil && metricsPort == serverPort {
			collector.Add(filename, 0, "metrics.listen port (%d) must differ from server.listen port (%d) when metrics enabled - metrics always run on separate port", metricsPort, serverPort)
		}
	}

	// Validate metrics path
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		collector.Add(filename, 0, "invalid metrics.path '%s' (must start with /)", cfg.Metrics.Path)
	}

	// Validate metrics namespace (must follow Prometheus naming rules)
	if cfg.Metrics.Namespace != "" {
		// Prometheus namespace must match: [a-zA-Z_][a-zA-Z0-9_]*
		namespacePattern := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
		if !namespacePattern.MatchString(cfg.Metrics.Namespace) {
			collector.Add(filename, 0, "invalid metrics.namespace '%s' (must match [a-zA-Z_][a-zA-Z0-9_]*)", cfg.Metrics.Namespace)
		}
	}
}

func validateInternalConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	lineNum := 0

	// internal.listen is required
	if cfg.Internal.Listen == "" {
		collector.Add(filename, lineNum, "internal.listen is required")
	} else if err := configtypes.ValidateListenAddress(cfg.Internal.Listen); err != nil {
		collector.Add(filename, lineNum, "invalid internal.listen: %v", err)
	} else {
		// Validate internal port differs from server port
		internalPort, err1 := configtypes.GetPortFromListen(cfg.Internal.Listen)
		serverPort, err2 := configtypes.GetPortFromListen(cfg.Server.Listen)
		if err1 == nil && err2 == nil && internalPort == serverPort {
			collector.Add(filename, lineNum, "internal.listen port (%d) must differ from server.listen port (%d)", internalPort, serverPort)
		}
	}

	// internal.auth_key is required
	if cfg.Internal.AuthKey == "" {
		collector.Add(filename, lineNum, "internal.auth_key is required")
	} else if len(cfg.Internal.AuthKey) < 16 {
		collector.AddWarning(filename, lineNum, "internal.auth_key is short (%d chars), recommend 32+ characters for security", len(cfg.Internal.AuthKey))
	}
}

func validateLogConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	// Validate log level
	validLogLevels := map[string]bool{
		configtypes.LogLevelDebug:  true,
		configtypes.LogLevelInfo:   true,
		configtypes.LogLevelWarn:   true,
		configtypes.LogLevelError:  true,
		configtypes.LogLevelDPanic: true,
		configtypes.LogLevelPanic:  true,
		configtypes.LogLevelFatal:  true,
	}
	if cfg.Log.Level != "" && !validLogLevels[cfg.Log.Level] {
		collector.Add(filename, 0, "invalid log.level '%s' (must be debug, info, warn, error, dpanic, panic, or fatal)", cfg.Log.Level)
	}

	// Validate console level if specified
	if cfg.Log.Console.Level != "" && !validLogLevels[cfg.Log.Console.Level] {
		collector.Add(filename, 0, "invalid log.console.level '%s' (must be debug, info, warn, error, dpanic, panic, or fatal)", cfg.Log.Console.Level)
	}

	// Validate file level if specified
	if cfg.Log.File.Level != "" && !validLogLevels[cfg.Log.File.Level] {
		collector.Add(filename, 0, "invalid log.file.level '%s' (must be debug, info, warn, error, dpanic, panic, or fatal)", cfg.Log.File.Level)
	}

	// Validate console format
	validConsoleFormats := map[string]bool{
		configtypes.LogFormatJSON:    true,
		configtypes.LogFormatConsole: true,
	}
	if cfg.Log.Console.Enabled && cfg.Log.Console.Format != "" && !validConsoleFormats[cfg.Log.Console.Format] {
		collector.Add(filename, 0, "invalid log.console.format '%s' (must be json or console)", cfg.Log.Console.Format)
	}

	// Validate file configuration
	if cfg.Log.File.Enabled {
		// File path is required when file logging is enabled
		if cfg.Log.File.Path == "" {
			collector.Add(filename, 0, "log.file.path must be specified when file logging is enabled")
		}

		// Validate file format
		validFileFormats := map[string]bool{
			configtypes.LogFormatJSON: true,
			configtypes.LogFormatText: true,
		}
		if cfg.Log.File.Format != "" && !validFileFormats[cfg.Log.File.Format] {
			collector.Add(filename, 0, "invalid log.file.format '%s' (must be json or text)", cfg.Log.File.Format)
		}

		// Validate rotation parameters
		if cfg.Log.File.Rotation.MaxSize < 0 {
			collector.Add(filename, 0, "log.file.rotation.max_size must be >= 0, got %d", cfg.Log.File.Rotation.MaxSize)
		}
		if cfg.Log.File.Rotation.MaxAge < 0 {
			collector.Add(filename, 0, "log.file.rotation.max_age must be >= 0, got %d", cfg.Log.File.Rotation.MaxAge)
		}
		if cfg.Log.File.Rotation.MaxBackups < 0 {
			collector.Add(filename, 0, "log.file.rotation.max_backups must be >= 0, got %d", cfg.Log.File.Rotation.MaxBackups)
		}
	}
}

// validateGlobalOriginConfig validates the global origin section
func validateGlobalOriginConfig(cfg *configtypes.RgConfig, filename string, lt *LineTracker, collector *ErrorCollector) {
	if cfg.Origin.Timeout != nil {
		lineNum := 0
		if lt != nil {
			lineNum = lt.GetOriginLine("timeout")
		}
		if *cfg.Origin.Timeout <= 0 {
			collector.Add(filename, lineNum, "origin.timeout must be positive, got %s", *cfg.Origin.Timeout)
		}
	}
}

// validateRewriteConfigInternal validates a rewrite section at any config level
func validateRewriteConfigInternal(rw *types.RewriteConfig, level string) error {
	if rw == nil {
		return nil
	}

	// Check mutual exclusivity for allowed origin domains
	if len(rw.AllowedOriginDomains) > 0 && len(rw.AllowedOriginDomainsAdd) > 0 {
		return fmt.Errorf("%s: cannot use both allowed_origin_domains and allowed_origin_domains_add", level)
	}

	// Check mutual exclusivity for extensions
	if len(rw.Extensions) > 0 && len(rw.ExtensionsAdd) > 0 {
		return fmt.Errorf("%s: cannot use both extensions and extensions_add", level)
	}

	// Validate edge domain (bare hostname only)
	if rw.EdgeDomain != "" {
		if err := validateBareDomain(rw.EdgeDomain); err != nil {
			return fmt.Errorf("%s: invalid edge_domain %q: %w", level, rw.EdgeDomain, err)
		}
	}

	// Validate allow-list entries
	for i, domain := range rw.AllowedOriginDomains {
		if err := validateBareDomain(domain); err != nil {
			return fmt.Errorf("%s allowed_origin_domains[%d]: invalid domain %q: %w", level, i, domain, err)
		}
	}
	for i, domain := range rw.AllowedOriginDomainsAdd {
		if err := validateBareDomain(domain); err != nil {
			return fmt.Errorf("%s allowed_origin_domains_add[%d]: invalid domain %q: %w", level, i, domain, err)
		}
	}

	// Validate extension entries
	for i, ext := range rw.Extensions {
		if err := validateExtension(ext); err != nil {
			return fmt.Errorf("%s extensions[%d]: %w", level, i, err)
		}
	}
	for i, ext := range rw.ExtensionsAdd {
		if err := validateExtension(ext); err != nil {
			return fmt.Errorf("%s extensions_add[%d]: %w", level, i, err)
		}
	}

	return nil
}

// validateBareDomain checks that a value is a bare hostname (no scheme, path, port, or wildcard)
func validateBareDomain(domain string) error {
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("cannot be empty or whitespace-only")
	}
	if strings.Contains(domain, "://") {
		return fmt.Errorf("must not contain protocol (remove http:// or https://)")
	}
	if strings.Contains(domain, "/") {
		return fmt.Errorf("must not contain path (domain only, no slashes)")
	}
	if strings.Contains(domain, ":") {
		return fmt.Errorf("must not contain port (domain only)")
	}
	if strings.Contains(domain, "*") {
		return fmt.Errorf("wildcards not allowed in domain names")
	}
	if strings.ContainsAny(domain, " \t") {
		return fmt.Errorf("must not contain whitespace")
	}
	return nil
}

// validateExtension checks a media extension entry.
// A missing leading dot is accepted (normalized at load time).
func validateExtension(ext string) error {
	if strings.TrimSpace(ext) == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if strings.ContainsAny(ext, "/*?") {
		return fmt.Errorf("invalid extension %q (no slashes, wildcards, or query characters)", ext)
	}
	return nil
}

// validateGlobalRewriteConfig validates global rewrite configuration
func validateGlobalRewriteConfig(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.Rewrite == nil {
		return
	}

	if err := validateRewriteConfigInternal(cfg.Rewrite, "global"); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

// validateContextConfigInternal validates a context classification section at any config level
func validateContextConfigInternal(ctx *types.ContextConfig, level string) error {
	if ctx == nil {
		return nil
	}

	lists := []struct {
		name     string
		patterns []string
		context  string
	}{
		{"management_paths", ctx.ManagementPaths, "URL"},
		{"api_paths", ctx.APIPaths, "URL"},
		{"cron_paths", ctx.CronPaths, "URL"},
		{"rpc_paths", ctx.RPCPaths, "URL"},
		{"install_paths", ctx.InstallPaths, "URL"},
		{"async_paths", ctx.AsyncPaths, "URL"},
		{"autosave_paths", ctx.AutosavePaths, "URL"},
		{"login_cookies", ctx.LoginCookies, "cookie"},
		{"automation_ua", ctx.AutomationUA, "user-agent"},
	}

	for _, list := range lists {
		for i, pat := range list.patterns {
			if pat == "" {
				return fmt.Errorf("%s: %s[%d]: pattern cannot be empty", level, list.name, i)
			}
			if err := validatePatternSyntax(pat, list.context); err != nil {
				return fmt.Errorf("%s: %s[%d]: %w", level, list.name, i, err)
			}
		}
	}

	return nil
}

// validateGlobalContextConfig validates global context configuration
func validateGlobalContextConfig(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.Context == nil {
		return
	}

	if err := validateContextConfigInternal(cfg.Context, "global"); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

// validateHeadersConfigGlobal validates global headers configuration
func validateHeadersConfigGlobal(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.Headers == nil {
		return
	}

	if err := validateHeadersConfig(cfg.Headers, "global"); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

func validateClientIPConfig(clientIP *types.ClientIPConfig, level string) error {
	if clientIP == nil {
		return nil
	}
	if len(clientIP.Headers) == 0 {
		return fmt.Errorf("%s: client_ip.headers must not be empty when client_ip is configured", level)
	}
	for i, header := range clientIP.Headers {
		if err := ValidateHTTPHeaderName(header); err != nil {
			return fmt.Errorf("%s client_ip.headers[%d]: %w", level, i, err)
		}
	}
	return nil
}

func validateClientIPConfigGlobal(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.ClientIP == nil {
		return
	}
	if err := validateClientIPConfig(cfg.ClientIP, "global"); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

func validateHostClientIP(hostIndex int, host *types.Host, filename string, collector *ErrorCollector) {
	if host.ClientIP == nil {
		return
	}
	if err := validateClientIPConfig(host.ClientIP, fmt.Sprintf("host[%d] (%s)", hostIndex, host.Domain)); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

// validateEntitlementConfig validates the subscription verification configuration
func validateEntitlementConfig(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.Entitlement == nil || !cfg.Entitlement.Enabled {
		return
	}

	ent := cfg.Entitlement

	if ent.URL == "" {
		collector.Add(filename, 0, "entitlement.url is required when entitlement is enabled")
	} else if parsed, err := url.Parse(ent.URL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		collector.Add(filename, 0, "invalid entitlement.url '%s' (must be an absolute http(s) URL)", ent.URL)
	}

	if ent.Timeout <= 0 {
		collector.Add(filename, 0, "entitlement.timeout must be positive, got %s", ent.Timeout)
	} else {
		validateDurationUnit(time.Duration(ent.Timeout), "entitlement.timeout", filename, collector)
	}

	if ent.CacheTTL < 0 {
		collector.Add(filename, 0, "entitlement.cache_ttl cannot be negative, got %s", ent.CacheTTL)
	}
	if ent.CacheGrace < 0 {
		collector.Add(filename, 0, "entitlement.cache_grace cannot be negative, got %s", ent.CacheGrace)
	}

	if ent.CacheTTL == 0 {
		collector.AddWarning(filename, 0, "entitlement.cache_ttl is 0 (every request verifies against the entitlement service)")
	}
}

// validateRateLimitConfig validates the rate limiter configuration
func validateRateLimitConfig(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.RateLimit == nil || !cfg.RateLimit.Enabled {
		return
	}

	rl := cfg.RateLimit

	if rl.Window <= 0 {
		collector.Add(filename, 0, "rate_limit.window must be positive, got %s", rl.Window)
	} else {
		validateDurationUnit(time.Duration(rl.Window), "rate_limit.window", filename, collector)
	}

	if rl.Requests < 0 {
		collector.Add(filename, 0, "rate_limit.requests cannot be negative, got %d", rl.Requests)
	}
}

// validateEventLoggingConfig validates event logging configuration
func validateEventLoggingConfig(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	if cfg.EventLogging == nil {
		return
	}

	if cfg.EventLogging.File.Enabled {
		file := cfg.EventLogging.File

		if file.Path == "" {
			collector.Add(filename, 0, "event_logging.file.path is required when file event logging is enabled")
		}

		// Template is optional - default will be applied by FileEmitter

		if file.Rotation.MaxSize < 0 {
			collector.Add(filename, 0, "event_logging.file.rotation.max_size must be >= 0, got %d", file.Rotation.MaxSize)
		}

		if file.Rotation.MaxAge < 0 {
			collector.Add(filename, 0, "event_logging.file.rotation.max_age must be >= 0, got %d", file.Rotation.MaxAge)
		}

		if file.Rotation.MaxBackups < 0 {
			collector.Add(filename, 0, "event_logging.file.rotation.max_backups must be >= 0, got %d", file.Rotation.MaxBackups)
		}
	}

	if cfg.EventLogging.ClickHouse.Enabled {
		ch := cfg.EventLogging.ClickHouse

		if ch.DSN == "" {
			collector.Add(filename, 0, "event_logging.clickhouse.dsn is required when ClickHouse event logging is enabled")
		}

		if ch.BatchSize < 0 {
			collector.Add(filename, 0, "event_logging.clickhouse.batch_size must be >= 0, got %d", ch.BatchSize)
		}

		if ch.FlushInterval < 0 {
			collector.Add(filename, 0, "event_logging.clickhouse.flush_interval cannot be negative, got %s", ch.FlushInterval)
		}
	}
}

// validateTimeoutRanges validates timeout configuration and warns about dangerously low or high values
func validateTimeoutRanges(cfg *configtypes.RgConfig, filename string, collector *ErrorCollector) {
	// server.timeout validation
	serverTimeout := time.Duration(cfg.Server.Timeout)
	validateDurationUnit(serverTimeout, "server.timeout", filename, collector)
	if serverTimeout > 0 && serverTimeout < 10*time.Second {
		collector.AddWarning(filename, 0, "server.timeout (%s) is low. Slow origins plus rewriting overhead may not fit. Recommended minimum: 10s", cfg.Server.Timeout)
	}
	if serverTimeout > 300*time.Second {
		collector.AddWarning(filename, 0, "server.timeout (%s) is very high. Values over 300s (5 minutes) may indicate architectural issues", cfg.Server.Timeout)
	}

	// origin.timeout validation
	if cfg.Origin.Timeout != nil {
		originTimeout := time.Duration(*cfg.Origin.Timeout)
		validateDurationUnit(originTimeout, "origin.timeout", filename, collector)
		if originTimeout > 0 && originTimeout < 1*time.Second {
			collector.AddWarning(filename, 0, "origin.timeout (%s) is low. Slow origin servers may timeout. Recommended minimum: 1s", *cfg.Origin.Timeout)
		}
		if originTimeout > 60*time.Second {
			collector.AddWarning(filename, 0, "origin.timeout (%s) is high. Values over 60s may indicate origin server performance issues", *cfg.Origin.Timeout)
		}
	}
}

// validateHosts validates host configuration entries
func validateHosts(hosts *configtypes.HostsConfig, filename string, entitlementEnabled bool, ht *HostsLineTracker, collector *ErrorCollector) {
	if len(hosts.Hosts) == 0 {
		collector.Add(filename, 0, "no hosts configured")
		return
	}

	domains := make(map[string]bool)
	licenseKeys := make(map[string]string) // map of license key to domain for duplicate detection
	hostIDs := make(map[int]string)        // map of ID to domain for duplicate detection

	for i := range hosts.Hosts {
		host := &hosts.Hosts[i]

		// Validate Domains array
		if len(host.Domains) == 0 {
			collector.Add(filename, 0, "host[%d]: domain is required (at least one domain must be specified)", i)
		} else {
			seenInHost := make(map[string]bool) // Track duplicates within this host
			for j, domain := range host.Domains {
				// Whitespace-only check
				if strings.TrimSpace(domain) == "" {
					collector.Add(filename, 0, "host[%d]: domain[%d]: cannot be empty or whitespace-only", i, j)
					continue
				}
				// Contains protocol check
				if strings.Contains(domain, "://") {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: must not contain protocol (remove http:// or https://)", i, j, domain)
				}
				// Contains path check
				if strings.Contains(domain, "/") {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: must not contain path (domain only, no slashes)", i, j, domain)
				}
				// Contains port check
				if strings.Contains(domain, ":") {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: must not contain port (domain only)", i, j, domain)
				}
				// Contains wildcard check
				if strings.Contains(domain, "*") {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: wildcards not allowed in domain names", i, j, domain)
				}
				// Lowercase check (RFC 1123)
				if domain != strings.ToLower(domain) {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: must be lowercase (RFC 1123)", i, j, domain)
				}
				// Duplicate within host check (case-insensitive)
				normalizedDomain := strings.ToLower(domain)
				if seenInHost[normalizedDomain] {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: duplicate domain within same host", i, j, domain)
				}
				seenInHost[normalizedDomain] = true

				// Cross-host duplicate check (case-insensitive)
				if domains[normalizedDomain] {
					collector.Add(filename, 0, "host[%d]: domain[%d] %q: duplicate domain (already used by another host)", i, j, domain)
				}
				domains[normalizedDomain] = true
			}
		}

		// Validate host ID (identifies the host in logs, events, and entitlement checks)
		if host.ID <= 0 {
			collector.Add(filename, 0, "host[%d] (%s): id must be positive (got %d)", i, host.Domain, host.ID)
		}

		// Check for duplicate host IDs
		if host.ID > 0 {
			if existingDomain, exists := hostIDs[host.ID]; exists {
				collector.Add(filename, 0, "duplicate host id %d: used by both '%s' and '%s'",
					host.ID, existingDomain, host.Domain)
			}
			hostIDs[host.ID] = host.Domain
		}

		// License key is required when entitlement verification is enabled
		if entitlementEnabled && host.LicenseKey == "" {
			collector.Add(filename, 0, "host[%d] (%s): license_key is required when entitlement is enabled", i, host.Domain)
		}

		if host.LicenseKey != "" {
			if existingDomain, exists := licenseKeys[host.LicenseKey]; exists {
				collector.AddWarning(filename, 0, "host[%d] (%s): license_key is shared with '%s'", i, host.Domain, existingDomain)
			}
			licenseKeys[host.LicenseKey] = host.Domain
		}

		// Validate origin configuration
		validateHostOrigin(i, host, filename, ht, collector)

		// Validate rewrite configuration
		if host.Rewrite != nil {
			if err := validateRewriteConfigInternal(host.Rewrite, fmt.Sprintf("host[%d] (%s)", i, host.Domain)); err != nil {
				collector.Add(filename, 0, "%v", err)
			}
		}

		// Validate context configuration
		if host.Context != nil {
			if err := validateContextConfigInternal(host.Context, fmt.Sprintf("host[%d] (%s)", i, host.Domain)); err != nil {
				collector.Add(filename, 0, "%v", err)
			}
		}

		// Validate URL rules
		if len(host.URLRules) > 0 {
			validateURLRules(i, host, filename, ht, collector)
		}

		// Validate safe_headers
		validateHostHeaders(i, host, filename, collector)

		// Validate client_ip
		validateHostClientIP(i, host, filename, collector)

		// Validate timeout ranges
		validateHostTimeoutRanges(i, host, filename, collector)
	}
}

// validateHostOrigin validates a host's upstream configuration
func validateHostOrigin(hostIndex int, host *types.Host, filename string, ht *HostsLineTracker, collector *ErrorCollector) {
	lineNum := 0
	if ht != nil {
		lineNum = ht.GetHostFieldLine(hostIndex, "origin.url")
	}

	if host.Origin.URL == "" {
		collector.Add(filename, lineNum, "host[%d] (%s): origin.url is required", hostIndex, host.Domain)
		return
	}

	parsed, err := url.Parse(host.Origin.URL)
	if err != nil {
		collector.Add(filename, lineNum, "host[%d] (%s): invalid origin.url '%s': %v", hostIndex, host.Domain, host.Origin.URL, err)
		return
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		collector.Add(filename, lineNum, "host[%d] (%s): origin.url '%s' must use http or https scheme", hostIndex, host.Domain, host.Origin.URL)
	}

	if parsed.Host == "" {
		collector.Add(filename, lineNum, "host[%d] (%s): origin.url '%s' has no host", hostIndex, host.Domain, host.Origin.URL)
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		collector.Add(filename, lineNum, "host[%d] (%s): origin.url '%s' must not contain query or fragment", hostIndex, host.Domain, host.Origin.URL)
	}

	if host.Origin.Timeout != nil && *host.Origin.Timeout <= 0 {
		collector.Add(filename, 0, "host[%d] (%s): origin.timeout must be positive, got %s", hostIndex, host.Domain, *host.Origin.Timeout)
	}
}

// validateHostTimeoutRanges validates host-level timeout configuration and warns about suspect values
func validateHostTimeoutRanges(hostIndex int, host *types.Host, filename string, collector *ErrorCollector) {
	if host.Origin.Timeout == nil {
		return
	}

	originTimeout := time.Duration(*host.Origin.Timeout)
	validateDurationUnit(originTimeout, fmt.Sprintf("host[%d] (%s): origin.timeout", hostIndex, host.Domain), filename, collector)

	if originTimeout > 0 && originTimeout < 1*time.Second {
		collector.AddWarning(filename, 0, "host[%d] (%s): origin.timeout (%s) is low. Slow origins may timeout. Recommended minimum: 1s",
			hostIndex, host.Domain, *host.Origin.Timeout)
	}

	if originTimeout > 60*time.Second {
		collector.AddWarning(filename, 0, "host[%d] (%s): origin.timeout (%s) is high. May indicate origin performance issues",
			hostIndex, host.Domain, *host.Origin.Timeout)
	}
}

// validateHostHeaders validates host-level headers configuration
func validateHostHeaders(hostIndex int, host *types.Host, filename string, collector *ErrorCollector) {
	if host.Headers == nil {
		return
	}

	if err := validateHeadersConfig(host.Headers, fmt.Sprintf("host[%d] (%s)", hostIndex, host.Domain)); err != nil {
		collector.Add(filename, 0, "%v", err)
	}
}

// validateURLRules validates URL rules configuration
func validateURLRules(hostIndex int, host *types.Host, filename string, ht *HostsLineTracker, collector *ErrorCollector) {
	for i, rule := range host.URLRules {
		// Validate match patterns
		patterns := rule.GetMatchPatterns()
		if len(patterns) == 0 {
			collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: match pattern cannot be empty",
				hostIndex, host.Domain, i)
			continue
		}

		// Validate pattern syntax
		for _, pat := range patterns {
			if pat == "" {
				collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: match pattern contains empty string",
					hostIndex, host.Domain, i)
				continue
			}
			if err := validatePatternSyntax(pat, "URL"); err != nil {
				collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: invalid pattern '%s': %v",
					hostIndex, host.Domain, i, pat, err)
			}
		}

		// Validate action
		if !rule.Action.IsValid() {
			collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: invalid action '%s'",
				hostIndex, host.Domain, i, rule.Action)
		}

		// Validate headers at rule level
		if rule.Headers != nil {
			if err := validateHeadersConfig(rule.Headers, fmt.Sprintf("host[%d] (%s): url_rules[%d]", hostIndex, host.Domain, i)); err != nil {
				collector.Add(filename, 0, "%v", err)
			}
		}

		// Validate action-specific configuration
		validateRuleActionConfig(hostIndex, i, &rule, host, filename, ht, collector)
	}
}

// validateRuleActionConfig validates action-specific configuration
func validateRuleActionConfig(hostIndex, ruleIndex int, rule *types.URLRule, host *types.Host, filename string, ht *HostsLineTracker, collector *ErrorCollector) {
	switch rule.Action {
	case types.ActionRewrite:
		// Validate rewrite overrides
		if rule.Rewrite != nil {
			level := fmt.Sprintf("host[%d] (%s): url_rules[%d]", hostIndex, host.Domain, ruleIndex)
			if err := validateRewriteConfigInternal(rule.Rewrite, level); err != nil {
				collector.Add(filename, 0, "%v", err)
			}
		}

	case types.ActionBlock, types.ActionStatus403, types.ActionStatus404, types.ActionStatus410, types.ActionStatus:
		// Validate status configuration
		validateStatusConfig(hostIndex, ruleIndex, host.Domain, rule, filename, collector)
	}
}

// validateStatusConfig validates status action configuration
func validateStatusConfig(hostIndex, ruleIndex int, domain string, rule *types.URLRule, filename string, collector *ErrorCollector) {
	// For generic 'status' action, code is required
	if rule.Action == types.ActionStatus {
		if rule.Status == nil || rule.Status.Code == nil {
			collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: status.code is required for action='status'",
				hostIndex, domain, ruleIndex)
			return
		}
	}

	// Validate status code if provided
	if rule.Status != nil && rule.Status.Code != nil {
		code := *rule.Status.Code

		// Valid status codes: 3xx (300-399), 4xx (400-499), 5xx (500-599)
		if code < 300 || code >= 600 {
			collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: status.code must be 3xx, 4xx, or 5xx (got %d)",
				hostIndex, domain, ruleIndex, code)
		}

		// Validate Location header for 3xx redirects
		statusClass := code / 100
		if statusClass == 3 {
			if rule.Status.Headers == nil || rule.Status.Headers["Location"] == "" {
				collector.Add(filename, 0, "host[%d] (%s): url_rules[%d]: status.headers.Location is required for 3xx redirect (code %d)",
					hostIndex, domain, ruleIndex, code)
			}
		}
	}
}

// validateCrossConfig validates cross-config dependencies
func validateCrossConfig(rgConfig *configtypes.RgConfig, hostsConfig *configtypes.HostsConfig, filename string, collector *ErrorCollector) {
	// Skip cross-validation if configs couldn't be loaded (YAML syntax errors)
	if rgConfig == nil || hostsConfig == nil {
		return
	}

	serverTimeout := time.Duration(rgConfig.Server.Timeout)

	// Global origin timeout must fit inside the server timeout
	if rgConfig.Origin.Timeout != nil && time.Duration(*rgConfig.Origin.Timeout) > serverTimeout {
		collector.Add(filename, 0,
			"origin.timeout (%s) exceeds server.timeout (%s). Origin fetches will never complete successfully",
			*rgConfig.Origin.Timeout, rgConfig.Server.Timeout)
	}

	// Host origin timeouts must fit inside the server timeout
	for i := range hostsConfig.Hosts {
		host := &hostsConfig.Hosts[i]
		if host.Origin.Timeout != nil && time.Duration(*host.Origin.Timeout) > serverTimeout {
			collector.Add(filename, 0,
				"host[%d] (%s): origin.timeout (%s) exceeds server.timeout (%s)",
				i, host.Domain, *host.Origin.Timeout, rgConfig.Server.Timeout)
		}
	}

	// Rate limiter state lives in Redis
	if rgConfig.RateLimit != nil && rgConfig.RateLimit.Enabled && rgConfig.Redis == nil {
		collector.Add(filename, 0, "rate_limit.enabled=true requires a redis section")
	}

	// Entitlement verdicts are cached in Redis
	if rgConfig.Entitlement != nil && rgConfig.Entitlement.Enabled && rgConfig.Redis == nil {
		collector.AddWarning(filename, 0, "entitlement.enabled=true without redis: verdicts are not cached, every request verifies remotely")
	}
}

// validatePatternSyntax validates pattern syntax to catch common mistakes
func validatePatternSyntax(pattern, context string) error {
	// Allow match-all pattern
	if pattern == "*" {
		// Intentional catch-all rule
		return nil
	}

	// Check for consecutive wildcards (likely a mistake)
	// Note: ** is treated the same as * (both are recursive), but consecutive wildcards suggest an error
	if strings.Contains(pattern, "**") || strings.Contains(pattern, "***") {
		return fmt.Errorf("pattern contains consecutive wildcards '**' - use single '*' for recursive matching")
	}

	// Validate regexp patterns
	if strings.HasPrefix(pattern, "~*") {
		// Case-insensitive regexp
		regexpPattern := pattern[2:]
		if regexpPattern == "" {
			return fmt.Errorf("%s pattern '~*' is empty", context)
		}
		// Compile with case-insensitive flag (matching runtime behavior)
		if _, err := regexp.Compile("(?i)" + regexpPattern); err != nil {
			return fmt.Errorf("invalid %s case-insensitive regexp '~*%s': %w", context, regexpPattern, err)
		}
	} else if strings.HasPrefix(pattern, "~") {
		// Case-sensitive regexp
		regexpPattern := pattern[1:]
		if regexpPattern == "" {
			return fmt.Errorf("%s pattern '~' is empty", context)
		}
		if _, err := regexp.Compile(regexpPattern); err != nil {
			return fmt.Errorf("invalid %s case-sensitive regexp '~%s': %w", context, regexpPattern, err)
		}
	}

	return nil
}
