package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/yamlutil"
	"github.com/edgelift/gateway/internal/gateway/validate"
	"github.com/edgelift/gateway/pkg/types"
)

// Type aliases for backward compatibility
type (
	RgConfig           = configtypes.RgConfig
	ServerConfig       = configtypes.ServerConfig
	RedisConfig        = configtypes.RedisConfig
	GlobalOriginConfig = configtypes.GlobalOriginConfig
	EntitlementConfig  = configtypes.EntitlementConfig
	RateLimitConfig    = configtypes.RateLimitConfig
	LogConfig          = configtypes.LogConfig
	MetricsConfig      = configtypes.MetricsConfig
	InternalConfig     = configtypes.InternalConfig
	HostsIncludeConfig = configtypes.HostsIncludeConfig
	HostsConfig        = configtypes.HostsConfig
)

// Compile-time interface satisfaction check
var _ configtypes.RGConfigManager = (*RGConfigManager)(nil)

// hostsCache holds cached hosts data for thread-safe O(1) domain lookup
type hostsCache struct {
	hosts    []types.Host
	byDomain map[string]*types.Host // lowercase domain -> host pointer
}

// RGConfigManager handles configuration loading
type RGConfigManager struct {
	config     *RgConfig
	hosts      *HostsConfig
	cache      atomic.Pointer[hostsCache]
	configPath string
	logger     *zap.Logger
}

// buildHostsCache creates a hostsCache from a hosts slice for O(1) domain lookup
func buildHostsCache(hosts []types.Host) *hostsCache {
	cache := &hostsCache{
		hosts:    hosts,
		byDomain: make(map[string]*types.Host),
	}
	for i := range hosts {
		for _, domain := range hosts[i].Domains {
			cache.byDomain[strings.ToLower(domain)] = &hosts[i]
		}
	}
	return cache
}

func NewRGConfigManager(configPath string, logger *zap.Logger) (*RGConfigManager, error) {
	cm := &RGConfigManager{
		configPath: configPath,
		logger:     logger,
	}

	if err := cm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// LoadConfig loads configuration from files
func (cm *RGConfigManager) LoadConfig() error {
	// Validate configuration files first
	result, err := validate.ValidateConfiguration(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	// Check for validation errors
	if !result.Valid {
		// Convert validation errors to runtime error
		return cm.formatValidationErrors(result.Errors)
	}

	// Load main config
	if err := cm.loadMainConfig(cm.configPath); err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	// Prepare global-level context and rewrite sections (hosts inherit them)
	if err := cm.prepareGlobalConfig(); err != nil {
		return err
	}

	// Load hosts config using include pattern
	if err := cm.loadHostsFromInclude(); err != nil {
		return fmt.Errorf("failed to load hosts config: %w", err)
	}

	// Apply defaults to configuration
	cm.applyDefaults()

	// Build and store thread-safe hosts cache for O(1) domain lookup
	cache := buildHostsCache(cm.hosts.Hosts)
	cm.cache.Store(cache)

	// Emit runtime warnings (non-validation concerns)
	cm.emitConfigWarnings()

	return nil
}

// loadMainConfig loads main configuration from YAML file
func (cm *RGConfigManager) loadMainConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var config RgConfig
	if err := yamlutil.UnmarshalStrict(data, &config); err != nil {
		return err
	}

	cm.config = &config
	return nil
}

// prepareGlobalConfig expands UA aliases, compiles global context patterns,
// and normalizes the global rewrite section
func (cm *RGConfigManager) prepareGlobalConfig() error {
	if cm.config.Context != nil {
		if len(cm.config.Context.AutomationUA) > 0 {
			expanded, err := ExpandUAAliases(cm.config.Context.AutomationUA, "global config")
			if err != nil {
				return fmt.Errorf("failed to expand UA aliases in global context: %w", err)
			}
			cm.config.Context.AutomationUA = expanded
		}

		if err := cm.config.Context.CompilePatterns(); err != nil {
			return fmt.Errorf("global context: %w", err)
		}
	}

	if cm.config.Rewrite != nil {
		normalizeRewriteConfig(cm.config.Rewrite)
	}

	return nil
}

// loadHostsFromInclude loads hosts configuration from files matching the include pattern
func (cm *RGConfigManager) loadHostsFromInclude() error {
	if cm.config.Hosts.Include == "" {
		return fmt.Errorf("hosts.include is required in configuration")
	}

	// Resolve include path (relative to config directory)
	includePath := cm.config.Hosts.Include
	if !filepath.IsAbs(includePath) {
		configDir := filepath.Dir(cm.configPath)
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
		return fmt.Errorf("invalid glob pattern '%s': %w", cm.config.Hosts.Include, err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no host files found matching pattern '%s'", cm.config.Hosts.Include)
	}

	// Sort files for deterministic loading order
	sort.Strings(files)

	// Load and merge all host files
	var allHosts []types.Host
	seenIDs := make(map[int]string) // Track host IDs to detect duplicates

	for _, file := range files {
		hosts, err := cm.loadHostsFile(file)
		if err != nil {
			return fmt.Errorf("failed to load host file '%s': %w", file, err)
		}

		// Check for duplicate host IDs
		for _, host := range hosts {
			if existingFile, exists := seenIDs[host.ID]; exists {
				return fmt.Errorf("duplicate host ID %d found in '%s' (already defined in '%s')", host.ID, file, existingFile)
			}
			seenIDs[host.ID] = file
		}

		allHosts = append(allHosts, hosts...)
	}

	cm.hosts = &HostsConfig{Hosts: allHosts}

	cm.logger.Info("Loaded hosts from include pattern",
		zap.String("pattern", cm.config.Hosts.Include),
		zap.Int("files_loaded", len(files)),
		zap.Int("total_hosts", len(allHosts)),
	)

	return nil
}

// loadHostsFile loads hosts from a single YAML file
func (cm *RGConfigManager) loadHostsFile(path string) ([]types.Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var hostsConfig HostsConfig
	if err := yamlutil.UnmarshalStrict(data, &hostsConfig); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	// Process each host: expand aliases, compile patterns, normalize rewrite config, sort URL rules
	for i := range hostsConfig.Hosts {
		host := &hostsConfig.Hosts[i]
		contextPath := fmt.Sprintf("%s:host_id=%d", path, host.ID)

		if err := PrepareHost(host, contextPath, cm.logger); err != nil {
			return nil, fmt.Errorf("host '%s': %w", host.Domain, err)
		}
	}

	return hostsConfig.Hosts, nil
}

// GetConfig returns current Rewrite Gateway configuration
func (cm *RGConfigManager) GetConfig() *RgConfig {
	return cm.config
}

// GetHosts returns current hosts configuration
func (cm *RGConfigManager) GetHosts() []types.Host {
	cache := cm.cache.Load()
	if cache == nil {
		return nil
	}
	return cache.hosts
}

// GetHostByDomain returns the host configuration for a domain.
// Domain matching is case-insensitive and checks all domains in host.Domains array.
// Returns nil if no matching host is found.
func (cm *RGConfigManager) GetHostByDomain(domain string) *types.Host {
	cache := cm.cache.Load()
	if cache == nil {
		return nil
	}
	return cache.byDomain[strings.ToLower(domain)]
}

// SetConfig sets the configuration (for testing)
func (cm *RGConfigManager) SetConfig(cfg *RgConfig) {
	cm.config = cfg
}

// SetHosts sets the hosts configuration (for testing)
func (cm *RGConfigManager) SetHosts(hosts *HostsConfig) {
	cm.hosts = hosts
	// Rebuild cache when hosts are updated, clear when nil
	if hosts != nil {
		cache := buildHostsCache(hosts.Hosts)
		cm.cache.Store(cache)
	} else {
		cm.cache.Store(nil)
	}
}

// applyDefaults applies default values to configuration
func (cm *RGConfigManager) applyDefaults() {
	// Apply log configuration defaults
	// If both outputs are disabled (zero values), enable console by default
	if !cm.config.Log.Console.Enabled && !cm.config.Log.File.Enabled {
		cm.config.Log.Console.Enabled = true
	}

	// Set format defaults if not specified
	if cm.config.Log.Console.Format == "" {
		cm.config.Log.Console.Format = configtypes.LogFormatConsole
	}

	if cm.config.Log.File.Format == "" {
		cm.config.Log.File.Format = configtypes.LogFormatText
	}

	// Apply metrics endpoint defaults if not specified
	if cm.config.Metrics.Path == "" {
		cm.config.Metrics.Path = "/metrics"
	}

	if cm.config.Metrics.Namespace == "" {
		cm.config.Metrics.Namespace = "edgelift"
	}
}

// emitConfigWarnings emits runtime warnings for configuration (non-validation concerns)
func (cm *RGConfigManager) emitConfigWarnings() {
	// Warn if rewriting is enabled globally but no edge domain is configured
	// (hosts without their own edge_domain pass everything through untouched)
	if cm.config.Rewrite != nil {
		enabled := cm.config.Rewrite.Enabled == nil || *cm.config.Rewrite.Enabled
		if enabled && cm.config.Rewrite.EdgeDomain == "" {
			cm.logger.Warn("rewrite.enabled=true but edge_domain is empty (hosts without their own edge_domain are not rewritten)")
		}
	}

	// Warn if rate limiting is enabled but allows zero requests per window
	if cm.config.RateLimit != nil && cm.config.RateLimit.Enabled && cm.config.RateLimit.Requests <= 0 {
		cm.logger.Warn("rate_limit.enabled=true but requests<=0 (every request is throttled)")
	}
}

// formatValidationErrors converts validation errors to a single runtime error
func (cm *RGConfigManager) formatValidationErrors(errors []validate.ValidationError) error {
	if len(errors) == 0 {
		return fmt.Errorf("configuration validation failed")
	}

	// Format first error as the main error message
	firstErr := errors[0]
	var msg string
	if firstErr.Line > 0 {
		msg = fmt.Sprintf("%s line %d: %s", firstErr.File, firstErr.Line, firstErr.Message)
	} else {
		msg = fmt.Sprintf("%s: %s", firstErr.File, firstErr.Message)
	}

	// If there are multiple errors, append count
	if len(errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more errors)", msg, len(errors)-1)
	}

	return fmt.Errorf("%s", msg)
}
