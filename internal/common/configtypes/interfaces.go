package configtypes

import "github.com/edgelift/gateway/pkg/types"

// RGConfigManager provides access to Rewrite Gateway configuration.
// Implementations must be safe for concurrent use.
// Returned pointers are read-only - callers must not modify them.
type RGConfigManager interface {
	// GetConfig returns the main gateway configuration (read-only)
	GetConfig() *RgConfig

	// GetHosts returns all configured hosts (read-only slice)
	GetHosts() []types.Host

	// GetHostByDomain returns the host for a domain, or nil if not found.
	// Domain matching is case-insensitive.
	// Returned pointer is read-only - do not modify.
	GetHostByDomain(domain string) *types.Host
}
