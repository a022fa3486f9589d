package redis

import (
	"fmt"
)

const (
	rateLimitKeyPrefix   = "rl:"
	entitlementKeyPrefix = "ent:"
)

// KeyGenerator provides universal Redis key generation for gateway state
type KeyGenerator struct{}

// NewKeyGenerator creates a new KeyGenerator instance
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// RateLimitKey returns the counter key for one client within one fixed window.
// Format: rl:{hostID}:{clientIP}:{windowStart}
func (kg *KeyGenerator) RateLimitKey(hostID int, clientIP string, windowStart int64) string {
	return fmt.Sprintf("%s%d:%s:%d", rateLimitKeyPrefix, hostID, clientIP, windowStart)
}

// EntitlementKey returns the cached verdict key for a host.
// Format: ent:{hostID}
func (kg *KeyGenerator) EntitlementKey(hostID int) string {
	return fmt.Sprintf("%s%d", entitlementKeyPrefix, hostID)
}
