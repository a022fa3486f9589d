package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/redis"
	"github.com/edgelift/gateway/pkg/types"
)

// Verdict sources reported to metrics and events.
const (
	SourceDisabled    = "disabled"
	SourceCache       = "cache"
	SourceService     = "service"
	SourceGrace       = "grace"
	SourceUnavailable = "unavailable"
)

const (
	defaultTimeout    = 5 * time.Second
	defaultCacheTTL   = 5 * time.Minute
	defaultCacheGrace = time.Hour
)

// Result is the outcome of an entitlement check. Allowed=false never blocks
// the page, it only disables rewriting for the request.
type Result struct {
	Allowed bool
	Source  string // disabled, cache, service, grace, unavailable
	Reason  string // service-provided denial reason, empty when allowed
}

type verifyRequest struct {
	HostID     int    `json:"host_id"`
	Domain     string `json:"domain"`
	LicenseKey string `json:"license_key"`
	RgID       string `json:"rg_id,omitempty"`
}

type verifyResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Service verifies that a host's subscription entitles it to URL rewriting.
// Verdicts are cached in Redis so the verification service sees one request
// per host per cache TTL, not one per page view. When the service is down,
// a stale verdict is honored for the configured grace period; with nothing
// to go on, rewriting is disabled and the page passes through unmodified.
type Service struct {
	config     *configtypes.EntitlementConfig
	httpClient *http.Client
	redis      *redis.Client
	keys       *redis.KeyGenerator
	rgID       string
	logger     *zap.Logger

	cacheTTL   time.Duration
	cacheGrace time.Duration

	now func() time.Time
}

// NewService creates an entitlement service. redisClient may be nil when
// entitlement is disabled.
func NewService(cfg *configtypes.EntitlementConfig, redisClient *redis.Client, rgID string, logger *zap.Logger) *Service {
	timeout := defaultTimeout
	cacheTTL := defaultCacheTTL
	cacheGrace := defaultCacheGrace

	if cfg != nil {
		if d := cfg.Timeout.ToDuration(); d > 0 {
			timeout = d
		}
		if d := cfg.CacheTTL.ToDuration(); d > 0 {
			cacheTTL = d
		}
		if d := cfg.CacheGrace.ToDuration(); d > 0 {
			cacheGrace = d
		}
	}

	return &Service{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		redis:      redisClient,
		keys:       redis.NewKeyGenerator(),
		rgID:       rgID,
		logger:     logger,
		cacheTTL:   cacheTTL,
		cacheGrace: cacheGrace,
		now:        time.Now,
	}
}

// Enabled reports whether entitlement checking is configured and turned on.
func (s *Service) Enabled() bool {
	return s.config != nil && s.config.Enabled
}

// Check returns the entitlement verdict for the host. Never returns an error:
// every failure mode maps to a Result the pipeline can act on.
func (s *Service) Check(ctx context.Context, host *types.Host) Result {
	if !s.Enabled() {
		return Result{Allowed: true, Source: SourceDisabled}
	}

	cached, cachedAge, haveCached := s.cachedVerdict(ctx, host.ID)
	if haveCached && cachedAge < s.cacheTTL {
		return Result{Allowed: cached.Allowed, Source: SourceCache, Reason: cached.Reason}
	}

	verdict, err := s.verify(ctx, host)
	if err == nil {
		s.storeVerdict(ctx, host.ID, verdict)
		return Result{Allowed: verdict.Allowed, Source: SourceService, Reason: verdict.Reason}
	}

	s.logger.Warn("Entitlement verification failed",
		zap.Int("host_id", host.ID),
		zap.String("host", host.Domain),
		zap.Error(err))

	// A stale verdict within the grace window beats no verdict
	if haveCached && cachedAge < s.cacheTTL+s.cacheGrace {
		return Result{Allowed: cached.Allowed, Source: SourceGrace, Reason: cached.Reason}
	}

	return Result{Allowed: false, Source: SourceUnavailable, Reason: "verification unavailable"}
}

// verify calls the verification service.
func (s *Service) verify(ctx context.Context, host *types.Host) (*verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{
		HostID:     host.ID,
		Domain:     host.Domain,
		LicenseKey: host.LicenseKey,
		RgID:       s.rgID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.AuthKey != "" {
		httpReq.Header.Set("X-Entitlement-Auth", s.config.AuthKey)
	}

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification service returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var response verifyResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	s.logger.Debug("Entitlement verified",
		zap.Int("host_id", host.ID),
		zap.Bool("allowed", response.Allowed),
		zap.String("reason", response.Reason))

	return &response, nil
}

// cachedVerdict loads the stored verdict and its age. The Redis entry expires
// at cacheTTL+cacheGrace, so anything found is at worst grace-stale.
func (s *Service) cachedVerdict(ctx context.Context, hostID int) (*verifyResponse, time.Duration, bool) {
	if s.redis == nil {
		return nil, 0, false
	}

	fields, err := s.redis.HGetAll(ctx, s.keys.EntitlementKey(hostID))
	if err != nil {
		s.logger.Warn("Failed to read cached entitlement verdict",
			zap.Int("host_id", hostID),
			zap.Error(err))
		return nil, 0, false
	}
	if len(fields) == 0 {
		return nil, 0, false
	}

	checkedAt, err := strconv.ParseInt(fields["checked_at"], 10, 64)
	if err != nil {
		return nil, 0, false
	}

	verdict := &verifyResponse{
		Allowed: fields["allowed"] == "1",
		Reason:  fields["reason"],
	}

	age := s.now().Sub(time.Unix(checkedAt, 0))
	return verdict, age, true
}

// storeVerdict caches a fresh verdict. Errors are logged and ignored: caching
// is an optimization, the verdict has already been obtained.
func (s *Service) storeVerdict(ctx context.Context, hostID int, verdict *verifyResponse) {
	if s.redis == nil {
		return
	}

	allowed := "0"
	if verdict.Allowed {
		allowed = "1"
	}

	err := s.redis.HSetWithExpire(ctx, s.keys.EntitlementKey(hostID), s.cacheTTL+s.cacheGrace,
		"allowed", allowed,
		"reason", verdict.Reason,
		"checked_at", strconv.FormatInt(s.now().Unix(), 10),
	)
	if err != nil {
		s.logger.Warn("Failed to cache entitlement verdict",
			zap.Int("host_id", hostID),
			zap.Error(err))
	}
}
