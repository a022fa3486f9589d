package events

import (
	"time"
)

// RequestEvent contains all data for a single request event
type RequestEvent struct {
	// Identifiers
	RequestID string `json:"request_id"`
	Host      string `json:"host"`
	HostID    int    `json:"host_id"`
	URL       string `json:"url"`

	// Request metadata
	EventType   string `json:"event_type"` // rewrite, passthrough, block, status, rate_limited, error
	UserAgent   string `json:"user_agent"`
	ClientIP    string `json:"client_ip"`
	MatchedRule string `json:"matched_rule"`

	// Response
	StatusCode int     `json:"status_code"`
	PageSize   int64   `json:"page_size"`
	ServeTime  float64 `json:"serve_time"` // seconds

	// Upstream
	OriginTime float64 `json:"origin_time"` // seconds

	// Entitlement
	EntitlementSource string `json:"entitlement_source,omitempty"` // cache, service, grace

	// Error info
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`

	// Rewrite metrics (nil when the markup pass did not run)
	Rewrite *RewriteMetricsEvent `json:"rewrite,omitempty"`

	// Timestamps
	CreatedAt    time.Time `json:"created_at"`
	RgInstanceID string    `json:"rg_instance_id"`
}

// RewriteMetricsEvent contains markup pass metrics
type RewriteMetricsEvent struct {
	URLsRewritten  int     `json:"urls_rewritten"`
	URLsSkipped    int     `json:"urls_skipped"`
	UnsafeContext  bool    `json:"unsafe_context"`
	Signals        string  `json:"signals"` // comma-joined classification signals
	ScriptInjected bool    `json:"script_injected"`
	Duration       float64 `json:"duration"` // seconds
}
