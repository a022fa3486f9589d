package pipeline

import "time"

// Actions describe how a request was ultimately answered. They feed the
// per-request audit event and the request metrics labels.
const (
	ActionRewrite     = "rewrite"
	ActionPassthrough = "passthrough"
	ActionBlock       = "block"
	ActionStatus      = "status"
	ActionError       = "error"
)

// Result summarizes one processed request for metrics and event logging.
type Result struct {
	// Action is the outcome class: rewrite, passthrough, block, status or
	// error. A rewrite-action request that skipped rewriting (entitlement,
	// unsafe context, non-HTML body) still reports "rewrite" with
	// RewriteApplied false.
	Action string

	StatusCode  int
	BytesServed int64
	// ContentEncoding is the encoding of the served body ("gzip" or
	// "identity").
	ContentEncoding string

	OriginTime  time.Duration
	RewriteTime time.Duration

	// RewriteApplied is true when at least one URL was rewritten.
	RewriteApplied bool
	UnsafeContext  bool
	// Signals names the classification signals that were set for the
	// request (management, api, automation, ...).
	Signals        []string
	URLsRewritten  int
	URLsSkipped    int
	SkipReasons    map[string]uint64
	ScriptInjected bool

	// EntitlementSource records where the entitlement verdict came from
	// (cache, service, grace, ...). Empty when no check ran.
	EntitlementSource string

	ErrorType    string
	ErrorMessage string
}
