package rewrite

// Attribute names stamped onto processed markup. The client recovery script
// served at /__edgelift/recover.js keys off the same names.
const (
	// MarkerAttr marks an element as already processed so later passes
	// skip it.
	MarkerAttr = "data-edgelift"
	// RecoverAttr marks a time-based media element whose failed loads the
	// client script may retry against the origin.
	RecoverAttr = "data-edgelift-recover"

	markerValue = "1"
)

// Config is the engine's read-only configuration snapshot, resolved by the
// configuration layer before the engine is constructed.
type Config struct {
	// Enabled turns rewriting on. When false every operation passes input
	// through unchanged.
	Enabled bool
	// EdgeDomain is the bare delivery domain (no scheme, no path). Empty
	// means rewriting is a no-op.
	EdgeDomain string
	// AllowedOriginDomains restricts eligible URL hosts. A host is allowed
	// when it equals an entry or is a subdomain of one. Empty means no
	// domain restriction.
	AllowedOriginDomains []string
	// Extensions is the supported media extension set (lowercase, leading
	// dot). Empty falls back to the default media set.
	Extensions []string
}

// Base is the site origin used to absolutize relative and protocol-relative
// candidate URLs.
type Base struct {
	Scheme string
	Host   string
}

func (b Base) scheme() string {
	if b.Scheme == "" {
		return "https"
	}
	return b.Scheme
}

// Class carries the ambient request signals the context guard classifies.
// The gateway's classifier fills it once per request.
type Class struct {
	// Management is true when the request renders an administrative or
	// editorial surface.
	Management bool
	// API is true for machine-to-machine API requests.
	API bool
	// Cron is true for background or scheduled job endpoints.
	Cron bool
	// Automation is true when the client is a command-line automation tool.
	Automation bool
	// RPC is true for remote-procedure-call endpoints used by publishing
	// tools.
	RPC bool
	// Autosave is true while the platform performs an autosave.
	Autosave bool
	// Installing is true while the platform is mid-installation or upgrade.
	Installing bool
	// Async is true when the request is an asynchronous sub-request of a
	// management surface.
	Async bool
	// Authenticated is true when the request carries an operator login.
	Authenticated bool
}

// Overrides are the host-supplied extension points that may adjust the
// context guard's verdict. Implementations must be cheap; a panic from any
// method is recovered and treated as declining to override.
type Overrides interface {
	// ForceUnsafe declares the context unsafe regardless of other signals.
	ForceUnsafe() bool
	// AllowManagementRewrite re-enables rewriting inside management
	// surfaces.
	AllowManagementRewrite() bool
	// TreatAsVisitorSubrequest treats an authenticated async sub-request
	// as visitor traffic.
	TreatAsVisitorSubrequest() bool
}

// Attr is one element attribute in an ordered attribute list.
type Attr struct {
	Name  string
	Value string
}

// ImageDescriptor describes a single sized image rendition.
type ImageDescriptor struct {
	URL     string
	Width   int
	Height  int
	Resized bool
}

// SourceCandidate is one entry of a responsive source list: a URL plus its
// width ("640w") or density ("2x") descriptor.
type SourceCandidate struct {
	URL        string
	Descriptor string
}

// Reason classifies the eligibility verdict for a candidate URL.
type Reason int

const (
	ReasonEligible Reason = iota
	ReasonEmptyURL
	ReasonInvalidURL
	ReasonEdgeURL
	ReasonDomainNotAllowed
	ReasonExtension
)

func (r Reason) String() string {
	switch r {
	case ReasonEligible:
		return "eligible"
	case ReasonEmptyURL:
		return "empty_url"
	case ReasonInvalidURL:
		return "invalid_url"
	case ReasonEdgeURL:
		return "already_edge"
	case ReasonDomainNotAllowed:
		return "domain_not_allowed"
	case ReasonExtension:
		return "unsupported_extension"
	}
	return "unknown"
}

// Stats holds per-request counters. The pipeline reads them after processing
// to feed metrics and audit events; the engine itself never logs.
type Stats struct {
	TagsScanned      int
	URLsRewritten    int
	SrcRewritten     int
	SrcsetRewritten  int
	PosterRewritten  int
	TagsMarked       int
	RecoveryMarked   int
	SkippedEmpty     int
	SkippedInvalid   int
	SkippedEdge      int
	SkippedDomain    int
	SkippedExtension int
}

func (s *Stats) countSkip(r Reason) {
	switch r {
	case ReasonEmptyURL:
		s.SkippedEmpty++
	case ReasonInvalidURL:
		s.SkippedInvalid++
	case ReasonEdgeURL:
		s.SkippedEdge++
	case ReasonDomainNotAllowed:
		s.SkippedDomain++
	case ReasonExtension:
		s.SkippedExtension++
	}
}
