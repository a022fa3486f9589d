package classify

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/gateway/reqctx"
	"github.com/edgelift/gateway/internal/rewrite"
	"github.com/edgelift/gateway/pkg/pattern"
)

const (
	// uaCacheSize bounds the automation verdict cache. User-Agent strings
	// repeat heavily within a deployment, so a small cache absorbs most
	// pattern evaluations.
	uaCacheSize = 4096
	uaCacheTTL  = 10 * time.Minute
)

// Classifier derives the ambient request signals the rewrite engine's
// context guard consumes. Pattern sets come from the per-URL resolved
// configuration; only the automation verdict is cached, keyed by host ID
// plus User-Agent (context patterns resolve per host, never per rule).
type Classifier struct {
	logger  *zap.Logger
	uaCache *expirable.LRU[string, bool]
}

// NewClassifier creates a Classifier with an expiring automation verdict cache
func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{
		logger:  logger,
		uaCache: expirable.NewLRU[string, bool](uaCacheSize, nil, uaCacheTTL),
	}
}

// Classify inspects the request and returns the classification signals.
// The resolved configuration must already be attached to the context.
func (c *Classifier) Classify(rc *reqctx.RewriteContext) rewrite.Class {
	path := string(rc.HTTPCtx.Path())
	userAgent := string(rc.HTTPCtx.UserAgent())
	ctxCfg := &rc.Resolved.Context

	class := rewrite.Class{
		Management:    pattern.MatchAny(ctxCfg.ManagementPatterns, path),
		API:           pattern.MatchAny(ctxCfg.APIPatterns, path),
		Cron:          pattern.MatchAny(ctxCfg.CronPatterns, path),
		RPC:           pattern.MatchAny(ctxCfg.RPCPatterns, path),
		Installing:    pattern.MatchAny(ctxCfg.InstallPatterns, path),
		Async:         pattern.MatchAny(ctxCfg.AsyncPatterns, path),
		Autosave:      c.isAutosave(rc, ctxCfg.AutosavePatterns, path),
		Automation:    c.isAutomation(rc.Host.ID, userAgent, ctxCfg.UAPatterns),
		Authenticated: hasLoginCookie(&rc.HTTPCtx.Request.Header, ctxCfg.CookiePatterns),
	}

	if signals := Signals(class); len(signals) > 0 {
		rc.Logger.Debug("Request classified",
			zap.Strings("signals", signals))
	}

	return class
}

// isAutosave matches autosave patterns against the path, and when the path
// alone does not match, against path?query. Autosave endpoints are often
// distinguished only by a query action parameter.
func (c *Classifier) isAutosave(rc *reqctx.RewriteContext, patterns []*pattern.Pattern, path string) bool {
	if len(patterns) == 0 {
		return false
	}
	if pattern.MatchAny(patterns, path) {
		return true
	}
	if query := rc.HTTPCtx.URI().QueryString(); len(query) > 0 {
		return pattern.MatchAny(patterns, path+"?"+string(query))
	}
	return false
}

// isAutomation checks the User-Agent against the automation patterns,
// memoizing the verdict per host.
func (c *Classifier) isAutomation(hostID int, userAgent string, patterns []*pattern.Pattern) bool {
	if len(patterns) == 0 || userAgent == "" {
		return false
	}

	key := strconv.Itoa(hostID) + "\x00" + userAgent
	if verdict, ok := c.uaCache.Get(key); ok {
		return verdict
	}

	verdict := pattern.MatchAny(patterns, userAgent)
	c.uaCache.Add(key, verdict)
	return verdict
}

// hasLoginCookie reports whether any request cookie name matches the login
// cookie patterns. Values are irrelevant; presence of the cookie marks an
// operator session.
func hasLoginCookie(header *fasthttp.RequestHeader, patterns []*pattern.Pattern) bool {
	if len(patterns) == 0 {
		return false
	}

	found := false
	header.VisitAllCookie(func(key, value []byte) {
		if found {
			return
		}
		if pattern.MatchAny(patterns, string(key)) {
			found = true
		}
	})
	return found
}

// Signals lists the set classification signals by name, for logging and
// audit events.
func Signals(class rewrite.Class) []string {
	var signals []string
	if class.Management {
		signals = append(signals, "management")
	}
	if class.API {
		signals = append(signals, "api")
	}
	if class.Cron {
		signals = append(signals, "cron")
	}
	if class.Automation {
		signals = append(signals, "automation")
	}
	if class.RPC {
		signals = append(signals, "rpc")
	}
	if class.Autosave {
		signals = append(signals, "autosave")
	}
	if class.Installing {
		signals = append(signals, "installing")
	}
	if class.Async {
		signals = append(signals, "async")
	}
	if class.Authenticated {
		signals = append(signals, "authenticated")
	}
	return signals
}
