package internal_server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/configtypes"
	"github.com/edgelift/gateway/internal/common/httputil"
	"github.com/edgelift/gateway/internal/gateway/configtest"
	"github.com/edgelift/gateway/internal/gateway/metrics"
)

// Handlers serves the operator endpoints: rewrite verdicts against the live
// configuration and process-lifetime counters.
type Handlers struct {
	configManager    configtypes.RGConfigManager
	metricsCollector *metrics.MetricsCollector
	logger           *zap.Logger
}

// NewHandlers creates the operator endpoint handlers
func NewHandlers(configManager configtypes.RGConfigManager, metricsCollector *metrics.MetricsCollector, logger *zap.Logger) *Handlers {
	return &Handlers{
		configManager:    configManager,
		metricsCollector: metricsCollector,
		logger:           logger,
	}
}

// RegisterEndpoints registers the operator handlers with the internal server
func (h *Handlers) RegisterEndpoints(server *InternalServer) {
	server.RegisterHandler("GET", PathRewriteTest, h.handleRewriteTest)
	server.RegisterHandler("GET", PathStats, h.handleStats)
}

// handleRewriteTest reports how each configured host would treat a URL.
// GET /internal/rewrite/test?url={url}
func (h *Handlers) handleRewriteTest(ctx *fasthttp.RequestCtx) {
	rawURL := string(ctx.QueryArgs().Peek("url"))
	if rawURL == "" {
		httputil.JSONError(ctx, "missing url parameter", fasthttp.StatusBadRequest)
		return
	}

	result, err := configtest.TestURLWithManager(rawURL, h.configManager)
	if err != nil {
		h.logger.Warn("Rewrite test failed",
			zap.String("url", rawURL),
			zap.Error(err))
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}

	httputil.JSONData(ctx, result, fasthttp.StatusOK)
}

// handleStats returns process-lifetime request and rewrite counters.
// GET /internal/stats
func (h *Handlers) handleStats(ctx *fasthttp.RequestCtx) {
	httputil.JSONData(ctx, h.metricsCollector.Stats(), fasthttp.StatusOK)
}
