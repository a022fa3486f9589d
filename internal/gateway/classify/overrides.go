package classify

import (
	"github.com/edgelift/gateway/internal/common/config"
	"github.com/edgelift/gateway/internal/rewrite"
)

// configOverrides adapts the resolved context switches to the engine's
// override interface. ForceUnsafe has no configuration surface; the method
// exists so deployments embedding the engine can supply their own
// implementation.
type configOverrides struct {
	allowManagementRewrite     bool
	allowAuthenticatedVisitors bool
}

// NewOverrides builds the engine override set from resolved context switches
func NewOverrides(ctxCfg *config.ResolvedContextConfig) rewrite.Overrides {
	return &configOverrides{
		allowManagementRewrite:     ctxCfg.AllowManagementRewrite,
		allowAuthenticatedVisitors: ctxCfg.AllowAuthenticatedVisitors,
	}
}

func (o *configOverrides) ForceUnsafe() bool { return false }

func (o *configOverrides) AllowManagementRewrite() bool { return o.allowManagementRewrite }

func (o *configOverrides) TreatAsVisitorSubrequest() bool { return o.allowAuthenticatedVisitors }
