package rewrite

// UnsafeContext reports whether the current request context must not be
// rewritten. The verdict is computed lazily from the ambient signals and the
// host overrides, then memoized for the rest of the request.
func (e *Engine) UnsafeContext() bool {
	switch e.verdict {
	case verdictSafe:
		return false
	case verdictUnsafe:
		return true
	}

	if e.classifyUnsafe() {
		e.verdict = verdictUnsafe
		return true
	}
	e.verdict = verdictSafe
	return false
}

func (e *Engine) classifyUnsafe() bool {
	if e.overrides != nil && callOverride(e.overrides.ForceUnsafe, true) {
		return true
	}

	c := e.class
	if c.Installing || c.Cron || c.Automation || c.RPC || c.Autosave || c.API {
		return true
	}

	if c.Management {
		if e.overrides != nil && callOverride(e.overrides.AllowManagementRewrite, false) {
			return false
		}
		if c.Async {
			if !c.Authenticated {
				// Visitor-triggered sub-call (e.g. infinite scroll).
				return false
			}
			if e.overrides != nil && callOverride(e.overrides.TreatAsVisitorSubrequest, false) {
				return false
			}
			return true
		}
		return true
	}

	return false
}

// callOverride invokes one host-supplied extension point. A panic counts as
// the fail-closed fallback, never as permission to rewrite.
func callOverride(fn func() bool, fallback bool) (result bool) {
	defer func() {
		if recover() != nil {
			result = fallback
		}
	}()
	return fn()
}
