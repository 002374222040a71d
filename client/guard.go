package client

import "net/url"

// DecisionKind classifies a route guard outcome.
type DecisionKind int

const (
	// DecisionPlaceholder means the session is still loading; render a
	// placeholder and re-evaluate when the state settles.
	DecisionPlaceholder DecisionKind = iota
	// DecisionRedirect means the caller is anonymous and should be sent
	// to the login page.
	DecisionRedirect
	// DecisionDenied means the caller is authenticated but lacks the
	// required permissions.
	DecisionDenied
	// DecisionAllow admits the caller.
	DecisionAllow
)

// Decision is the outcome of a route guard evaluation.
type Decision struct {
	Kind DecisionKind
	// RedirectURL is set for DecisionRedirect: the login path with the
	// attempted path carried in the callbackUrl query parameter.
	RedirectURL string
}

// GuardRoute evaluates access to a path. An anonymous caller is redirected
// to loginPath with the attempted path URL-encoded as callbackUrl, so login
// can return the user where they were headed.
func GuardRoute(s *Session, path, loginPath string, required ...string) Decision {
	switch s.State() {
	case StateLoading:
		return Decision{Kind: DecisionPlaceholder}
	case StateAnonymous:
		return Decision{
			Kind:        DecisionRedirect,
			RedirectURL: loginPath + "?callbackUrl=" + url.QueryEscape(path),
		}
	}
	if !s.Can(required...) {
		return Decision{Kind: DecisionDenied}
	}
	return Decision{Kind: DecisionAllow}
}

// GateMode selects how a Gate combines its requirements.
type GateMode int

const (
	// GateAll requires every permission (AND).
	GateAll GateMode = iota
	// GateAny requires at least one permission (OR).
	GateAny
)

// GateResult tells the caller what to render.
type GateResult int

const (
	// GateHidden renders nothing. Used while loading: showing a fallback
	// for a user who turns out to hold the permission would flicker.
	GateHidden GateResult = iota
	// GateFallback renders the configured alternative content.
	GateFallback
	// GateShow renders the gated content.
	GateShow
)

// Gate guards a single UI element.
type Gate struct {
	Require []string
	Mode    GateMode
}

// Evaluate resolves the gate against the current session snapshot.
func (g Gate) Evaluate(s *Session) GateResult {
	if s.State() == StateLoading {
		return GateHidden
	}
	allowed := false
	switch {
	case len(g.Require) == 0:
		// An empty requirement gates on authentication only, matching
		// the server-side guard.
		allowed = s.State() == StateAuthenticated
	case g.Mode == GateAny:
		allowed = s.CanAny(g.Require...)
	default:
		allowed = s.Can(g.Require...)
	}
	if allowed {
		return GateShow
	}
	return GateFallback
}
