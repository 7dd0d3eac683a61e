package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

const DefaultMaxHops = 2

// Follower issues a single confirmation request without following redirects.
type Follower interface {
	Follow(ctx context.Context, method, target string, fields map[string]string) model.RelayAttempt
}

// Policy controls how redirect responses from the form processor are trusted.
type Policy struct {
	// Confirm fetches the Location target once instead of trusting the redirect itself.
	Confirm bool
	// MaxHops caps the total number of requests, the initial POST included.
	MaxHops int
	// AllowedHosts restricts confirmation targets. Empty means any http(s) host.
	AllowedHosts []string
}

// Interpreter classifies relay attempts into a verdict.
type Interpreter struct {
	policy   Policy
	follower Follower
	allowed  map[string]struct{}
}

// NewInterpreter builds an interpreter. follower may be nil when Confirm is off.
func NewInterpreter(follower Follower, policy Policy) *Interpreter {
	if policy.MaxHops <= 0 {
		policy.MaxHops = DefaultMaxHops
	}
	allowed := make(map[string]struct{}, len(policy.AllowedHosts))
	for _, h := range policy.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &Interpreter{policy: policy, follower: follower, allowed: allowed}
}

// Policy returns the effective policy.
func (i *Interpreter) Policy() Policy {
	return i.policy
}

type step int

const (
	stepReject step = iota
	stepAccept
	stepRedirect
)

// classify applies the transition table to a single hop.
func classify(a model.RelayAttempt) (step, string) {
	switch {
	case a.StatusCode == 0:
		return stepReject, "transport failure"
	case a.StatusCode >= 200 && a.StatusCode <= 299:
		return stepAccept, fmt.Sprintf("status %d", a.StatusCode)
	case isRedirect(a.StatusCode) && a.HasLocation():
		return stepRedirect, ""
	case a.StatusCode >= 300 && a.StatusCode <= 399:
		return stepReject, fmt.Sprintf("status %d without usable Location", a.StatusCode)
	case a.StatusCode >= 400:
		return stepReject, fmt.Sprintf("status %d", a.StatusCode)
	default:
		return stepReject, fmt.Sprintf("unexpected status %d", a.StatusCode)
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// confirmMethod picks the confirmation request method from the redirect status:
// 301/302/303 switch to GET, 307/308 repeat the original method and body.
func confirmMethod(status int, original string) string {
	switch status {
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		if original == "" {
			return http.MethodPost
		}
		return original
	default:
		return http.MethodGet
	}
}

// Interpret turns the first relay attempt into a verdict, issuing at most
// MaxHops-1 confirmation requests when the policy asks for them.
func (i *Interpreter) Interpret(ctx context.Context, first model.RelayAttempt, fields map[string]string) model.RelayVerdict {
	hops := []model.RelayAttempt{first}
	current := first

	for {
		next, reason := classify(current)
		switch next {
		case stepAccept:
			return verdict(model.OutcomeAccepted, reason, hops)
		case stepReject:
			return verdict(model.OutcomeRejected, reason, hops)
		}

		// current is a recognized redirect with a Location.
		if !i.policy.Confirm {
			return verdict(model.OutcomeAccepted, fmt.Sprintf("redirect %d to %s", current.StatusCode, current.LocationHeader), hops)
		}
		if len(hops) >= i.policy.MaxHops {
			return verdict(model.OutcomeIndeterminate, fmt.Sprintf("hop limit %d reached", i.policy.MaxHops), hops)
		}
		if i.follower == nil {
			return verdict(model.OutcomeIndeterminate, "no follower configured", hops)
		}

		target, err := resolveLocation(current)
		if err != nil {
			return verdict(model.OutcomeRejected, err.Error(), hops)
		}
		if !i.hostAllowed(target.Hostname()) {
			return verdict(model.OutcomeRejected, fmt.Sprintf("redirect host %q not allowed", target.Hostname()), hops)
		}

		method := confirmMethod(current.StatusCode, current.Method)
		var body map[string]string
		if method != http.MethodGet {
			body = fields
		}
		current = i.follower.Follow(ctx, method, target.String(), body)
		hops = append(hops, current)
	}
}

func (i *Interpreter) hostAllowed(host string) bool {
	if len(i.allowed) == 0 {
		return true
	}
	_, ok := i.allowed[strings.ToLower(host)]
	return ok
}

// resolveLocation resolves the Location header against the URL of the hop that
// returned it and refuses anything that is not plain http(s).
func resolveLocation(a model.RelayAttempt) (*url.URL, error) {
	loc, err := url.Parse(a.LocationHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid Location %q", a.LocationHeader)
	}
	if !loc.IsAbs() {
		base, err := url.Parse(a.URL)
		if err != nil || !base.IsAbs() {
			return nil, fmt.Errorf("relative Location %q without a base URL", a.LocationHeader)
		}
		loc = base.ResolveReference(loc)
	}
	if loc.Scheme != "http" && loc.Scheme != "https" {
		return nil, fmt.Errorf("redirect scheme %q not allowed", loc.Scheme)
	}
	if loc.Host == "" {
		return nil, fmt.Errorf("redirect Location %q has no host", a.LocationHeader)
	}
	return loc, nil
}

func verdict(outcome model.Outcome, reason string, hops []model.RelayAttempt) model.RelayVerdict {
	return model.RelayVerdict{Outcome: outcome, Reason: reason, Hops: hops}
}
