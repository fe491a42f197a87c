// Package proxy models egress tiers and the escalation policy applied
// to retries. Proxy infrastructure itself (credentials, pools) is
// external; this package only decides which tier a request should use
// and rotates the configured egress URLs within a tier.
package proxy

import (
	"fmt"

	"github.com/stackhound/stackhound/internal/types"
)

// Tier is a class of network egress. Higher tiers are harder to block
// and more expensive.
type Tier int

const (
	TierDatacenter Tier = iota
	TierResidential
	TierUnblocker
)

func (t Tier) String() string {
	switch t {
	case TierDatacenter:
		return "datacenter"
	case TierResidential:
		return "residential"
	case TierUnblocker:
		return "unblocker"
	default:
		return "unknown"
	}
}

// ParseTier parses a tier name from configuration.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "datacenter":
		return TierDatacenter, nil
	case "residential":
		return TierResidential, nil
	case "unblocker":
		return TierUnblocker, nil
	default:
		return TierDatacenter, fmt.Errorf("unknown proxy tier %q", s)
	}
}

// MustParseTier is ParseTier for already-validated configuration,
// falling back to residential rather than failing.
func MustParseTier(s string) Tier {
	tier, err := ParseTier(s)
	if err != nil {
		return TierResidential
	}
	return tier
}

// Policy decides the egress tier per attempt.
type Policy struct {
	// Default is the tier for first attempts. Residential-equivalent by
	// default: datacenter ranges are blocked outright by this class of
	// retail site.
	Default Tier

	// Country constrains exit nodes for geo-restricted storefronts. It
	// is a configuration input threaded through to egress selection,
	// never computed here.
	Country string
}

// SelectTier returns the tier for the given attempt. A detected block
// jumps straight to the highest tier rather than cycling through weaker
// ones first; other failures escalate one step per retry.
func (p *Policy) SelectTier(attempt int, lastFailure types.FailureClass) Tier {
	if attempt <= 0 {
		return p.Default
	}
	if lastFailure == types.FailureBlockDetected {
		return TierUnblocker
	}

	tier := p.Default + Tier(attempt)
	if tier > TierUnblocker {
		tier = TierUnblocker
	}
	return tier
}
