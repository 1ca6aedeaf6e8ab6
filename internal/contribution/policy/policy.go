// Package policy encodes the statutory contribution rules as pure,
// side-effect-free configuration. Swapping jurisdictions or election cycles
// means constructing a different Policy; the limit checker never changes.
package policy

import (
	"github.com/shopspring/decimal"

	id "fecguard/pkg/domain"
)

// Policy holds the aggregate cap and per-contribution sub-rules.
type Policy struct {
	defaultCap        decimal.Decimal
	campaignCaps      map[id.CampaignID]decimal.Decimal
	minContribution   decimal.Decimal
	allowPartialFinal bool
}

// Option configures a Policy at construction time.
type Option func(*Policy)

// WithCap overrides the default aggregate cap.
func WithCap(cap decimal.Decimal) Option {
	return func(p *Policy) {
		p.defaultCap = cap
	}
}

// WithCampaignCap sets a per-campaign cap override, e.g. for special
// elections with a different statutory limit.
func WithCampaignCap(campaignID id.CampaignID, cap decimal.Decimal) Option {
	return func(p *Policy) {
		p.campaignCaps[campaignID] = cap
	}
}

// WithMinContribution overrides the minimum accepted single contribution.
func WithMinContribution(min decimal.Decimal) Option {
	return func(p *Policy) {
		p.minContribution = min
	}
}

// WithPartialFinal permits a sub-cap partial final payment on recurring
// plans. The default skips the breaching payment entirely.
func WithPartialFinal(allow bool) Option {
	return func(p *Policy) {
		p.allowPartialFinal = allow
	}
}

// Default returns the FEC individual policy: $3,300 aggregate per donor per
// campaign per election cycle, $1 minimum, no partial final payments.
func Default(opts ...Option) *Policy {
	p := &Policy{
		defaultCap:      decimal.NewFromInt(3300),
		campaignCaps:    make(map[id.CampaignID]decimal.Decimal),
		minContribution: decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CapFor returns the aggregate cap applying to the campaign.
func (p *Policy) CapFor(campaignID id.CampaignID) decimal.Decimal {
	if cap, ok := p.campaignCaps[campaignID]; ok {
		return cap
	}
	return p.defaultCap
}

// MinContribution returns the smallest accepted single contribution.
func (p *Policy) MinContribution() decimal.Decimal {
	return p.minContribution
}

// AllowPartialFinal reports whether a recurring series may end with a
// partial payment that exactly exhausts the remaining capacity.
func (p *Policy) AllowPartialFinal() bool {
	return p.allowPartialFinal
}
