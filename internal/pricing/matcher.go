package pricing

import "math"

const (
	exactTolerance  = 0.01
	looseTolerance  = 0.1
	quantityEpsilon = 1e-9
)

// PriceMatcher decides whether a tier's price agrees with a selected quantity
// and per-unit price. Quantity is always positive when a matcher is called.
type PriceMatcher struct {
	Name  string
	Match func(tier Tier, quantity, perUnit float64) bool
}

// DefaultPriceMatchers is the ordered tolerance chain used by MatchTier.
var DefaultPriceMatchers = []PriceMatcher{
	{Name: "exact_total", Match: exactTotal},
	{Name: "exact_per_unit", Match: exactPerUnit},
	{Name: "loose_per_unit", Match: loosePerUnit},
}

func exactTotal(tier Tier, quantity, perUnit float64) bool {
	return math.Abs(tier.Price-perUnit*quantity) < exactTolerance
}

func exactPerUnit(tier Tier, quantity, perUnit float64) bool {
	return math.Abs(tier.Price/quantity-perUnit) < exactTolerance
}

func loosePerUnit(tier Tier, quantity, perUnit float64) bool {
	return math.Abs(tier.Price/quantity-perUnit) < looseTolerance
}

// MatchTier finds the tier that produced a (quantity, per-unit price) pair.
// Rule groups named after categoryContext are searched first. Returns nil on
// no match, a non-positive quantity or a negative price.
func MatchTier(groups []RuleGroup, selectedQuantity, perUnitPrice float64, categoryContext string) *Tier {
	return MatchTierWith(DefaultPriceMatchers, groups, selectedQuantity, perUnitPrice, categoryContext)
}

// MatchTierWith is MatchTier with a custom matcher chain. Groups named after
// categoryContext win whenever any matcher accepts one of their tiers. Within
// those groups, and then within the rest, matchers are tried in order across
// all candidate tiers, so a tight match beats a loose match in an earlier
// group.
func MatchTierWith(matchers []PriceMatcher, groups []RuleGroup, selectedQuantity, perUnitPrice float64, categoryContext string) *Tier {
	if !isFinite(selectedQuantity) || !isFinite(perUnitPrice) {
		return nil
	}
	if selectedQuantity <= 0 || perUnitPrice < 0 {
		return nil
	}

	preferred, rest := splitGroups(groups, categoryContext)
	for _, set := range [][]RuleGroup{preferred, rest} {
		if t := matchIn(matchers, set, selectedQuantity, perUnitPrice); t != nil {
			return t
		}
	}
	return nil
}

func matchIn(matchers []PriceMatcher, groups []RuleGroup, quantity, perUnit float64) *Tier {
	var candidates []Tier
	for _, g := range groups {
		for _, tier := range g.Tiers {
			if tier.Price < 0 || math.Abs(tier.Min-quantity) > quantityEpsilon {
				continue
			}
			candidates = append(candidates, tier)
		}
	}

	for _, m := range matchers {
		for _, tier := range candidates {
			if m.Match(tier, quantity, perUnit) {
				t := tier
				return &t
			}
		}
	}
	return nil
}

// splitGroups separates groups named after the category context from the
// rest, keeping the original order in both.
func splitGroups(groups []RuleGroup, categoryContext string) (preferred, rest []RuleGroup) {
	ctx := normalizeLabel(categoryContext)
	if ctx == "" {
		return nil, groups
	}
	for _, g := range groups {
		if normalizeLabel(g.RuleName) == ctx {
			preferred = append(preferred, g)
		} else {
			rest = append(rest, g)
		}
	}
	return preferred, rest
}
