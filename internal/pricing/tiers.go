package pricing

import (
	"sort"
	"strconv"
	"strings"
)

const defaultUnit = "unit"

// SkippedRule reports a rule that contributed no tiers.
type SkippedRule struct {
	RuleID   int
	RuleName string
	Reason   string
}

// RulesForBlueprint keeps the rules whose conditions.blueprint_id equals
// blueprintID, compared as integers. Rules with undecodable conditions never
// match.
func RulesForBlueprint(rules []PricingRule, blueprintID int) []PricingRule {
	var out []PricingRule
	for _, r := range rules {
		c, err := ParseConditions(r.Conditions)
		if err != nil {
			continue
		}
		if id, ok := c.BlueprintID.Int(); ok && id == blueprintID {
			out = append(out, r)
		}
	}
	return out
}

// UsableRules splits rules into those whose conditions decode and those that
// do not. Undecodable rules can never be matched to a blueprint, so callers
// report them here instead.
func UsableRules(rules []PricingRule) ([]PricingRule, []SkippedRule) {
	var (
		usable  = make([]PricingRule, 0, len(rules))
		skipped []SkippedRule
	)
	for _, r := range rules {
		if _, err := ParseConditions(r.Conditions); err != nil {
			skipped = append(skipped, SkippedRule{RuleID: r.ID, RuleName: r.RuleName, Reason: err.Error()})
			continue
		}
		usable = append(usable, r)
	}
	return usable, skipped
}

// TiersForBlueprint expands the rules of a blueprint into rule groups.
func TiersForBlueprint(rules []PricingRule, blueprintID int) ([]RuleGroup, []SkippedRule) {
	return ConvertRules(RulesForBlueprint(rules, blueprintID))
}

// ConvertRules expands each rule into a RuleGroup with tiers sorted by Min.
// Rules that cannot produce tiers are reported and otherwise ignored.
func ConvertRules(rules []PricingRule) ([]RuleGroup, []SkippedRule) {
	var (
		groups  []RuleGroup
		skipped []SkippedRule
	)
	for _, r := range rules {
		group, reason := convertRule(r)
		if reason != "" {
			skipped = append(skipped, SkippedRule{RuleID: r.ID, RuleName: r.RuleName, Reason: reason})
			continue
		}
		groups = append(groups, group)
	}
	return groups, skipped
}

func convertRule(r PricingRule) (RuleGroup, string) {
	if r.RuleType != "" && r.RuleType != RuleTypeQuantityBreak {
		return RuleGroup{}, "unsupported rule type " + r.RuleType
	}
	c, err := ParseConditions(r.Conditions)
	if err != nil {
		return RuleGroup{}, err.Error()
	}

	unit := c.Unit
	if unit == "" {
		unit = defaultUnit
	}

	var tiers []Tier
	switch c.Shape {
	case ShapeQuantityBreaks:
		tiers = fromQuantityBreaks(c.QuantityBreaks, unit)
	case ShapeCategories:
		tiers = fromCategories(c.Categories, unit)
	case ShapeTiers:
		tiers = fromNamedTiers(c.NamedTiers, unit)
	default:
		return RuleGroup{}, "no recognised condition shape"
	}
	if len(tiers) == 0 {
		return RuleGroup{}, "no valid tiers in " + c.Shape.String()
	}

	var ratio *ConversionRatio
	if c.UseConversionRatio {
		ratio, _ = ValidateConversionRatio(c.ConversionRatio)
	}
	for i := range tiers {
		tiers[i].RuleName = r.RuleName
		if ratio != nil {
			rc := *ratio
			tiers[i].ConversionRatio = &rc
		}
	}
	SortTiers(tiers)

	productType := c.ProductType
	if productType == "" {
		productType = r.RuleName
	}
	return RuleGroup{
		RuleName:    r.RuleName,
		RuleID:      r.ID,
		ProductType: productType,
		Tiers:       tiers,
	}, ""
}

// SortTiers orders tiers ascending by Min, then by label.
func SortTiers(tiers []Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Min != tiers[j].Min {
			return tiers[i].Min < tiers[j].Min
		}
		return tiers[i].Label < tiers[j].Label
	})
}

func fromQuantityBreaks(breaks []QuantityBreak, unit string) []Tier {
	tiers := make([]Tier, 0, len(breaks))
	for _, b := range breaks {
		lo := firstValid(b.Min, b.MinAlt)
		hi := firstValid(b.Max, b.MaxAlt)
		if !lo.Valid {
			continue
		}
		var price float64
		switch {
		case b.Price.Valid:
			price = b.Price.Value
		case b.PricePerUnit.Valid:
			price = b.PricePerUnit.Value * lo.Value
		default:
			continue
		}
		if t, ok := newTier(lo.Value, hi, price, pick(b.Unit, unit), b.Label); ok {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

func fromCategories(categories map[string]CategoryTier, unit string) []Tier {
	tiers := make([]Tier, 0, len(categories))
	for name, ct := range categories {
		if !ct.Quantity.Valid || !ct.Price.Valid {
			continue
		}
		if t, ok := newTier(ct.Quantity.Value, Number{}, ct.Price.Value, pick(ct.Unit, unit), name); ok {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

func fromNamedTiers(named []NamedTier, unit string) []Tier {
	tiers := make([]Tier, 0, len(named))
	for _, nt := range named {
		if !nt.Min.Valid || !nt.Price.Valid {
			continue
		}
		if t, ok := newTier(nt.Min.Value, nt.Max, nt.Price.Value, pick(nt.Unit, unit), pick(nt.Name, nt.Label)); ok {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// newTier builds a tier, rejecting non-finite or negative min and price.
func newTier(lo float64, hi Number, price float64, unit, label string) (Tier, bool) {
	if !isFinite(lo) || !isFinite(price) || lo < 0 || price < 0 {
		return Tier{}, false
	}
	t := Tier{Min: lo, Price: price, Unit: unit}
	if hi.Valid && isFinite(hi.Value) && hi.Value >= lo {
		m := hi.Value
		t.Max = &m
	}
	t.Label = strings.TrimSpace(label)
	if t.Label == "" {
		t.Label = rangeLabel(t.Min, t.Max)
	}
	return t, true
}

func rangeLabel(lo float64, hi *float64) string {
	s := strconv.FormatFloat(lo, 'f', -1, 64)
	if hi == nil {
		return s + "+"
	}
	return s + "-" + strconv.FormatFloat(*hi, 'f', -1, 64)
}

func firstValid(nums ...Number) Number {
	for _, n := range nums {
		if n.Valid {
			return n
		}
	}
	return Number{}
}

func pick(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
