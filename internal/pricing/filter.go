package pricing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IsProductSpecific reports whether a blueprint prices several distinct
// products individually and therefore needs per-product rule filtering.
func IsProductSpecific(blueprintID int, productSpecific []int) bool {
	for _, id := range productSpecific {
		if id == blueprintID {
			return true
		}
	}
	return false
}

// FilterRulesForProduct narrows a shared blueprint's rules to those named for
// the product. When nothing matches the unfiltered rules are returned.
func FilterRulesForProduct(rules []PricingRule, productName string) []PricingRule {
	filtered := matchRulesByName(rules, productName)
	if len(filtered) == 0 {
		return rules
	}
	return filtered
}

// matchRulesByName keeps rules whose name contains the product name, or whose
// first word is contained in the product name.
func matchRulesByName(rules []PricingRule, productName string) []PricingRule {
	product := NormalizeName(productName)
	if product == "" {
		return nil
	}
	var out []PricingRule
	for _, r := range rules {
		name := NormalizeName(r.RuleName)
		if name == "" {
			continue
		}
		if strings.Contains(name, product) {
			out = append(out, r)
			continue
		}
		if first := strings.Fields(name)[0]; strings.Contains(product, first) {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeName strips diacritics, folds case and collapses whitespace so
// that "Café  LEMONADE" and "cafe lemonade" compare equal.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
