package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// EntityType identifies what a blueprint assignment is attached to.
type EntityType string

const (
	EntityProduct  EntityType = "product"
	EntityCategory EntityType = "category"
)

// RuleTypeQuantityBreak is the only rule type that produces tiers.
const RuleTypeQuantityBreak = "quantity_break"

// BlueprintAssignment says "this product or category is priced according to
// blueprint X". EntityID is meaningful for product assignments, CategoryID
// for category assignments.
type BlueprintAssignment struct {
	ID            string     `json:"id"`
	BlueprintID   int        `json:"blueprintId"`
	BlueprintName string     `json:"blueprintName"`
	EntityType    EntityType `json:"entityType"`
	EntityID      int        `json:"entityId,omitempty"`
	CategoryID    int        `json:"categoryId,omitempty"`
}

// PricingRule is a pricing rule as delivered by the backend. Conditions is
// kept raw and decoded by ParseConditions.
type PricingRule struct {
	ID         int             `json:"id"`
	RuleName   string          `json:"rule_name"`
	RuleType   string          `json:"rule_type"`
	Conditions json.RawMessage `json:"conditions"`
	Status     string          `json:"status,omitempty"`
	IsActive   Flag            `json:"is_active,omitempty"`
}

// Active reports whether the rule should be cached.
func (r PricingRule) Active() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "active") || bool(r.IsActive)
}

// Tier is one quantity/price band. Price is the price of buying Min units.
type Tier struct {
	Min             float64          `json:"min"`
	Max             *float64         `json:"max,omitempty"`
	Price           float64          `json:"price"`
	Unit            string           `json:"unit"`
	Label           string           `json:"label"`
	RuleName        string           `json:"ruleName"`
	ConversionRatio *ConversionRatio `json:"conversionRatio,omitempty"`
}

// RuleGroup is the set of tiers produced by one rule.
type RuleGroup struct {
	RuleName    string `json:"ruleName"`
	RuleID      int    `json:"ruleId"`
	ProductType string `json:"productType"`
	Tiers       []Tier `json:"tiers"`
}

// CategoryFieldSet is the category-field payload for one category (or, when
// ProductID is set, for one product override).
type CategoryFieldSet struct {
	CategoryID int     `json:"category_id"`
	ProductID  int     `json:"product_id,omitempty"`
	Fields     []Field `json:"fields"`
}

// Field is a single custom field definition.
type Field struct {
	ID         int    `json:"id"`
	Name       string `json:"name,omitempty"`
	Label      string `json:"label,omitempty"`
	GroupLabel string `json:"group_label"`
}

// Number decodes JSON numbers and numeric strings ("12", "0.7"). Empty
// strings and null decode to an absent value.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		n.Value, n.Valid = v, true
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	n.Value, n.Valid = v, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Int returns the value truncated to an integer.
func (n Number) Int() (int, bool) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return 0, false
	}
	return int(n.Value), true
}

// NewNumber returns a valid Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Flag decodes loosely typed booleans: true, 1, "1", "true", "yes", "on".
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch s {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
