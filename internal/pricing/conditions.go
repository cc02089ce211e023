package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Shape identifies which historical layout a rule's conditions use.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeQuantityBreaks
	ShapeCategories
	ShapeTiers
)

// String returns the payload key of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeQuantityBreaks:
		return "quantity_breaks"
	case ShapeCategories:
		return "categories"
	case ShapeTiers:
		return "tiers"
	default:
		return "unknown"
	}
}

// ErrEmptyConditions is returned for rules without a conditions payload.
var ErrEmptyConditions = errors.New("empty conditions")

// QuantityBreak is one entry of the quantity_breaks shape.
type QuantityBreak struct {
	Min          Number `json:"min_quantity"`
	MinAlt       Number `json:"min"`
	Max          Number `json:"max_quantity"`
	MaxAlt       Number `json:"max"`
	Price        Number `json:"price"`
	PricePerUnit Number `json:"price_per_unit"`
	Label        string `json:"label,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// CategoryTier is one value of the categories shape.
type CategoryTier struct {
	Quantity Number `json:"quantity"`
	Price    Number `json:"price"`
	Unit     string `json:"unit,omitempty"`
}

// NamedTier is one entry of the tiers shape.
type NamedTier struct {
	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`
	Min   Number `json:"min_quantity"`
	Max   Number `json:"max_quantity"`
	Price Number `json:"price"`
	Unit  string `json:"unit,omitempty"`
}

// Conditions is the decoded conditions payload. Exactly one of
// QuantityBreaks, Categories or NamedTiers is populated, as named by Shape.
type Conditions struct {
	BlueprintID        Number
	Shape              Shape
	QuantityBreaks     []QuantityBreak
	Categories         map[string]CategoryTier
	NamedTiers         []NamedTier
	UseConversionRatio bool
	ConversionRatio    *RawConversionRatio
	Unit               string
	ProductType        string
}

type rawConditions struct {
	BlueprintID        Number          `json:"blueprint_id"`
	QuantityBreaks     json.RawMessage `json:"quantity_breaks"`
	Categories         json.RawMessage `json:"categories"`
	Tiers              json.RawMessage `json:"tiers"`
	UseConversionRatio Flag            `json:"use_conversion_ratio"`
	ConversionRatio    json.RawMessage `json:"conversion_ratio"`
	Unit               string          `json:"unit"`
	ProductType        string          `json:"product_type"`
}

// ParseConditions decodes a conditions payload. The payload may be an object
// or a JSON string holding an object. Shape fields that are null or empty,
// including an empty map serialised as [], count as absent.
func ParseConditions(data json.RawMessage) (Conditions, error) {
	if len(data) == 0 || string(data) == "null" {
		return Conditions{}, ErrEmptyConditions
	}
	if s, ok := unquote(data); ok {
		if strings.TrimSpace(s) == "" {
			return Conditions{}, ErrEmptyConditions
		}
		data = json.RawMessage(s)
	}

	var raw rawConditions
	if err := json.Unmarshal(data, &raw); err != nil {
		return Conditions{}, fmt.Errorf("decode conditions: %w", err)
	}

	c := Conditions{
		BlueprintID:        raw.BlueprintID,
		UseConversionRatio: bool(raw.UseConversionRatio),
		ConversionRatio:    decodeConversionRatio(raw.ConversionRatio),
		Unit:               strings.TrimSpace(raw.Unit),
		ProductType:        strings.TrimSpace(raw.ProductType),
	}

	switch {
	case !isEmptyJSON(raw.QuantityBreaks):
		c.Shape = ShapeQuantityBreaks
		if err := json.Unmarshal(raw.QuantityBreaks, &c.QuantityBreaks); err != nil {
			return Conditions{}, fmt.Errorf("decode quantity_breaks: %w", err)
		}
	case !isEmptyJSON(raw.Categories):
		c.Shape = ShapeCategories
		if err := json.Unmarshal(raw.Categories, &c.Categories); err != nil {
			return Conditions{}, fmt.Errorf("decode categories: %w", err)
		}
	case !isEmptyJSON(raw.Tiers):
		c.Shape = ShapeTiers
		if err := json.Unmarshal(raw.Tiers, &c.NamedTiers); err != nil {
			return Conditions{}, fmt.Errorf("decode tiers: %w", err)
		}
	default:
		c.Shape = ShapeUnknown
	}
	return c, nil
}

// isEmptyJSON reports whether data is missing, null, [] or {}.
func isEmptyJSON(data json.RawMessage) bool {
	switch strings.Join(strings.Fields(string(data)), "") {
	case "", "null", "[]", "{}", `""`:
		return true
	}
	return false
}

// unquote returns the string content when data is a JSON string.
func unquote(data []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
		return "", false
	}
	return s, true
}
