package pricing

import (
	"encoding/json"
	"strings"
)

// ConversionRatio translates a sold unit into an inventory unit, e.g. one
// pre-roll (output) consumes 0.7 g (input) of flower.
type ConversionRatio struct {
	InputAmount  float64 `json:"inputAmount"`
	InputUnit    string  `json:"inputUnit"`
	OutputAmount float64 `json:"outputAmount"`
	OutputUnit   string  `json:"outputUnit"`
	Description  string  `json:"description,omitempty"`
}

// Multiplier is the amount of input unit consumed per output unit.
func (c ConversionRatio) Multiplier() float64 {
	return c.InputAmount / c.OutputAmount
}

// RawConversionRatio is the backend shape of a conversion ratio.
type RawConversionRatio struct {
	InputAmount  Number `json:"input_amount"`
	InputUnit    string `json:"input_unit"`
	OutputAmount Number `json:"output_amount"`
	OutputUnit   string `json:"output_unit"`
	Description  string `json:"description,omitempty"`
}

// Raw converts a validated ratio back to its backend shape.
func (c ConversionRatio) Raw() *RawConversionRatio {
	return &RawConversionRatio{
		InputAmount:  NewNumber(c.InputAmount),
		InputUnit:    c.InputUnit,
		OutputAmount: NewNumber(c.OutputAmount),
		OutputUnit:   c.OutputUnit,
		Description:  c.Description,
	}
}

// ValidateConversionRatio returns the normalized ratio, or false when any
// required field is missing, an amount is not a finite positive number, or the
// derived multiplier is not finite. A rejected ratio is treated as absent.
func ValidateConversionRatio(raw *RawConversionRatio) (*ConversionRatio, bool) {
	if raw == nil {
		return nil, false
	}
	if !raw.InputAmount.Valid || !raw.OutputAmount.Valid {
		return nil, false
	}
	in, out := raw.InputAmount.Value, raw.OutputAmount.Value
	if !isFinite(in) || !isFinite(out) || in <= 0 || out <= 0 {
		return nil, false
	}
	inUnit, outUnit := strings.TrimSpace(raw.InputUnit), strings.TrimSpace(raw.OutputUnit)
	if inUnit == "" || outUnit == "" {
		return nil, false
	}
	if m := 1 * in / out; !isFinite(m) || m <= 0 {
		return nil, false
	}
	return &ConversionRatio{
		InputAmount:  in,
		InputUnit:    inUnit,
		OutputAmount: out,
		OutputUnit:   outUnit,
		Description:  strings.TrimSpace(raw.Description),
	}, true
}

// Revalidate runs an already-normalized ratio through the validator again.
func Revalidate(c *ConversionRatio) (*ConversionRatio, bool) {
	if c == nil {
		return nil, false
	}
	return ValidateConversionRatio(c.Raw())
}

// decodeConversionRatio decodes a raw payload, treating anything undecodable
// as absent.
func decodeConversionRatio(data json.RawMessage) *RawConversionRatio {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var raw RawConversionRatio
	if err := json.Unmarshal(data, &raw); err != nil {
		if s, ok := unquote(data); ok {
			if err := json.Unmarshal([]byte(s), &raw); err == nil {
				return &raw
			}
		}
		return nil
	}
	return &raw
}
