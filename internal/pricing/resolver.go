package pricing

import (
	"fmt"
	"strings"
)

// DefaultUtilityGroupLabels are field groups that carry product information
// rather than a pricing blueprint.
var DefaultUtilityGroupLabels = []string{
	"Product Information",
	"Lab Data",
	"Lab Results",
	"Additional Information",
	"Compliance",
	"Effects",
	"Terpenes",
}

// ResolveBlueprint returns the assignment that prices a product. A product
// assignment always wins; otherwise categoryIDs are tried in the given order
// and the first category assignment found is returned. Nil when nothing
// matches.
func ResolveBlueprint(assignments []BlueprintAssignment, productID int, categoryIDs []int) *BlueprintAssignment {
	for i := range assignments {
		a := assignments[i]
		if a.EntityType == EntityProduct && a.EntityID == productID {
			return &a
		}
	}
	for _, categoryID := range categoryIDs {
		for i := range assignments {
			a := assignments[i]
			if a.EntityType == EntityCategory && a.CategoryID == categoryID {
				return &a
			}
		}
	}
	return nil
}

// BuildAssignments turns category-field payloads into blueprint assignments.
// Fields are grouped by group label; utility groups are ignored and each
// remaining group becomes one assignment whose blueprint id is the id of the
// group's first field.
func BuildAssignments(sets []CategoryFieldSet, utilityLabels []string) []BlueprintAssignment {
	utility := make(map[string]struct{}, len(utilityLabels))
	for _, l := range utilityLabels {
		utility[normalizeLabel(l)] = struct{}{}
	}

	var out []BlueprintAssignment
	for _, set := range sets {
		var (
			order  []string
			groups = make(map[string][]Field)
		)
		for _, f := range set.Fields {
			label := strings.TrimSpace(f.GroupLabel)
			if label == "" {
				continue
			}
			if _, skip := utility[normalizeLabel(label)]; skip {
				continue
			}
			if _, seen := groups[label]; !seen {
				order = append(order, label)
			}
			groups[label] = append(groups[label], f)
		}

		for _, label := range order {
			first := groups[label][0]
			a := BlueprintAssignment{
				BlueprintID:   first.ID,
				BlueprintName: label,
			}
			if set.ProductID > 0 {
				a.EntityType = EntityProduct
				a.EntityID = set.ProductID
				a.ID = fmt.Sprintf("product-%d-%d", set.ProductID, first.ID)
			} else {
				a.EntityType = EntityCategory
				a.CategoryID = set.CategoryID
				a.ID = fmt.Sprintf("category-%d-%d", set.CategoryID, first.ID)
			}
			out = append(out, a)
		}
	}
	return out
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
