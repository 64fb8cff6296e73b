// Package budget implements the budget label grammar used across the
// inventory: `Budget {n} - {buildingType}({subgroup})`.  The composed
// string is what gets persisted and displayed, but internally the
// label is a structured key so that matching and sorting never rely
// on ad-hoc string slicing at call sites.
package budget

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PropertyTypes lists the building types budgets are drawn up for.
var PropertyTypes = []string{"Flats", "Terraces", "Semi-detached", "Fully-detached"}

// Subgroup sets per budget number: budgets 1-2 use the base set,
// budgets 3 and above add Electrical and Mechanical.
var (
	baseSubgroups     = []string{"General Materials", "Woods", "Plumbings", "Irons", "Labour"}
	extendedSubgroups = append(append([]string{}, baseSubgroups...), "Electrical", "Mechanical")
)

// MaxNumber is the highest budget sequence number offered in dropdowns.
const MaxNumber = 20

// unknownNumber sorts labels with an unparsable number after all valid ones.
const unknownNumber = 999

// Label is the structured form of a budget label.  Subgroup is empty
// for a base label such as "Budget 1 - Flats".
type Label struct {
	Number       int
	BuildingType string
	Subgroup     string
}

// String composes the persisted/display representation.
func (l Label) String() string {
	if l.Subgroup == "" {
		return fmt.Sprintf("Budget %d - %s", l.Number, l.BuildingType)
	}
	return fmt.Sprintf("Budget %d - %s(%s)", l.Number, l.BuildingType, l.Subgroup)
}

// Base returns the label with its subgroup stripped.
func (l Label) Base() Label { return Label{Number: l.Number, BuildingType: l.BuildingType} }

// Parse decodes a composed label.  It tolerates missing subgroups and
// stray whitespace; ok is false when the string does not follow the
// `Budget {n} - {buildingType}` shape at all.
func Parse(s string) (Label, bool) {
	s = strings.TrimSpace(s)
	const prefix = "Budget "
	if !strings.HasPrefix(s, prefix) {
		return Label{}, false
	}
	rest := s[len(prefix):]
	dash := strings.Index(rest, "-")
	if dash < 0 {
		return Label{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:dash]))
	if err != nil {
		return Label{}, false
	}
	var l Label
	l.Number = n
	tail := strings.TrimSpace(rest[dash+1:])
	if open := strings.Index(tail, "("); open >= 0 {
		l.BuildingType = strings.TrimSpace(tail[:open])
		l.Subgroup = strings.TrimSpace(strings.TrimSuffix(tail[open+1:], ")"))
	} else {
		l.BuildingType = tail
	}
	if l.BuildingType == "" {
		return Label{}, false
	}
	return l, true
}

// NumberOf extracts the embedded budget number for ordering.  Labels
// that do not parse sort after every valid label.
func NumberOf(s string) int {
	if l, ok := Parse(s); ok {
		return l.Number
	}
	return unknownNumber
}

// Normalize flattens a label for comparison: lower case, no spaces.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

// Match reports whether an item's label matches a filter label using
// hierarchical semantics: an empty or "All" filter matches anything,
// an exact (normalized) match always passes, and a base filter with
// no subgroup matches every label sharing its number + building-type
// prefix regardless of subgroup.
func Match(itemLabel, filter string) bool {
	if filter == "" || filter == "All" {
		return true
	}
	if Normalize(itemLabel) == Normalize(filter) {
		return true
	}
	if strings.Contains(filter, "(") {
		return false
	}
	base := itemLabel
	if open := strings.Index(itemLabel, "("); open >= 0 {
		base = itemLabel[:open]
	}
	return itemLabel != "" && Normalize(base) == Normalize(filter)
}

// subgroupGroups maps a label subgroup to the group classification
// stored on items.
var subgroupGroups = map[string]string{
	"Plumbings":         "MATERIAL(PLUMBINGS)",
	"Woods":             "MATERIAL(WOODS)",
	"Irons":             "MATERIAL(IRONS)",
	"General Materials": "Materials",
	"Labour":            "Labour",
	"Electrical":        "MATERIAL(ELECTRICAL)",
	"Mechanical":        "MATERIAL(MECHANICAL)",
}

var categoryGroups = map[string]string{
	"Materials":       "Materials",
	"Labour":          "Labour",
	"Material/Labour": "Material/Labour",
}

// GroupFor classifies an item into its group from its category and
// budget label.  The label's subgroup wins when recognised; otherwise
// the category decides, defaulting to Materials.
func GroupFor(category, label string) string {
	if l, ok := Parse(label); ok && l.Subgroup != "" {
		if g, ok := subgroupGroups[l.Subgroup]; ok {
			return g
		}
	}
	if g, ok := categoryGroups[category]; ok {
		return g
	}
	return "Materials"
}

// Options generates the dropdown label grid for budgets 1..maxNumber,
// merges in labels already persisted (so hand-entered labels stay
// selectable), optionally filters to one building type, and orders by
// embedded budget number first, then lexically.
func Options(maxNumber int, buildingType string, existing []string) []string {
	if maxNumber <= 0 {
		maxNumber = MaxNumber
	}
	seen := make(map[string]struct{})
	options := make([]string, 0, maxNumber*len(PropertyTypes)*len(extendedSubgroups))
	for n := 1; n <= maxNumber; n++ {
		subgroups := baseSubgroups
		if n >= 3 {
			subgroups = extendedSubgroups
		}
		for _, bt := range PropertyTypes {
			for _, sg := range subgroups {
				s := Label{Number: n, BuildingType: bt, Subgroup: sg}.String()
				options = append(options, s)
				seen[s] = struct{}{}
			}
		}
	}
	for _, s := range existing {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			options = append(options, s)
		}
	}
	if buildingType != "" {
		marker := "- " + buildingType + "("
		kept := options[:0]
		for _, s := range options {
			if strings.Contains(s, marker) {
				kept = append(kept, s)
			}
		}
		options = kept
	}
	sort.Slice(options, func(i, j int) bool {
		ni, nj := NumberOf(options[i]), NumberOf(options[j])
		if ni != nj {
			return ni < nj
		}
		return options[i] < options[j]
	})
	return options
}

// BaseOptions generates the coarse "Budget N - Type" pairs used by the
// actuals reconciliation selector, in the same numeric-then-lexical order.
func BaseOptions(maxNumber int) []string {
	if maxNumber <= 0 {
		maxNumber = MaxNumber
	}
	out := make([]string, 0, maxNumber*len(PropertyTypes))
	for n := 1; n <= maxNumber; n++ {
		for _, bt := range PropertyTypes {
			out = append(out, Label{Number: n, BuildingType: bt}.String())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := NumberOf(out[i]), NumberOf(out[j])
		if ni != nj {
			return ni < nj
		}
		return out[i] < out[j]
	})
	return out
}
