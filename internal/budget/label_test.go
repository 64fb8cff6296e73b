package budget

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Label
		ok   bool
	}{
		{"Budget 1 - Flats", Label{Number: 1, BuildingType: "Flats"}, true},
		{"Budget 3 - Terraces(Woods)", Label{Number: 3, BuildingType: "Terraces", Subgroup: "Woods"}, true},
		{"  Budget 12 - Semi-detached(General Materials)  ", Label{Number: 12, BuildingType: "Semi-detached", Subgroup: "General Materials"}, true},
		{"Budget x - Flats", Label{}, false},
		{"Phase 1 - Flats", Label{}, false},
		{"Budget 1", Label{}, false},
		{"Budget 1 - ", Label{}, false},
		{"", Label{}, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.ok {
			t.Errorf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestLabelStringRoundTrip(t *testing.T) {
	for _, l := range []Label{
		{Number: 1, BuildingType: "Flats"},
		{Number: 4, BuildingType: "Fully-detached", Subgroup: "Electrical"},
	} {
		got, ok := Parse(l.String())
		if !ok || got != l {
			t.Errorf("Parse(%q) = %+v, %v; want %+v", l.String(), got, ok, l)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		item   string
		filter string
		want   bool
	}{
		// empty / All pass everything
		{"Budget 1 - Flats(Woods)", "", true},
		{"Budget 1 - Flats(Woods)", "All", true},
		// exact, case and whitespace insensitive
		{"Budget 1 - Flats(General Materials)", "Budget 1 - Flats(General Materials)", true},
		{"Budget 1 - Flats(General Materials)", "budget 1 - flats(general materials)", true},
		// base filter matches any subgroup under the same base
		{"Budget 1 - Flats(General Materials)", "Budget 1 - Flats", true},
		{"Budget 1 - Flats(Labour)", "Budget 1 - Flats", true},
		{"Budget 1 - Flats", "Budget 1 - Flats", true},
		// a subgroup filter never widens to siblings
		{"Budget 1 - Flats(Woods)", "Budget 1 - Flats(Labour)", false},
		// different number or building type never matches
		{"Budget 2 - Flats(Woods)", "Budget 1 - Flats", false},
		{"Budget 1 - Terraces(Woods)", "Budget 1 - Flats", false},
		{"", "Budget 1 - Flats", false},
	}
	for _, tt := range tests {
		if got := Match(tt.item, tt.filter); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.item, tt.filter, got, tt.want)
		}
	}
}

func TestGroupFor(t *testing.T) {
	tests := []struct {
		category string
		label    string
		want     string
	}{
		{"Materials", "Budget 1 - Flats(Plumbings)", "MATERIAL(PLUMBINGS)"},
		{"Labour", "Budget 1 - Flats(Woods)", "MATERIAL(WOODS)"},
		{"Materials", "Budget 1 - Flats(Labour)", "Labour"},
		{"Materials", "Budget 3 - Flats(Electrical)", "MATERIAL(ELECTRICAL)"},
		{"Materials", "Budget 1 - Flats", "Materials"},
		{"Labour", "Budget 1 - Flats", "Labour"},
		{"Material/Labour", "Budget 1 - Flats", "Material/Labour"},
		{"", "not a label", "Materials"},
	}
	for _, tt := range tests {
		if got := GroupFor(tt.category, tt.label); got != tt.want {
			t.Errorf("GroupFor(%q, %q) = %q, want %q", tt.category, tt.label, got, tt.want)
		}
	}
}

func TestNumberOf(t *testing.T) {
	if n := NumberOf("Budget 7 - Flats"); n != 7 {
		t.Errorf("NumberOf = %d, want 7", n)
	}
	if n := NumberOf("garbage"); n != unknownNumber {
		t.Errorf("NumberOf(garbage) = %d, want %d", n, unknownNumber)
	}
}

func TestOptions(t *testing.T) {
	opts := Options(3, "", nil)

	// budgets 1-2 carry the base subgroups only, 3+ adds two more
	perBase := len(baseSubgroups) * len(PropertyTypes)
	perExtended := len(extendedSubgroups) * len(PropertyTypes)
	if want := 2*perBase + perExtended; len(opts) != want {
		t.Fatalf("len(opts) = %d, want %d", len(opts), want)
	}
	for _, s := range opts {
		if strings.HasPrefix(s, "Budget 1 ") || strings.HasPrefix(s, "Budget 2 ") {
			if strings.Contains(s, "Electrical") || strings.Contains(s, "Mechanical") {
				t.Errorf("unexpected extended subgroup below budget 3: %q", s)
			}
		}
	}

	// ordered by budget number first
	last := 0
	for _, s := range opts {
		n := NumberOf(s)
		if n < last {
			t.Fatalf("options not ordered by number: %q after number %d", s, last)
		}
		last = n
	}
}

func TestOptionsMergesExisting(t *testing.T) {
	custom := "Budget 2 - Flats(Handrails)"
	opts := Options(2, "", []string{custom, "Budget 1 - Flats(Woods)", ""})
	counts := make(map[string]int)
	for _, s := range opts {
		counts[s]++
	}
	if counts[custom] != 1 {
		t.Fatalf("custom label occurrences = %d, want 1", counts[custom])
	}
	// a persisted label that the grid already generates must not duplicate
	if counts["Budget 1 - Flats(Woods)"] != 1 {
		t.Fatalf("generated label occurrences = %d, want 1", counts["Budget 1 - Flats(Woods)"])
	}
	if counts[""] != 0 {
		t.Fatal("empty label must be dropped")
	}
}

func TestOptionsBuildingTypeFilter(t *testing.T) {
	opts := Options(2, "Terraces", nil)
	if len(opts) == 0 {
		t.Fatal("expected filtered options")
	}
	for _, s := range opts {
		if !strings.Contains(s, "- Terraces(") {
			t.Errorf("unexpected option for filter Terraces: %q", s)
		}
	}
}

func TestBaseOptions(t *testing.T) {
	opts := BaseOptions(2)
	if want := 2 * len(PropertyTypes); len(opts) != want {
		t.Fatalf("len = %d, want %d", len(opts), want)
	}
	for _, s := range opts {
		if strings.Contains(s, "(") {
			t.Errorf("base option carries a subgroup: %q", s)
		}
	}
}
