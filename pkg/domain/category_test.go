package domain

import (
	"strings"
	"testing"
)

func TestCategoryColumnsDeclaredOrder(t *testing.T) {
	cols := CategoryPatents.Columns()
	want := []string{
		"Faculty", "Academic Year", "Patents Title", "Status", "Status Date",
		"Remarks", "Uploaded File", "Submitted On", "Updated On",
	}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %d (%v)", len(want), len(cols), cols)
	}
	for i, c := range want {
		if cols[i] != c {
			t.Fatalf("column %d: expected %q, got %q", i, c, cols[i])
		}
	}
}

func TestJournalColumnsCarryExtras(t *testing.T) {
	cols := CategoryJournal.Columns()
	if len(cols) != 16 {
		t.Fatalf("expected 16 journal columns, got %d", len(cols))
	}
	for _, extra := range []string{ColISSN, ColDOI, ColVolume, ColIssue, ColPublicationDate, ColIndexing, ColScopusQuartile} {
		found := false
		for _, c := range cols {
			if c == extra {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("journal columns missing %q", extra)
		}
	}
	if cols[2] != "Journal Publications Title" {
		t.Fatalf("unexpected title column %q", cols[2])
	}
}

func TestColumnsAreStable(t *testing.T) {
	first := CategoryJournal.Columns()
	first[0] = "mutated"
	second := CategoryJournal.Columns()
	if second[0] != ColFaculty {
		t.Fatalf("Columns must return a fresh slice, got %q", second[0])
	}
}

func TestWorksheetNameSubstitutesSlash(t *testing.T) {
	tests := []struct {
		category Category
		period   Period
		want     string
	}{
		{CategoryPatents, "2025–26", "Patents__2025–26"},
		{CategoryBook, "2026–27", "Book - Book Chapter__2026–27"},
		{CategoryJournal, "2025–26", "Journal Publications__2025–26"},
	}
	for _, tc := range tests {
		if got := tc.category.WorksheetName(tc.period); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.category, tc.want, got)
		}
	}
}

func TestWorksheetNameIsPure(t *testing.T) {
	a := CategoryBook.WorksheetName(DefaultPeriod)
	b := CategoryBook.WorksheetName(DefaultPeriod)
	if a != b {
		t.Fatalf("mapping must be stable: %q vs %q", a, b)
	}
	if strings.Contains(a, "/") {
		t.Fatalf("worksheet name must not contain a slash: %q", a)
	}
}

func TestSlugRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		slug := c.Slug()
		if strings.ContainsAny(slug, " /") {
			t.Errorf("slug %q contains disallowed characters", slug)
		}
		back, ok := CategoryFromSlug(slug)
		if !ok || back != c {
			t.Errorf("slug %q did not round trip: got %q ok=%v", slug, back, ok)
		}
	}
	if _, ok := CategoryFromSlug("bogus"); ok {
		t.Fatalf("unexpected category for bogus slug")
	}
}

func TestStatusVocabulary(t *testing.T) {
	if !CategoryPatents.AllowsStatus("Filed") {
		t.Fatalf("expected Filed to be allowed for patents")
	}
	if CategoryPatents.AllowsStatus("Published in Journal") {
		t.Fatalf("unexpected status allowed for patents")
	}
	for _, c := range Categories() {
		if len(c.Statuses()) == 0 {
			t.Errorf("category %s has no statuses", c)
		}
	}
}

func TestPeriods(t *testing.T) {
	if !DefaultPeriod.Valid() {
		t.Fatalf("default period must be valid")
	}
	if Period("1999-00").Valid() {
		t.Fatalf("unexpected valid period")
	}
}
