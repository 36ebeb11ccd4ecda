// Package domain defines the record-keeping model shared by all layers:
// categories with their declared column sets and status vocabularies,
// academic periods, tabular row-sets, and the remote table store contract.
package domain

import "strings"

// Category identifies one research record-keeping tab.
type Category string

const (
	CategoryJournal     Category = "Journal Publications"
	CategoryResearch    Category = "Research Projects"
	CategoryConsultancy Category = "Consultancy Projects"
	CategoryPatents     Category = "Patents"
	CategoryIdeas       Category = "Project Ideas"
	CategoryConference  Category = "Conference"
	CategoryBook        Category = "Book / Book Chapter"
)

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{
		CategoryJournal,
		CategoryResearch,
		CategoryConsultancy,
		CategoryPatents,
		CategoryIdeas,
		CategoryConference,
		CategoryBook,
	}
}

// Column names shared by every category.
const (
	ColFaculty      = "Faculty"
	ColAcademicYear = "Academic Year"
	ColStatus       = "Status"
	ColStatusDate   = "Status Date"
	ColRemarks      = "Remarks"
	ColUploadedFile = "Uploaded File"
	ColSubmittedOn  = "Submitted On"
	ColUpdatedOn    = "Updated On"
)

// Journal-only metadata columns.
const (
	ColISSN            = "ISSN"
	ColDOI             = "DOI"
	ColVolume          = "Volume"
	ColIssue           = "Issue"
	ColPublicationDate = "Date of Publication"
	ColIndexing        = "Indexing"
	ColScopusQuartile  = "Scopus Quartile"
)

var statusVocabulary = map[Category][]string{
	CategoryJournal:     {"Started Writing", "Journal Identifying", "Manuscript Submitted", "In Process", "Under Review", "Accepted", "Published"},
	CategoryResearch:    {"Idea", "Submitted", "In Process of Approval", "Approved", "In Process", "Completed"},
	CategoryConsultancy: {"Idea Stage", "Submitted", "Approved", "Sanctioned", "In Process", "Completed"},
	CategoryPatents:     {"Filed", "Published", "Granted"},
	CategoryIdeas: {
		"Drafted", "Submitted", "Under Review", "Implemented",
		"S.Y Mini Project", "T.Y Mini Project", "B.Tech Project",
		"M.Tech TRE", "M.Tech STR", "Ph.D.",
	},
	CategoryConference: {"Submitted", "Accepted", "Presented"},
	CategoryBook:       {"Proposal Submitted", "Accepted", "In Press", "Published"},
}

// JournalIndexing lists the accepted indexing labels for journal publications.
func JournalIndexing() []string {
	return []string{"Scopus", "SCI", "Web of Science", "Non-Scopus"}
}

// ScopusQuartiles lists the accepted Scopus quartile labels.
func ScopusQuartiles() []string {
	return []string{"Q1", "Q2", "Q3", "Q4"}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	_, ok := statusVocabulary[c]
	return ok
}

// Slug returns the URL-safe identifier for the category,
// e.g. "Journal Publications" -> "journal-publications".
func (c Category) Slug() string {
	s := strings.ToLower(string(c))
	s = strings.ReplaceAll(s, "/", " ")
	return strings.Join(strings.Fields(s), "-")
}

// CategoryFromSlug resolves a URL slug back to its category.
func CategoryFromSlug(slug string) (Category, bool) {
	for _, c := range Categories() {
		if c.Slug() == slug {
			return c, true
		}
	}
	return "", false
}

// TitleColumn returns the category-specific title column name.
func (c Category) TitleColumn() string {
	return string(c) + " Title"
}

// Columns returns the declared column set for the category, in declared
// order. The set is fixed per category and does not evolve per row.
func (c Category) Columns() []string {
	cols := []string{
		ColFaculty, ColAcademicYear, c.TitleColumn(), ColStatus, ColStatusDate,
		ColRemarks, ColUploadedFile, ColSubmittedOn, ColUpdatedOn,
	}
	if c == CategoryJournal {
		cols = append(cols, ColISSN, ColDOI, ColVolume, ColIssue, ColPublicationDate, ColIndexing, ColScopusQuartile)
	}
	return cols
}

// Statuses returns the allowed status values for the category.
func (c Category) Statuses() []string {
	return append([]string(nil), statusVocabulary[c]...)
}

// AllowsStatus reports whether status is in the category vocabulary.
func (c Category) AllowsStatus(status string) bool {
	for _, s := range statusVocabulary[c] {
		if s == status {
			return true
		}
	}
	return false
}

// WorksheetName maps (category, period) to the remote worksheet name.
// Slashes are substituted to satisfy remote naming constraints; the mapping
// is pure and stable across process runs.
func (c Category) WorksheetName(p Period) string {
	return strings.ReplaceAll(string(c), "/", "-") + "__" + string(p)
}

// Period is an academic year label, e.g. "2025–26".
type Period string

// DefaultPeriod is the academic year preselected by clients.
const DefaultPeriod Period = "2025–26"

// Periods returns the academic years the dashboard tracks.
func Periods() []Period {
	return []Period{"2025–26", "2026–27", "2027–28"}
}

// Valid reports whether p is a tracked academic year.
func (p Period) Valid() bool {
	for _, candidate := range Periods() {
		if candidate == p {
			return true
		}
	}
	return false
}

// FacultyRoster lists the department faculty that submissions may name.
func FacultyRoster() []string {
	return []string{
		"Prof. Dr. Yuvaraj L. Bhirud",
		"Prof. Dr. Satish B. Patil",
		"Prof. Abhijeet A. Galatage",
		"Prof. Dr. Rajshekhar G. Rathod",
		"Prof. Avinash A. Rakh",
		"Prof. Achyut A. Deshmukh",
		"Prof. Dr. Amit S. Dharnaik",
		"Prof. Hrishikesh U. Mulay",
		"Prof. Gauri S. Desai",
		"Prof. Bhagyashri D. Patil",
		"Prof. Sagar K. Sonawane",
	}
}
