package domain

import "fmt"

// JournalDetails carries the publication metadata that only journal entries
// declare columns for.
type JournalDetails struct {
	ISSN            string `json:"issn,omitempty"`
	DOI             string `json:"doi,omitempty"`
	Volume          string `json:"volume,omitempty"`
	Issue           string `json:"issue,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	Indexing        string `json:"indexing,omitempty"`
	ScopusQuartile  string `json:"scopus_quartile,omitempty"`
}

// Entry is a typed submission for a single category. The Category selects the
// record shape: only journal entries may carry JournalDetails.
type Entry struct {
	Category     Category        `json:"category"`
	Faculty      string          `json:"faculty"`
	Period       Period          `json:"period"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	StatusDate   string          `json:"status_date,omitempty"`
	Remarks      string          `json:"remarks,omitempty"`
	UploadedFile string          `json:"uploaded_file,omitempty"`
	SubmittedOn  string          `json:"submitted_on,omitempty"`
	UpdatedOn    string          `json:"updated_on,omitempty"`
	Journal      *JournalDetails `json:"journal,omitempty"`
}

// Validate checks the required fields and the category/shape pairing.
func (e Entry) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if e.Faculty == "" {
		return fmt.Errorf("faculty is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Status == "" {
		return fmt.Errorf("status is required")
	}
	if !e.Category.AllowsStatus(e.Status) {
		return fmt.Errorf("status %q not allowed for %s", e.Status, e.Category)
	}
	if !e.Period.Valid() {
		return fmt.Errorf("unknown academic year %q", e.Period)
	}
	if e.Journal != nil && e.Category != CategoryJournal {
		return fmt.Errorf("journal details not allowed for %s", e.Category)
	}
	return nil
}

// Row projects the entry onto the category's declared column set.
func (e Entry) Row() Row {
	row := Row{
		ColFaculty:      e.Faculty,
		ColAcademicYear: string(e.Period),
		ColStatus:       e.Status,
		ColStatusDate:   e.StatusDate,
		ColRemarks:      e.Remarks,
		ColUploadedFile: e.UploadedFile,
		ColSubmittedOn:  e.SubmittedOn,
		ColUpdatedOn:    e.UpdatedOn,
	}
	row[e.Category.TitleColumn()] = e.Title
	if e.Category == CategoryJournal && e.Journal != nil {
		row[ColISSN] = e.Journal.ISSN
		row[ColDOI] = e.Journal.DOI
		row[ColVolume] = e.Journal.Volume
		row[ColIssue] = e.Journal.Issue
		row[ColPublicationDate] = e.Journal.PublicationDate
		row[ColIndexing] = e.Journal.Indexing
		row[ColScopusQuartile] = e.Journal.ScopusQuartile
	}
	return row
}
