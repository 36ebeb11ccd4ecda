package core

import (
	"regexp"
	"strings"
)

var sheetKeyPattern = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)

// NormalizeSheetKey accepts either a raw spreadsheet ID or a full sheet URL
// and returns the bare ID. Inputs without the URL marker come back trimmed
// and otherwise unchanged; empty input yields the empty string. Total over
// all strings.
func NormalizeSheetKey(val string) string {
	if val == "" {
		return ""
	}
	if m := sheetKeyPattern.FindStringSubmatch(val); m != nil {
		return m[1]
	}
	return strings.TrimSpace(val)
}
