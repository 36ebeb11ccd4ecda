package core

import "researchdash/pkg/domain"

type (
	Category       = domain.Category
	Period         = domain.Period
	Row            = domain.Row
	Table          = domain.Table
	Entry          = domain.Entry
	JournalDetails = domain.JournalDetails
	APIError       = domain.APIError
	Opener         = domain.Opener
	Connection     = domain.Connection
	Worksheet      = domain.Worksheet
)
