package model

import "strings"

// Branch of government.
type Branch string

const (
	BranchLegislative Branch = "legislative"
	BranchExecutive   Branch = "executive"
	BranchJudicial    Branch = "judicial"
)

// Chamber of Congress.
type Chamber string

const (
	ChamberSenate Chamber = "senate"
	ChamberHouse  Chamber = "house"
)

// AppointmentType classifies executive appointments.
type AppointmentType string

const (
	// Presidential appointment with Senate confirmation.
	AppointmentPAS AppointmentType = "PAS"
	// Presidential appointment without Senate confirmation.
	AppointmentPA AppointmentType = "PA"
	// Noncareer SES.
	AppointmentNA AppointmentType = "NA"
	// Career SES.
	AppointmentCA AppointmentType = "CA"
	// Schedule C.
	AppointmentXS AppointmentType = "XS"
)

// ParseAppointmentType maps a PLUM appointment type value, either the bare
// code or the long description, to an AppointmentType. Unknown values
// return "".
func ParseAppointmentType(s string) AppointmentType {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return ""
	}
	switch AppointmentType(v) {
	case AppointmentPAS, AppointmentPA, AppointmentNA, AppointmentCA, AppointmentXS:
		return AppointmentType(v)
	}
	switch {
	case strings.Contains(v, "SENATE") && strings.Contains(v, "CONFIRM"):
		return AppointmentPAS
	case strings.Contains(v, "PRESIDENTIAL"):
		return AppointmentPA
	case strings.Contains(v, "NONCAREER"), strings.Contains(v, "NON-CAREER"):
		return AppointmentNA
	case strings.Contains(v, "CAREER"):
		return AppointmentCA
	case strings.Contains(v, "SCHEDULE C"):
		return AppointmentXS
	}
	return ""
}

// DocumentType of a Federal Register document.
type DocumentType string

const (
	DocumentRule                 DocumentType = "rule"
	DocumentProposedRule         DocumentType = "proposed_rule"
	DocumentNotice               DocumentType = "notice"
	DocumentPresidentialDocument DocumentType = "presidential_document"
	DocumentOther                DocumentType = "other"
)

// ParseDocumentType maps the API's "type" value ("Rule", "Proposed Rule",
// ...) to a DocumentType.
func ParseDocumentType(s string) DocumentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule":
		return DocumentRule
	case "proposed rule", "prorule":
		return DocumentProposedRule
	case "notice":
		return DocumentNotice
	case "presidential document", "presdocu":
		return DocumentPresidentialDocument
	default:
		return DocumentOther
	}
}

// DataSource records which upstream created or last enriched an entity.
type DataSource string

const (
	SourceCongressGov     DataSource = "congress_gov"
	SourceLegislatorsRepo DataSource = "legislators_repo"
	SourcePlumCSV         DataSource = "plum_csv"
	SourceFederalRegister DataSource = "federal_register"
	SourceManual          DataSource = "manual"
)
