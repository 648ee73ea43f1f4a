package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Regulation is a Federal Register document identified by its document
// number.
type Regulation struct {
	ID                 uuid.UUID
	DocumentNumber     string
	Title              string
	Abstract           sql.NullString
	DocumentType       DocumentType
	PublicationDate    time.Time
	EffectiveOn        sql.NullTime
	SigningDate        sql.NullTime
	RegulationIDNumber sql.NullString
	CFRReferences      CFRReferences
	DocketIDs          []string
	SourceURL          sql.NullString
	HTMLURL            sql.NullString
	PDFURL             sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CFRReference is a Code of Federal Regulations citation.
type CFRReference struct {
	Title   int    `json:"title"`
	Part    string `json:"part,omitempty"`
	Section string `json:"section,omitempty"`
}

// CFRReferences is stored as a JSONB array.
type CFRReferences []CFRReference

func (c CFRReferences) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *CFRReferences) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into CFRReferences", src)
	}
}

// RegulationAgencyLink joins a regulation to an issuing organization.
type RegulationAgencyLink struct {
	RegulationID   uuid.UUID
	OrganizationID uuid.UUID
	RawName        string
	Primary        bool
}

// AgencyRef is an agency as listed on a Federal Register document.
type AgencyRef struct {
	ID        int64
	Name      string
	ShortName string
}

// DocumentRecord is one parsed Federal Register document.
type DocumentRecord struct {
	Index              int
	DocumentNumber     string `validate:"required"`
	Title              string `validate:"required"`
	Abstract           string
	Type               DocumentType
	PublicationDate    time.Time `validate:"required"`
	EffectiveOn        sql.NullTime
	SigningDate        sql.NullTime
	RegulationIDNumber string
	Agencies           []AgencyRef
	CFRReferences      CFRReferences
	DocketIDs          []string
	HTMLURL            string
	PDFURL             string
}
