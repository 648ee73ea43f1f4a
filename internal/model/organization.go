package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Organization is a canonical government organization (agency, bureau,
// office). Official name and acronym are unique case-insensitively.
type Organization struct {
	ID                  uuid.UUID
	OfficialName        string
	Acronym             sql.NullString
	FederalRegisterID   sql.NullInt64
	FederalRegisterSlug sql.NullString
	WebsiteURL          sql.NullString
	Description         sql.NullString
	ParentID            uuid.NullUUID
	Branch              Branch
	FormerNames         []string
	DataSource          DataSource
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AgencyRecord is one agency from the Federal Register /agencies listing.
type AgencyRecord struct {
	Index       int
	ID          int64  `validate:"required,gt=0"`
	Name        string `validate:"required"`
	ShortName   string
	Slug        string
	URL         string
	ParentID    sql.NullInt64
	Description string
}
