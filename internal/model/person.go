package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/normalize"
)

// Person is a canonical individual: a member of Congress, an appointee or
// any other position holder.
type Person struct {
	ID                uuid.UUID
	BioguideID        sql.NullString
	FirstName         string
	MiddleName        sql.NullString
	LastName          string
	Suffix            sql.NullString
	Nickname          sql.NullString
	Party             sql.NullString
	State             sql.NullString
	BirthDate         sql.NullTime
	Gender            sql.NullString
	ExternalIDs       Bag
	SocialMedia       Bag
	DataSource        DataSource
	EnrichmentSource  sql.NullString
	EnrichmentVersion sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NameKey returns the normalized first|last key used when no bioguide ID
// is available.
func (p *Person) NameKey() string {
	return normalize.PersonKey(p.FirstName, p.LastName)
}
