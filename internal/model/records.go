package model

import (
	"database/sql"
	"time"
)

// PlumRecord is one parsed row of the OPM PLUM CSV.
type PlumRecord struct {
	Line             int
	AgencyName       string `validate:"required"`
	OrganizationName string
	PositionTitle    string `validate:"required"`
	Vacant           bool
	AppointmentType  AppointmentType
	ExpirationDate   sql.NullTime
	PayGrade         string
	PayPlan          string
	Location         string
	FirstName        string
	LastName         string
	Tenure           sql.NullInt64
	BeginDate        sql.NullTime
	VacateDate       sql.NullTime
}

// HasIncumbent reports whether the row names the person holding the position.
func (r *PlumRecord) HasIncumbent() bool {
	return r.FirstName != "" && r.LastName != ""
}

// LegislatorRecord is one member from the congress-legislators YAML.
type LegislatorRecord struct {
	Index        int
	BioguideID   string `validate:"required"`
	FirstName    string `validate:"required"`
	MiddleName   string
	LastName     string `validate:"required"`
	Suffix       string
	Nickname     string
	OfficialFull string
	BirthDate    sql.NullTime
	Gender       string
	ExternalIDs  Bag
	SocialMedia  Bag
	Terms        []LegislatorTerm `validate:"dive"`
}

// LegislatorTerm is one term served in the House or Senate.
type LegislatorTerm struct {
	Chamber  Chamber   `validate:"required,oneof=senate house"`
	Start    time.Time `validate:"required"`
	End      sql.NullTime
	State    string `validate:"required,len=2"`
	District sql.NullInt64
	Class    sql.NullInt64
	Party    string
	URL      string
}

// Seat returns the seat component of the legislative position key: the
// district for representatives, the class for senators.
func (t *LegislatorTerm) Seat() string {
	switch {
	case t.Chamber == ChamberHouse && t.District.Valid:
		return itoa(t.District.Int64)
	case t.Chamber == ChamberSenate && t.Class.Valid:
		return itoa(t.Class.Int64)
	default:
		return ""
	}
}
