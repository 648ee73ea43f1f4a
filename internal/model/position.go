package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Position is a seat or office that a person can hold.
//
// Legislative positions are identified by chamber, state and seat (the House
// district, or the Senate class). Executive positions are identified by
// title and organization.
type Position struct {
	ID              uuid.UUID
	Title           string
	Branch          Branch
	Chamber         Chamber
	State           string
	Seat            string
	AppointmentType AppointmentType
	PayPlan         sql.NullString
	PayGrade        sql.NullString
	Location        sql.NullString
	ExpirationDate  sql.NullTime
	OrganizationID  uuid.NullUUID
	DataSource      DataSource
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate enforces the branch rules on chamber and state.
func (p *Position) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("position title is required")
	}
	switch p.Branch {
	case BranchLegislative:
		if p.Chamber == "" || p.State == "" {
			return fmt.Errorf("legislative position %q requires chamber and state", p.Title)
		}
		if p.AppointmentType != "" {
			return fmt.Errorf("legislative position %q cannot carry an appointment type", p.Title)
		}
	case BranchExecutive:
		if p.Chamber != "" || p.State != "" {
			return fmt.Errorf("executive position %q cannot have chamber or state", p.Title)
		}
	case BranchJudicial:
	default:
		return fmt.Errorf("position %q has unknown branch %q", p.Title, p.Branch)
	}
	return nil
}

// PositionHolding links a person to a position for a period of time. A
// null EndDate means the holding is current.
type PositionHolding struct {
	ID              uuid.UUID
	PersonID        uuid.UUID
	PositionID      uuid.UUID
	StartDate       time.Time
	EndDate         sql.NullTime
	Congress        sql.NullInt64
	Tenure          sql.NullInt64
	DataSource      DataSource
	SourceReference sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Current reports whether the holding has no end date.
func (h *PositionHolding) Current() bool {
	return !h.EndDate.Valid
}
