package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// Stores return (nil, nil) when a lookup finds nothing.

type OrganizationStore interface {
	OrganizationLister
	GetByFederalRegisterID(ctx context.Context, id int64) (*model.Organization, error)
	GetByAcronym(ctx context.Context, acronym string) (*model.Organization, error)
	GetByName(ctx context.Context, name string) (*model.Organization, error)
	Create(ctx context.Context, o *model.Organization) error
	Update(ctx context.Context, o *model.Organization) error
}

type PersonStore interface {
	GetByBioguideID(ctx context.Context, bioguideID string) (*model.Person, error)
	GetByNameKey(ctx context.Context, nameKey string, source model.DataSource) (*model.Person, error)
	Create(ctx context.Context, p *model.Person) error
	Update(ctx context.Context, p *model.Person) error
}

type PositionStore interface {
	GetExecutive(ctx context.Context, title string, organizationID uuid.NullUUID) (*model.Position, error)
	GetLegislative(ctx context.Context, chamber model.Chamber, state, seat string) (*model.Position, error)
	Create(ctx context.Context, p *model.Position) error
	Update(ctx context.Context, p *model.Position) error
}

type HoldingStore interface {
	// GetLatest returns the most recently started holding of the pair from source.
	GetLatest(ctx context.Context, personID, positionID uuid.UUID, source model.DataSource) (*model.PositionHolding, error)
	GetByStart(ctx context.Context, personID, positionID uuid.UUID, start time.Time) (*model.PositionHolding, error)
	// CloseCurrent ends every open holding of the position from source held
	// by someone other than exceptPerson, and returns how many it closed.
	CloseCurrent(ctx context.Context, positionID uuid.UUID, source model.DataSource, exceptPerson uuid.UUID, end time.Time) (int64, error)
	Create(ctx context.Context, h *model.PositionHolding) error
	Update(ctx context.Context, h *model.PositionHolding) error
}

type RegulationStore interface {
	GetByDocumentNumber(ctx context.Context, documentNumber string) (*model.Regulation, error)
	Create(ctx context.Context, r *model.Regulation) error
	Update(ctx context.Context, r *model.Regulation) error
	ReplaceAgencyLinks(ctx context.Context, regulationID uuid.UUID, links []model.RegulationAgencyLink) error
	LatestPublicationDate(ctx context.Context) (sql.NullTime, error)
}

type MarkerStore interface {
	GetMarker(ctx context.Context, source model.SyncSource) (string, error)
	SetMarker(ctx context.Context, source model.SyncSource, marker string) error
}
