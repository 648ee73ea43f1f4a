package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

const positionColumns = `id, title, branch, chamber, state, seat, appointment_type, pay_plan,
		       pay_grade, location, expiration_date, organization_id, data_source,
		       created_at, updated_at`

// PositionStore handles database operations for positions
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

func scanPosition(row rowScanner) (*model.Position, error) {
	var (
		p                           model.Position
		chamber, state, appointment sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Branch,
		&chamber,
		&state,
		&p.Seat,
		&appointment,
		&p.PayPlan,
		&p.PayGrade,
		&p.Location,
		&p.ExpirationDate,
		&p.OrganizationID,
		&p.DataSource,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Chamber = model.Chamber(chamber.String)
	p.State = state.String
	p.AppointmentType = model.AppointmentType(appointment.String)
	return &p, nil
}

func (s *PositionStore) getOne(ctx context.Context, label, where string, args ...any) (*model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE ` + where + ` ORDER BY created_at LIMIT 1`
	p, err := scanPosition(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", label, err)
	}
	return p, nil
}

// GetExecutive finds a non-legislative position by title within an
// organization. A null organization matches positions without one.
func (s *PositionStore) GetExecutive(ctx context.Context, title string, organizationID uuid.NullUUID) (*model.Position, error) {
	return s.getOne(ctx, title,
		`branch <> 'legislative' AND title = $1 AND organization_id IS NOT DISTINCT FROM $2`,
		title, organizationID)
}

// GetLegislative finds the seat identified by chamber, state and seat
func (s *PositionStore) GetLegislative(ctx context.Context, chamber model.Chamber, state, seat string) (*model.Position, error) {
	return s.getOne(ctx, fmt.Sprintf("%s %s %s", chamber, state, seat),
		`branch = 'legislative' AND chamber = $1 AND state = $2 AND seat = $3`,
		chamber, state, seat)
}

// Create inserts a new position
func (s *PositionStore) Create(ctx context.Context, p *model.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO positions (id, title, branch, chamber, state, seat, appointment_type, pay_plan,
		                       pay_grade, location, expiration_date, organization_id, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.Title,
		p.Branch,
		text(p.Chamber),
		text(p.State),
		p.Seat,
		text(p.AppointmentType),
		p.PayPlan,
		p.PayGrade,
		p.Location,
		p.ExpirationDate,
		p.OrganizationID,
		p.DataSource,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create position %s: %w", p.Title, err)
	}
	return nil
}

// Update writes every mutable column of an existing position
func (s *PositionStore) Update(ctx context.Context, p *model.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		UPDATE positions
		SET title = $2, branch = $3, chamber = $4, state = $5, seat = $6, appointment_type = $7,
		    pay_plan = $8, pay_grade = $9, location = $10, expiration_date = $11,
		    organization_id = $12, data_source = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.Title,
		p.Branch,
		text(p.Chamber),
		text(p.State),
		p.Seat,
		text(p.AppointmentType),
		p.PayPlan,
		p.PayGrade,
		p.Location,
		p.ExpirationDate,
		p.OrganizationID,
		p.DataSource,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w", p.Title, err)
	}
	return nil
}

const holdingColumns = `id, person_id, position_id, start_date, end_date, congress, tenure,
		       data_source, source_reference, created_at, updated_at`

// HoldingStore handles database operations for position holdings
type HoldingStore struct {
	db *sql.DB
}

func NewHoldingStore(db *sql.DB) *HoldingStore {
	return &HoldingStore{db: db}
}

func scanHolding(row rowScanner) (*model.PositionHolding, error) {
	var h model.PositionHolding
	err := row.Scan(
		&h.ID,
		&h.PersonID,
		&h.PositionID,
		&h.StartDate,
		&h.EndDate,
		&h.Congress,
		&h.Tenure,
		&h.DataSource,
		&h.SourceReference,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetLatest returns the most recently started holding of the pair from source
func (s *HoldingStore) GetLatest(ctx context.Context, personID, positionID uuid.UUID, source model.DataSource) (*model.PositionHolding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM position_holdings
		WHERE person_id = $1 AND position_id = $2 AND data_source = $3
		ORDER BY start_date DESC
		LIMIT 1`

	h, err := scanHolding(s.db.QueryRowContext(ctx, query, personID, positionID, source))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest holding of %s at %s: %w", personID, positionID, err)
	}
	return h, nil
}

// GetByStart returns the holding of the pair that began on start
func (s *HoldingStore) GetByStart(ctx context.Context, personID, positionID uuid.UUID, start time.Time) (*model.PositionHolding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM position_holdings
		WHERE person_id = $1 AND position_id = $2 AND start_date = $3
		LIMIT 1`

	h, err := scanHolding(s.db.QueryRowContext(ctx, query, personID, positionID, start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding of %s at %s: %w", personID, positionID, err)
	}
	return h, nil
}

// CloseCurrent ends the open holdings of a position from source that belong
// to anyone other than exceptPerson.
func (s *HoldingStore) CloseCurrent(ctx context.Context, positionID uuid.UUID, source model.DataSource, exceptPerson uuid.UUID, end time.Time) (int64, error) {
	query := `
		UPDATE position_holdings
		SET end_date = $4, updated_at = now()
		WHERE position_id = $1 AND data_source = $2 AND person_id <> $3 AND end_date IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, positionID, source, exceptPerson, end)
	if err != nil {
		return 0, fmt.Errorf("failed to close holdings of %s: %w", positionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count closed holdings: %w", err)
	}
	return n, nil
}

// Create inserts a new holding
func (s *HoldingStore) Create(ctx context.Context, h *model.PositionHolding) error {
	query := `
		INSERT INTO position_holdings (id, person_id, position_id, start_date, end_date, congress,
		                               tenure, data_source, source_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		h.ID,
		h.PersonID,
		h.PositionID,
		h.StartDate,
		h.EndDate,
		h.Congress,
		h.Tenure,
		h.DataSource,
		h.SourceReference,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create holding of %s at %s: %w", h.PersonID, h.PositionID, err)
	}
	return nil
}

// Update writes the mutable columns of an existing holding
func (s *HoldingStore) Update(ctx context.Context, h *model.PositionHolding) error {
	query := `
		UPDATE position_holdings
		SET start_date = $2, end_date = $3, congress = $4, tenure = $5, data_source = $6,
		    source_reference = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		h.ID,
		h.StartDate,
		h.EndDate,
		h.Congress,
		h.Tenure,
		h.DataSource,
		h.SourceReference,
	).Scan(&h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", h.ID, err)
	}
	return nil
}
