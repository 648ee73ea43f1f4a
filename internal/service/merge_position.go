package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

func positionKey(p *model.Position) string {
	if p.Branch == model.BranchLegislative {
		return "position:legislative:" + strings.Join([]string{string(p.Chamber), p.State, p.Seat}, "|")
	}
	return "position:" + string(p.Branch) + ":" + p.Title + "|" + p.OrganizationID.UUID.String()
}

// UpsertPosition matches legislative positions by chamber, state and seat
// and all others by title and organization.
func (e *MergeEngine) UpsertPosition(ctx context.Context, in *model.Position) (*model.Position, MergeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}
	key := positionKey(in)
	unlock := e.locks.Lock(key)
	defer unlock()

	var existing *model.Position
	var err error
	if in.Branch == model.BranchLegislative {
		existing, err = e.positions.GetLegislative(ctx, in.Chamber, in.State, in.Seat)
	} else {
		existing, err = e.positions.GetExecutive(ctx, in.Title, in.OrganizationID)
	}
	if err != nil {
		return nil, "", err
	}

	if existing == nil {
		p := *in
		p.ID = uuid.New()
		if err := e.positions.Create(ctx, &p); err != nil {
			return nil, "", fmt.Errorf("failed to create position %s: %w", key, err)
		}
		return &p, ResultCreated, nil
	}

	authoritative := existing.DataSource == in.DataSource
	changed := anyChanged(
		mergeText(&existing.Title, in.Title, authoritative),
		mergeText(&existing.AppointmentType, in.AppointmentType, authoritative),
		mergeNullString(&existing.PayPlan, in.PayPlan, authoritative),
		mergeNullString(&existing.PayGrade, in.PayGrade, authoritative),
		mergeNullString(&existing.Location, in.Location, authoritative),
		mergeNullTime(&existing.ExpirationDate, in.ExpirationDate, authoritative),
		mergeNullUUID(&existing.OrganizationID, in.OrganizationID, false),
	)
	if !changed {
		return existing, ResultUnchanged, nil
	}
	if err := existing.Validate(); err != nil {
		return nil, "", err
	}
	if err := e.positions.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update position %s: %w", key, err)
	}
	return existing, ResultUpdated, nil
}

// UpsertCurrentHolding records that in.PersonID holds in.PositionID
// according to in.DataSource. The latest holding of the pair from that
// source is updated in place; a zero StartDate defaults to today on create.
// When the resulting holding is open, any other open holding of the
// position from the same source is closed on its start date.
func (e *MergeEngine) UpsertCurrentHolding(ctx context.Context, in *model.PositionHolding) (*model.PositionHolding, MergeResult, error) {
	unlock := e.locks.Lock("holding:" + in.PositionID.String())
	defer unlock()

	existing, err := e.holdings.GetLatest(ctx, in.PersonID, in.PositionID, in.DataSource)
	if err != nil {
		return nil, "", err
	}

	var h *model.PositionHolding
	var result MergeResult
	if existing == nil {
		created := *in
		created.ID = uuid.New()
		if created.StartDate.IsZero() {
			created.StartDate = dateOnly(e.now())
		}
		if err := e.holdings.Create(ctx, &created); err != nil {
			return nil, "", fmt.Errorf("failed to create holding of position %s: %w", in.PositionID, err)
		}
		h, result = &created, ResultCreated
	} else {
		changed := anyChanged(
			mergeNullInt(&existing.Tenure, in.Tenure, true),
			mergeNullTime(&existing.EndDate, in.EndDate, true),
			mergeNullString(&existing.SourceReference, in.SourceReference, true),
		)
		if !in.StartDate.IsZero() && !existing.StartDate.Equal(in.StartDate) {
			existing.StartDate = in.StartDate
			changed = true
		}
		h, result = existing, ResultUnchanged
		if changed {
			if err := e.holdings.Update(ctx, existing); err != nil {
				return nil, "", fmt.Errorf("failed to update holding %s: %w", existing.ID, err)
			}
			result = ResultUpdated
		}
	}

	if h.Current() {
		closed, err := e.holdings.CloseCurrent(ctx, h.PositionID, h.DataSource, h.PersonID, h.StartDate)
		if err != nil {
			return nil, "", fmt.Errorf("failed to close previous holdings of position %s: %w", h.PositionID, err)
		}
		if closed > 0 {
			e.log.WithField("position_id", h.PositionID).WithField("closed", closed).Info("Closed previous holdings")
			result = Combine(result, ResultUpdated)
		}
	}
	return h, result, nil
}

// UpsertTermHolding records one dated term, matched by person, position
// and start date.
func (e *MergeEngine) UpsertTermHolding(ctx context.Context, in *model.PositionHolding) (*model.PositionHolding, MergeResult, error) {
	if in.StartDate.IsZero() {
		return nil, "", fmt.Errorf("term holding of position %s has no start date", in.PositionID)
	}
	unlock := e.locks.Lock("holding:" + in.PositionID.String())
	defer unlock()

	existing, err := e.holdings.GetByStart(ctx, in.PersonID, in.PositionID, in.StartDate)
	if err != nil {
		return nil, "", err
	}
	if existing == nil {
		h := *in
		h.ID = uuid.New()
		if err := e.holdings.Create(ctx, &h); err != nil {
			return nil, "", fmt.Errorf("failed to create term of position %s: %w", in.PositionID, err)
		}
		return &h, ResultCreated, nil
	}

	authoritative := existing.DataSource == in.DataSource
	changed := anyChanged(
		mergeNullTime(&existing.EndDate, in.EndDate, authoritative),
		mergeNullInt(&existing.Congress, in.Congress, authoritative),
		mergeNullString(&existing.SourceReference, in.SourceReference, authoritative),
	)
	if !changed {
		return existing, ResultUnchanged, nil
	}
	if err := e.holdings.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update term %s: %w", existing.ID, err)
	}
	return existing, ResultUpdated, nil
}

// congressFor returns the number of the Congress in session on day t.
func congressFor(t time.Time) int64 {
	year := t.Year()
	// A Congress convenes on January 3 of odd years.
	if year%2 == 1 && t.Month() == time.January && t.Day() < 3 {
		year--
	}
	return int64((year - 1787) / 2)
}
