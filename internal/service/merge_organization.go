package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// UpsertAgency merges one Federal Register agency into the organization
// store. The Federal Register is authoritative for the official name of
// organizations it created; for other organizations it only fills gaps.
func (e *MergeEngine) UpsertAgency(ctx context.Context, rec model.AgencyRecord) (*model.Organization, MergeResult, error) {
	e.orgMu.Lock()
	defer e.orgMu.Unlock()

	existing, err := e.findAgency(ctx, rec)
	if err != nil {
		return nil, "", err
	}

	frID := sql.NullInt64{Int64: rec.ID, Valid: true}
	if existing == nil {
		o := &model.Organization{
			ID:                  uuid.New(),
			OfficialName:        rec.Name,
			Acronym:             nullString(rec.ShortName),
			FederalRegisterID:   frID,
			FederalRegisterSlug: nullString(rec.Slug),
			WebsiteURL:          nullString(rec.URL),
			Description:         nullString(rec.Description),
			Branch:              model.BranchExecutive,
			DataSource:          model.SourceFederalRegister,
		}
		if err := e.orgs.Create(ctx, o); err != nil {
			return nil, "", fmt.Errorf("failed to create organization %q: %w", rec.Name, err)
		}
		return o, ResultCreated, nil
	}

	authoritative := existing.DataSource == model.SourceFederalRegister
	previousName := existing.OfficialName
	changed := anyChanged(
		mergeText(&existing.OfficialName, rec.Name, authoritative),
		mergeNullString(&existing.Acronym, nullString(rec.ShortName), false),
		mergeNullInt(&existing.FederalRegisterID, frID, true),
		mergeNullString(&existing.FederalRegisterSlug, nullString(rec.Slug), true),
		mergeNullString(&existing.WebsiteURL, nullString(rec.URL), true),
		mergeNullString(&existing.Description, nullString(rec.Description), false),
	)
	if existing.OfficialName != previousName && !slices.Contains(existing.FormerNames, previousName) {
		existing.FormerNames = append(existing.FormerNames, previousName)
	}
	if !changed {
		return existing, ResultUnchanged, nil
	}
	if err := e.orgs.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update organization %q: %w", existing.OfficialName, err)
	}
	return existing, ResultUpdated, nil
}

// findAgency matches by Federal Register ID, then acronym, then name.
func (e *MergeEngine) findAgency(ctx context.Context, rec model.AgencyRecord) (*model.Organization, error) {
	o, err := e.orgs.GetByFederalRegisterID(ctx, rec.ID)
	if err != nil || o != nil {
		return o, err
	}
	if rec.ShortName != "" {
		o, err = e.orgs.GetByAcronym(ctx, rec.ShortName)
		if err != nil || o != nil {
			return o, err
		}
	}
	return e.orgs.GetByName(ctx, rec.Name)
}

// LinkAgencyParent sets the parent of the organization with Federal
// Register ID childID, unless it already has one.
func (e *MergeEngine) LinkAgencyParent(ctx context.Context, childID, parentID int64) (MergeResult, error) {
	e.orgMu.Lock()
	defer e.orgMu.Unlock()

	child, err := e.orgs.GetByFederalRegisterID(ctx, childID)
	if err != nil {
		return "", err
	}
	if child == nil {
		return ResultSkipped, nil
	}
	if child.ParentID.Valid {
		return ResultUnchanged, nil
	}
	parent, err := e.orgs.GetByFederalRegisterID(ctx, parentID)
	if err != nil {
		return "", err
	}
	if parent == nil || parent.ID == child.ID {
		return ResultSkipped, nil
	}

	child.ParentID = uuid.NullUUID{UUID: parent.ID, Valid: true}
	if err := e.orgs.Update(ctx, child); err != nil {
		return "", fmt.Errorf("failed to link %q to parent %q: %w", child.OfficialName, parent.OfficialName, err)
	}
	return ResultUpdated, nil
}
