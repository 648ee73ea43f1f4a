package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// UpsertRegulation matches by document number. The incoming document is
// authoritative, so any differing non-empty value replaces the stored one.
func (e *MergeEngine) UpsertRegulation(ctx context.Context, in *model.Regulation) (*model.Regulation, MergeResult, error) {
	unlock := e.locks.Lock("regulation:" + in.DocumentNumber)
	defer unlock()

	existing, err := e.regulations.GetByDocumentNumber(ctx, in.DocumentNumber)
	if err != nil {
		return nil, "", err
	}
	if existing == nil {
		r := *in
		r.ID = uuid.New()
		if err := e.regulations.Create(ctx, &r); err != nil {
			return nil, "", fmt.Errorf("failed to create regulation %s: %w", in.DocumentNumber, err)
		}
		return &r, ResultCreated, nil
	}

	changed := anyChanged(
		mergeText(&existing.Title, in.Title, true),
		mergeNullString(&existing.Abstract, in.Abstract, true),
		mergeText(&existing.DocumentType, in.DocumentType, true),
		mergeNullTime(&existing.EffectiveOn, in.EffectiveOn, true),
		mergeNullTime(&existing.SigningDate, in.SigningDate, true),
		mergeNullString(&existing.RegulationIDNumber, in.RegulationIDNumber, true),
		mergeStrings(&existing.DocketIDs, in.DocketIDs, true),
		mergeNullString(&existing.SourceURL, in.SourceURL, true),
		mergeNullString(&existing.HTMLURL, in.HTMLURL, true),
		mergeNullString(&existing.PDFURL, in.PDFURL, true),
	)
	if !in.PublicationDate.IsZero() && !existing.PublicationDate.Equal(in.PublicationDate) {
		existing.PublicationDate = in.PublicationDate
		changed = true
	}
	if len(in.CFRReferences) > 0 && !slices.Equal(existing.CFRReferences, in.CFRReferences) {
		existing.CFRReferences = slices.Clone(in.CFRReferences)
		changed = true
	}
	if !changed {
		return existing, ResultUnchanged, nil
	}
	if err := e.regulations.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update regulation %s: %w", in.DocumentNumber, err)
	}
	return existing, ResultUpdated, nil
}

// ReplaceRegulationAgencies swaps the agency links of r for links. The
// first link is marked primary.
func (e *MergeEngine) ReplaceRegulationAgencies(ctx context.Context, r *model.Regulation, links []model.RegulationAgencyLink) error {
	unlock := e.locks.Lock("regulation:" + r.DocumentNumber)
	defer unlock()

	for i := range links {
		links[i].RegulationID = r.ID
		links[i].Primary = i == 0
	}
	if err := e.regulations.ReplaceAgencyLinks(ctx, r.ID, links); err != nil {
		return fmt.Errorf("failed to link agencies to regulation %s: %w", r.DocumentNumber, err)
	}
	return nil
}
