package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// Provenance identifies the upstream and version that produced a record.
type Provenance struct {
	Source  model.DataSource
	Version string
}

// UpsertPerson matches by bioguide ID when the incoming record has one,
// and otherwise by normalized name within the same source.
//
// Primary fields (names, party, state, birth date, gender) are replaced
// only when the incoming source is the one that created the person. Any
// other source may fill them when empty. External ID and social media bags
// always merge additively.
func (e *MergeEngine) UpsertPerson(ctx context.Context, in *model.Person, prov Provenance) (*model.Person, MergeResult, error) {
	key := "person:name:" + string(prov.Source) + ":" + in.NameKey()
	if in.BioguideID.Valid {
		key = "person:bioguide:" + in.BioguideID.String
	}
	unlock := e.locks.Lock(key)
	defer unlock()

	existing, err := e.findPerson(ctx, in, prov.Source)
	if err != nil {
		return nil, "", err
	}

	if existing == nil {
		if in.FirstName == "" || in.LastName == "" {
			return nil, "", fmt.Errorf("cannot create person %s without first and last name", key)
		}
		p := *in
		p.ID = uuid.New()
		p.DataSource = prov.Source
		p.EnrichmentSource = nullString(string(prov.Source))
		p.EnrichmentVersion = nullString(prov.Version)
		if err := e.people.Create(ctx, &p); err != nil {
			return nil, "", fmt.Errorf("failed to create person %s: %w", key, err)
		}
		return &p, ResultCreated, nil
	}

	authoritative := existing.DataSource == prov.Source
	// A person matched by name keeps the spelling it was created with.
	renamable := authoritative && in.BioguideID.Valid
	changed := anyChanged(
		mergeText(&existing.FirstName, in.FirstName, renamable),
		mergeText(&existing.LastName, in.LastName, renamable),
		mergeNullString(&existing.MiddleName, in.MiddleName, authoritative),
		mergeNullString(&existing.Suffix, in.Suffix, authoritative),
		mergeNullString(&existing.Nickname, in.Nickname, authoritative),
		mergeNullString(&existing.Party, in.Party, authoritative),
		mergeNullString(&existing.State, in.State, authoritative),
		mergeNullTime(&existing.BirthDate, in.BirthDate, authoritative),
		mergeNullString(&existing.Gender, in.Gender, authoritative),
		mergeNullString(&existing.BioguideID, in.BioguideID, false),
		existing.ExternalIDs.Merge(in.ExternalIDs),
		existing.SocialMedia.Merge(in.SocialMedia),
	)
	if !changed {
		return existing, ResultUnchanged, nil
	}

	existing.EnrichmentSource = nullString(string(prov.Source))
	if prov.Version != "" {
		existing.EnrichmentVersion = nullString(prov.Version)
	}
	if err := e.people.Update(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("failed to update person %s: %w", key, err)
	}
	return existing, ResultUpdated, nil
}

func (e *MergeEngine) findPerson(ctx context.Context, in *model.Person, source model.DataSource) (*model.Person, error) {
	if in.BioguideID.Valid {
		return e.people.GetByBioguideID(ctx, in.BioguideID.String)
	}
	return e.people.GetByNameKey(ctx, in.NameKey(), source)
}
