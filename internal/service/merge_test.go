package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*MergeEngine, *memStore) {
	mem := newMemStore()
	e := NewMergeEngine(mem.stores(), quietLogger())
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, mem
}

func legislator() *model.Person {
	return &model.Person{
		BioguideID:  nullString("S000033"),
		FirstName:   "Bernard",
		LastName:    "Sanders",
		Party:       nullString("Independent"),
		State:       nullString("VT"),
		ExternalIDs: model.Bag{model.ExternalGovtrack: model.IntValue(400357)},
	}
}

func TestUpsertPersonIsIdempotent(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	prov := Provenance{Source: model.SourceLegislatorsRepo, Version: "abc123"}

	p, res, err := e.UpsertPerson(ctx, legislator(), prov)
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)
	assert.Equal(t, "abc123", p.EnrichmentVersion.String)
	assert.Equal(t, model.SourceLegislatorsRepo, p.DataSource)

	writes := mem.Writes()
	again, res, err := e.UpsertPerson(ctx, legislator(), Provenance{Source: model.SourceLegislatorsRepo, Version: "def456"})
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, writes, mem.Writes(), "an unchanged merge writes nothing")
	assert.Equal(t, "abc123", again.EnrichmentVersion.String, "version is only stamped on change")
	assert.Len(t, mem.people, 1)
}

func TestUpsertPersonEnrichmentNeverOverwritesPrimaryFields(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	primary := &model.Person{
		BioguideID: nullString("S000033"),
		FirstName:  "Bernard",
		LastName:   "Sanders",
		Party:      nullString("Independent"),
		ExternalIDs: model.Bag{
			model.ExternalWikipedia: model.StringValue("Bernie Sanders"),
		},
	}
	_, _, err := e.UpsertPerson(ctx, primary, Provenance{Source: model.SourceCongressGov})
	require.NoError(t, err)

	enrich := &model.Person{
		BioguideID: nullString("S000033"),
		FirstName:  "Bernie",
		LastName:   "Sanders",
		Party:      nullString("Democrat"),
		Gender:     nullString("M"),
		ExternalIDs: model.Bag{
			model.ExternalGovtrack:  model.IntValue(400357),
			model.ExternalWikipedia: model.StringValue("Bernie Sanders (politician)"),
		},
		SocialMedia: model.Bag{model.SocialTwitter: model.StringValue("SenSanders")},
	}
	p, res, err := e.UpsertPerson(ctx, enrich, Provenance{Source: model.SourceLegislatorsRepo, Version: "sha1"})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)

	stored := mem.people[p.ID]
	assert.Equal(t, "Bernard", stored.FirstName, "primary name is kept")
	assert.Equal(t, "Independent", stored.Party.String, "primary party is kept")
	assert.Equal(t, "M", stored.Gender.String, "empty primary fields are filled")
	assert.Equal(t, "400357", stored.ExternalIDs[model.ExternalGovtrack].String())
	assert.Equal(t, "Bernie Sanders (politician)", stored.ExternalIDs[model.ExternalWikipedia].String())
	assert.Equal(t, "SenSanders", stored.SocialMedia[model.SocialTwitter].String())
	assert.Equal(t, model.SourceCongressGov, stored.DataSource)
	assert.Equal(t, "legislators_repo", stored.EnrichmentSource.String)
	assert.Equal(t, "sha1", stored.EnrichmentVersion.String)
}

func TestUpsertPersonAuthoritativeSourceUpdatesPrimaryFields(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	prov := Provenance{Source: model.SourceLegislatorsRepo}

	p, _, err := e.UpsertPerson(ctx, legislator(), prov)
	require.NoError(t, err)

	changed := legislator()
	changed.Party = nullString("Democrat")
	_, res, err := e.UpsertPerson(ctx, changed, prov)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
	assert.Equal(t, "Democrat", mem.people[p.ID].Party.String)
}

func TestUpsertPersonByNameWithinSource(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	plum := Provenance{Source: model.SourcePlumCSV}

	_, res, err := e.UpsertPerson(ctx, &model.Person{FirstName: "Jennifer", LastName: "Granholm"}, plum)
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	_, res, err = e.UpsertPerson(ctx, &model.Person{FirstName: " JENNIFER", LastName: "granholm "}, plum)
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	_, res, err = e.UpsertPerson(ctx, &model.Person{FirstName: "Jennifer", LastName: "Granholm"}, Provenance{Source: model.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res, "name keys are scoped by source")
	assert.Len(t, mem.people, 2)

	_, _, err = e.UpsertPerson(ctx, &model.Person{FirstName: "Cher"}, plum)
	assert.Error(t, err)
}

func TestUpsertPersonSerializesSameKey(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.UpsertPerson(ctx, legislator(), Provenance{Source: model.SourceLegislatorsRepo})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, mem.people, 1, "concurrent upserts of one key create one person")
	assert.Empty(t, e.locks.locks, "idle keys are released")
}

func executive(title string, org uuid.UUID) *model.Position {
	return &model.Position{
		Title:           title,
		Branch:          model.BranchExecutive,
		AppointmentType: model.AppointmentPAS,
		OrganizationID:  uuid.NullUUID{UUID: org, Valid: true},
		DataSource:      model.SourcePlumCSV,
	}
}

func TestUpsertPositionKeys(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	doe := uuid.New()

	a, res, err := e.UpsertPosition(ctx, executive("Secretary of Energy", doe))
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	b, res, err := e.UpsertPosition(ctx, executive("Secretary of Energy", doe))
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)
	assert.Equal(t, a.ID, b.ID)

	_, res, err = e.UpsertPosition(ctx, executive("Deputy Secretary of Energy", doe))
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	updated := executive("Secretary of Energy", doe)
	updated.PayPlan = nullString("EX")
	_, res, err = e.UpsertPosition(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)

	sen := &model.Position{Title: "Senator", Branch: model.BranchLegislative, Chamber: model.ChamberSenate, State: "VT", Seat: "1", DataSource: model.SourceLegislatorsRepo}
	_, res, err = e.UpsertPosition(ctx, sen)
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)
	renamed := *sen
	renamed.Title = "U.S. Senator"
	_, res, err = e.UpsertPosition(ctx, &renamed)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res, "legislative positions key on chamber, state and seat")
	assert.Len(t, mem.positions, 3)

	_, _, err = e.UpsertPosition(ctx, &model.Position{Title: "Senator", Branch: model.BranchLegislative})
	assert.Error(t, err, "legislative positions need chamber and state")
}

func TestSamePersonTwoTitles(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	org := uuid.New()
	plum := Provenance{Source: model.SourcePlumCSV}

	for _, title := range []string{"Administrator", "Chief Financial Officer"} {
		person, _, err := e.UpsertPerson(ctx, &model.Person{FirstName: "Alex", LastName: "Doe"}, plum)
		require.NoError(t, err)
		pos, _, err := e.UpsertPosition(ctx, executive(title, org))
		require.NoError(t, err)
		_, res, err := e.UpsertCurrentHolding(ctx, &model.PositionHolding{PersonID: person.ID, PositionID: pos.ID, DataSource: model.SourcePlumCSV})
		require.NoError(t, err)
		assert.Equal(t, ResultCreated, res)
	}

	assert.Len(t, mem.people, 1)
	assert.Len(t, mem.positions, 2)
	assert.Len(t, mem.holdings, 2)
}

func TestUpsertCurrentHoldingClosesPreviousHolder(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	pos := uuid.New()
	first, second := uuid.New(), uuid.New()

	h1, res, err := e.UpsertCurrentHolding(ctx, &model.PositionHolding{PersonID: first, PositionID: pos, DataSource: model.SourcePlumCSV})
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), h1.StartDate, "start defaults to today")

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	_, res, err = e.UpsertCurrentHolding(ctx, &model.PositionHolding{PersonID: second, PositionID: pos, StartDate: start, DataSource: model.SourcePlumCSV})
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	current := mem.currentHoldings(pos)
	require.Len(t, current, 1)
	assert.Equal(t, second, current[0].PersonID)
	assert.Equal(t, start, mem.holdings[h1.ID].EndDate.Time)

	_, res, err = e.UpsertCurrentHolding(ctx, &model.PositionHolding{PersonID: second, PositionID: pos, StartDate: start, DataSource: model.SourcePlumCSV})
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	_, res, err = e.UpsertCurrentHolding(ctx, &model.PositionHolding{
		PersonID: second, PositionID: pos, DataSource: model.SourcePlumCSV,
		Tenure: sql.NullInt64{Int64: 2, Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
}

func TestUpsertTermHolding(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	in := &model.PositionHolding{
		PersonID:   uuid.New(),
		PositionID: uuid.New(),
		StartDate:  time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC),
		EndDate:    sql.NullTime{Time: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Valid: true},
		Congress:   sql.NullInt64{Int64: congressFor(time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC)), Valid: true},
		DataSource: model.SourceLegislatorsRepo,
	}
	_, res, err := e.UpsertTermHolding(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)
	assert.Equal(t, int64(116), in.Congress.Int64)

	_, res, err = e.UpsertTermHolding(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	_, _, err = e.UpsertTermHolding(ctx, &model.PositionHolding{PersonID: uuid.New(), PositionID: uuid.New()})
	assert.Error(t, err)
}

func TestCongressFor(t *testing.T) {
	assert.Equal(t, int64(1), congressFor(time.Date(1789, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(115), congressFor(time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(116), congressFor(time.Date(2020, 11, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(119), congressFor(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func regulation(num, title string) *model.Regulation {
	return &model.Regulation{
		DocumentNumber:  num,
		Title:           title,
		DocumentType:    model.DocumentRule,
		PublicationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		DocketIDs:       []string{"EPA-HQ-2024-0001"},
		CFRReferences:   model.CFRReferences{{Title: 40, Part: "52"}},
	}
}

func TestUpsertRegulation(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	r, res, err := e.UpsertRegulation(ctx, regulation("2024-01234", "Air Plan Approval"))
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	_, res, err = e.UpsertRegulation(ctx, regulation("2024-01234", "Air Plan Approval"))
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	changed := regulation("2024-01234", "Air Plan Approval; Correction")
	changed.EffectiveOn = sql.NullTime{Time: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), Valid: true}
	_, res, err = e.UpsertRegulation(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
	assert.Equal(t, "Air Plan Approval; Correction", mem.regulations[r.ID].Title)

	links := []model.RegulationAgencyLink{
		{OrganizationID: uuid.New(), RawName: "Environmental Protection Agency"},
		{OrganizationID: uuid.New(), RawName: "Office of Air"},
	}
	require.NoError(t, e.ReplaceRegulationAgencies(ctx, r, links))
	stored := mem.links[r.ID]
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Primary)
	assert.False(t, stored[1].Primary)
	assert.Equal(t, r.ID, stored[1].RegulationID)
}

func TestUpsertAgency(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	rec := model.AgencyRecord{ID: 145, Name: "Environmental Protection Agency", ShortName: "EPA", Slug: "environmental-protection-agency"}

	o, res, err := e.UpsertAgency(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, res)

	_, res, err = e.UpsertAgency(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	rec.Name = "U.S. Environmental Protection Agency"
	_, res, err = e.UpsertAgency(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
	stored := mem.orgs[o.ID]
	assert.Equal(t, "U.S. Environmental Protection Agency", stored.OfficialName)
	assert.Equal(t, []string{"Environmental Protection Agency"}, stored.FormerNames)
}

func TestUpsertAgencyEnrichesManualOrganization(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	seeded := model.Organization{ID: uuid.New(), OfficialName: "Department of Energy", Acronym: nullString("DOE"), DataSource: model.SourceManual, Branch: model.BranchExecutive}
	mem.orgs[seeded.ID] = seeded

	o, res, err := e.UpsertAgency(ctx, model.AgencyRecord{ID: 136, Name: "Energy Department", ShortName: "DOE", Description: "Energy policy"})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
	assert.Equal(t, seeded.ID, o.ID, "matched by acronym")

	stored := mem.orgs[seeded.ID]
	assert.Equal(t, "Department of Energy", stored.OfficialName, "non-authoritative name is kept")
	assert.Equal(t, int64(136), stored.FederalRegisterID.Int64)
	assert.Equal(t, "Energy policy", stored.Description.String)
}

func TestLinkAgencyParent(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()
	parent, _, err := e.UpsertAgency(ctx, model.AgencyRecord{ID: 12, Name: "Agriculture Department", ShortName: "USDA"})
	require.NoError(t, err)
	child, _, err := e.UpsertAgency(ctx, model.AgencyRecord{ID: 13, Name: "Agricultural Marketing Service", ShortName: "AMS"})
	require.NoError(t, err)

	res, err := e.LinkAgencyParent(ctx, 13, 12)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, res)
	assert.Equal(t, parent.ID, mem.orgs[child.ID].ParentID.UUID)

	res, err = e.LinkAgencyParent(ctx, 13, 12)
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)

	res, err = e.LinkAgencyParent(ctx, 99, 12)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, res)
}

func TestUpsertSurfacesStoreErrors(t *testing.T) {
	e, mem := newTestEngine()
	mem.failCreate["regulation:bad"] = errors.New("constraint violation")

	_, _, err := e.UpsertRegulation(context.Background(), regulation("bad", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.ErrorContains(t, err, "constraint violation")
}

func TestCombine(t *testing.T) {
	assert.Equal(t, ResultSkipped, Combine())
	assert.Equal(t, ResultUnchanged, Combine(ResultUnchanged, ResultSkipped))
	assert.Equal(t, ResultUpdated, Combine(ResultUnchanged, ResultUpdated))
	assert.Equal(t, ResultCreated, Combine(ResultUpdated, ResultCreated, ResultUnchanged))
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := map[string]int{}
	var mu sync.Mutex
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%3)
			unlock := k.Lock(key)
			mu.Lock()
			counter[key]++
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Empty(t, k.locks)
	assert.Equal(t, 50, counter["k0"]+counter["k1"]+counter["k2"])
}
