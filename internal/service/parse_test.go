package service

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jjenkins/factbase/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plumHeader = "AgencyName,OrganizationName,PositionTitle,PositionStatus,AppointmentTypeDescription,ExpirationDate,LevelGradePay,Location,IncumbentFirstName,IncumbentLastName,PaymentPlanDescription,Tenure,IncumbentBeginDate,IncumbentVacateDate\n"

func collectPlum(t *testing.T, csv string) ([]model.PlumRecord, []error) {
	t.Helper()
	var recs []model.PlumRecord
	var errs []error
	for rec, err := range ReadPlumCSV(strings.NewReader(csv)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errs
}

func TestReadPlumCSV(t *testing.T) {
	csv := "\ufeff" + plumHeader +
		`"Department of Energy","Office of the Secretary","Secretary of Energy",Filled,"Presidential Appointment with Senate Confirmation",,"Level I",Washington DC,Jennifer,Granholm,"EX - Executive Schedule",1,2/25/2021 0:00,` + "\n" +
		"\n" +
		`"Department of Energy","Office of Science","Director, Office of Science",Vacant,PAS,1/20/2029,,,,,,,,` + "\n"

	recs, errs := collectPlum(t, csv)
	require.Empty(t, errs)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "Department of Energy", first.AgencyName)
	assert.Equal(t, "Secretary of Energy", first.PositionTitle)
	assert.Equal(t, model.AppointmentPAS, first.AppointmentType)
	assert.Equal(t, "EX", first.PayPlan)
	assert.Equal(t, "Level I", first.PayGrade)
	assert.True(t, first.HasIncumbent())
	assert.False(t, first.Vacant)
	assert.True(t, first.Tenure.Valid)
	assert.Equal(t, int64(1), first.Tenure.Int64)
	require.True(t, first.BeginDate.Valid)
	assert.Equal(t, time.Date(2021, 2, 25, 0, 0, 0, 0, time.UTC), first.BeginDate.Time)
	assert.False(t, first.VacateDate.Valid)

	second := recs[1]
	assert.Equal(t, 4, second.Line)
	assert.Equal(t, "Director, Office of Science", second.PositionTitle, "embedded commas are kept")
	assert.True(t, second.Vacant)
	assert.False(t, second.HasIncumbent())
	require.True(t, second.ExpirationDate.Valid)
	assert.Equal(t, 2029, second.ExpirationDate.Time.Year())
}

func TestReadPlumCSVMissingAgencyFailsRecordOnly(t *testing.T) {
	csv := plumHeader +
		`,Office,Deputy Secretary,Filled,PA,,,,Ann,Lee,,,,` + "\n" +
		`Department of Labor,Office,Deputy Secretary,Filled,PA,bad-date,,,Ann,Lee,,x,,` + "\n"

	recs, errs := collectPlum(t, csv)
	require.Len(t, errs, 1)
	require.Len(t, recs, 1)

	var pe *ParseError
	require.True(t, errors.As(errs[0], &pe))
	assert.Equal(t, "AgencyName", pe.Field)
	assert.Equal(t, 2, pe.Line)

	assert.False(t, recs[0].ExpirationDate.Valid, "malformed optional dates become absent")
	assert.False(t, recs[0].Tenure.Valid)
}

func TestReadPlumCSVBadHeader(t *testing.T) {
	_, errs := collectPlum(t, "Foo,Bar\n1,2\n")
	require.Len(t, errs, 1)
	var pe *ParseError
	assert.False(t, errors.As(errs[0], &pe), "a bad header is not a per-record failure")

	_, errs = collectPlum(t, "")
	require.Len(t, errs, 1)
}

func TestPayPlanCode(t *testing.T) {
	assert.Equal(t, "EX", payPlanCode("EX - Executive Schedule"))
	assert.Equal(t, "ES", payPlanCode("ES Senior Executive Service"))
	assert.Equal(t, "GS", payPlanCode("GS"))
	assert.Equal(t, "", payPlanCode(""))
}

const legislatorsYAML = `
- id:
    bioguide: S000033
    thomas: "01010"
    govtrack: 400357
    opensecrets: N00000528
    fec:
      - H8VT01016
      - S4VT00033
    wikipedia: Bernie Sanders
  name:
    first: Bernard
    last: Sanders
    nickname: Bernie
    official_full: Bernard Sanders
  bio:
    birthday: "1941-09-08"
    gender: M
    religion: unknown-key-is-ignored
  terms:
    - type: rep
      start: "1991-01-03"
      end: "1993-01-03"
      state: VT
      district: 0
      party: Independent
    - type: sen
      start: "2019-01-03"
      end: "2025-01-03"
      state: VT
      class: 1
      party: Independent
  leadership_roles: []
- id:
    govtrack: 1
  name:
    first: Nobody
    last: Known
- id:
    bioguide: X000001
    fec: H0XX00001
  name:
    first: Xavier
    last: Example
  terms:
    - type: governor
      start: "2001-01-01"
      state: XX
`

func TestReadLegislators(t *testing.T) {
	var recs []model.LegislatorRecord
	var errs []error
	for rec, err := range ReadLegislators(strings.NewReader(legislatorsYAML)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	require.Len(t, recs, 1)
	require.Len(t, errs, 2)

	r := recs[0]
	assert.Equal(t, "S000033", r.BioguideID)
	assert.Equal(t, "Bernard", r.FirstName)
	assert.Equal(t, "Bernie", r.Nickname)
	assert.True(t, r.BirthDate.Valid)
	assert.Equal(t, "400357", r.ExternalIDs[model.ExternalGovtrack].String())
	assert.True(t, r.ExternalIDs[model.ExternalGovtrack].Equal(model.IntValue(400357)))
	assert.True(t, r.ExternalIDs[model.ExternalFEC].Equal(model.ListValue([]string{"H8VT01016", "S4VT00033"})))
	assert.True(t, r.ExternalIDs[model.ExternalThomas].Equal(model.StringValue("01010")))

	require.Len(t, r.Terms, 2)
	assert.Equal(t, model.ChamberHouse, r.Terms[0].Chamber)
	assert.Equal(t, "0", r.Terms[0].Seat())
	assert.Equal(t, model.ChamberSenate, r.Terms[1].Chamber)
	assert.Equal(t, "1", r.Terms[1].Seat())

	var pe *ParseError
	require.True(t, errors.As(errs[0], &pe))
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, "BioguideID", pe.Field)

	require.True(t, errors.As(errs[1], &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "terms[0].type", pe.Field)
}

func TestReadLegislatorsRejectsNonSequence(t *testing.T) {
	var errs []error
	for _, err := range ReadLegislators(strings.NewReader("key: value\n")) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	var pe *ParseError
	assert.False(t, errors.As(errs[0], &pe))
}

func TestReadLegislatorSocial(t *testing.T) {
	social, err := ReadLegislatorSocial(strings.NewReader(`
- id:
    bioguide: S000033
  social:
    twitter: SenSanders
    twitter_id: 29442313
- social:
    twitter: orphan
`))
	require.NoError(t, err)
	require.Len(t, social, 1)
	assert.Equal(t, "SenSanders", social["S000033"][model.SocialTwitter].String())
	assert.Equal(t, "29442313", social["S000033"][model.SocialTwitterID].String())
}

func TestParseDocument(t *testing.T) {
	raw := json.RawMessage(`{
		"document_number": "2024-01234",
		"title": "Air Plan Approval; Ohio",
		"abstract": "The EPA is approving...",
		"type": "Rule",
		"publication_date": "2024-03-15",
		"effective_on": "2024-04-15",
		"signing_date": null,
		"regulation_id_number": null,
		"docket_ids": ["EPA-R05-OAR-2023-0001", " "],
		"agencies": [
			{"id": 145, "name": "Environmental Protection Agency", "short_name": "EPA"},
			{"raw_name": "OFFICE OF AIR"}
		],
		"cfr_references": [{"title": 40, "part": 52}],
		"html_url": "https://www.federalregister.gov/documents/2024/03/15/2024-01234/x"
	}`)

	rec, err := ParseDocument(0, raw)
	require.NoError(t, err)
	assert.Equal(t, "2024-01234", rec.DocumentNumber)
	assert.Equal(t, model.DocumentRule, rec.Type)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), rec.PublicationDate)
	assert.True(t, rec.EffectiveOn.Valid)
	assert.False(t, rec.SigningDate.Valid)
	assert.Equal(t, []string{"EPA-R05-OAR-2023-0001"}, rec.DocketIDs)
	require.Len(t, rec.Agencies, 2)
	assert.Equal(t, int64(145), rec.Agencies[0].ID)
	assert.Equal(t, "OFFICE OF AIR", rec.Agencies[1].Name)
	assert.Equal(t, model.CFRReferences{{Title: 40, Part: "52"}}, rec.CFRReferences)

	_, err = ParseDocument(3, json.RawMessage(`{"title": "no number", "publication_date": "2024-01-01"}`))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "DocumentNumber", pe.Field)
	assert.Equal(t, 3, pe.Line)

	_, err = ParseDocument(4, json.RawMessage(`{"document_number": "x", "title": "t", "publication_date": "03/15/2024"}`))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "publication_date", pe.Field)
}

func TestParseAgency(t *testing.T) {
	rec, err := ParseAgency(0, json.RawMessage(`{"id": 12, "name": "Agricultural Marketing Service", "short_name": "AMS", "slug": "agricultural-marketing-service", "parent_id": 3}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.ID)
	assert.Equal(t, "AMS", rec.ShortName)
	assert.True(t, rec.ParentID.Valid)
	assert.Equal(t, int64(3), rec.ParentID.Int64)

	_, err = ParseAgency(1, json.RawMessage(`{"id": 0, "name": "x"}`))
	assert.Error(t, err)
}
