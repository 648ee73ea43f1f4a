package service

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// PlumJob syncs executive positions and their incumbents from the OPM PLUM
// CSV.
type PlumJob struct {
	client   *PlumClient
	engine   *MergeEngine
	resolver *AgencyResolver
	// File, when set, is read instead of downloading.
	File string
}

func NewPlumJob(client *PlumClient, engine *MergeEngine, resolver *AgencyResolver) *PlumJob {
	return &PlumJob{client: client, engine: engine, resolver: resolver}
}

func (j *PlumJob) Source() model.SyncSource { return model.SyncPlum }

func (j *PlumJob) LinksAgencies() bool { return true }

// Fetch opens the CSV. The marker is the MD5 of the body, computed while
// the rows stream through the parser.
func (j *PlumJob) Fetch(ctx context.Context, marker string, force bool) (*Batch, error) {
	var body io.ReadCloser
	var err error
	ref := j.File
	if j.File != "" {
		body, err = openLocal(j.File)
	} else {
		ref = j.client.URL()
		body, err = j.client.Open(ctx)
	}
	if err != nil {
		return nil, err
	}

	sum := newChecksum()
	records := ReadPlumCSV(io.TeeReader(body, sum))
	items := toItems(records, func(rec model.PlumRecord) Item {
		return Item{
			Key: fmt.Sprintf("line %d %s / %s", rec.Line, rec.AgencyName, rec.PositionTitle),
			Apply: func(ctx context.Context) (Outcome, error) {
				return j.apply(ctx, rec, ref)
			},
		}
	})

	return &Batch{
		Items: closeAfter(items, body),
		Marker: func() string {
			if j.File != "" {
				return ""
			}
			return sum.Sum()
		},
	}, nil
}

func (j *PlumJob) apply(ctx context.Context, rec model.PlumRecord, ref string) (Outcome, error) {
	var out Outcome
	// An unresolved agency leaves the position without an organization.
	var orgID uuid.NullUUID
	if match, ok := j.resolver.Resolve(AgencyQuery{Name: rec.AgencyName}); ok {
		orgID = uuid.NullUUID{UUID: match.OrganizationID, Valid: true}
		out.Linked = 1
	} else {
		out.Unmatched = []string{rec.AgencyName}
	}

	position, posResult, err := j.engine.UpsertPosition(ctx, &model.Position{
		Title:           rec.PositionTitle,
		Branch:          model.BranchExecutive,
		AppointmentType: rec.AppointmentType,
		PayPlan:         nullString(rec.PayPlan),
		PayGrade:        nullString(rec.PayGrade),
		Location:        nullString(rec.Location),
		ExpirationDate:  rec.ExpirationDate,
		OrganizationID:  orgID,
		DataSource:      model.SourcePlumCSV,
	})
	if err != nil {
		return out, err
	}

	if rec.Vacant || !rec.HasIncumbent() {
		out.Result = posResult
		if posResult == ResultUnchanged {
			out.Result = ResultSkipped
		}
		return out, nil
	}

	person, personResult, err := j.engine.UpsertPerson(ctx, &model.Person{
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
	}, Provenance{Source: model.SourcePlumCSV})
	if err != nil {
		return out, err
	}

	_, holdingResult, err := j.engine.UpsertCurrentHolding(ctx, &model.PositionHolding{
		PersonID:        person.ID,
		PositionID:      position.ID,
		StartDate:       rec.BeginDate.Time,
		EndDate:         rec.VacateDate,
		Tenure:          rec.Tenure,
		DataSource:      model.SourcePlumCSV,
		SourceReference: nullString(ref),
	})
	if err != nil {
		return out, err
	}

	out.Result = Combine(posResult, personResult, holdingResult)
	return out, nil
}

// closeAfter closes c once items has been consumed or abandoned.
func closeAfter(items iter.Seq2[Item, error], c io.Closer) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		defer c.Close()
		for it, err := range items {
			if !yield(it, err) {
				return
			}
		}
	}
}
