package service

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

const (
	maxTitleLength  = 1000
	documentURLBase = "https://www.federalregister.gov/d/"
	defaultBackfill = 365
)

// RegulationsJob syncs Federal Register documents published since the
// last sync and links them to organizations.
type RegulationsJob struct {
	client       *FederalRegisterClient
	engine       *MergeEngine
	resolver     *AgencyResolver
	types        []string
	backfillDays int
	now          func() time.Time
}

func NewRegulationsJob(client *FederalRegisterClient, engine *MergeEngine, resolver *AgencyResolver, types []string, backfillDays int) *RegulationsJob {
	if backfillDays <= 0 {
		backfillDays = defaultBackfill
	}
	return &RegulationsJob{
		client:       client,
		engine:       engine,
		resolver:     resolver,
		types:        types,
		backfillDays: backfillDays,
		now:          time.Now,
	}
}

func (j *RegulationsJob) Source() model.SyncSource { return model.SyncRegulations }

func (j *RegulationsJob) LinksAgencies() bool { return true }

// Fetch requests documents published on or after the marker date, or
// within the backfill window when there is none. The next marker is the
// latest publication date seen.
func (j *RegulationsJob) Fetch(ctx context.Context, marker string, force bool) (*Batch, error) {
	since := dateOnly(j.now()).AddDate(0, 0, -j.backfillDays)
	if t, err := time.Parse(frDateLayout, marker); err == nil {
		since = t
	}

	latest := marker
	docs := j.client.Documents(ctx, DocumentQuery{Since: since, Types: j.types})

	parsed := func(yield func(model.DocumentRecord, error) bool) {
		i := 0
		for raw, err := range docs {
			if err != nil {
				yield(model.DocumentRecord{}, err)
				return
			}
			rec, err := ParseDocument(i, raw)
			i++
			if err == nil {
				if d := rec.PublicationDate.Format(frDateLayout); d > latest {
					latest = d
				}
			}
			if !yield(rec, err) {
				return
			}
		}
	}

	items := toItems(iter.Seq2[model.DocumentRecord, error](parsed), func(rec model.DocumentRecord) Item {
		return Item{
			Key: "document " + rec.DocumentNumber,
			Apply: func(ctx context.Context) (Outcome, error) {
				return j.apply(ctx, rec)
			},
		}
	})
	return &Batch{Items: items, Marker: func() string { return latest }}, nil
}

func (j *RegulationsJob) apply(ctx context.Context, rec model.DocumentRecord) (Outcome, error) {
	reg, result, err := j.engine.UpsertRegulation(ctx, &model.Regulation{
		DocumentNumber:     rec.DocumentNumber,
		Title:              truncateTitle(rec.Title),
		Abstract:           nullString(rec.Abstract),
		DocumentType:       rec.Type,
		PublicationDate:    rec.PublicationDate,
		EffectiveOn:        rec.EffectiveOn,
		SigningDate:        rec.SigningDate,
		RegulationIDNumber: nullString(rec.RegulationIDNumber),
		CFRReferences:      rec.CFRReferences,
		DocketIDs:          rec.DocketIDs,
		SourceURL:          nullString(documentURLBase + rec.DocumentNumber),
		HTMLURL:            nullString(rec.HTMLURL),
		PDFURL:             nullString(rec.PDFURL),
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Result: result}
	seen := make(map[uuid.UUID]bool, len(rec.Agencies))
	var links []model.RegulationAgencyLink
	for _, a := range rec.Agencies {
		q := AgencyQuery{ExternalID: a.ID, Name: a.Name, ShortName: a.ShortName}
		m, ok := j.resolver.Resolve(q)
		if !ok {
			out.Unmatched = append(out.Unmatched, q.Label())
			continue
		}
		if seen[m.OrganizationID] {
			continue
		}
		seen[m.OrganizationID] = true
		links = append(links, model.RegulationAgencyLink{OrganizationID: m.OrganizationID, RawName: a.Name})
	}
	if err := j.engine.ReplaceRegulationAgencies(ctx, reg, links); err != nil {
		return out, err
	}
	out.Linked = len(links)
	return out, nil
}

// truncateTitle keeps titles within the column limit, marking the cut.
func truncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxTitleLength {
		return title
	}
	return string(r[:maxTitleLength-3]) + "..."
}
