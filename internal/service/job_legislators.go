package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"

	"github.com/jjenkins/factbase/internal/model"
	"github.com/sirupsen/logrus"
)

const (
	senatorTitle        = "U.S. Senator"
	representativeTitle = "U.S. Representative"
)

// LegislatorsJob syncs members of Congress, their terms and social media
// accounts from the congress-legislators repository.
type LegislatorsJob struct {
	client     *LegislatorsClient
	engine     *MergeEngine
	files      []string
	socialFile string
	log        *logrus.Entry
	// File, when set, is read instead of the repository and social media
	// is not joined.
	File string
}

func NewLegislatorsJob(client *LegislatorsClient, engine *MergeEngine, files []string, socialFile string, logger *logrus.Logger) *LegislatorsJob {
	return &LegislatorsJob{
		client:     client,
		engine:     engine,
		files:      files,
		socialFile: socialFile,
		log:        logger.WithField("source", model.SyncLegislators),
	}
}

func (j *LegislatorsJob) Source() model.SyncSource { return model.SyncLegislators }

func (j *LegislatorsJob) LinksAgencies() bool { return false }

// Fetch compares the head commit of the repository with marker and only
// downloads when it moved. Files are read at that commit.
func (j *LegislatorsJob) Fetch(ctx context.Context, marker string, force bool) (*Batch, error) {
	if j.File != "" {
		return &Batch{Items: j.items(ctx, "", nil), Marker: constant("")}, nil
	}

	sha, err := j.client.LatestCommit(ctx)
	if err != nil {
		return nil, err
	}
	if !force && sha == marker {
		return &Batch{NoChange: true}, nil
	}

	var social map[string]model.Bag
	if j.socialFile != "" {
		social, err = j.readSocial(ctx, sha)
		if err != nil {
			return nil, err
		}
	}

	return &Batch{Items: j.items(ctx, sha, social), Marker: constant(sha)}, nil
}

func (j *LegislatorsJob) readSocial(ctx context.Context, sha string) (map[string]model.Bag, error) {
	rc, err := j.client.Open(ctx, sha, j.socialFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	social, err := ReadLegislatorSocial(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", j.socialFile, err)
	}
	j.log.WithField("accounts", len(social)).Debug("Loaded social media")
	return social, nil
}

// items reads each configured file in turn. sha is empty for a local file.
func (j *LegislatorsJob) items(ctx context.Context, sha string, social map[string]model.Bag) iter.Seq2[Item, error] {
	files := j.files
	if j.File != "" {
		files = []string{j.File}
	}
	return func(yield func(Item, error) bool) {
		for _, file := range files {
			var rc io.ReadCloser
			var err error
			if j.File != "" {
				rc, err = openLocal(file)
			} else {
				rc, err = j.client.Open(ctx, sha, file)
			}
			if err != nil {
				yield(Item{}, err)
				return
			}

			records := toItems(ReadLegislators(rc), func(rec model.LegislatorRecord) Item {
				rec.SocialMedia.Merge(social[rec.BioguideID])
				return Item{
					Key: "bioguide " + rec.BioguideID,
					Apply: func(ctx context.Context) (Outcome, error) {
						return j.apply(ctx, rec, sha)
					},
				}
			})
			for it, err := range closeAfter(records, rc) {
				if !yield(it, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}

func (j *LegislatorsJob) apply(ctx context.Context, rec model.LegislatorRecord, version string) (Outcome, error) {
	p := &model.Person{
		BioguideID:  nullString(rec.BioguideID),
		FirstName:   rec.FirstName,
		MiddleName:  nullString(rec.MiddleName),
		LastName:    rec.LastName,
		Suffix:      nullString(rec.Suffix),
		Nickname:    nullString(rec.Nickname),
		BirthDate:   rec.BirthDate,
		Gender:      nullString(rec.Gender),
		ExternalIDs: rec.ExternalIDs,
		SocialMedia: rec.SocialMedia,
	}
	if n := len(rec.Terms); n > 0 {
		latest := rec.Terms[n-1]
		p.Party = nullString(latest.Party)
		p.State = nullString(latest.State)
	}

	person, result, err := j.engine.UpsertPerson(ctx, p, Provenance{Source: model.SourceLegislatorsRepo, Version: version})
	if err != nil {
		return Outcome{}, err
	}
	results := []MergeResult{result}

	for _, term := range rec.Terms {
		title := representativeTitle
		if term.Chamber == model.ChamberSenate {
			title = senatorTitle
		}
		position, r, err := j.engine.UpsertPosition(ctx, &model.Position{
			Title:      title,
			Branch:     model.BranchLegislative,
			Chamber:    term.Chamber,
			State:      term.State,
			Seat:       term.Seat(),
			DataSource: model.SourceLegislatorsRepo,
		})
		if err != nil {
			return Outcome{}, err
		}
		results = append(results, r)

		_, r, err = j.engine.UpsertTermHolding(ctx, &model.PositionHolding{
			PersonID:        person.ID,
			PositionID:      position.ID,
			StartDate:       term.Start,
			EndDate:         term.End,
			Congress:        sql.NullInt64{Int64: congressFor(term.Start), Valid: true},
			DataSource:      model.SourceLegislatorsRepo,
			SourceReference: nullString(term.URL),
		})
		if err != nil {
			return Outcome{}, err
		}
		results = append(results, r)
	}

	return Outcome{Result: Combine(results...)}, nil
}
