package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"

	"github.com/jjenkins/factbase/internal/model"
)

// AgenciesJob syncs organizations from the Federal Register agency list.
// Parents are linked in a second pass, once every agency exists.
type AgenciesJob struct {
	client *FederalRegisterClient
	engine *MergeEngine
	// File, when set, is read instead of calling the API.
	File string
}

func NewAgenciesJob(client *FederalRegisterClient, engine *MergeEngine) *AgenciesJob {
	return &AgenciesJob{client: client, engine: engine}
}

func (j *AgenciesJob) Source() model.SyncSource { return model.SyncAgencies }

func (j *AgenciesJob) LinksAgencies() bool { return false }

// Fetch downloads the whole list and compares its MD5 with marker.
func (j *AgenciesJob) Fetch(ctx context.Context, marker string, force bool) (*Batch, error) {
	var body []byte
	var err error
	if j.File != "" {
		body, err = os.ReadFile(j.File)
	} else {
		body, err = j.client.Agencies(ctx)
	}
	if err != nil {
		return nil, err
	}

	sum := calculateChecksum(body)
	if j.File != "" {
		// Local imports leave the upstream marker alone.
		sum = ""
	} else if !force && sum == marker {
		return &Batch{NoChange: true}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode agency list: %w", err)
	}

	type parentLink struct{ child, parent int64 }
	var parents []parentLink

	items := func(yield func(Item, error) bool) {
		for i, raw := range raws {
			rec, err := ParseAgency(i, raw)
			if err != nil {
				if !yield(Item{Err: err}, nil) {
					return
				}
				continue
			}
			if rec.ParentID.Valid {
				parents = append(parents, parentLink{child: rec.ID, parent: rec.ParentID.Int64})
			}
			item := Item{
				Key: fmt.Sprintf("agency %d %s", rec.ID, rec.Name),
				Apply: func(ctx context.Context) (Outcome, error) {
					_, result, err := j.engine.UpsertAgency(ctx, rec)
					return Outcome{Result: result}, err
				},
			}
			if !yield(item, nil) {
				return
			}
		}
	}

	followup := func() iter.Seq[Item] {
		return func(yield func(Item) bool) {
			for _, p := range parents {
				item := Item{
					Key: fmt.Sprintf("agency %d parent %d", p.child, p.parent),
					Apply: func(ctx context.Context) (Outcome, error) {
						result, err := j.engine.LinkAgencyParent(ctx, p.child, p.parent)
						out := Outcome{Result: result}
						if result == ResultUpdated {
							out.Linked = 1
						}
						return out, err
					},
				}
				if !yield(item) {
					return
				}
			}
		}
	}

	return &Batch{
		Items:    items,
		Followup: followup,
		Marker:   constant(sum),
	}, nil
}
