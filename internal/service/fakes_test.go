package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
)

// memStore is an in-memory implementation of every store interface.
type memStore struct {
	mu          sync.Mutex
	orgs        map[uuid.UUID]model.Organization
	people      map[uuid.UUID]model.Person
	positions   map[uuid.UUID]model.Position
	holdings    map[uuid.UUID]model.PositionHolding
	regulations map[uuid.UUID]model.Regulation
	links       map[uuid.UUID][]model.RegulationAgencyLink
	markers     map[model.SyncSource]string

	writes     int
	failCreate map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		orgs:        map[uuid.UUID]model.Organization{},
		people:      map[uuid.UUID]model.Person{},
		positions:   map[uuid.UUID]model.Position{},
		holdings:    map[uuid.UUID]model.PositionHolding{},
		regulations: map[uuid.UUID]model.Regulation{},
		links:       map[uuid.UUID][]model.RegulationAgencyLink{},
		markers:     map[model.SyncSource]string{},
		failCreate:  map[string]error{},
	}
}

func (m *memStore) stores() MergeStores {
	return MergeStores{
		Organizations: memOrgs{m},
		People:        memPeople{m},
		Positions:     memPositions{m},
		Holdings:      memHoldings{m},
		Regulations:   memRegulations{m},
	}
}

func (m *memStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func clonePerson(p model.Person) *model.Person {
	c := p
	c.ExternalIDs = model.Bag{}
	c.ExternalIDs.Merge(p.ExternalIDs)
	c.SocialMedia = model.Bag{}
	c.SocialMedia.Merge(p.SocialMedia)
	return &c
}

type memOrgs struct{ m *memStore }

func (s memOrgs) GetAll(ctx context.Context) ([]model.Organization, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]model.Organization, 0, len(s.m.orgs))
	for _, o := range s.m.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (s memOrgs) find(match func(model.Organization) bool) *model.Organization {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, o := range s.m.orgs {
		if match(o) {
			c := o
			return &c
		}
	}
	return nil
}

func (s memOrgs) GetByFederalRegisterID(ctx context.Context, id int64) (*model.Organization, error) {
	return s.find(func(o model.Organization) bool { return o.FederalRegisterID.Valid && o.FederalRegisterID.Int64 == id }), nil
}

func (s memOrgs) GetByAcronym(ctx context.Context, acronym string) (*model.Organization, error) {
	return s.find(func(o model.Organization) bool { return o.Acronym.Valid && strings.EqualFold(o.Acronym.String, acronym) }), nil
}

func (s memOrgs) GetByName(ctx context.Context, name string) (*model.Organization, error) {
	return s.find(func(o model.Organization) bool { return strings.EqualFold(o.OfficialName, name) }), nil
}

func (s memOrgs) Create(ctx context.Context, o *model.Organization) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.failCreate["org:"+o.OfficialName]; err != nil {
		return err
	}
	s.m.orgs[o.ID] = *o
	s.m.writes++
	return nil
}

func (s memOrgs) Update(ctx context.Context, o *model.Organization) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.orgs[o.ID] = *o
	s.m.writes++
	return nil
}

type memPeople struct{ m *memStore }

func (s memPeople) GetByBioguideID(ctx context.Context, id string) (*model.Person, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.people {
		if p.BioguideID.Valid && p.BioguideID.String == id {
			return clonePerson(p), nil
		}
	}
	return nil, nil
}

func (s memPeople) GetByNameKey(ctx context.Context, key string, source model.DataSource) (*model.Person, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.people {
		if p.NameKey() == key && p.DataSource == source {
			return clonePerson(p), nil
		}
	}
	return nil, nil
}

func (s memPeople) Create(ctx context.Context, p *model.Person) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.failCreate["person:"+p.LastName]; err != nil {
		return err
	}
	s.m.people[p.ID] = *clonePerson(*p)
	s.m.writes++
	return nil
}

func (s memPeople) Update(ctx context.Context, p *model.Person) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.people[p.ID] = *clonePerson(*p)
	s.m.writes++
	return nil
}

type memPositions struct{ m *memStore }

func (s memPositions) get(match func(model.Position) bool) *model.Position {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.positions {
		if match(p) {
			c := p
			return &c
		}
	}
	return nil
}

func (s memPositions) GetExecutive(ctx context.Context, title string, org uuid.NullUUID) (*model.Position, error) {
	return s.get(func(p model.Position) bool {
		return p.Branch != model.BranchLegislative && p.Title == title && p.OrganizationID == org
	}), nil
}

func (s memPositions) GetLegislative(ctx context.Context, chamber model.Chamber, state, seat string) (*model.Position, error) {
	return s.get(func(p model.Position) bool {
		return p.Branch == model.BranchLegislative && p.Chamber == chamber && p.State == state && p.Seat == seat
	}), nil
}

func (s memPositions) Create(ctx context.Context, p *model.Position) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.positions[p.ID] = *p
	s.m.writes++
	return nil
}

func (s memPositions) Update(ctx context.Context, p *model.Position) error {
	return s.Create(ctx, p)
}

type memHoldings struct{ m *memStore }

func (s memHoldings) GetLatest(ctx context.Context, personID, positionID uuid.UUID, source model.DataSource) (*model.PositionHolding, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var latest *model.PositionHolding
	for _, h := range s.m.holdings {
		if h.PersonID == personID && h.PositionID == positionID && h.DataSource == source {
			if latest == nil || h.StartDate.After(latest.StartDate) {
				c := h
				latest = &c
			}
		}
	}
	return latest, nil
}

func (s memHoldings) GetByStart(ctx context.Context, personID, positionID uuid.UUID, start time.Time) (*model.PositionHolding, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, h := range s.m.holdings {
		if h.PersonID == personID && h.PositionID == positionID && h.StartDate.Equal(start) {
			c := h
			return &c, nil
		}
	}
	return nil, nil
}

func (s memHoldings) CloseCurrent(ctx context.Context, positionID uuid.UUID, source model.DataSource, except uuid.UUID, end time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, h := range s.m.holdings {
		if h.PositionID == positionID && h.DataSource == source && h.PersonID != except && h.Current() {
			h.EndDate = sql.NullTime{Time: end, Valid: true}
			s.m.holdings[id] = h
			n++
		}
	}
	return n, nil
}

func (s memHoldings) Create(ctx context.Context, h *model.PositionHolding) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.holdings[h.ID] = *h
	s.m.writes++
	return nil
}

func (s memHoldings) Update(ctx context.Context, h *model.PositionHolding) error {
	return s.Create(ctx, h)
}

func (m *memStore) currentHoldings(positionID uuid.UUID) []model.PositionHolding {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PositionHolding
	for _, h := range m.holdings {
		if h.PositionID == positionID && h.Current() {
			out = append(out, h)
		}
	}
	return out
}

type memRegulations struct{ m *memStore }

func (s memRegulations) GetByDocumentNumber(ctx context.Context, n string) (*model.Regulation, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, r := range s.m.regulations {
		if r.DocumentNumber == n {
			c := r
			return &c, nil
		}
	}
	return nil, nil
}

func (s memRegulations) Create(ctx context.Context, r *model.Regulation) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.failCreate["regulation:"+r.DocumentNumber]; err != nil {
		return err
	}
	s.m.regulations[r.ID] = *r
	s.m.writes++
	return nil
}

func (s memRegulations) Update(ctx context.Context, r *model.Regulation) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.regulations[r.ID] = *r
	s.m.writes++
	return nil
}

func (s memRegulations) ReplaceAgencyLinks(ctx context.Context, id uuid.UUID, links []model.RegulationAgencyLink) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.links[id] = append([]model.RegulationAgencyLink(nil), links...)
	return nil
}

func (s memRegulations) LatestPublicationDate(ctx context.Context) (sql.NullTime, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var latest sql.NullTime
	for _, r := range s.m.regulations {
		if !latest.Valid || r.PublicationDate.After(latest.Time) {
			latest = sql.NullTime{Time: r.PublicationDate, Valid: true}
		}
	}
	return latest, nil
}

func (m *memStore) GetMarker(ctx context.Context, source model.SyncSource) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[source], nil
}

func (m *memStore) SetMarker(ctx context.Context, source model.SyncSource, marker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[source] = marker
	return nil
}
