package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/jjenkins/factbase/internal/normalize"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"
)

// DefaultFuzzyThreshold is the minimum similarity a fuzzy match must reach.
const DefaultFuzzyThreshold = 0.85

const similarityEpsilon = 1e-9

// MatchTier identifies which resolution strategy produced a match.
type MatchTier string

const (
	TierExternalID    MatchTier = "external_id"
	TierExactName     MatchTier = "exact_name"
	TierAcronym       MatchTier = "acronym"
	TierManualMapping MatchTier = "manual_mapping"
	TierFuzzy         MatchTier = "fuzzy"
)

// AgencyQuery is an agency reference as it appears in a source record.
type AgencyQuery struct {
	ExternalID int64
	Name       string
	ShortName  string
}

// Label is the text used to report the query when it does not resolve.
func (q AgencyQuery) Label() string {
	if q.Name != "" {
		return q.Name
	}
	if q.ShortName != "" {
		return q.ShortName
	}
	if q.ExternalID != 0 {
		return fmt.Sprintf("federal register agency %d", q.ExternalID)
	}
	return ""
}

// Match is a resolved organization.
type Match struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Tier           MatchTier `json:"tier"`
	Similarity     float64   `json:"similarity"`
	MatchedName    string    `json:"matched_name"`
}

// UnmatchedAgency is a name no tier could resolve.
type UnmatchedAgency struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// CacheSizes reports the size of each resolver index.
type CacheSizes struct {
	ExternalIDs int       `json:"external_ids"`
	Names       int       `json:"names"`
	Acronyms    int       `json:"acronyms"`
	Mappings    int       `json:"mappings"`
	BuiltAt     time.Time `json:"built_at"`
}

// OrganizationLister supplies the organizations the resolver indexes.
type OrganizationLister interface {
	GetAll(ctx context.Context) ([]model.Organization, error)
}

type ResolverOptions struct {
	FuzzyEnabled   bool
	FuzzyThreshold float64
	// Mappings maps a name variant to the acronym of its organization.
	Mappings map[string]string
}

type candidate struct {
	name string
	id   uuid.UUID
}

// resolverSnapshot is immutable once published.
type resolverSnapshot struct {
	byID       map[int64]uuid.UUID
	byName     map[string]uuid.UUID
	byAcronym  map[string]uuid.UUID
	candidates []candidate
	builtAt    time.Time
}

// AgencyResolver maps free-text agency references to organizations. Reads
// use the current snapshot without locking; Refresh swaps in a new one.
type AgencyResolver struct {
	orgs      OrganizationLister
	threshold float64
	fuzzy     bool
	mappings  map[string]string
	log       *logrus.Entry

	snap      atomic.Pointer[resolverSnapshot]
	refreshMu sync.Mutex

	mu        sync.Mutex
	unmatched map[string]*UnmatchedAgency
}

// NewAgencyResolver creates a resolver with an empty snapshot. Call Refresh
// before resolving.
func NewAgencyResolver(orgs OrganizationLister, opts ResolverOptions, logger *logrus.Logger) *AgencyResolver {
	threshold := opts.FuzzyThreshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	mappings := make(map[string]string, len(opts.Mappings))
	for name, acronym := range opts.Mappings {
		if key := normalize.Name(name); key != "" {
			mappings[key] = normalize.Acronym(acronym)
		}
	}

	r := &AgencyResolver{
		orgs:      orgs,
		threshold: threshold,
		fuzzy:     opts.FuzzyEnabled,
		mappings:  mappings,
		log:       logger.WithField("component", "agency_resolver"),
		unmatched: make(map[string]*UnmatchedAgency),
	}
	r.snap.Store(buildSnapshot(nil))
	return r
}

// Refresh rebuilds the caches from the organization store.
func (r *AgencyResolver) Refresh(ctx context.Context) (CacheSizes, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	orgs, err := r.orgs.GetAll(ctx)
	if err != nil {
		return CacheSizes{}, fmt.Errorf("failed to load organizations: %w", err)
	}
	r.snap.Store(buildSnapshot(orgs))

	sizes := r.Sizes()
	r.log.WithFields(logrus.Fields{
		"organizations": len(orgs),
		"names":         sizes.Names,
		"acronyms":      sizes.Acronyms,
		"external_ids":  sizes.ExternalIDs,
	}).Info("Agency caches refreshed")
	return sizes, nil
}

func buildSnapshot(orgs []model.Organization) *resolverSnapshot {
	s := &resolverSnapshot{
		byID:      make(map[int64]uuid.UUID),
		byName:    make(map[string]uuid.UUID, len(orgs)),
		byAcronym: make(map[string]uuid.UUID),
		builtAt:   time.Now(),
	}

	addName := func(name string, id uuid.UUID) {
		key := normalize.Name(name)
		if key == "" {
			return
		}
		if _, ok := s.byName[key]; ok {
			return
		}
		s.byName[key] = id
		s.candidates = append(s.candidates, candidate{name: key, id: id})
	}

	for _, o := range orgs {
		if o.FederalRegisterID.Valid {
			s.byID[o.FederalRegisterID.Int64] = o.ID
		}
		addName(o.OfficialName, o.ID)
		if o.Acronym.Valid {
			if key := normalize.Acronym(o.Acronym.String); key != "" {
				if _, ok := s.byAcronym[key]; !ok {
					s.byAcronym[key] = o.ID
				}
			}
		}
	}
	// Former names resolve too, but never shadow a current official name.
	for _, o := range orgs {
		for _, former := range o.FormerNames {
			addName(former, o.ID)
		}
	}
	return s
}

// Sizes reports the current snapshot's index sizes.
func (r *AgencyResolver) Sizes() CacheSizes {
	s := r.snap.Load()
	return CacheSizes{
		ExternalIDs: len(s.byID),
		Names:       len(s.byName),
		Acronyms:    len(s.byAcronym),
		Mappings:    len(r.mappings),
		BuiltAt:     s.builtAt,
	}
}

// Resolve runs the tiers in priority order and returns the first hit. A
// miss is recorded in the unmatched set.
func (r *AgencyResolver) Resolve(q AgencyQuery) (Match, bool) {
	s := r.snap.Load()

	if q.ExternalID != 0 {
		if id, ok := s.byID[q.ExternalID]; ok {
			return Match{OrganizationID: id, Tier: TierExternalID, Similarity: 1, MatchedName: q.Label()}, true
		}
	}

	name := normalize.Name(q.Name)
	if name != "" {
		if id, ok := s.byName[name]; ok {
			return Match{OrganizationID: id, Tier: TierExactName, Similarity: 1, MatchedName: name}, true
		}
	}

	for _, acronym := range acronymCandidates(q) {
		if id, ok := s.byAcronym[acronym]; ok {
			return Match{OrganizationID: id, Tier: TierAcronym, Similarity: 1, MatchedName: acronym}, true
		}
	}

	if name != "" {
		if acronym, ok := r.mappings[name]; ok {
			if id, ok := s.byAcronym[acronym]; ok {
				return Match{OrganizationID: id, Tier: TierManualMapping, Similarity: 1, MatchedName: acronym}, true
			}
		}
	}

	if r.fuzzy && name != "" {
		if m, ok := r.fuzzyMatch(s, name); ok {
			r.log.WithFields(logrus.Fields{
				"input":      q.Name,
				"matched":    m.MatchedName,
				"similarity": fmt.Sprintf("%.3f", m.Similarity),
				"threshold":  r.threshold,
			}).Warn("Agency resolved by fuzzy match")
			recordFuzzyMatch()
			return m, true
		}
	}

	if label := q.Label(); label != "" {
		r.recordUnmatched(label)
		r.log.WithField("agency", label).Debug("Agency not matched")
	}
	return Match{}, false
}

func acronymCandidates(q AgencyQuery) []string {
	var out []string
	if a := normalize.Acronym(q.ShortName); a != "" {
		out = append(out, a)
	}
	if a := normalize.Acronym(q.Name); a != "" && !slices.Contains(out, a) {
		out = append(out, a)
	}
	return out
}

func (r *AgencyResolver) fuzzyMatch(s *resolverSnapshot, name string) (Match, bool) {
	var best candidate
	bestScore := -1.0
	for _, c := range s.candidates {
		score := Similarity(name, c.name)
		if score+similarityEpsilon < r.threshold {
			continue
		}
		if better(score, c.name, bestScore, best.name) {
			best, bestScore = c, score
		}
	}
	if bestScore < 0 {
		return Match{}, false
	}
	return Match{OrganizationID: best.id, Tier: TierFuzzy, Similarity: bestScore, MatchedName: best.name}, true
}

// better orders candidates by similarity, then shorter name, then name.
func better(score float64, name string, bestScore float64, bestName string) bool {
	if bestScore < 0 {
		return true
	}
	if d := score - bestScore; d > similarityEpsilon {
		return true
	} else if d < -similarityEpsilon {
		return false
	}
	lc, lb := utf8.RuneCountInString(name), utf8.RuneCountInString(bestName)
	if lc != lb {
		return lc < lb
	}
	return cmp.Less(name, bestName)
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in
// runes. Identical strings score 1, including two empty strings.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

func (r *AgencyResolver) recordUnmatched(name string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.unmatched[name]; ok {
		u.Count++
		u.LastSeen = now
		return
	}
	r.unmatched[name] = &UnmatchedAgency{Name: name, Count: 1, FirstSeen: now, LastSeen: now}
}

// Unmatched returns every name recorded since the last clear, sorted.
func (r *AgencyResolver) Unmatched() []UnmatchedAgency {
	r.mu.Lock()
	out := make([]UnmatchedAgency, 0, len(r.unmatched))
	for _, u := range r.unmatched {
		out = append(out, *u)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b UnmatchedAgency) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// ClearUnmatched empties the unmatched set and returns how many names it held.
func (r *AgencyResolver) ClearUnmatched() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.unmatched)
	r.unmatched = make(map[string]*UnmatchedAgency)
	return n
}
