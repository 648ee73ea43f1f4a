package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/factbase/internal/store"
)

const topOrganizationsLimit = 10

// LinkageCounter reports how regulations are linked to organizations.
type LinkageCounter interface {
	Linkage(ctx context.Context) (store.LinkageCounts, error)
	TopOrganizations(ctx context.Context, limit int) ([]store.OrganizationRegulations, error)
}

// LinkageService calculates agency linkage statistics
type LinkageService struct {
	counts   LinkageCounter
	resolver *AgencyResolver
}

func NewLinkageService(counts LinkageCounter, resolver *AgencyResolver) *LinkageService {
	return &LinkageService{counts: counts, resolver: resolver}
}

// LinkageStatistics summarizes regulation to organization linkage.
type LinkageStatistics struct {
	TotalRegulations    int                             `json:"total_regulations"`
	LinkedRegulations   int                             `json:"linked_regulations"`
	UnlinkedRegulations int                             `json:"unlinked_regulations"`
	LinkRate            float64                         `json:"link_rate"`
	TotalLinks          int                             `json:"total_links"`
	Organizations       int                             `json:"organizations"`
	TopOrganizations    []store.OrganizationRegulations `json:"top_organizations"`
	UnmatchedNames      []UnmatchedAgency               `json:"unmatched_names"`
	CacheSizes          CacheSizes                      `json:"cache_sizes"`
	CalculatedAt        time.Time                       `json:"calculated_at"`
}

// Calculate reads the current counts and the resolver's unmatched set
func (s *LinkageService) Calculate(ctx context.Context) (*LinkageStatistics, error) {
	c, err := s.counts.Linkage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate linkage: %w", err)
	}
	top, err := s.counts.TopOrganizations(ctx, topOrganizationsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate top organizations: %w", err)
	}

	stats := &LinkageStatistics{
		TotalRegulations:    c.Regulations,
		LinkedRegulations:   c.LinkedRegulations,
		UnlinkedRegulations: c.Regulations - c.LinkedRegulations,
		TotalLinks:          c.Links,
		Organizations:       c.Organizations,
		TopOrganizations:    top,
		UnmatchedNames:      s.resolver.Unmatched(),
		CacheSizes:          s.resolver.Sizes(),
		CalculatedAt:        time.Now(),
	}
	if c.Regulations > 0 {
		stats.LinkRate = float64(c.LinkedRegulations) / float64(c.Regulations)
	}
	return stats, nil
}
