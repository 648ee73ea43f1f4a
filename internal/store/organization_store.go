package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/lib/pq"
)

const organizationColumns = `id, official_name, acronym, federal_register_id, federal_register_slug,
		       website_url, description, parent_id, branch, former_names, data_source,
		       created_at, updated_at`

// OrganizationStore handles database operations for organizations
type OrganizationStore struct {
	db *sql.DB
}

// NewOrganizationStore creates a new OrganizationStore
func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

func scanOrganization(row rowScanner) (*model.Organization, error) {
	var o model.Organization
	err := row.Scan(
		&o.ID,
		&o.OfficialName,
		&o.Acronym,
		&o.FederalRegisterID,
		&o.FederalRegisterSlug,
		&o.WebsiteURL,
		&o.Description,
		&o.ParentID,
		&o.Branch,
		pq.Array(&o.FormerNames),
		&o.DataSource,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrganizationStore) getOne(ctx context.Context, what, where string, arg any) (*model.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE ` + where
	o, err := scanOrganization(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by %s %v: %w", what, arg, err)
	}
	return o, nil
}

// GetByID retrieves an organization by its ID
func (s *OrganizationStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	return s.getOne(ctx, "id", "id = $1", id)
}

// GetByFederalRegisterID retrieves an organization by its Federal Register agency ID
func (s *OrganizationStore) GetByFederalRegisterID(ctx context.Context, id int64) (*model.Organization, error) {
	return s.getOne(ctx, "federal register id", "federal_register_id = $1", id)
}

// GetByAcronym matches the acronym case-insensitively
func (s *OrganizationStore) GetByAcronym(ctx context.Context, acronym string) (*model.Organization, error) {
	return s.getOne(ctx, "acronym", "upper(acronym) = upper($1)", acronym)
}

// GetByName matches the official name case-insensitively
func (s *OrganizationStore) GetByName(ctx context.Context, name string) (*model.Organization, error) {
	return s.getOne(ctx, "name", "lower(official_name) = lower($1)", name)
}

// GetAll retrieves all organizations
func (s *OrganizationStore) GetAll(ctx context.Context) ([]model.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY official_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}
	return orgs, nil
}

// Count returns the number of organizations
func (s *OrganizationStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count organizations: %w", err)
	}
	return n, nil
}

// Create inserts a new organization
func (s *OrganizationStore) Create(ctx context.Context, o *model.Organization) error {
	query := `
		INSERT INTO organizations (id, official_name, acronym, federal_register_id, federal_register_slug,
		                           website_url, description, parent_id, branch, former_names, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		o.ID,
		o.OfficialName,
		o.Acronym,
		o.FederalRegisterID,
		o.FederalRegisterSlug,
		o.WebsiteURL,
		o.Description,
		o.ParentID,
		o.Branch,
		pq.Array(formerNames(o.FormerNames)),
		o.DataSource,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization %s: %w", o.OfficialName, err)
	}
	return nil
}

// Update writes every mutable column of an existing organization
func (s *OrganizationStore) Update(ctx context.Context, o *model.Organization) error {
	query := `
		UPDATE organizations
		SET official_name = $2, acronym = $3, federal_register_id = $4, federal_register_slug = $5,
		    website_url = $6, description = $7, parent_id = $8, branch = $9, former_names = $10,
		    data_source = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		o.ID,
		o.OfficialName,
		o.Acronym,
		o.FederalRegisterID,
		o.FederalRegisterSlug,
		o.WebsiteURL,
		o.Description,
		o.ParentID,
		o.Branch,
		pq.Array(formerNames(o.FormerNames)),
		o.DataSource,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update organization %s: %w", o.OfficialName, err)
	}
	return nil
}

// formerNames keeps the NOT NULL column from receiving a nil array.
func formerNames(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
