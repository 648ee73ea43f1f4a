package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jjenkins/factbase/internal/model"
)

const personColumns = `id, bioguide_id, first_name, middle_name, last_name, suffix, nickname,
		       party, state, birth_date, gender, external_ids, social_media, data_source,
		       enrichment_source, enrichment_version, created_at, updated_at`

// PersonStore handles database operations for people
type PersonStore struct {
	db *sql.DB
}

func NewPersonStore(db *sql.DB) *PersonStore {
	return &PersonStore{db: db}
}

func scanPerson(row rowScanner) (*model.Person, error) {
	var p model.Person
	err := row.Scan(
		&p.ID,
		&p.BioguideID,
		&p.FirstName,
		&p.MiddleName,
		&p.LastName,
		&p.Suffix,
		&p.Nickname,
		&p.Party,
		&p.State,
		&p.BirthDate,
		&p.Gender,
		&p.ExternalIDs,
		&p.SocialMedia,
		&p.DataSource,
		&p.EnrichmentSource,
		&p.EnrichmentVersion,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByBioguideID retrieves a person by Bioguide ID
func (s *PersonStore) GetByBioguideID(ctx context.Context, bioguideID string) (*model.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE bioguide_id = $1`

	p, err := scanPerson(s.db.QueryRowContext(ctx, query, bioguideID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %s: %w", bioguideID, err)
	}
	return p, nil
}

// GetByNameKey returns the oldest person from source with the normalized
// first|last key.
func (s *PersonStore) GetByNameKey(ctx context.Context, nameKey string, source model.DataSource) (*model.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM people
		WHERE name_key = $1 AND data_source = $2
		ORDER BY created_at
		LIMIT 1`

	p, err := scanPerson(s.db.QueryRowContext(ctx, query, nameKey, source))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person by name %s: %w", nameKey, err)
	}
	return p, nil
}

// Create inserts a new person
func (s *PersonStore) Create(ctx context.Context, p *model.Person) error {
	query := `
		INSERT INTO people (id, bioguide_id, first_name, middle_name, last_name, suffix, nickname,
		                    party, state, birth_date, gender, name_key, external_ids, social_media,
		                    data_source, enrichment_source, enrichment_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.BioguideID,
		p.FirstName,
		p.MiddleName,
		p.LastName,
		p.Suffix,
		p.Nickname,
		p.Party,
		p.State,
		p.BirthDate,
		p.Gender,
		p.NameKey(),
		p.ExternalIDs,
		p.SocialMedia,
		p.DataSource,
		p.EnrichmentSource,
		p.EnrichmentVersion,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create person %s %s: %w", p.FirstName, p.LastName, err)
	}
	return nil
}

// Update writes every mutable column and recomputes the name key
func (s *PersonStore) Update(ctx context.Context, p *model.Person) error {
	query := `
		UPDATE people
		SET bioguide_id = $2, first_name = $3, middle_name = $4, last_name = $5, suffix = $6,
		    nickname = $7, party = $8, state = $9, birth_date = $10, gender = $11, name_key = $12,
		    external_ids = $13, social_media = $14, data_source = $15, enrichment_source = $16,
		    enrichment_version = $17, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.BioguideID,
		p.FirstName,
		p.MiddleName,
		p.LastName,
		p.Suffix,
		p.Nickname,
		p.Party,
		p.State,
		p.BirthDate,
		p.Gender,
		p.NameKey(),
		p.ExternalIDs,
		p.SocialMedia,
		p.DataSource,
		p.EnrichmentSource,
		p.EnrichmentVersion,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update person %s: %w", p.ID, err)
	}
	return nil
}
