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

const regulationColumns = `id, document_number, title, abstract, document_type, publication_date,
		       effective_on, signing_date, regulation_id_number, cfr_references, docket_ids,
		       source_url, html_url, pdf_url, created_at, updated_at`

// RegulationStore handles database operations for Federal Register documents
type RegulationStore struct {
	db *sql.DB
}

func NewRegulationStore(db *sql.DB) *RegulationStore {
	return &RegulationStore{db: db}
}

// GetByDocumentNumber retrieves a regulation by its document number
func (s *RegulationStore) GetByDocumentNumber(ctx context.Context, documentNumber string) (*model.Regulation, error) {
	query := `SELECT ` + regulationColumns + ` FROM regulations WHERE document_number = $1`

	var r model.Regulation
	err := s.db.QueryRowContext(ctx, query, documentNumber).Scan(
		&r.ID,
		&r.DocumentNumber,
		&r.Title,
		&r.Abstract,
		&r.DocumentType,
		&r.PublicationDate,
		&r.EffectiveOn,
		&r.SigningDate,
		&r.RegulationIDNumber,
		&r.CFRReferences,
		pq.Array(&r.DocketIDs),
		&r.SourceURL,
		&r.HTMLURL,
		&r.PDFURL,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get regulation %s: %w", documentNumber, err)
	}
	return &r, nil
}

// Create inserts a new regulation
func (s *RegulationStore) Create(ctx context.Context, r *model.Regulation) error {
	query := `
		INSERT INTO regulations (id, document_number, title, abstract, document_type, publication_date,
		                         effective_on, signing_date, regulation_id_number, cfr_references,
		                         docket_ids, source_url, html_url, pdf_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		r.ID,
		r.DocumentNumber,
		r.Title,
		r.Abstract,
		r.DocumentType,
		r.PublicationDate,
		r.EffectiveOn,
		r.SigningDate,
		r.RegulationIDNumber,
		r.CFRReferences,
		pq.Array(docketIDs(r.DocketIDs)),
		r.SourceURL,
		r.HTMLURL,
		r.PDFURL,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create regulation %s: %w", r.DocumentNumber, err)
	}
	return nil
}

// Update writes every mutable column of an existing regulation
func (s *RegulationStore) Update(ctx context.Context, r *model.Regulation) error {
	query := `
		UPDATE regulations
		SET title = $2, abstract = $3, document_type = $4, publication_date = $5, effective_on = $6,
		    signing_date = $7, regulation_id_number = $8, cfr_references = $9, docket_ids = $10,
		    source_url = $11, html_url = $12, pdf_url = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		r.ID,
		r.Title,
		r.Abstract,
		r.DocumentType,
		r.PublicationDate,
		r.EffectiveOn,
		r.SigningDate,
		r.RegulationIDNumber,
		r.CFRReferences,
		pq.Array(docketIDs(r.DocketIDs)),
		r.SourceURL,
		r.HTMLURL,
		r.PDFURL,
	).Scan(&r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update regulation %s: %w", r.DocumentNumber, err)
	}
	return nil
}

// ReplaceAgencyLinks swaps the issuing organizations of a regulation in one
// transaction.
func (s *RegulationStore) ReplaceAgencyLinks(ctx context.Context, regulationID uuid.UUID, links []model.RegulationAgencyLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM regulation_agencies WHERE regulation_id = $1`, regulationID); err != nil {
		return fmt.Errorf("failed to clear agency links of %s: %w", regulationID, err)
	}

	insert := `
		INSERT INTO regulation_agencies (regulation_id, organization_id, raw_name, is_primary)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (regulation_id, organization_id) DO NOTHING
	`
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, insert, regulationID, l.OrganizationID, text(l.RawName), l.Primary); err != nil {
			return fmt.Errorf("failed to link %s to organization %s: %w", regulationID, l.OrganizationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit agency links: %w", err)
	}
	return nil
}

// LatestPublicationDate returns the newest publication date on file
func (s *RegulationStore) LatestPublicationDate(ctx context.Context) (sql.NullTime, error) {
	var latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(publication_date) FROM regulations`).Scan(&latest); err != nil {
		return sql.NullTime{}, fmt.Errorf("failed to get latest publication date: %w", err)
	}
	return latest, nil
}

// LinkageCounts summarizes how regulations are linked to organizations.
type LinkageCounts struct {
	Regulations       int
	LinkedRegulations int
	Links             int
	Organizations     int
}

// Linkage counts regulations, the linked subset and the link rows.
func (s *RegulationStore) Linkage(ctx context.Context) (LinkageCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM regulations),
			(SELECT COUNT(DISTINCT regulation_id) FROM regulation_agencies),
			(SELECT COUNT(*) FROM regulation_agencies),
			(SELECT COUNT(*) FROM organizations)
	`
	var c LinkageCounts
	err := s.db.QueryRowContext(ctx, query).Scan(&c.Regulations, &c.LinkedRegulations, &c.Links, &c.Organizations)
	if err != nil {
		return LinkageCounts{}, fmt.Errorf("failed to count linkage: %w", err)
	}
	return c, nil
}

// OrganizationRegulations is an organization with its linked document count.
type OrganizationRegulations struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Regulations    int       `json:"regulations"`
}

// TopOrganizations lists the organizations with the most linked regulations.
func (s *RegulationStore) TopOrganizations(ctx context.Context, limit int) ([]OrganizationRegulations, error) {
	query := `
		SELECT o.id, o.official_name, COUNT(*) AS regulations
		FROM regulation_agencies ra
		JOIN organizations o ON o.id = ra.organization_id
		GROUP BY o.id, o.official_name
		ORDER BY regulations DESC, o.official_name
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top organizations: %w", err)
	}
	defer rows.Close()

	var out []OrganizationRegulations
	for rows.Next() {
		var o OrganizationRegulations
		if err := rows.Scan(&o.OrganizationID, &o.Name, &o.Regulations); err != nil {
			return nil, fmt.Errorf("failed to scan organization count: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organization counts: %w", err)
	}
	return out, nil
}

func docketIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
