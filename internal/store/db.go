// Package store persists the factbase in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// NewDB opens a connection pool and checks that the database answers.
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Stores bundles every store over one pool.
type Stores struct {
	Organizations *OrganizationStore
	People        *PersonStore
	Positions     *PositionStore
	Holdings      *HoldingStore
	Regulations   *RegulationStore
	Markers       *MarkerStore
}

func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Organizations: NewOrganizationStore(db),
		People:        NewPersonStore(db),
		Positions:     NewPositionStore(db),
		Holdings:      NewHoldingStore(db),
		Regulations:   NewRegulationStore(db),
		Markers:       NewMarkerStore(db),
	}
}

// text maps an empty string to NULL.
func text[T ~string](s T) sql.NullString {
	return sql.NullString{String: string(s), Valid: s != ""}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
