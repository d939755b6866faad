package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations of the collections table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	loadQuery = `SELECT items FROM collections WHERE namespace = $1 AND kind = $2`

	saveQuery = `
		INSERT INTO collections (namespace, kind, items, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, kind)
		DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`
)

// CollectionRepository persists collections as JSONB rows keyed by
// (namespace, kind). It implements store.Persister.
type CollectionRepository struct {
	db        database.DBTX
	namespace string
	tracer    database.QueryTracer
	now       func() time.Time
}

// NewCollectionRepository creates a PostgreSQL-backed persister.
func NewCollectionRepository(db database.DBTX, namespace string, tracer database.QueryTracer) *CollectionRepository {
	return &CollectionRepository{
		db:        db,
		namespace: namespace,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Load reads the collection of kind. A missing row is an empty collection.
func (r *CollectionRepository) Load(ctx context.Context, kind domain.Kind) (items []domain.LineItem, err error) {
	ctx, end := r.tracer.Start(ctx, "LoadCollection", loadQuery)
	defer func() { end(err) }()

	var raw []byte
	if err = r.db.QueryRow(ctx, loadQuery, r.namespace, kind.String()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.LineItem{}, nil
		}
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}

	if err = json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items, nil
}

// Save upserts the collection of kind.
func (r *CollectionRepository) Save(ctx context.Context, kind domain.Kind, items []domain.LineItem) (err error) {
	ctx, end := r.tracer.Start(ctx, "SaveCollection", saveQuery)
	defer func() { end(err) }()

	if items == nil {
		items = []domain.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	if _, err = r.db.Exec(ctx, saveQuery, r.namespace, kind.String(), raw, r.now()); err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}
