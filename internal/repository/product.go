package repository

import (
	"context"
	"fmt"

	"catalog/mirror/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRepository archives crawled products keyed by their source link.
type ProductRepository interface {
	EnsureSchema(ctx context.Context) error
	SaveProducts(ctx context.Context, products []*domain.Product) error
}

const schema = `
CREATE TABLE IF NOT EXISTS scraped_products (
	source_link TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	data        JSONB NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertProduct = `
INSERT INTO scraped_products (source_link, category, data)
VALUES ($1, $2, $3)
ON CONFLICT (source_link)
DO UPDATE SET category = $2, data = $3, scraped_at = now()`

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &productRepository{
		db: db,
	}
}

func (r *productRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create scraped_products table: %w", err)
	}
	return nil
}

// SaveProducts upserts all products in one batch.
func (r *productRepository) SaveProducts(ctx context.Context, products []*domain.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProduct, p.SourceLink, p.Category, p)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, p := range products {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save product %s: %w", p.SourceLink, err)
		}
	}

	return nil
}
