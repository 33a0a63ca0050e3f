package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hapdco/catalog-engine/pkg/database"
	"github.com/hapdco/catalog-engine/pkg/models"
)

// ProductRepository provides data access for catalog products, including the
// two retrieval capabilities of the store: trigram lexical similarity and
// vector nearest-neighbor search, composable in one query.
type ProductRepository interface {
	// ListBusinessKeys returns the per-supplier product ids currently stored
	// for a supplier, the store side of the sync diff.
	ListBusinessKeys(ctx context.Context, supplierID int64) (map[int64]struct{}, error)
	Insert(ctx context.Context, p *models.Product) error
	// UpdateVolatile updates only the fields a daily file is allowed to
	// change on an existing row: price, currency, last-updated and validity.
	UpdateVolatile(ctx context.Context, p *models.Product) error
	DeleteByBusinessKeys(ctx context.Context, supplierID int64, supplierProductIDs []int64) (int64, error)

	// SearchHybrid runs trigram and vector retrieval as one query. Rows
	// found by either path are unioned and deduplicated by product identity,
	// keeping the maximum lexical and vector score each. A nil embedding
	// degrades to the lexical path only. limit caps each path's candidate
	// volume independently.
	SearchHybrid(ctx context.Context, query string, embedding []float32, limit int) ([]models.ProductCandidate, error)
}

type productRepository struct {
	db *database.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *database.DB) ProductRepository {
	return &productRepository{db: db}
}

var _ ProductRepository = (*productRepository)(nil)

func (r *productRepository) ListBusinessKeys(ctx context.Context, supplierID int64) (map[int64]struct{}, error) {
	q := database.QuerierFrom(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT supplier_product_id FROM products WHERE supplier_id = $1`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product keys for supplier %d: %w", supplierID, err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product key: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *productRepository) Insert(ctx context.Context, p *models.Product) error {
	q := database.QuerierFrom(ctx, r.db)

	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	var embedding *string
	if p.Embedding != nil {
		lit := models.VectorLiteral(p.Embedding)
		embedding = &lit
	}

	query := `
		INSERT INTO products (
			supplier_id, supplier_product_id, name, code, brand,
			presentation, sale_unit, unit_price, currency, categories,
			last_updated, validity, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::vector)
		RETURNING id`

	err = q.QueryRow(ctx, query,
		p.SupplierID, p.SupplierProductID, p.Name, p.Code, p.Brand,
		p.Presentation, p.Unit, p.UnitPrice, p.Currency, categories,
		p.LastUpdated, p.Validity, embedding,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert product %d/%d: %w", p.SupplierID, p.SupplierProductID, err)
	}
	return nil
}

func (r *productRepository) UpdateVolatile(ctx context.Context, p *models.Product) error {
	q := database.QuerierFrom(ctx, r.db)

	query := `
		UPDATE products
		SET unit_price = $3, currency = $4, last_updated = $5, validity = $6,
		    updated_at = now()
		WHERE supplier_id = $1 AND supplier_product_id = $2`

	tag, err := q.Exec(ctx, query,
		p.SupplierID, p.SupplierProductID,
		p.UnitPrice, p.Currency, p.LastUpdated, p.Validity,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %d/%d: %w", p.SupplierID, p.SupplierProductID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d/%d not found for update", p.SupplierID, p.SupplierProductID)
	}
	return nil
}

func (r *productRepository) DeleteByBusinessKeys(ctx context.Context, supplierID int64, supplierProductIDs []int64) (int64, error) {
	if len(supplierProductIDs) == 0 {
		return 0, nil
	}
	q := database.QuerierFrom(ctx, r.db)

	tag, err := q.Exec(ctx,
		`DELETE FROM products WHERE supplier_id = $1 AND supplier_product_id = ANY($2)`,
		supplierID, supplierProductIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products for supplier %d: %w", supplierID, err)
	}
	return tag.RowsAffected(), nil
}

// candidateColumns is the shared select list of both search variants.
const candidateColumns = `
	SELECT p.id, p.supplier_id, p.supplier_product_id, p.name, p.brand,
	       p.presentation, p.sale_unit, p.unit_price, p.currency, p.categories,
	       h.lex_sim, h.vec_sim,
	       s.name, s.sales_contact, s.phone_field, s.website,
	       s.rating, s.membership_tier
	FROM hits h
	JOIN products p ON p.id = h.id
	JOIN suppliers s ON s.id = p.supplier_id
	ORDER BY h.lex_sim + h.vec_sim DESC, p.id`

// hybridSearchSQL unions the trigram arm (operator-level % pre-filter, best
// similarity across name/brand/presentation) with a K-nearest vector arm
// (cosine distance), full-outer-joined so a product found by both paths
// keeps both scores.
const hybridSearchSQL = `
	WITH lex AS (
		SELECT p.id,
		       GREATEST(similarity(p.name, $1),
		                similarity(p.brand, $1),
		                similarity(p.presentation, $1)) AS lex_sim
		FROM products p
		WHERE p.name % $1 OR p.brand % $1 OR p.presentation % $1
		ORDER BY lex_sim DESC
		LIMIT $2
	),
	vec AS (
		SELECT p.id, 1 - (p.embedding <=> $3::vector) AS vec_sim
		FROM products p
		WHERE p.embedding IS NOT NULL
		ORDER BY p.embedding <=> $3::vector
		LIMIT $2
	),
	hits AS (
		SELECT COALESCE(l.id, v.id) AS id,
		       COALESCE(l.lex_sim, 0)::float8 AS lex_sim,
		       COALESCE(v.vec_sim, 0)::float8 AS vec_sim
		FROM lex l
		FULL OUTER JOIN vec v ON l.id = v.id
	)` + candidateColumns

// lexicalSearchSQL is the degraded variant used when no query embedding is
// available (embedding collaborator down): the lexical path still applies.
const lexicalSearchSQL = `
	WITH hits AS (
		SELECT p.id,
		       GREATEST(similarity(p.name, $1),
		                similarity(p.brand, $1),
		                similarity(p.presentation, $1))::float8 AS lex_sim,
		       0::float8 AS vec_sim
		FROM products p
		WHERE p.name % $1 OR p.brand % $1 OR p.presentation % $1
		ORDER BY lex_sim DESC
		LIMIT $2
	)` + candidateColumns

func (r *productRepository) SearchHybrid(ctx context.Context, query string, embedding []float32, limit int) ([]models.ProductCandidate, error) {
	q := database.QuerierFrom(ctx, r.db)

	var (
		rows pgx.Rows
		err  error
	)
	if embedding == nil {
		rows, err = q.Query(ctx, lexicalSearchSQL, query, limit)
	} else {
		rows, err = q.Query(ctx, hybridSearchSQL, query, limit, models.VectorLiteral(embedding))
	}
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.ProductCandidate
	for rows.Next() {
		var (
			c          models.ProductCandidate
			categories []byte
		)
		if err := rows.Scan(
			&c.ProductID, &c.SupplierID, &c.SupplierProductID, &c.Name, &c.Brand,
			&c.Presentation, &c.Unit, &c.UnitPrice, &c.Currency, &categories,
			&c.LexScore, &c.VecScore,
			&c.SupplierName, &c.SupplierContact, &c.SupplierPhoneField, &c.SupplierWebsite,
			&c.SupplierRating, &c.SupplierMembershipTier,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if len(categories) > 0 {
			if err := json.Unmarshal(categories, &c.Categories); err != nil {
				return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
