package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/database"
	"github.com/hapdco/catalog-engine/pkg/models"
)

// SupplierRepository provides data access for supplier master records.
// Suppliers are append/update-only: the sync engine never deletes them.
type SupplierRepository interface {
	Upsert(ctx context.Context, s *models.Supplier) error
	GetByID(ctx context.Context, id int64) (*models.Supplier, error)
	ListIDs(ctx context.Context) (map[int64]struct{}, error)
}

type supplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new SupplierRepository.
func NewSupplierRepository(db *database.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

var _ SupplierRepository = (*supplierRepository)(nil)

// Upsert inserts a supplier or overwrites every mutable field of an existing
// one. The externally assigned id is the conflict key.
func (r *supplierRepository) Upsert(ctx context.Context, s *models.Supplier) error {
	q := database.QuerierFrom(ctx, r.db)

	query := `
		INSERT INTO suppliers (
			id, name, legal_name, sales_contact, phone_field, website,
			delivers, min_order, offers_credit, rating, membership_tier
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    legal_name = EXCLUDED.legal_name,
		    sales_contact = EXCLUDED.sales_contact,
		    phone_field = EXCLUDED.phone_field,
		    website = EXCLUDED.website,
		    delivers = EXCLUDED.delivers,
		    min_order = EXCLUDED.min_order,
		    offers_credit = EXCLUDED.offers_credit,
		    rating = EXCLUDED.rating,
		    membership_tier = EXCLUDED.membership_tier,
		    updated_at = now()`

	_, err := q.Exec(ctx, query,
		s.ID, s.Name, s.LegalName, s.SalesContact, s.PhoneField, s.Website,
		s.Delivers, s.MinOrder, s.OffersCredit, s.Rating, s.MembershipTier,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert supplier %d: %w", s.ID, err)
	}
	return nil
}

// GetByID returns one supplier, or apperrors.ErrNotFound.
func (r *supplierRepository) GetByID(ctx context.Context, id int64) (*models.Supplier, error) {
	q := database.QuerierFrom(ctx, r.db)

	query := `
		SELECT id, name, legal_name, sales_contact, phone_field, website,
		       delivers, min_order, offers_credit, rating, membership_tier
		FROM suppliers
		WHERE id = $1`

	var s models.Supplier
	err := q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.LegalName, &s.SalesContact, &s.PhoneField, &s.Website,
		&s.Delivers, &s.MinOrder, &s.OffersCredit, &s.Rating, &s.MembershipTier,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get supplier %d: %w", id, err)
	}
	return &s, nil
}

// ListIDs returns the set of known supplier ids, used for the orphan-file
// check before product files are ingested.
func (r *supplierRepository) ListIDs(ctx context.Context) (map[int64]struct{}, error) {
	q := database.QuerierFrom(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT id FROM suppliers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan supplier id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
