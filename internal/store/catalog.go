package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/priceflow-platform/api/internal/importer"
)

type Supplier struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type Product struct {
	ID           uuid.UUID
	Name         string
	CategoryID   uuid.UUID
	CategoryName string
	SKU          *string
	Barcode      *string
	CreatedAt    time.Time
}

type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
}

type PriceHistoryRow struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	SupplierID        uuid.UUID
	SupplierName      string
	Cost              float64
	DiscountPercent   float64
	CostAfterDiscount float64
	SellPrice         float64
	Currency          *string
	VATPercent        *float64
	PackageQuantity   *float64
	SourceRow         int
	CreatedAt         time.Time
}

// PriceBookRow is one line of the export: the latest price per
// product-supplier pair joined with display names.
type PriceBookRow struct {
	ProductName       string
	CategoryName      string
	SupplierName      string
	SKU               *string
	Barcode           *string
	Cost              float64
	DiscountPercent   float64
	CostAfterDiscount float64
	SellPrice         float64
	Currency          *string
	UpdatedAt         time.Time
}

func (s *Store) ListSuppliers(ctx context.Context, tenantID uuid.UUID) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, is_active, created_at
		FROM suppliers
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, is_active, created_at
		FROM categories
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context, tenantID uuid.UUID, filter ProductFilter) ([]Product, error) {
	query := `
		SELECT p.id, p.name, p.category_id, c.name, p.sku, p.barcode, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.is_active
	`
	args := []any{tenantID}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		query += fmt.Sprintf(" AND p.category_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+importer.NormalizeName(filter.Search)+"%")
		query += fmt.Sprintf(" AND p.name_norm LIKE $%d", len(args))
	}
	query += " ORDER BY c.name, p.name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Barcode, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.category_id, c.name, p.sku, p.barcode, p.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.id = $2
	`, tenantID, productID).Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Barcode, &p.CreatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// PriceHistory returns price entries for a product newest first, optionally
// restricted to one supplier.
func (s *Store) PriceHistory(ctx context.Context, tenantID, productID uuid.UUID, supplierID *uuid.UUID) ([]PriceHistoryRow, error) {
	query := `
		SELECT e.id, e.product_id, e.supplier_id, sup.name,
		       e.cost, e.discount_percent, e.cost_after_discount, e.sell_price,
		       e.currency, e.vat_percent, e.package_quantity, e.source_row, e.created_at
		FROM price_entries e
		JOIN suppliers sup ON sup.id = e.supplier_id
		WHERE e.tenant_id = $1 AND e.product_id = $2
	`
	args := []any{tenantID, productID}
	if supplierID != nil {
		args = append(args, *supplierID)
		query += fmt.Sprintf(" AND e.supplier_id = $%d", len(args))
	}
	query += " ORDER BY e.created_at DESC, e.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	var out []PriceHistoryRow
	for rows.Next() {
		var h PriceHistoryRow
		if err := rows.Scan(&h.ID, &h.ProductID, &h.SupplierID, &h.SupplierName,
			&h.Cost, &h.DiscountPercent, &h.CostAfterDiscount, &h.SellPrice,
			&h.Currency, &h.VATPercent, &h.PackageQuantity, &h.SourceRow, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) PriceBookRows(ctx context.Context, tenantID uuid.UUID) ([]PriceBookRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (e.product_id, e.supplier_id)
		       p.name, c.name, sup.name, p.sku, p.barcode,
		       e.cost, e.discount_percent, e.cost_after_discount, e.sell_price,
		       e.currency, e.created_at
		FROM price_entries e
		JOIN products p ON p.id = e.product_id
		JOIN categories c ON c.id = p.category_id
		JOIN suppliers sup ON sup.id = e.supplier_id
		WHERE e.tenant_id = $1 AND p.is_active
		ORDER BY e.product_id, e.supplier_id, e.created_at DESC, e.id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("export price book: %w", err)
	}
	defer rows.Close()

	var out []PriceBookRow
	for rows.Next() {
		var b PriceBookRow
		if err := rows.Scan(&b.ProductName, &b.CategoryName, &b.SupplierName, &b.SKU, &b.Barcode,
			&b.Cost, &b.DiscountPercent, &b.CostAfterDiscount, &b.SellPrice, &b.Currency, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan price book row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSettings(ctx context.Context, tenantID uuid.UUID, cfg importer.TenantPricingConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, vat_percent, global_margin_percent, use_margin, use_vat, decimal_precision)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			vat_percent = EXCLUDED.vat_percent,
			global_margin_percent = EXCLUDED.global_margin_percent,
			use_margin = EXCLUDED.use_margin,
			use_vat = EXCLUDED.use_vat,
			decimal_precision = EXCLUDED.decimal_precision,
			updated_at = now()
	`, tenantID, cfg.VATPercent, cfg.GlobalMarginPercent, cfg.UseMargin, cfg.UseVAT, cfg.DecimalPrecision)
	if err != nil {
		return fmt.Errorf("update tenant settings: %w", err)
	}
	return nil
}
