package importer

// Logical field names used in column mappings and manual overrides. Pair
// fields (supplier, price, discount_percent, vat, currency) may carry an _N
// suffix when a sheet lists several supplier/price column groups side by side.
const (
	FieldProductName     = "product_name"
	FieldCategory        = "category"
	FieldSKU             = "sku"
	FieldBarcode         = "barcode"
	FieldPackageQuantity = "package_quantity"
	FieldSupplier        = "supplier"
	FieldPrice           = "price"
	FieldDiscountPercent = "discount_percent"
	FieldVAT             = "vat"
	FieldCurrency        = "currency"
)

// RawGrid is the cell grid extracted from one sheet of an uploaded file.
// Rows may be ragged; missing cells read as empty strings.
type RawGrid [][]string

// Cell returns the trimmed-as-is cell value, or "" when out of range.
func (g RawGrid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// ColumnMapping maps a logical field name to a 0-based column index.
// A missing key means the field is not mapped.
type ColumnMapping map[string]int

// PricePairMapping is one discovered supplier/price column group. A column
// index of -1 means the slot has no mapped column and must be satisfied by a
// manual override, if at all.
type PricePairMapping struct {
	Index       int
	SupplierCol int
	PriceCol    int
	DiscountCol int
	VATCol      int
	CurrencyCol int
}

// ManualOverrides supplies values when no column is mapped, or overrides a
// mapped column. Rows is keyed by 0-based data-row index (header excluded);
// the inner maps are keyed by logical field name, optionally _N-suffixed.
type ManualOverrides struct {
	Global map[string]string
	Rows   map[int]map[string]string
}

// ImportRow is one normalized (row, pair) unit ready for reconciliation.
type ImportRow struct {
	// RowNumber is the 1-based source row, header-adjusted, for error
	// attribution and audit.
	RowNumber int
	PairIndex int

	ProductName string
	Supplier    string
	Category    string
	SKU         string
	Barcode     string

	Price           float64
	DiscountPercent float64
	PackageQuantity *float64
	VATPercent      *float64
	Currency        string
}

// RowError is a recoverable per-row problem. Collected, never returned as an
// error: the batch continues past it.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// NormalizeResult is the Row Normalizer output. FieldErrors being non-empty
// means the whole operation is aborted and Rows/RowErrors are empty.
type NormalizeResult struct {
	Rows        []ImportRow
	RowErrors   []RowError
	FieldErrors []string
}

// TenantPricingConfig holds the tenant settings the Pricing Calculator needs,
// loaded once per apply and threaded explicitly.
type TenantPricingConfig struct {
	VATPercent          float64
	GlobalMarginPercent float64
	UseMargin           bool
	UseVAT              bool
	DecimalPrecision    int
}

// DefaultCategoryName is the sentinel category assigned to rows without one.
const DefaultCategoryName = "General"
