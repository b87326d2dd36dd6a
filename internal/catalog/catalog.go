// Package catalog stores the garment price list and the design library.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/forma/internal/pricing"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Material is a garment fabric with its base cost.
type Material struct {
	Key      string  `db:"material_key" json:"key"`
	Name     string  `db:"name" json:"name"`
	BaseCost float64 `db:"base_cost" json:"baseCost"`
	Active   bool    `db:"active" json:"-"`
}

// SizeArea is the printable area of one garment size.
type SizeArea struct {
	Size        string  `db:"size" json:"size"`
	MaxAreaSqIn float64 `db:"max_area_sqin" json:"maxAreaSqIn"`
	SortOrder   int     `db:"sort_order" json:"-"`
}

// PrintRate is the price of printing one coverage bucket on one size.
type PrintRate struct {
	Size   string  `db:"size"`
	Bucket string  `db:"bucket"`
	Price  float64 `db:"price"`
}

// AddonRates holds the flat surcharges and canvas dimensions.
type AddonRates struct {
	FlatAddon        float64 `db:"flat_addon"`
	LibraryAccess    float64 `db:"library_access"`
	EmbroideryText   float64 `db:"embroidery_text"`
	EmbroideryDesign float64 `db:"embroidery_design"`
	CanvasWidth      float64 `db:"canvas_width"`
	CanvasHeight     float64 `db:"canvas_height"`
	Currency         string  `db:"currency"`
}

// Design is a pre-made graphic from the library.
type Design struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Category  string  `db:"category" json:"category"`
	ImagePath string  `db:"image_path" json:"src"`
	Price     float64 `db:"price" json:"price"`
	Active    bool    `db:"active" json:"-"`
}

// Store reads and writes catalog tables.
type Store struct {
	db *sqlx.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Rates assembles the current price list for the calculator. Inactive
// materials are left out so they price as invalid.
func (s *Store) Rates(ctx context.Context) (pricing.Rates, error) {
	addons, err := s.AddonRates(ctx)
	if err != nil {
		return pricing.Rates{}, err
	}

	rates := pricing.Rates{
		BaseCosts:        map[string]float64{},
		FlatAddon:        addons.FlatAddon,
		LibraryAccess:    addons.LibraryAccess,
		EmbroideryText:   addons.EmbroideryText,
		EmbroideryDesign: addons.EmbroideryDesign,
		CanvasWidth:      addons.CanvasWidth,
		CanvasHeight:     addons.CanvasHeight,
		MaxPrintArea:     map[pricing.Size]float64{},
		PrintPrices:      map[pricing.Size]map[pricing.Bucket]float64{},
	}

	materials, err := s.ListMaterials(ctx)
	if err != nil {
		return pricing.Rates{}, err
	}
	for _, m := range materials {
		if m.Active {
			rates.BaseCosts[m.Key] = m.BaseCost
		}
	}

	sizes, err := s.ListSizes(ctx)
	if err != nil {
		return pricing.Rates{}, err
	}
	for _, sa := range sizes {
		rates.MaxPrintArea[pricing.Size(sa.Size)] = sa.MaxAreaSqIn
	}

	printRates, err := s.ListPrintRates(ctx)
	if err != nil {
		return pricing.Rates{}, err
	}
	for _, pr := range printRates {
		bucket, err := pricing.ParseBucket(pr.Bucket)
		if err != nil {
			return pricing.Rates{}, fmt.Errorf("print rate %s: %w", pr.Size, err)
		}
		size := pricing.Size(pr.Size)
		if rates.PrintPrices[size] == nil {
			rates.PrintPrices[size] = map[pricing.Bucket]float64{}
		}
		rates.PrintPrices[size][bucket] = pr.Price
	}

	return rates, nil
}

// ListMaterials returns all materials ordered by key.
func (s *Store) ListMaterials(ctx context.Context) ([]Material, error) {
	materials := make([]Material, 0)
	if err := s.db.SelectContext(ctx, &materials, `
		SELECT material_key, name, base_cost, active
		FROM materials
		ORDER BY material_key
	`); err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	return materials, nil
}

// SaveMaterial inserts a material or updates the existing one with the same key.
func (s *Store) SaveMaterial(ctx context.Context, m Material) error {
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO materials (material_key, name, base_cost, active)
		VALUES (:material_key, :name, :base_cost, :active)
		ON CONFLICT(material_key) DO UPDATE SET
			name = excluded.name,
			base_cost = excluded.base_cost,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP
	`, m); err != nil {
		return fmt.Errorf("save material %s: %w", m.Key, err)
	}
	return nil
}

// ListSizes returns the printable areas in display order.
func (s *Store) ListSizes(ctx context.Context) ([]SizeArea, error) {
	sizes := make([]SizeArea, 0)
	if err := s.db.SelectContext(ctx, &sizes, `
		SELECT size, max_area_sqin, sort_order
		FROM size_areas
		ORDER BY sort_order, size
	`); err != nil {
		return nil, fmt.Errorf("query size areas: %w", err)
	}
	return sizes, nil
}

// SaveSize inserts or updates the printable area of a size.
func (s *Store) SaveSize(ctx context.Context, sa SizeArea) error {
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO size_areas (size, max_area_sqin, sort_order)
		VALUES (:size, :max_area_sqin, :sort_order)
		ON CONFLICT(size) DO UPDATE SET
			max_area_sqin = excluded.max_area_sqin,
			sort_order = excluded.sort_order
	`, sa); err != nil {
		return fmt.Errorf("save size %s: %w", sa.Size, err)
	}
	return nil
}

// ListPrintRates returns every (size, bucket) price.
func (s *Store) ListPrintRates(ctx context.Context) ([]PrintRate, error) {
	printRates := make([]PrintRate, 0)
	if err := s.db.SelectContext(ctx, &printRates, `
		SELECT pr.size, pr.bucket, pr.price
		FROM print_rates pr
		JOIN size_areas sa ON sa.size = pr.size
		ORDER BY sa.sort_order, pr.price
	`); err != nil {
		return nil, fmt.Errorf("query print rates: %w", err)
	}
	return printRates, nil
}

// SavePrintRate sets the price of one (size, bucket) pair.
func (s *Store) SavePrintRate(ctx context.Context, pr PrintRate) error {
	if _, err := pricing.ParseBucket(pr.Bucket); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO print_rates (size, bucket, price)
		VALUES (:size, :bucket, :price)
		ON CONFLICT(size, bucket) DO UPDATE SET
			price = excluded.price,
			updated_at = CURRENT_TIMESTAMP
	`, pr); err != nil {
		return fmt.Errorf("save print rate %s/%s: %w", pr.Size, pr.Bucket, err)
	}
	return nil
}

// AddonRates returns the singleton surcharge row.
func (s *Store) AddonRates(ctx context.Context) (AddonRates, error) {
	var ar AddonRates
	err := s.db.GetContext(ctx, &ar, `
		SELECT flat_addon, library_access, embroidery_text, embroidery_design, canvas_width, canvas_height, currency
		FROM addon_rates
		WHERE id = 1
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AddonRates{}, fmt.Errorf("addon_rates singleton: %w", ErrNotFound)
		}
		return AddonRates{}, fmt.Errorf("query addon_rates: %w", err)
	}
	return ar, nil
}

// SaveAddonRates replaces the singleton surcharge row.
func (s *Store) SaveAddonRates(ctx context.Context, ar AddonRates) error {
	if ar.Currency == "" {
		ar.Currency = "INR"
	}
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO addon_rates (id, flat_addon, library_access, embroidery_text, embroidery_design, canvas_width, canvas_height, currency)
		VALUES (1, :flat_addon, :library_access, :embroidery_text, :embroidery_design, :canvas_width, :canvas_height, :currency)
		ON CONFLICT(id) DO UPDATE SET
			flat_addon = excluded.flat_addon,
			library_access = excluded.library_access,
			embroidery_text = excluded.embroidery_text,
			embroidery_design = excluded.embroidery_design,
			canvas_width = excluded.canvas_width,
			canvas_height = excluded.canvas_height,
			currency = excluded.currency,
			updated_at = CURRENT_TIMESTAMP
	`, ar); err != nil {
		return fmt.Errorf("save addon_rates: %w", err)
	}
	return nil
}

// ListDesigns returns active library designs, optionally filtered by category.
func (s *Store) ListDesigns(ctx context.Context, category string) ([]Design, error) {
	designs := make([]Design, 0)
	if err := s.db.SelectContext(ctx, &designs, `
		SELECT id, name, category, image_path, price, active
		FROM library_designs
		WHERE active = TRUE AND (? = '' OR category = ?)
		ORDER BY category, name
	`, category, category); err != nil {
		return nil, fmt.Errorf("query library designs: %w", err)
	}
	return designs, nil
}

// ListAllDesigns returns every library design, inactive ones included.
func (s *Store) ListAllDesigns(ctx context.Context) ([]Design, error) {
	designs := make([]Design, 0)
	if err := s.db.SelectContext(ctx, &designs, `
		SELECT id, name, category, image_path, price, active
		FROM library_designs
		ORDER BY category, name
	`); err != nil {
		return nil, fmt.Errorf("query library designs: %w", err)
	}
	return designs, nil
}

// Design returns one library design by id.
func (s *Store) Design(ctx context.Context, id string) (Design, error) {
	var d Design
	err := s.db.GetContext(ctx, &d, `
		SELECT id, name, category, image_path, price, active
		FROM library_designs
		WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Design{}, fmt.Errorf("design %s: %w", id, ErrNotFound)
		}
		return Design{}, fmt.Errorf("query design %s: %w", id, err)
	}
	return d, nil
}

// SaveDesign inserts or updates a library design.
func (s *Store) SaveDesign(ctx context.Context, d Design) error {
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO library_designs (id, name, category, image_path, price, active)
		VALUES (:id, :name, :category, :image_path, :price, :active)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			image_path = excluded.image_path,
			price = excluded.price,
			active = excluded.active
	`, d); err != nil {
		return fmt.Errorf("save design %s: %w", d.ID, err)
	}
	return nil
}
