package seed

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/forma/internal/pricing"
)

var materialNames = map[string]string{
	"180": "Forma Flow (180 GSM)",
	"240": "Forma Dense (240 GSM)",
}

type libraryDesign struct {
	id, name, category, image string
}

var defaultDesigns = []libraryDesign{
	{"sw1", "Street Style 1", "Streetwear", "/library_designs/swone.png"},
	{"sw2", "Street Style 2", "Streetwear", "/library_designs/swtwo.png"},
	{"di1", "Digital Ink 1", "Digital Ink", "/library_designs/dione.png"},
	{"di2", "Digital Ink 2", "Digital Ink", "/library_designs/ditwo.png"},
	{"min1", "Minimalist 1", "Minimalist", "/library_designs/minimalone.png"},
	{"an1", "Animal 1", "Animals", "/library_designs/animalone.png"},
	{"car1", "Car 1", "Cars", "/library_designs/carone.png"},
	{"viv1", "Vivid 1", "Vivid", "/library_designs/vividone.png"},
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way. Existing rows are never
// overwritten, so admin edits survive restarts.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := Stats{}
	rates := pricing.DefaultRates()

	steps := []func(*sql.Tx, pricing.Rates, *Stats) error{
		ensureMaterials,
		ensureSizes,
		ensurePrintRates,
		ensureAddonRates,
		ensureDesigns,
	}
	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		return Stats{}, err
	}
	for _, step := range steps {
		if err := step(tx, rates, &stats); err != nil {
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func insertIgnore(tx *sql.Tx, stats *Stats, what, query string, args ...any) error {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	stats.Inserts += int(n)
	return nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return insertIgnore(tx, stats, "admin user",
		`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash))
}

func ensureMaterials(tx *sql.Tx, rates pricing.Rates, stats *Stats) error {
	for key, cost := range rates.BaseCosts {
		name, ok := materialNames[key]
		if !ok {
			name = key + " GSM"
		}
		if err := insertIgnore(tx, stats, "material "+key, `
			INSERT INTO materials (material_key, name, base_cost, active)
			VALUES (?, ?, ?, TRUE)
			ON CONFLICT(material_key) DO NOTHING
		`, key, name, cost); err != nil {
			return err
		}
	}
	return nil
}

func ensureSizes(tx *sql.Tx, rates pricing.Rates, stats *Stats) error {
	for i, size := range pricing.Sizes {
		if err := insertIgnore(tx, stats, "size "+string(size), `
			INSERT INTO size_areas (size, max_area_sqin, sort_order)
			VALUES (?, ?, ?)
			ON CONFLICT(size) DO NOTHING
		`, string(size), rates.MaxPrintArea[size], i); err != nil {
			return err
		}
	}
	return nil
}

func ensurePrintRates(tx *sql.Tx, rates pricing.Rates, stats *Stats) error {
	for _, size := range pricing.Sizes {
		for _, bucket := range pricing.Buckets {
			if err := insertIgnore(tx, stats, "print rate", `
				INSERT INTO print_rates (size, bucket, price)
				VALUES (?, ?, ?)
				ON CONFLICT(size, bucket) DO NOTHING
			`, string(size), bucket.String(), rates.PrintPrices[size][bucket]); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAddonRates(tx *sql.Tx, rates pricing.Rates, stats *Stats) error {
	return insertIgnore(tx, stats, "addon rates singleton", `
		INSERT INTO addon_rates (
			id,
			flat_addon,
			library_access,
			embroidery_text,
			embroidery_design,
			canvas_width,
			canvas_height,
			currency
		)
		VALUES (1, ?, ?, ?, ?, ?, ?, 'INR')
		ON CONFLICT(id) DO NOTHING
	`, rates.FlatAddon, rates.LibraryAccess, rates.EmbroideryText, rates.EmbroideryDesign, rates.CanvasWidth, rates.CanvasHeight)
}

func ensureDesigns(tx *sql.Tx, rates pricing.Rates, stats *Stats) error {
	for _, d := range defaultDesigns {
		if err := insertIgnore(tx, stats, "design "+d.id, `
			INSERT INTO library_designs (id, name, category, image_path, price, active)
			VALUES (?, ?, ?, ?, ?, TRUE)
			ON CONFLICT(id) DO NOTHING
		`, d.id, d.name, d.category, d.image, rates.LibraryAccess); err != nil {
			return err
		}
	}
	return nil
}
