package catalog

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/forma/internal/db"
	"github.com/Simplici0/forma/internal/migrations"
	"github.com/Simplici0/forma/internal/pricing"
	"github.com/Simplici0/forma/internal/seed"
)

func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(ctx, database.DB))
	_, err = seed.Run(ctx, database.DB, seed.Config{})
	require.NoError(t, err)

	return NewStore(database), database
}

func TestRatesMatchDefaultsAfterSeed(t *testing.T) {
	store, _ := newTestStore(t)

	rates, err := store.Rates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pricing.DefaultRates(), rates)
}

func TestRatesPriceLikeDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	rates, err := store.Rates(context.Background())
	require.NoError(t, err)

	cfg := pricing.Configuration{
		Size:        pricing.SizeM,
		MaterialKey: "180",
		Front:       &pricing.Customization{Kind: pricing.KindLibraryDesign, Placement: &pricing.Rect{Width: 330, Height: 488}},
	}
	assert.Equal(t, 659.0, pricing.Calculate(cfg, rates).UnitPrice)
}

func TestInactiveMaterialIsNotPriced(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMaterial(ctx, Material{Key: "240", Name: "Forma Dense", BaseCost: 650, Active: false}))

	rates, err := store.Rates(ctx)
	require.NoError(t, err)
	_, ok := rates.BaseCosts["240"]
	assert.False(t, ok)

	materials, err := store.ListMaterials(ctx)
	require.NoError(t, err)
	require.Len(t, materials, 2)
	assert.Equal(t, 650.0, materials[1].BaseCost)
}

func TestSavePrintRateUpdatesTable(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePrintRate(ctx, PrintRate{Size: "M", Bucket: "Full", Price: 250}))
	require.Error(t, store.SavePrintRate(ctx, PrintRate{Size: "M", Bucket: "2/3", Price: 10}))

	rates, err := store.Rates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, rates.PrintPrices[pricing.SizeM][pricing.BucketFull])
}

func TestSaveAddonRates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ar, err := store.AddonRates(ctx)
	require.NoError(t, err)
	ar.FlatAddon = 55
	require.NoError(t, store.SaveAddonRates(ctx, ar))

	rates, err := store.Rates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55.0, rates.FlatAddon)
	assert.Equal(t, 20.0, rates.LibraryAccess)
}

func TestAddonRatesMissingSingleton(t *testing.T) {
	store, database := newTestStore(t)
	_, err := database.Exec(`DELETE FROM addon_rates`)
	require.NoError(t, err)

	_, err = store.Rates(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDesigns(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	all, err := store.ListDesigns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 8)

	cars, err := store.ListDesigns(ctx, "Cars")
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "car1", cars[0].ID)

	require.NoError(t, store.SaveDesign(ctx, Design{ID: "car1", Name: "Car 1", Category: "Cars", ImagePath: "/x.png", Price: 20, Active: false}))
	cars, err = store.ListDesigns(ctx, "Cars")
	require.NoError(t, err)
	assert.Empty(t, cars)

	everything, err := store.ListAllDesigns(ctx)
	require.NoError(t, err)
	assert.Len(t, everything, 8)

	_, err = store.Design(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	d, err := store.Design(ctx, "car1")
	require.NoError(t, err)
	assert.False(t, d.Active)
}
