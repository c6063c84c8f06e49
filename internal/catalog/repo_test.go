package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/store"
)

func newRepo(t *testing.T) (*catalog.Repository, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return catalog.NewRepository(st.DB()), st
}

func TestBulkImportAndGet(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	n, err := repo.BulkImport(ctx, []catalog.Product{
		{ProductName: "Mouse Gamer", BrandCapitalized: "Logitech", SKU: "LG-1"},
		{ProductName: "Teclado", BrandLower: "redragon"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := repo.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Mouse Gamer", got.ProductName)
	assert.Equal(t, "Logitech", got.BrandCapitalized)
	assert.Equal(t, "LG-1", got.SKU)
	assert.Equal(t, catalog.ValidationPending, got.ValidationStatus)
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Get(context.Background(), 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAll_OrderedByID(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{
		{ProductName: "c"}, {ProductName: "a"}, {ProductName: "b"},
	})
	require.NoError(t, err)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID)
	}
}

func TestList_Search(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{
		{ProductName: "Mouse Gamer", BrandCapitalized: "Logitech"},
		{ProductName: "Teclado", BrandCapitalized: "Redragon", Model: "K552"},
		{ProductName: "Parlante", BrandCapitalized: "Sony"},
	})
	require.NoError(t, err)

	byName, err := repo.List(ctx, "Mouse", 0, 10)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Mouse Gamer", byName[0].ProductName)

	byModel, err := repo.List(ctx, "K552", 0, 10)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, "Teclado", byModel[0].ProductName)
}

func TestMatching(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{
		{ProductName: "Mouse Gamer", BrandCapitalized: "Logitech"},
		{ProductName: "Teclado", BrandCapitalized: "Redragon"},
		{ProductName: "Parlante", BrandCapitalized: "Sony"},
	})
	require.NoError(t, err)

	all, err := repo.Matching(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byBrand, err := repo.Matching(ctx, "Redragon")
	require.NoError(t, err)
	require.Len(t, byBrand, 1)
	assert.Equal(t, "Teclado", byBrand[0].ProductName)
}

func TestUpdateFields(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{{ProductName: "widget"}})
	require.NoError(t, err)
	all, err := repo.All(ctx)
	require.NoError(t, err)
	id := all[0].ID

	err = repo.UpdateFields(ctx, id, map[string]string{
		"product_name":      "Widget Pro",
		"brand_capitalized": "Acme",
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Widget Pro", got.ProductName)
	assert.Equal(t, "Acme", got.BrandCapitalized)
}

func TestUpdateFields_UnknownFieldRejected(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{{ProductName: "widget"}})
	require.NoError(t, err)
	all, err := repo.All(ctx)
	require.NoError(t, err)

	err = repo.UpdateFields(ctx, all[0].ID, map[string]string{"no_such_field": "x"})
	assert.ErrorIs(t, err, catalog.ErrUnknownField)

	// Nothing was written.
	got, err := repo.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "widget", got.ProductName)
}

func TestSetField_DeletedRecord(t *testing.T) {
	repo, st := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{{ProductName: "widget"}})
	require.NoError(t, err)
	all, err := repo.All(ctx)
	require.NoError(t, err)
	id := all[0].ID

	require.NoError(t, repo.Delete(ctx, id))

	exists, err := repo.SetField(ctx, st.DB(), id, "product_name", "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDistinctValues(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{
		{BrandCapitalized: "Sony"},
		{BrandCapitalized: "sony"},
		{BrandCapitalized: "Sony"},
		{BrandCapitalized: ""},
	})
	require.NoError(t, err)

	values, err := repo.DistinctValues(ctx, "brand_capitalized")
	require.NoError(t, err)
	// Blank is excluded, exact duplicates collapse, case is preserved.
	assert.Equal(t, []string{"Sony", "sony"}, values)
}

func TestPurgeAll(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{{ProductName: "a"}, {ProductName: "b"}})
	require.NoError(t, err)

	products, rules, err := repo.PurgeAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), products)
	assert.Equal(t, int64(0), rules)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFieldForHeader(t *testing.T) {
	// The misspelled source headers are part of the contract.
	cases := map[string]string{
		"CODIGO UNIVERSAL DEL PRODRUCTO": "product_code_universal_1",
		"Mtivo GTIN vacio":               "gtin_empty_reason_1",
		"EQUIMAPIENTO":                   "equipment",
		"  EQUIMAPIENTO  ":               "equipment",
	}
	for header, want := range cases {
		field, ok := catalog.FieldForHeader(header)
		require.True(t, ok, "header %q not recognized", header)
		assert.Equal(t, want, field, "header %q", header)
	}

	_, ok := catalog.FieldForHeader("Unknown Column")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.BulkImport(ctx, []catalog.Product{
		{ProductName: "a", BrandCapitalized: "Sony", SKU: "S1", GTIN: "123"},
		{ProductName: "b", BrandCapitalized: "Sony", Barcode: "999"},
		{ProductName: "c", BrandCapitalized: "LG"},
	})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 2, stats.UniqueBrands)
	assert.Equal(t, 1, stats.WithSKU)
	assert.Equal(t, 1, stats.WithBarcode)
	assert.Equal(t, 1, stats.WithGTIN)
	assert.Equal(t, 3, stats.ValidationStatus[catalog.ValidationPending])
	require.NotEmpty(t, stats.TopBrands)
	assert.Equal(t, "Sony", stats.TopBrands[0].Name)
	assert.Equal(t, 2, stats.TopBrands[0].Count)
}
