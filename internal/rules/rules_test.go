package rules_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/rules"
	"github.com/harmon-data/harmon/internal/store"
)

func newRepos(t *testing.T) (*rules.Repository, *catalog.Repository) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return rules.NewRepository(st.DB()), catalog.NewRepository(st.DB())
}

func TestSave_LiteralUpsert(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, rules.Rule{
		FieldName:       "brand_capitalized",
		OriginalValue:   "SONY CORP",
		NormalizedValue: "Sony",
	})
	require.NoError(t, err)

	// Re-saving the same (field, original) replaces the mapping instead of
	// stacking a second row.
	_, err = repo.Save(ctx, rules.Rule{
		FieldName:       "brand_capitalized",
		OriginalValue:   "SONY CORP",
		NormalizedValue: "Sony Corporation",
	})
	require.NoError(t, err)

	literal, err := repo.Literal(ctx, "brand_capitalized")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"SONY CORP": "Sony Corporation"}, literal)

	list, err := repo.List(ctx, "brand_capitalized")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSave_UnknownFieldRejected(t *testing.T) {
	repo, _ := newRepos(t)

	_, err := repo.Save(context.Background(), rules.Rule{
		FieldName:       "no_such_field",
		OriginalValue:   "a",
		NormalizedValue: "b",
	})
	assert.ErrorIs(t, err, catalog.ErrUnknownField)
}

func TestSave_RegexRulesStack(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	// Regex rules with the same pattern are allowed to coexist; only
	// literal rules are unique per (field, original).
	for _, normalized := range []string{"x", "y"} {
		_, err := repo.Save(ctx, rules.Rule{
			FieldName:       "product_name",
			OriginalValue:   `\s+`,
			NormalizedValue: normalized,
			IsRegex:         true,
		})
		require.NoError(t, err)
	}

	regex, err := repo.Regex(ctx, "product_name")
	require.NoError(t, err)
	require.Len(t, regex, 2)
	assert.Equal(t, "x", regex[0].NormalizedValue)
	assert.Equal(t, "y", regex[1].NormalizedValue)

	literal, err := repo.Literal(ctx, "product_name")
	require.NoError(t, err)
	assert.Empty(t, literal)
}

func TestBulkCreate_SkipsCanonical(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	n, err := repo.BulkCreate(ctx, "brand_capitalized", "Sony",
		[]string{"sony", "SONY", "Sony", "Sonny"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	literal, err := repo.Literal(ctx, "brand_capitalized")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"sony":  "Sony",
		"SONY":  "Sony",
		"Sonny": "Sony",
	}, literal)
}

func TestList_FilterAndOrder(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, rules.Rule{FieldName: "model", OriginalValue: "a", NormalizedValue: "A"})
	require.NoError(t, err)
	_, err = repo.Save(ctx, rules.Rule{FieldName: "brand_capitalized", OriginalValue: "b", NormalizedValue: "B"})
	require.NoError(t, err)
	_, err = repo.Save(ctx, rules.Rule{FieldName: "model", OriginalValue: "c", NormalizedValue: "C"})
	require.NoError(t, err)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].OriginalValue) // newest first

	models, err := repo.List(ctx, "model")
	require.NoError(t, err)
	require.Len(t, models, 2)
	for _, r := range models {
		assert.Equal(t, "model", r.FieldName)
	}
}

func TestDelete(t *testing.T) {
	repo, _ := newRepos(t)
	ctx := context.Background()

	id, err := repo.Save(ctx, rules.Rule{FieldName: "model", OriginalValue: "a", NormalizedValue: "A"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), catalog.ErrNotFound)
}

func TestApplyAll_TouchesOnlyAuthorityFields(t *testing.T) {
	repo, cat := newRepos(t)
	ctx := context.Background()

	_, err := cat.BulkImport(ctx, []catalog.Product{
		{ProductName: "Mouse", BrandCapitalized: "sony", Status: "old"},
		{ProductName: "Teclado", BrandCapitalized: "sony"},
		{ProductName: "Parlante", BrandCapitalized: "Sony"},
	})
	require.NoError(t, err)

	_, err = repo.Save(ctx, rules.Rule{
		FieldName: "brand_capitalized", OriginalValue: "sony", NormalizedValue: "Sony",
	})
	require.NoError(t, err)

	// status is not in the authority allow-list: the rule is counted but
	// never applied.
	_, err = repo.Save(ctx, rules.Rule{
		FieldName: "status", OriginalValue: "old", NormalizedValue: "new",
	})
	require.NoError(t, err)

	res, err := repo.ApplyAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RulesApplied)
	assert.Equal(t, 2, res.RecordsUpdated)

	all, err := cat.All(ctx)
	require.NoError(t, err)
	for _, p := range all {
		assert.Equal(t, "Sony", p.BrandCapitalized)
	}
	assert.Equal(t, "old", all[0].Status)
}

func TestApplyAll_ScopedToField(t *testing.T) {
	repo, cat := newRepos(t)
	ctx := context.Background()

	_, err := cat.BulkImport(ctx, []catalog.Product{
		{ProductName: "old name", Model: "old model"},
	})
	require.NoError(t, err)

	_, err = repo.Save(ctx, rules.Rule{
		FieldName: "product_name", OriginalValue: "old name", NormalizedValue: "new name",
	})
	require.NoError(t, err)
	_, err = repo.Save(ctx, rules.Rule{
		FieldName: "model", OriginalValue: "old model", NormalizedValue: "new model",
	})
	require.NoError(t, err)

	res, err := repo.ApplyAll(ctx, "model")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RulesApplied)
	assert.Equal(t, 1, res.RecordsUpdated)

	all, err := cat.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "old name", all[0].ProductName)
	assert.Equal(t, "new model", all[0].Model)
}
