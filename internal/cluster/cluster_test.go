package cluster_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmon-data/harmon/internal/cluster"
)

var brandValues = []string{"Samsung", "sony", "LG", "SONY", "Samsun", "Sony"}

func TestCluster_GroupsNearDuplicates(t *testing.T) {
	groups := cluster.Cluster(brandValues, 85, 0)

	require.Len(t, groups, 2)
	assert.Equal(t, "Samsung", groups[0].Main)
	assert.Equal(t, []string{"Samsung", "Samsun"}, groups[0].Variations)
	assert.Equal(t, "SONY", groups[1].Main)
	assert.Equal(t, []string{"SONY", "Sony", "sony"}, groups[1].Variations)
	assert.Equal(t, 3, groups[1].Count)
}

func TestCluster_DeterministicUnderReordering(t *testing.T) {
	want := cluster.Cluster(brandValues, 85, 0)

	permutations := [][]string{
		{"sony", "LG", "Samsun", "Sony", "SONY", "Samsung"},
		{"LG", "SONY", "Samsung", "sony", "Sony", "Samsun"},
		{"Samsun", "Samsung", "Sony", "sony", "SONY", "LG"},
	}
	for _, perm := range permutations {
		assert.Equal(t, want, cluster.Cluster(perm, 85, 0))
	}
}

func TestCluster_ThresholdMonotonicity(t *testing.T) {
	grouped := func(threshold int) int {
		n := 0
		for _, g := range cluster.Cluster(brandValues, threshold, 0) {
			n += g.Count
		}
		return n
	}

	// Raising the threshold can only shrink group membership.
	assert.GreaterOrEqual(t, grouped(80), grouped(90))
	assert.GreaterOrEqual(t, grouped(90), grouped(95))

	// "Samsun" scores 92 against "Samsung": in at 90, out at 95.
	assert.Len(t, cluster.Cluster(brandValues, 95, 0), 1)
}

func TestCluster_TopNCapsGroupSize(t *testing.T) {
	// All four score 50 against each other, so each unconsumed anchor
	// forms a group capped at two members.
	groups := cluster.Cluster([]string{"aa", "ab", "ac", "ad"}, 40, 2)

	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.LessOrEqual(t, g.Count, 2)
	}
}

func TestCluster_GroupedValueStaysVisibleToLaterAnchors(t *testing.T) {
	// The middle value scores 84 against the long one and 87 against the
	// short one, while long vs short is only 71. The long anchor absorbs
	// the middle value first; the short anchor must still surface its own
	// association with it rather than collapse to a suppressed singleton.
	values := []string{"abcdefghij", "abcdefghijklm", "abcdefghijklmnopqr"}

	groups := cluster.Cluster(values, 80, 0)

	require.Len(t, groups, 2)
	assert.Equal(t, "abcdefghijklmnopqr", groups[0].Main)
	assert.Equal(t, []string{"abcdefghijklmnopqr", "abcdefghijklm"}, groups[0].Variations)
	assert.Equal(t, "abcdefghij", groups[1].Main)
	assert.Equal(t, []string{"abcdefghij", "abcdefghijklm"}, groups[1].Variations)
}

func TestCluster_SingletonsSuppressed(t *testing.T) {
	groups := cluster.Cluster([]string{"Alpha", "Zebra"}, 90, 0)
	assert.Empty(t, groups)
}

func TestCluster_EmptyAndBlankInput(t *testing.T) {
	assert.Empty(t, cluster.Cluster(nil, 85, 0))
	assert.Empty(t, cluster.Cluster([]string{"", "", ""}, 85, 0))
}

func TestCluster_Golden(t *testing.T) {
	groups := cluster.Cluster(brandValues, 85, 0)

	data, err := json.MarshalIndent(groups, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "brand_clusters", data)
}

type fakeDistinct []string

func (f fakeDistinct) DistinctValues(ctx context.Context, field string) ([]string, error) {
	return f, nil
}

type fakeRules map[string]string

func (f fakeRules) Literal(ctx context.Context, field string) (map[string]string, error) {
	return f, nil
}

func TestService_RejectsNonAuthorityField(t *testing.T) {
	svc := cluster.NewService(fakeDistinct{}, fakeRules{}, 0)

	_, err := svc.Groups(context.Background(), "sku", 85)
	assert.Error(t, err)
}

func TestService_AuthorityAnnotation(t *testing.T) {
	svc := cluster.NewService(
		fakeDistinct{"Sony", "sony", "LG"},
		fakeRules{"sony": "Sony"},
		0,
	)

	view, err := svc.Authority(context.Background(), "brand_capitalized", 85)
	require.NoError(t, err)

	assert.Equal(t, 1, view.TotalGroups)
	assert.Equal(t, 1, view.TotalRules)
	assert.Equal(t, 0, view.PendingGroups)
	require.Len(t, view.Groups, 1)
	assert.True(t, view.Groups[0].HasRules)
	assert.Equal(t, "Sony", view.Groups[0].ResolvedTo)
}

func TestService_AuthorityPendingGroup(t *testing.T) {
	svc := cluster.NewService(fakeDistinct{"Sony", "sony"}, fakeRules{}, 0)

	view, err := svc.Authority(context.Background(), "brand_capitalized", 85)
	require.NoError(t, err)

	assert.Equal(t, 1, view.PendingGroups)
	assert.False(t, view.Groups[0].HasRules)
	assert.Empty(t, view.Groups[0].ResolvedTo)
}
