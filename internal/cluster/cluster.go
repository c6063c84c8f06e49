// Package cluster groups near-duplicate authority values (brands, models,
// product names) into canonical candidate groups for operator review.
package cluster

import (
	"sort"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultTopN bounds how many candidates are scored into one group.
// Matches the upstream extract limit; keeps cost bounded on fields with
// thousands of distinct values.
const DefaultTopN = 50

// Group is one cluster of near-duplicate values. Main is the anchor the
// variations would normalize to; Variations always includes Main itself.
type Group struct {
	Main       string   `json:"main"`
	Variations []string `json:"variations"`
	Count      int      `json:"count"`
}

// member pairs a candidate with its similarity score for ranking.
type member struct {
	value string
	score int
}

// Cluster partitions values into groups of near-duplicates using
// token-sort-ratio similarity against the given threshold (0-100).
//
// Values are processed longest-first so longer strings become group anchors
// rather than being absorbed by a shorter substring match; equal lengths
// break ties lexically, which keeps the output identical for any input
// ordering. Every anchor is scored against the full value set, so a value
// can appear as a variation in more than one group; only anchoring is
// consumed. Singletons produce no group. Empty input produces zero groups.
func Cluster(values []string, threshold, topN int) []Group {
	if topN <= 0 {
		topN = DefaultTopN
	}

	// Stable anchor order: length desc, then lexical asc.
	candidates := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			candidates = append(candidates, v)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})

	var groups []Group
	visited := make(map[string]bool, len(candidates))

	for _, anchor := range candidates {
		if visited[anchor] {
			continue
		}

		// Score against the full set: values already grouped elsewhere stay
		// eligible as members so their association is never hidden.
		members := make([]member, 0, 8)
		for _, cand := range candidates {
			score := fuzzy.TokenSortRatio(anchor, cand)
			if score >= threshold {
				members = append(members, member{value: cand, score: score})
			}
		}

		// Rank by score desc; ties by length desc then lexical asc so the
		// top-N cut is deterministic.
		sort.Slice(members, func(i, j int) bool {
			if members[i].score != members[j].score {
				return members[i].score > members[j].score
			}
			if len(members[i].value) != len(members[j].value) {
				return len(members[i].value) > len(members[j].value)
			}
			return members[i].value < members[j].value
		})
		if len(members) > topN {
			members = members[:topN]
		}

		if len(members) > 1 {
			variations := make([]string, len(members))
			for i, m := range members {
				variations[i] = m.value
				visited[m.value] = true
			}
			groups = append(groups, Group{
				Main:       anchor,
				Variations: variations,
				Count:      len(variations),
			})
		} else {
			visited[anchor] = true
		}
	}

	return groups
}
