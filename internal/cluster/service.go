package cluster

import (
	"context"
	"fmt"

	"github.com/harmon-data/harmon/internal/catalog"
)

// DistinctSource supplies the distinct non-blank values of one field.
// Implemented by catalog.Repository.
type DistinctSource interface {
	DistinctValues(ctx context.Context, field string) ([]string, error)
}

// RuleSource supplies the active literal rules for one field.
// Implemented by rules.Repository.
type RuleSource interface {
	Literal(ctx context.Context, field string) (map[string]string, error)
}

// Service runs clustering over catalog fields and annotates the results
// with existing normalization rules.
type Service struct {
	catalog DistinctSource
	rules   RuleSource
	topN    int
}

// NewService creates a clustering service. topN bounds per-group scoring;
// pass 0 for DefaultTopN.
func NewService(catalog DistinctSource, rules RuleSource, topN int) *Service {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Service{catalog: catalog, rules: rules, topN: topN}
}

// Groups clusters the distinct values of an authority field. Unsupported
// fields are rejected before touching the catalog.
func (s *Service) Groups(ctx context.Context, field string, threshold int) ([]Group, error) {
	if !catalog.IsAuthorityField(field) {
		return nil, fmt.Errorf("field %q is not supported for disambiguation", field)
	}
	values, err := s.catalog.DistinctValues(ctx, field)
	if err != nil {
		return nil, err
	}
	groups := Cluster(values, threshold, s.topN)
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}

// AnnotatedGroup is a Group plus its normalization-rule status.
type AnnotatedGroup struct {
	Group
	HasRules   bool   `json:"has_rules"`
	ResolvedTo string `json:"resolved_to,omitempty"`
}

// AuthorityView summarizes one field's disambiguation state.
type AuthorityView struct {
	Groups        []AnnotatedGroup `json:"groups"`
	TotalGroups   int              `json:"total_groups"`
	TotalRules    int              `json:"total_rules"`
	PendingGroups int              `json:"pending_groups"`
}

// Authority clusters one field and annotates each group with whether any of
// its variations already has a literal rule, and what it resolves to.
func (s *Service) Authority(ctx context.Context, field string, threshold int) (*AuthorityView, error) {
	groups, err := s.Groups(ctx, field, threshold)
	if err != nil {
		return nil, err
	}
	literal, err := s.rules.Literal(ctx, field)
	if err != nil {
		return nil, err
	}

	view := &AuthorityView{
		Groups:      make([]AnnotatedGroup, 0, len(groups)),
		TotalGroups: len(groups),
		TotalRules:  len(literal),
	}
	for _, g := range groups {
		ag := AnnotatedGroup{Group: g}
		for _, v := range g.Variations {
			if resolved, ok := literal[v]; ok {
				ag.HasRules = true
				ag.ResolvedTo = resolved
				break
			}
		}
		if !ag.HasRules {
			view.PendingGroups++
		}
		view.Groups = append(view.Groups, ag)
	}
	return view, nil
}
