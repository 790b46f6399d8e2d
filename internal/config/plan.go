package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
)

// Plan is a declarative list of scopes to track, loaded from a YAML file.
// The scheduler walks the entries in order; disjoint scopes may be run
// concurrently.
type Plan struct {
	Scopes []PlanScope `yaml:"scopes"`
}

// PlanScope is one tracked scope with its optional search filters.
type PlanScope struct {
	Region     string `yaml:"region"`
	Kind       string `yaml:"kind"`
	MinPrice   int    `yaml:"min_price,omitempty"`
	MaxPrice   int    `yaml:"max_price,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("plan", "reading plan file", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.NewConfigError("plan", "parsing plan file", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks every entry. Duplicate scopes are rejected: two runs over
// the same scope must not execute in one plan pass.
func (p *Plan) Validate() error {
	if len(p.Scopes) == 0 {
		return errors.NewConfigError("plan", "plan must name at least one scope", nil)
	}

	seen := make(map[string]struct{}, len(p.Scopes))
	for _, s := range p.Scopes {
		scope, err := s.Scope()
		if err != nil {
			return err
		}
		key := scope.String()
		if _, dup := seen[key]; dup {
			return errors.NewConfigError("plan", "duplicate scope "+key, nil)
		}
		seen[key] = struct{}{}

		if s.MinPrice < 0 || s.MaxPrice < 0 {
			return errors.NewConfigError("plan", "prices must not be negative in scope "+key, nil)
		}
		if s.MaxPrice > 0 && s.MinPrice > s.MaxPrice {
			return errors.NewConfigError("plan", "min_price exceeds max_price in scope "+key, nil)
		}
	}
	return nil
}

// Scope resolves the entry's normalized scope.
func (s PlanScope) Scope() (listing.Scope, error) {
	kind, err := listing.ParseKind(s.Kind)
	if err != nil {
		return listing.Scope{}, errors.NewConfigError("plan", "invalid kind for region "+s.Region, err)
	}
	scope := listing.Scope{Region: listing.NormalizeRegion(s.Region), Kind: kind}
	if err := scope.Validate(); err != nil {
		return listing.Scope{}, err
	}
	return scope, nil
}

// Filters builds the search filters for this entry.
func (s PlanScope) Filters() (listing.Filters, error) {
	scope, err := s.Scope()
	if err != nil {
		return listing.Filters{}, err
	}
	return listing.Filters{
		Region:     scope.Region,
		Kind:       scope.Kind,
		MinPrice:   s.MinPrice,
		MaxPrice:   s.MaxPrice,
		MaxResults: s.MaxResults,
	}, nil
}
