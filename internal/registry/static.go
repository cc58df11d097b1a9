package registry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/vesselwizard/model"
)

// StaticUnit is one entry of a static registry file.
type StaticUnit struct {
	model.MarineUnit `yaml:",inline"`

	Owners   []string                `yaml:"owners"`
	Mortgage *model.MortgageStatus   `yaml:"mortgage"`
	Issues   []model.ComplianceIssue `yaml:"issues"`
}

// StaticFile is the document read by LoadStatic.
type StaticFile struct {
	Units      []StaticUnit     `yaml:"units"`
	Categories []model.Category `yaml:"categories"`
}

// Static is an in-memory MarineRegistry. It backs local development and
// tests; it never fails.
type Static struct {
	units      map[string]StaticUnit
	order      []string
	categories []model.Category
}

// NewStatic builds a Static registry from f.
func NewStatic(f StaticFile) (*Static, error) {
	s := &Static{units: make(map[string]StaticUnit, len(f.Units)), categories: f.Categories}
	for _, u := range f.Units {
		if u.ID == "" {
			return nil, fmt.Errorf("registry: static unit %q has no id", u.Name)
		}
		if _, dup := s.units[u.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate static unit %q", u.ID)
		}
		s.units[u.ID] = u
		s.order = append(s.order, u.ID)
	}
	return s, nil
}

// LoadStatic reads a static registry from a YAML file.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}
	var f StaticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: parsing %s: %w", path, err)
	}
	return NewStatic(f)
}

// FetchUnitsForUser returns the units owned by actorID in file order.
func (s *Static) FetchUnitsForUser(_ context.Context, actorID string) ([]model.MarineUnit, error) {
	var out []model.MarineUnit
	for _, id := range s.order {
		u := s.units[id]
		if owns(u, actorID) {
			out = append(out, u.MarineUnit)
		}
	}
	return out, nil
}

// FetchUnit returns the unit or ErrUnitNotFound.
func (s *Static) FetchUnit(_ context.Context, unitID string) (model.MarineUnit, error) {
	u, ok := s.units[unitID]
	if !ok {
		return model.MarineUnit{}, ErrUnitNotFound
	}
	return u.MarineUnit, nil
}

// CheckOwnership reports whether actorID is listed as an owner.
func (s *Static) CheckOwnership(_ context.Context, unitID, actorID string) (bool, error) {
	u, ok := s.units[unitID]
	return ok && owns(u, actorID), nil
}

// MortgageStatus returns the configured mortgage, if any.
func (s *Static) MortgageStatus(_ context.Context, unitID string) (model.MortgageStatus, error) {
	u, ok := s.units[unitID]
	if !ok || u.Mortgage == nil {
		return model.MortgageStatus{}, nil
	}
	return *u.Mortgage, nil
}

// Compliance returns the configured issues sorted by recording time.
func (s *Static) Compliance(_ context.Context, unitID string) (model.ComplianceReport, error) {
	u := s.units[unitID]
	issues := append([]model.ComplianceIssue(nil), u.Issues...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].RecordedAt.Before(issues[j].RecordedAt) })
	return model.ComplianceReport{UnitID: unitID, Issues: issues}, nil
}

// FetchCategories returns the configured categories.
func (s *Static) FetchCategories(context.Context) ([]model.Category, error) {
	return append([]model.Category(nil), s.categories...), nil
}

func owns(u StaticUnit, actorID string) bool {
	for _, o := range u.Owners {
		if o == actorID {
			return true
		}
	}
	return false
}
