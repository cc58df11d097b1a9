package model

import (
	"context"
	"errors"
	"time"
)

// Registration statuses reported by the marine registry.
const (
	RegistrationPermanent = "PERMANENT"
	RegistrationTemporary = "TEMPORARY"
	RegistrationSuspended = "SUSPENDED"
	RegistrationCancelled = "CANCELLED"
)

// MarineUnit is a vessel or other marine unit as known to the registry.
type MarineUnit struct {
	ID                 string     `json:"id" yaml:"id"`
	Name               string     `json:"name" yaml:"name"`
	IMONumber          string     `json:"imo_number,omitempty" yaml:"imo_number"`
	CallSign           string     `json:"call_sign,omitempty" yaml:"call_sign"`
	RegistrationNumber string     `json:"registration_number,omitempty" yaml:"registration_number"`
	Port               string     `json:"port,omitempty" yaml:"port"`
	Type               string     `json:"type,omitempty" yaml:"type"`
	RegistrationStatus string     `json:"registration_status" yaml:"registration_status"`
	RegistrationExpiry *time.Time `json:"registration_expiry,omitempty" yaml:"registration_expiry"`
}

// MortgageStatus describes whether a unit is currently mortgaged.
type MortgageStatus struct {
	Mortgaged bool   `json:"mortgaged" yaml:"mortgaged"`
	Bank      string `json:"bank,omitempty" yaml:"bank"`
	Reference string `json:"reference,omitempty" yaml:"reference"`
}

// Compliance issue kinds.
const (
	IssueViolation = "VIOLATION"
	IssueDetention = "DETENTION"
)

// ComplianceIssue is one open violation or detention against a unit.
type ComplianceIssue struct {
	ID          string    `json:"id" yaml:"id"`
	Kind        string    `json:"kind" yaml:"kind"`
	Description string    `json:"description" yaml:"description"`
	Authority   string    `json:"authority,omitempty" yaml:"authority"`
	RecordedAt  time.Time `json:"recorded_at" yaml:"recorded_at"`
}

// ComplianceReport lists the open issues of a unit.
type ComplianceReport struct {
	UnitID string            `json:"unit_id" yaml:"unit_id"`
	Issues []ComplianceIssue `json:"issues" yaml:"issues"`
}

// Violations returns the open violations.
func (r ComplianceReport) Violations() []ComplianceIssue {
	return r.byKind(IssueViolation)
}

// Detentions returns the open detentions.
func (r ComplianceReport) Detentions() []ComplianceIssue {
	return r.byKind(IssueDetention)
}

func (r ComplianceReport) byKind(kind string) []ComplianceIssue {
	var out []ComplianceIssue
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// Category is a marine unit category offered by the registry.
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ErrUnitNotFound is returned by MarineRegistry.FetchUnit when the unit is
// unknown to the registry.
var ErrUnitNotFound = errors.New("marine unit not found")

// MarineRegistry is the external collaborator that answers questions about
// marine units. Every method may perform a network round trip; errors are
// transient failures, never business verdicts.
type MarineRegistry interface {
	FetchUnitsForUser(ctx context.Context, actorID string) ([]MarineUnit, error)
	FetchUnit(ctx context.Context, unitID string) (MarineUnit, error)
	CheckOwnership(ctx context.Context, unitID, actorID string) (bool, error)
	MortgageStatus(ctx context.Context, unitID string) (MortgageStatus, error)
	Compliance(ctx context.Context, unitID string) (ComplianceReport, error)
	FetchCategories(ctx context.Context) ([]Category, error)
}

// MessageResolver resolves a localized message by key. Unknown keys resolve
// to the key itself.
type MessageResolver interface {
	Resolve(ctx context.Context, key string) string
}

// MessageResolverFunc adapts a function to MessageResolver.
type MessageResolverFunc func(ctx context.Context, key string) string

// Resolve calls f.
func (f MessageResolverFunc) Resolve(ctx context.Context, key string) string {
	return f(ctx, key)
}
