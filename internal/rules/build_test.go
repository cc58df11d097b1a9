package rules

import (
	"testing"

	"github.com/pitabwire/vesselwizard/model"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		def     model.RuleDefinition
		wantErr bool
		cross   bool
	}{
		{
			name:  "required when positive",
			def:   model.RuleDefinition{ID: "r1", Type: model.RuleRequiredWhenPositive, Trigger: "mortgage_value", Required: "bank_name"},
			cross: true,
		},
		{
			name:    "required when positive missing trigger",
			def:     model.RuleDefinition{ID: "r1", Type: model.RuleRequiredWhenPositive, Required: "bank_name"},
			wantErr: true,
		},
		{
			name:  "required when",
			def:   model.RuleDefinition{ID: "r2", Type: model.RuleRequiredWhen, Condition: "tonnage >= 500", Required: "imo_number"},
			cross: true,
		},
		{
			name:    "required when bad condition",
			def:     model.RuleDefinition{ID: "r2", Type: model.RuleRequiredWhen, Condition: "tonnage", Required: "imo_number"},
			wantErr: true,
		},
		{
			name: "fields match",
			def:  model.RuleDefinition{ID: "r3", Type: model.RuleFieldsMatch, Fields: []string{"email", "email_confirm"}},
		},
		{
			name:    "fields match wrong arity",
			def:     model.RuleDefinition{ID: "r3", Type: model.RuleFieldsMatch, Fields: []string{"email"}},
			wantErr: true,
		},
		{
			name: "date order",
			def:  model.RuleDefinition{ID: "r4", Type: model.RuleDateOrder, Fields: []string{"from", "to"}},
		},
		{
			name:    "unknown type",
			def:     model.RuleDefinition{ID: "r5", Type: "telepathy"},
			wantErr: true,
		},
		{
			name:    "missing id",
			def:     model.RuleDefinition{Type: model.RuleFieldsMatch, Fields: []string{"a", "b"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Build(tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if r.ID() != tt.def.ID {
				t.Errorf("ID() = %q, want %q", r.ID(), tt.def.ID)
			}
			_, isCross := r.(CrossStepRule)
			if isCross != tt.cross {
				t.Errorf("cross-step = %v, want %v", isCross, tt.cross)
			}
			if len(ReferencedFields(r)) != 2 {
				t.Errorf("ReferencedFields() = %v, want two fields", ReferencedFields(r))
			}
		})
	}
}

func TestBuild_defaultMessage(t *testing.T) {
	r, err := Build(model.RuleDefinition{ID: "r", Type: model.RuleRequiredWhenPositive, Trigger: "mortgage_value", Required: "bank_name"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	res := r.(CrossStepRule).Validate(model.NewFormData("mortgage_value", "10"))
	inv, ok := res.(model.Invalid)
	if !ok {
		t.Fatalf("Validate() = %T, want Invalid", res)
	}
	if inv.Message == "" {
		t.Error("default message should not be empty")
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr    string
		want    Condition
		wantErr bool
	}{
		{expr: "status == 'temporary'", want: Condition{Field: "status", Op: "==", Value: "temporary"}},
		{expr: `status != "cancelled"`, want: Condition{Field: "status", Op: "!=", Value: "cancelled"}},
		{expr: "tonnage >= 500", want: Condition{Field: "tonnage", Op: ">=", Value: "500"}},
		{expr: "tonnage <= 500", want: Condition{Field: "tonnage", Op: "<=", Value: "500"}},
		{expr: "tonnage > 0", want: Condition{Field: "tonnage", Op: ">", Value: "0"}},
		{expr: "tonnage < 10", want: Condition{Field: "tonnage", Op: "<", Value: "10"}},
		{expr: "tonnage > big", wantErr: true},
		{expr: "== 'x'", wantErr: true},
		{expr: "just words", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseCondition(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCondition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseCondition() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCondition_Eval(t *testing.T) {
	data := model.NewFormData("status", "temporary", "tonnage", "1,200", "name", "Nour")
	tests := []struct {
		expr string
		want bool
	}{
		{"status == 'temporary'", true},
		{"status != 'temporary'", false},
		{"tonnage > 1000", true},
		{"tonnage >= 1200", true},
		{"tonnage < 1200", false},
		{"tonnage <= 1199", false},
		{"name > 5", false},
		{"missing == ''", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCondition(tt.expr)
			if err != nil {
				t.Fatalf("ParseCondition() error = %v", err)
			}
			if got := c.Eval(data); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}
