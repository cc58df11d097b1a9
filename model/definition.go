package model

// DomainDefinition is the root structure of a definition file. Each file
// declares the transactions (wizards) offered by one service domain.
type DomainDefinition struct {
	Domain       string                  `yaml:"domain"       json:"domain"`
	Version      string                  `yaml:"version"      json:"version"`
	Transactions []TransactionDefinition `yaml:"transactions" json:"transactions,omitempty"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path.
	SourceFile string `yaml:"-" json:"-"`
}

// TransactionDefinition describes one transaction wizard: its ordered steps
// and the eligibility rule set applied when a marine unit is selected.
type TransactionDefinition struct {
	Type         string           `yaml:"type"         json:"type"`
	Title        string           `yaml:"title"        json:"title"`
	Description  string           `yaml:"description"  json:"description,omitempty"`
	RuleSet      string           `yaml:"ruleset"      json:"ruleset,omitempty"`
	Capabilities []string         `yaml:"capabilities" json:"capabilities,omitempty"`
	Steps        []StepDefinition `yaml:"steps"        json:"steps"`
}

// StepDefinition describes a single wizard step. A step with When is only
// visited while the condition holds on the form data.
type StepDefinition struct {
	ID          string            `yaml:"id"          json:"id"`
	Title       string            `yaml:"title"       json:"title"`
	Description string            `yaml:"description" json:"description,omitempty"`
	When        string            `yaml:"when"        json:"when,omitempty"`
	Fields      []FieldDefinition `yaml:"fields"      json:"fields"`
	Rules       []RuleDefinition  `yaml:"rules"       json:"rules,omitempty"`
}

// FieldDefinition describes a single input of a step. Variant attributes are
// only meaningful for the field types that use them.
type FieldDefinition struct {
	ID          string         `yaml:"id"          json:"id"`
	Label       string         `yaml:"label"       json:"label"`
	Type        string         `yaml:"type"        json:"type"`
	Mandatory   bool           `yaml:"mandatory"   json:"mandatory,omitempty"`
	Default     string         `yaml:"default"     json:"default,omitempty"`
	Placeholder string         `yaml:"placeholder" json:"placeholder,omitempty"`
	Numeric     bool           `yaml:"numeric"     json:"numeric,omitempty"`
	Password    bool           `yaml:"password"    json:"password,omitempty"`
	MaxLength   int            `yaml:"max_length"  json:"max_length,omitempty"`
	Options     []StaticOption `yaml:"options"     json:"options,omitempty"`

	// AllowPastDates defaults to true when omitted.
	AllowPastDates *bool    `yaml:"allow_past_dates" json:"allow_past_dates,omitempty"`
	Length         int      `yaml:"length"           json:"length,omitempty"`
	CountryCode    string   `yaml:"country_code"     json:"country_code,omitempty"`
	Accept         []string `yaml:"accept"           json:"accept,omitempty"`
}

// StaticOption is a label/value pair for dropdowns, radio groups and
// multi-selects.
type StaticOption struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// Rule types understood by the rule builder.
const (
	RuleRequiredWhenPositive = "required_when_positive"
	RuleRequiredWhen         = "required_when"
	RuleFieldsMatch          = "fields_match"
	RuleDateOrder            = "date_order"
)

// RuleDefinition declares a cross-field or cross-step rule attached to a step.
//
// required_when_positive and required_when are cross-step rules: Trigger and
// Required name fields that may live on any step of the transaction.
// fields_match and date_order are same-step rules over Fields.
type RuleDefinition struct {
	ID        string   `yaml:"id"        json:"id"`
	Type      string   `yaml:"type"      json:"type"`
	Trigger   string   `yaml:"trigger"   json:"trigger,omitempty"`
	Required  string   `yaml:"required"  json:"required,omitempty"`
	Condition string   `yaml:"condition" json:"condition,omitempty"`
	Fields    []string `yaml:"fields"    json:"fields,omitempty"`
	Message   string   `yaml:"message"   json:"message,omitempty"`
}
