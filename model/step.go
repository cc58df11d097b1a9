package model

// StepDescriptor is one ordered step of a transaction wizard. It is built once
// per transaction type from its definition and never modified afterwards.
type StepDescriptor struct {
	ID          string
	Title       string
	Description string
	When        string
	Fields      []FieldDefinition
}

// NewStepDescriptor builds a descriptor from a step definition, failing when
// a field type is unknown or a field ID repeats within the step.
func NewStepDescriptor(def StepDefinition) (StepDescriptor, error) {
	seen := make(map[string]bool, len(def.Fields))
	fields := make([]FieldDefinition, len(def.Fields))
	for i, fd := range def.Fields {
		if _, err := ParseFieldKind(fd.Type); err != nil {
			return StepDescriptor{}, &ConfigurationError{Path: def.ID + "." + fd.ID, Message: err.Error()}
		}
		if seen[fd.ID] {
			return StepDescriptor{}, &ConfigurationError{Path: def.ID + "." + fd.ID, Message: "duplicate field id"}
		}
		seen[fd.ID] = true
		fields[i] = fd
	}
	return StepDescriptor{
		ID:          def.ID,
		Title:       def.Title,
		Description: def.Description,
		When:        def.When,
		Fields:      fields,
	}, nil
}

// Instantiate creates the step's fields, taking each value from data when
// present and the definition default otherwise.
func (s StepDescriptor) Instantiate(data FormData) []Field {
	fields := make([]Field, 0, len(s.Fields))
	for _, fd := range s.Fields {
		f, err := NewField(fd)
		if err != nil {
			// Descriptors are only built from definitions with known types.
			panic(err)
		}
		if v, ok := data.Get(fd.ID); ok {
			f = WithValue(f, v)
		}
		fields = append(fields, f)
	}
	return fields
}

// HasField reports whether the step renders the field with the given ID.
func (s StepDescriptor) HasField(id string) bool {
	for _, fd := range s.Fields {
		if fd.ID == id {
			return true
		}
	}
	return false
}

// FieldOfKind returns the first field definition of the given kind.
func (s StepDescriptor) FieldOfKind(kind FieldKind) (FieldDefinition, bool) {
	for _, fd := range s.Fields {
		if k, _ := ParseFieldKind(fd.Type); k == kind {
			return fd, true
		}
	}
	return FieldDefinition{}, false
}

// FieldView is the JSON representation of a field sent to clients.
type FieldView struct {
	FieldBase
	Type           FieldKind      `json:"type"`
	Numeric        bool           `json:"numeric,omitempty"`
	Password       bool           `json:"password,omitempty"`
	MaxLength      int            `json:"max_length,omitempty"`
	Options        []StaticOption `json:"options,omitempty"`
	AllowPastDates *bool          `json:"allow_past_dates,omitempty"`
	Length         int            `json:"length,omitempty"`
	CountryCode    string         `json:"country_code,omitempty"`
	Accept         []string       `json:"accept,omitempty"`
	DisplayOnly    bool           `json:"display_only,omitempty"`
}

// ViewOf returns the client representation of f.
func ViewOf(f Field) FieldView {
	v := FieldView{FieldBase: f.Base(), Type: f.Kind(), DisplayOnly: f.Kind().DisplayOnly()}
	switch t := f.(type) {
	case TextField:
		v.Numeric, v.Password, v.MaxLength = t.Numeric, t.Password, t.MaxLength
	case DropDown:
		v.Options = t.Options
	case DatePicker:
		allow := t.AllowPastDates
		v.AllowPastDates = &allow
	case FileUpload:
		v.Accept = t.Accept
	case SelectableList:
		v.Options = t.Options
	case RadioGroup:
		v.Options = t.Options
	case PhoneNumberField:
		v.CountryCode = t.CountryCode
	case OTPField:
		v.Length = t.Length
	case MultiSelectDropDown:
		v.Options = t.Options
	case CheckBox, OwnerList, EngineList, SailorList, MarineUnitSelector, InfoCard, PaymentDetails:
	default:
		panic(UnhandledVariant("field", f))
	}
	return v
}

// StepView is the JSON representation of a rendered step.
type StepView struct {
	Index       int         `json:"index"`
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldView `json:"fields"`
	Violations  []Violation `json:"violations,omitempty"`
}
