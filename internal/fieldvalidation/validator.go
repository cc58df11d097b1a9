// Package fieldvalidation implements the per-field correctness rules applied
// on every keystroke and before a step is submitted.
package fieldvalidation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pitabwire/vesselwizard/model"
)

// Failure codes, also used as message catalog keys.
const (
	CodeRequired       = "validation.required"
	CodeNumeric        = "validation.numeric"
	CodePasswordLength = "validation.password_length"
	CodeMaxLength      = "validation.max_length"
	CodeMustAccept     = "validation.must_accept"
	CodeListRequired   = "validation.list_required"
	CodeDateFormat     = "validation.date_format"
	CodeDatePast       = "validation.date_past"
	CodePhone          = "validation.phone"
	CodeOTP            = "validation.otp"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var defaultMessages = map[string]string{
	CodeRequired:       "This field is required",
	CodeNumeric:        "Only digits are allowed",
	CodePasswordLength: "Password must be at least 6 characters",
	CodeMaxLength:      "Value is too long",
	CodeMustAccept:     "This box must be checked",
	CodeListRequired:   "Add at least one entry",
	CodeDateFormat:     "Enter a date as YYYY-MM-DD",
	CodeDatePast:       "Date cannot be in the past",
	CodePhone:          "Enter a valid phone number",
	CodeOTP:            "Enter the code you received",
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the time source used for past-date checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithMessages sets the function translating a failure code into user text.
// When it returns the code unchanged the built-in English text is used.
func WithMessages(resolve func(code string) string) Option {
	return func(v *Validator) { v.resolve = resolve }
}

// Validator checks single field values. It holds no per-field state and is
// safe for concurrent use.
type Validator struct {
	now     func() time.Time
	resolve func(code string) string
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check evaluates f against the rules of its variant.
func (v *Validator) Check(f model.Field) model.ValidationResult {
	b := f.Base()
	value := strings.TrimSpace(b.Value)
	empty := value == ""

	switch t := f.(type) {
	case model.TextField:
		if empty {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		if t.Numeric && !allDigits(value) {
			return v.fail(CodeNumeric)
		}
		if t.Password && utf8.RuneCountInString(b.Value) < MinPasswordLength {
			return v.fail(CodePasswordLength)
		}
		if t.MaxLength > 0 && utf8.RuneCountInString(b.Value) > t.MaxLength {
			return v.fail(CodeMaxLength)
		}
		return model.Success{}

	case model.DropDown, model.FileUpload, model.MarineUnitSelector, model.RadioGroup:
		if empty {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		return model.Success{}

	case model.DatePicker:
		if empty {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		return v.checkDate(value, t.AllowPastDates)

	case model.CheckBox:
		if b.Mandatory && value != model.CheckedValue {
			return v.fail(CodeMustAccept)
		}
		return model.Success{}

	case model.OwnerList, model.EngineList, model.SailorList:
		if isEmptyList(value) {
			return v.requiredIf(b.Mandatory, CodeListRequired)
		}
		return model.Success{}

	case model.SelectableList, model.MultiSelectDropDown:
		if isEmptyList(value) {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		return model.Success{}

	case model.PhoneNumberField:
		if empty {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		if !phonePattern.MatchString(normalizePhone(value)) {
			return v.fail(CodePhone)
		}
		return model.Success{}

	case model.OTPField:
		if empty {
			return v.requiredIf(b.Mandatory, CodeRequired)
		}
		length := t.Length
		if length <= 0 {
			length = model.DefaultOTPLength
		}
		if len(value) != length || !allDigits(value) {
			return v.fail(CodeOTP)
		}
		return model.Success{}

	case model.InfoCard, model.PaymentDetails:
		return model.Success{}
	}
	panic(model.UnhandledVariant("field", f))
}

// Validate returns a copy of f with its error set from Check, or cleared when
// the value is acceptable.
func (v *Validator) Validate(f model.Field) model.Field {
	switch r := v.Check(f).(type) {
	case model.Success:
		return model.ClearError(f)
	case model.Failure:
		return model.WithError(f, r.Message)
	default:
		panic(model.UnhandledVariant("validation result", r))
	}
}

// ValidateAll validates every field independently. The input is not modified.
func (v *Validator) ValidateAll(fields []model.Field) []model.Field {
	out := make([]model.Field, len(fields))
	for i, f := range fields {
		out[i] = v.Validate(f)
	}
	return out
}

// IsFormValid reports whether no field carries an error.
func IsFormValid(fields []model.Field) bool {
	for _, f := range fields {
		if model.HasError(f) {
			return false
		}
	}
	return true
}

// Errors returns the current field errors as API details.
func Errors(fields []model.Field) []model.FieldError {
	var out []model.FieldError
	for _, f := range fields {
		b := f.Base()
		if b.Error == "" {
			continue
		}
		out = append(out, model.FieldError{Field: b.ID, Code: "INVALID", Message: b.Error})
	}
	return out
}

func (v *Validator) checkDate(value string, allowPast bool) model.ValidationResult {
	d, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return v.fail(CodeDateFormat)
	}
	if !allowPast {
		now := v.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if d.Before(today) {
			return v.fail(CodeDatePast)
		}
	}
	return model.Success{}
}

func (v *Validator) requiredIf(mandatory bool, code string) model.ValidationResult {
	if !mandatory {
		return model.Success{}
	}
	return v.fail(code)
}

func (v *Validator) fail(code string) model.ValidationResult {
	return model.Failure{Code: code, Message: v.message(code)}
}

func (v *Validator) message(code string) string {
	if v.resolve != nil {
		if msg := v.resolve(code); msg != "" && msg != code {
			return msg
		}
	}
	return defaultMessages[code]
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isEmptyList(s string) bool {
	compact := strings.Join(strings.Fields(s), "")
	return compact == "" || compact == model.EmptyList || compact == "null"
}

func normalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(s)
}
