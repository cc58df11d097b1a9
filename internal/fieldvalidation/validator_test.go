package fieldvalidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/vesselwizard/model"
)

func base(id, value string, mandatory bool) model.FieldBase {
	return model.FieldBase{ID: id, Label: id, Value: value, Mandatory: mandatory}
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
}

func TestValidate_perVariant(t *testing.T) {
	v := New(WithClock(fixedClock))

	tests := []struct {
		name    string
		field   model.Field
		wantErr bool
	}{
		{"text mandatory empty", model.TextField{FieldBase: base("name", "", true)}, true},
		{"text mandatory whitespace", model.TextField{FieldBase: base("name", "   ", true)}, true},
		{"text mandatory filled", model.TextField{FieldBase: base("name", "Nour", true)}, false},
		{"text optional empty", model.TextField{FieldBase: base("name", "", false)}, false},
		{"numeric digits", model.TextField{FieldBase: base("tonnage", "1200", true), Numeric: true}, false},
		{"numeric with letters", model.TextField{FieldBase: base("tonnage", "12a0", true), Numeric: true}, true},
		{"numeric with decimal point", model.TextField{FieldBase: base("tonnage", "12.5", true), Numeric: true}, true},
		{"password too short", model.TextField{FieldBase: base("pw", "abc12", true), Password: true}, true},
		{"password long enough", model.TextField{FieldBase: base("pw", "abc123", true), Password: true}, false},
		{"max length exceeded", model.TextField{FieldBase: base("call_sign", "ABCDEFG", false), MaxLength: 6}, true},

		{"dropdown empty", model.DropDown{FieldBase: base("port", "", true)}, true},
		{"dropdown chosen", model.DropDown{FieldBase: base("port", "ALX", true)}, false},
		{"file empty", model.FileUpload{FieldBase: base("deed", "", true)}, true},
		{"unit selector empty", model.MarineUnitSelector{FieldBase: base("unit", "", true)}, true},
		{"unit selector chosen", model.MarineUnitSelector{FieldBase: base("unit", "u-1", true)}, false},
		{"radio empty", model.RadioGroup{FieldBase: base("kind", "", true)}, true},

		{"checkbox unchecked", model.CheckBox{FieldBase: base("terms", "false", true)}, true},
		{"checkbox empty", model.CheckBox{FieldBase: base("terms", "", true)}, true},
		{"checkbox checked", model.CheckBox{FieldBase: base("terms", "true", true)}, false},
		{"checkbox optional unchecked", model.CheckBox{FieldBase: base("terms", "false", false)}, false},

		{"owners empty list", model.OwnerList{FieldBase: base("owners", "[]", true)}, true},
		{"owners blank", model.OwnerList{FieldBase: base("owners", " ", true)}, true},
		{"owners spaced empty list", model.OwnerList{FieldBase: base("owners", "[ ]", true)}, true},
		{"owners filled", model.OwnerList{FieldBase: base("owners", `[{"name":"A"}]`, true)}, false},
		{"engines empty list", model.EngineList{FieldBase: base("engines", "[]", true)}, true},
		{"sailors filled", model.SailorList{FieldBase: base("crew", `[{"id":"s1"}]`, true)}, false},
		{"selectable empty", model.SelectableList{FieldBase: base("docs", "", true)}, true},
		{"multi select empty list", model.MultiSelectDropDown{FieldBase: base("uses", "[]", true)}, true},
		{"multi select chosen", model.MultiSelectDropDown{FieldBase: base("uses", `["fishing"]`, true)}, false},

		{"date bad format", model.DatePicker{FieldBase: base("d", "15/03/2026", true), AllowPastDates: true}, true},
		{"date past allowed", model.DatePicker{FieldBase: base("d", "2020-01-01", true), AllowPastDates: true}, false},
		{"date past rejected", model.DatePicker{FieldBase: base("d", "2026-03-14", true)}, true},
		{"date today accepted", model.DatePicker{FieldBase: base("d", "2026-03-15", true)}, false},

		{"phone valid", model.PhoneNumberField{FieldBase: base("phone", "+20 100 123 4567", true)}, false},
		{"phone too short", model.PhoneNumberField{FieldBase: base("phone", "12345", true)}, true},
		{"phone letters", model.PhoneNumberField{FieldBase: base("phone", "01x0012345", true)}, true},
		{"otp right length", model.OTPField{FieldBase: base("otp", "123456", true), Length: 6}, false},
		{"otp wrong length", model.OTPField{FieldBase: base("otp", "1234", true), Length: 6}, true},
		{"otp default length", model.OTPField{FieldBase: base("otp", "654321", true)}, false},

		{"info card never errors", model.InfoCard{FieldBase: base("notice", "", true)}, false},
		{"payment details never errors", model.PaymentDetails{FieldBase: base("fees", "", true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.field)
			assert.Equal(t, tt.wantErr, model.HasError(got), "error = %q", got.Base().Error)
			assert.Equal(t, tt.field.Kind(), got.Kind())
		})
	}
}

func TestValidate_clearsStaleError(t *testing.T) {
	v := New()
	f := model.WithError(model.TextField{FieldBase: base("name", "Nour", true)}, "stale")
	assert.False(t, model.HasError(v.Validate(f)))
}

func TestValidate_displayOnlyDropsAttachedError(t *testing.T) {
	v := New()
	f := model.WithError(model.InfoCard{FieldBase: base("notice", "", false)}, "rule message")
	assert.False(t, model.HasError(v.Validate(f)))
}

func TestCheck_failureCode(t *testing.T) {
	v := New()
	r := v.Check(model.TextField{FieldBase: base("tonnage", "12a", true), Numeric: true})
	failure, ok := r.(model.Failure)
	require.True(t, ok, "Check() = %T, want Failure", r)
	assert.Equal(t, CodeNumeric, failure.Code)
	assert.Equal(t, "Only digits are allowed", failure.Message)
}

func TestWithMessages(t *testing.T) {
	v := New(WithMessages(func(code string) string {
		if code == CodeRequired {
			return "هذا الحقل مطلوب"
		}
		return code
	}))

	got := v.Validate(model.DropDown{FieldBase: base("port", "", true)})
	assert.Equal(t, "هذا الحقل مطلوب", got.Base().Error)

	// Unknown to the resolver: falls back to the built-in text.
	got = v.Validate(model.CheckBox{FieldBase: base("terms", "", true)})
	assert.Equal(t, "This box must be checked", got.Base().Error)
}

func TestValidateAll_independentAndPure(t *testing.T) {
	v := New()
	fields := []model.Field{
		model.TextField{FieldBase: base("name", "", true)},
		model.CheckBox{FieldBase: base("terms", "true", true)},
	}

	out := v.ValidateAll(fields)
	require.Len(t, out, 2)
	assert.True(t, model.HasError(out[0]))
	assert.False(t, model.HasError(out[1]))
	assert.False(t, model.HasError(fields[0]), "input slice must not be modified")
}

func TestValidateAll_idempotent(t *testing.T) {
	v := New(WithClock(fixedClock))
	fields := []model.Field{
		model.TextField{FieldBase: base("name", "", true)},
		model.TextField{FieldBase: base("tonnage", "99", true), Numeric: true},
		model.DatePicker{FieldBase: base("d", "2020-01-01", true)},
		model.OwnerList{FieldBase: base("owners", "[]", false)},
	}
	once := v.ValidateAll(fields)
	twice := v.ValidateAll(once)
	assert.Equal(t, once, twice)
}

func TestIsFormValid(t *testing.T) {
	v := New()
	invalid := v.ValidateAll([]model.Field{
		model.TextField{FieldBase: base("name", "", true)},
		model.TextField{FieldBase: base("note", "", false)},
	})
	assert.False(t, IsFormValid(invalid))

	valid := v.ValidateAll([]model.Field{
		model.TextField{FieldBase: base("name", "x", true)},
		model.TextField{FieldBase: base("note", "", false)},
	})
	assert.True(t, IsFormValid(valid))
	assert.True(t, IsFormValid(nil))
}

func TestErrors(t *testing.T) {
	fields := []model.Field{
		model.WithError(model.TextField{FieldBase: base("a", "", true)}, "required"),
		model.TextField{FieldBase: base("b", "ok", true)},
	}
	errs := Errors(fields)
	require.Len(t, errs, 1)
	assert.Equal(t, model.FieldError{Field: "a", Code: "INVALID", Message: "required"}, errs[0])
}
