package model

import (
	"fmt"
	"strings"
)

// FieldKind identifies the variant of a Field. The set is closed.
type FieldKind string

// Field kinds, spelled the way definition files name them.
const (
	KindText               FieldKind = "text"
	KindDropDown           FieldKind = "dropdown"
	KindCheckBox           FieldKind = "checkbox"
	KindDatePicker         FieldKind = "date"
	KindFileUpload         FieldKind = "file"
	KindOwnerList          FieldKind = "owner_list"
	KindEngineList         FieldKind = "engine_list"
	KindSailorList         FieldKind = "sailor_list"
	KindSelectableList     FieldKind = "selectable_list"
	KindMarineUnitSelector FieldKind = "marine_unit_selector"
	KindRadioGroup         FieldKind = "radio"
	KindInfoCard           FieldKind = "info_card"
	KindPhoneNumber        FieldKind = "phone"
	KindOTP                FieldKind = "otp"
	KindMultiSelect        FieldKind = "multi_select"
	KindPaymentDetails     FieldKind = "payment_details"
)

var fieldKinds = map[FieldKind]bool{
	KindText: true, KindDropDown: true, KindCheckBox: true, KindDatePicker: true,
	KindFileUpload: true, KindOwnerList: true, KindEngineList: true, KindSailorList: true,
	KindSelectableList: true, KindMarineUnitSelector: true, KindRadioGroup: true,
	KindInfoCard: true, KindPhoneNumber: true, KindOTP: true, KindMultiSelect: true,
	KindPaymentDetails: true,
}

// ParseFieldKind returns the FieldKind named by s.
func ParseFieldKind(s string) (FieldKind, error) {
	k := FieldKind(strings.ToLower(strings.TrimSpace(s)))
	if !fieldKinds[k] {
		return "", fmt.Errorf("unknown field type %q", s)
	}
	return k, nil
}

// DisplayOnly reports whether fields of this kind carry no user input. Such
// fields are never marked invalid by the field validator and never gate
// progression.
func (k FieldKind) DisplayOnly() bool {
	return k == KindInfoCard || k == KindPaymentDetails
}

// CheckedValue is the encoding of a ticked checkbox.
const CheckedValue = "true"

// DateLayout is the encoding of DatePicker values.
const DateLayout = "2006-01-02"

// EmptyList is the serialized form of an empty list value.
const EmptyList = "[]"

// FieldBase holds the attributes shared by every field variant. Value is the
// string encoding of the current input; lists and objects are serialized as
// JSON. An empty Error means the field is currently valid.
type FieldBase struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Error     string `json:"error,omitempty"`
	Mandatory bool   `json:"mandatory"`
}

// Base returns the shared attributes.
func (b FieldBase) Base() FieldBase { return b }

// Field is one form input together with its current validation state.
// Implementations are value types; every modification returns a copy.
type Field interface {
	Kind() FieldKind
	Base() FieldBase
	withBase(FieldBase) Field
}

// WithValue returns a copy of f holding value.
func WithValue(f Field, value string) Field {
	b := f.Base()
	b.Value = value
	return f.withBase(b)
}

// WithError returns a copy of f carrying msg as its validation error. An
// empty msg clears the error.
//
// Display-only kinds (InfoCard, PaymentDetails) store the message in the same
// shared Error attribute; it is surfaced to the caller but never produced by
// the field validator itself.
func WithError(f Field, msg string) Field {
	b := f.Base()
	b.Error = msg
	return f.withBase(b)
}

// ClearError returns a copy of f without a validation error.
func ClearError(f Field) Field {
	return WithError(f, "")
}

// HasError reports whether f currently carries a validation error.
func HasError(f Field) bool {
	return f.Base().Error != ""
}

// TextField is free text input.
type TextField struct {
	FieldBase
	Numeric   bool
	Password  bool
	MaxLength int
}

// DropDown is a single-choice selection from Options.
type DropDown struct {
	FieldBase
	Options []StaticOption
}

// CheckBox is a boolean input encoded as "true" / "false".
type CheckBox struct {
	FieldBase
}

// DatePicker holds a date in DateLayout.
type DatePicker struct {
	FieldBase
	AllowPastDates bool
}

// FileUpload holds a reference to an uploaded document.
type FileUpload struct {
	FieldBase
	Accept []string
}

// OwnerList holds a serialized list of vessel owners.
type OwnerList struct {
	FieldBase
}

// EngineList holds a serialized list of engines.
type EngineList struct {
	FieldBase
}

// SailorList holds a serialized list of crew members.
type SailorList struct {
	FieldBase
}

// SelectableList holds the selected entries of a list.
type SelectableList struct {
	FieldBase
	Options []StaticOption
}

// MarineUnitSelector holds the ID of the selected marine unit.
type MarineUnitSelector struct {
	FieldBase
}

// RadioGroup is a single choice rendered as radio buttons.
type RadioGroup struct {
	FieldBase
	Options []StaticOption
}

// InfoCard is a display-only card.
type InfoCard struct {
	FieldBase
}

// PhoneNumberField holds a phone number.
type PhoneNumberField struct {
	FieldBase
	CountryCode string
}

// OTPField holds a one-time password.
type OTPField struct {
	FieldBase
	Length int
}

// MultiSelectDropDown holds a serialized set of selected options.
type MultiSelectDropDown struct {
	FieldBase
	Options []StaticOption
}

// PaymentDetails is a display-only fee summary.
type PaymentDetails struct {
	FieldBase
}

func (TextField) Kind() FieldKind           { return KindText }
func (DropDown) Kind() FieldKind            { return KindDropDown }
func (CheckBox) Kind() FieldKind            { return KindCheckBox }
func (DatePicker) Kind() FieldKind          { return KindDatePicker }
func (FileUpload) Kind() FieldKind          { return KindFileUpload }
func (OwnerList) Kind() FieldKind           { return KindOwnerList }
func (EngineList) Kind() FieldKind          { return KindEngineList }
func (SailorList) Kind() FieldKind          { return KindSailorList }
func (SelectableList) Kind() FieldKind      { return KindSelectableList }
func (MarineUnitSelector) Kind() FieldKind  { return KindMarineUnitSelector }
func (RadioGroup) Kind() FieldKind          { return KindRadioGroup }
func (InfoCard) Kind() FieldKind            { return KindInfoCard }
func (PhoneNumberField) Kind() FieldKind    { return KindPhoneNumber }
func (OTPField) Kind() FieldKind            { return KindOTP }
func (MultiSelectDropDown) Kind() FieldKind { return KindMultiSelect }
func (PaymentDetails) Kind() FieldKind      { return KindPaymentDetails }

func (f TextField) withBase(b FieldBase) Field           { f.FieldBase = b; return f }
func (f DropDown) withBase(b FieldBase) Field            { f.FieldBase = b; return f }
func (f CheckBox) withBase(b FieldBase) Field            { f.FieldBase = b; return f }
func (f DatePicker) withBase(b FieldBase) Field          { f.FieldBase = b; return f }
func (f FileUpload) withBase(b FieldBase) Field          { f.FieldBase = b; return f }
func (f OwnerList) withBase(b FieldBase) Field           { f.FieldBase = b; return f }
func (f EngineList) withBase(b FieldBase) Field          { f.FieldBase = b; return f }
func (f SailorList) withBase(b FieldBase) Field          { f.FieldBase = b; return f }
func (f SelectableList) withBase(b FieldBase) Field      { f.FieldBase = b; return f }
func (f MarineUnitSelector) withBase(b FieldBase) Field  { f.FieldBase = b; return f }
func (f RadioGroup) withBase(b FieldBase) Field          { f.FieldBase = b; return f }
func (f InfoCard) withBase(b FieldBase) Field            { f.FieldBase = b; return f }
func (f PhoneNumberField) withBase(b FieldBase) Field    { f.FieldBase = b; return f }
func (f OTPField) withBase(b FieldBase) Field            { f.FieldBase = b; return f }
func (f MultiSelectDropDown) withBase(b FieldBase) Field { f.FieldBase = b; return f }
func (f PaymentDetails) withBase(b FieldBase) Field      { f.FieldBase = b; return f }

// DefaultOTPLength applies when an OTP field does not declare its length.
const DefaultOTPLength = 6

// NewField builds the field variant described by def, initialized with the
// definition's default value and no error.
func NewField(def FieldDefinition) (Field, error) {
	kind, err := ParseFieldKind(def.Type)
	if err != nil {
		return nil, &ConfigurationError{Path: def.ID, Message: err.Error()}
	}

	base := FieldBase{
		ID:        def.ID,
		Label:     def.Label,
		Value:     def.Default,
		Mandatory: def.Mandatory,
	}

	switch kind {
	case KindText:
		return TextField{FieldBase: base, Numeric: def.Numeric, Password: def.Password, MaxLength: def.MaxLength}, nil
	case KindDropDown:
		return DropDown{FieldBase: base, Options: def.Options}, nil
	case KindCheckBox:
		return CheckBox{FieldBase: base}, nil
	case KindDatePicker:
		allowPast := true
		if def.AllowPastDates != nil {
			allowPast = *def.AllowPastDates
		}
		return DatePicker{FieldBase: base, AllowPastDates: allowPast}, nil
	case KindFileUpload:
		return FileUpload{FieldBase: base, Accept: def.Accept}, nil
	case KindOwnerList:
		return OwnerList{FieldBase: base}, nil
	case KindEngineList:
		return EngineList{FieldBase: base}, nil
	case KindSailorList:
		return SailorList{FieldBase: base}, nil
	case KindSelectableList:
		return SelectableList{FieldBase: base, Options: def.Options}, nil
	case KindMarineUnitSelector:
		return MarineUnitSelector{FieldBase: base}, nil
	case KindRadioGroup:
		return RadioGroup{FieldBase: base, Options: def.Options}, nil
	case KindInfoCard:
		return InfoCard{FieldBase: base}, nil
	case KindPhoneNumber:
		return PhoneNumberField{FieldBase: base, CountryCode: def.CountryCode}, nil
	case KindOTP:
		length := def.Length
		if length <= 0 {
			length = DefaultOTPLength
		}
		return OTPField{FieldBase: base, Length: length}, nil
	case KindMultiSelect:
		return MultiSelectDropDown{FieldBase: base, Options: def.Options}, nil
	case KindPaymentDetails:
		return PaymentDetails{FieldBase: base}, nil
	}
	panic(UnhandledVariant("field kind", kind))
}

// FindField returns the field with the given ID and its position.
func FindField(fields []Field, id string) (Field, int, bool) {
	for i, f := range fields {
		if f.Base().ID == id {
			return f, i, true
		}
	}
	return nil, -1, false
}

// ReplaceField returns a copy of fields with the field at position i replaced.
func ReplaceField(fields []Field, i int, f Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	out[i] = f
	return out
}
