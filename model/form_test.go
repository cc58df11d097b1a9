package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFormData_zeroValue(t *testing.T) {
	var d FormData
	if d.Len() != 0 {
		t.Errorf("Len() = %d, want 0", d.Len())
	}
	if _, ok := d.Get("x"); ok {
		t.Error("Get(x) on empty snapshot reported present")
	}
	if got := d.Value("x"); got != "" {
		t.Errorf("Value(x) = %q, want empty", got)
	}
}

func TestFormData_With_isCopyOnWrite(t *testing.T) {
	base := NewFormData("mortgage_value", "5000")
	next := base.With("bank_name", "Bank A")

	if base.Len() != 1 {
		t.Errorf("base.Len() = %d, want 1 after With on a copy", base.Len())
	}
	if _, ok := base.Get("bank_name"); ok {
		t.Error("base should not see keys added to the copy")
	}
	if got := next.Value("bank_name"); got != "Bank A" {
		t.Errorf("next.Value(bank_name) = %q, want %q", got, "Bank A")
	}
}

func TestFormData_With_keepsInsertionOrder(t *testing.T) {
	d := NewFormData("a", "1", "b", "2", "c", "3").With("a", "10")
	want := []string{"a", "b", "c"}
	if got := d.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got := d.Value("a"); got != "10" {
		t.Errorf("Value(a) = %q, want 10", got)
	}
}

func TestFormData_WithFields(t *testing.T) {
	fields := []Field{
		TextField{FieldBase: FieldBase{ID: "owner_name", Value: "Nadia"}},
		CheckBox{FieldBase: FieldBase{ID: "terms", Value: "true"}},
	}
	d := NewFormData("owner_name", "old").WithFields(fields)
	if got := d.Value("owner_name"); got != "Nadia" {
		t.Errorf("Value(owner_name) = %q, want Nadia", got)
	}
	if got := d.Value("terms"); got != "true" {
		t.Errorf("Value(terms) = %q, want true", got)
	}
}

func TestFormData_Merge(t *testing.T) {
	a := NewFormData("a", "1", "b", "2")
	b := NewFormData("b", "20", "c", "30")
	m := a.Merge(b)
	want := map[string]string{"a": "1", "b": "20", "c": "30"}
	if got := m.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}
}

func TestFormData_Map_isDetached(t *testing.T) {
	d := NewFormData("a", "1")
	m := d.Map()
	m["a"] = "changed"
	if got := d.Value("a"); got != "1" {
		t.Errorf("mutating Map() result changed snapshot: Value(a) = %q", got)
	}
}

func TestFormData_JSON_preservesOrder(t *testing.T) {
	d := NewFormData("z", "1", "a", "2")
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"key":"z","value":"1"},{"key":"a","value":"2"}]`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back FormData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := back.Keys(); !reflect.DeepEqual(got, []string{"z", "a"}) {
		t.Errorf("Keys() after round trip = %v", got)
	}
}

func TestNewFormData_oddArgsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewFormData with odd arguments did not panic")
		}
	}()
	NewFormData("a")
}
