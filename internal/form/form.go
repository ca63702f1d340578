package form

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"microsite/internal/constants"
)

// FieldSpec declares one control of a form.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Schema is the ordered list of controls of a form.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

// EarlyAccessSchema is the early access signup form in document order.
var EarlyAccessSchema = Schema{
	Name: constants.EarlyAccessFormName,
	Fields: []FieldSpec{
		{Name: "company", Kind: KindText, Required: true},
		{Name: "email", Kind: KindEmail, Required: true},
		{Name: "phone", Kind: KindTel},
		{Name: "budget", Kind: KindSelect},
		{Name: "message", Kind: KindTextarea},
		{Name: "privacy", Kind: KindCheckbox, Required: true},
	},
}

func (s Schema) Spec(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Field builds a field of the schema from a submitted value. Names outside
// the schema become optional text fields.
func (s Schema) Field(name, value string, checked bool) Field {
	spec, ok := s.Spec(name)
	if !ok {
		spec = FieldSpec{Name: name, Kind: KindText}
	}
	return Field{Name: name, Value: value, Checked: checked, Required: spec.Required, Kind: spec.Kind}
}

// Form holds the submitted values of every control of a schema.
type Form struct {
	Name   string
	Fields []Field
}

// FromValues builds a form from submitted values. A checkbox is checked when
// its value is present and not a false-like string.
func (s Schema) FromValues(values map[string]string) Form {
	form := Form{Name: s.Name, Fields: make([]Field, 0, len(s.Fields))}
	for _, spec := range s.Fields {
		value, present := values[spec.Name]
		field := Field{Name: spec.Name, Value: value, Required: spec.Required, Kind: spec.Kind}
		if spec.Kind == KindCheckbox {
			field.Checked = present && IsChecked(value)
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

func IsChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "off", "no":
		return false
	default:
		return true
	}
}

// Required returns the required fields in document order.
func (f Form) Required() []Field {
	out := make([]Field, 0, len(f.Fields))
	for _, field := range f.Fields {
		if field.Required {
			out = append(out, field)
		}
	}
	return out
}

// Payload maps field names to submitted values.
type Payload map[string]string

// Prepare validates the form and, only when it is valid, builds its payload.
// Unchecked checkboxes are left out and checked ones carry "on".
func Prepare(form Form, display ErrorDisplay) (Payload, FormResult) {
	result := ValidateForm(form, display)
	if !result.IsValid {
		return nil, result
	}

	payload := make(Payload, len(form.Fields))
	for _, field := range form.Fields {
		if field.Kind == KindCheckbox {
			if field.Checked {
				payload[field.Name] = "on"
			}
			continue
		}
		payload[field.Name] = strings.TrimFunc(field.Value, isWhitespace)
	}
	return payload, result
}

// Fingerprint identifies a payload for idempotency: identical submissions of
// the same form hash to the same key regardless of case in the email or
// surrounding whitespace.
func (p Payload) Fingerprint(formName string) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(formName))
	for _, k := range keys {
		v := strings.TrimFunc(p[k], isWhitespace)
		if k == "email" {
			v = strings.ToLower(v)
		}
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}
