package form

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindEmail
	KindTel
	KindSelect
	KindTextarea
	KindCheckbox
)

// Field is one control of a form as submitted. It is built from the request
// on every validation pass.
type Field struct {
	Name     string
	Value    string
	Checked  bool
	Required bool
	Kind     FieldKind
}

type FieldResult struct {
	IsValid      bool   `json:"isValid"`
	ErrorMessage string `json:"errorMessage"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type FormResult struct {
	IsValid bool         `json:"isValid"`
	Errors  []FieldError `json:"errors"`
}

const (
	MsgCompanyRequired = "Company name is required"
	MsgCompanyTooShort = "Company name must be at least 2 characters"
	MsgEmailRequired   = "Email address is required"
	MsgEmailInvalid    = "Please enter a valid email address"
	MsgPhoneInvalid    = "Please enter a valid phone number"
	MsgPrivacyRequired = "You must agree to the privacy policy"
)

// whitespace is the browser's notion of white space: ASCII space and
// controls, every Unicode separator and the byte order mark.
const whitespace = `\t\n\v\f\r \p{Z}\x{FEFF}`

var (
	emailPattern     = regexp.MustCompile(`^[^` + whitespace + `@]+@[^` + whitespace + `@]+\.[^` + whitespace + `@]+$`)
	phonePattern     = regexp.MustCompile(`^\+?[1-9][0-9]{0,15}$`)
	phoneSeparators  = regexp.MustCompile(`[` + whitespace + `\-()]`)
	companyMinLength = 2
)

func isWhitespace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\uFEFF':
		return true
	}
	return unicode.In(r, unicode.Z)
}

// textLength counts UTF-16 code units, so a character outside the Basic
// Multilingual Plane counts as two.
func textLength(value string) int {
	n := 0
	for _, r := range value {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// rule returns an error message, or "" when the field is valid.
type rule func(value string, f Field) string

var rules = map[string]rule{
	"company": func(value string, _ Field) string {
		switch {
		case value == "":
			return MsgCompanyRequired
		case textLength(value) < companyMinLength:
			return MsgCompanyTooShort
		}
		return ""
	},
	"email": func(value string, _ Field) string {
		switch {
		case value == "":
			return MsgEmailRequired
		case !emailPattern.MatchString(value):
			return MsgEmailInvalid
		}
		return ""
	},
	"phone": func(value string, _ Field) string {
		if value != "" && !phonePattern.MatchString(phoneSeparators.ReplaceAllString(value, "")) {
			return MsgPhoneInvalid
		}
		return ""
	},
	"privacy": func(_ string, f Field) string {
		if !f.Checked {
			return MsgPrivacyRequired
		}
		return ""
	},
}

// HasRule reports whether name has a validation rule. Fields without one are
// always valid.
func HasRule(name string) bool {
	_, ok := rules[name]
	return ok
}

// ValidateField checks one field and updates display. Any previously shown
// error for the field is cleared first; a new error is shown only when
// showError is set.
func ValidateField(field Field, display ErrorDisplay, showError bool) FieldResult {
	if display != nil {
		display.Clear(field.Name)
	}

	result := FieldResult{IsValid: true}
	if check, ok := rules[field.Name]; ok {
		if msg := check(strings.TrimFunc(field.Value, isWhitespace), field); msg != "" {
			result = FieldResult{IsValid: false, ErrorMessage: msg}
		}
	}

	if !result.IsValid && showError && display != nil {
		display.Show(field.Name, result.ErrorMessage)
	}
	return result
}

// ValidateForm runs every required field through ValidateField with errors
// shown, in document order, without stopping at the first failure.
func ValidateForm(form Form, display ErrorDisplay) FormResult {
	result := FormResult{IsValid: true, Errors: []FieldError{}}
	for _, field := range form.Required() {
		fr := ValidateField(field, display, true)
		if !fr.IsValid {
			result.IsValid = false
			result.Errors = append(result.Errors, FieldError{Field: field.Name, Message: fr.ErrorMessage})
		}
	}
	return result
}
