package form

import (
	"encoding/json"
)

// ErrorClass is the class put on a field that currently shows an error, and
// ShowClass the class that makes its error region visible.
const (
	ErrorClass = "error"
	ShowClass  = "show"
)

// ErrorDisplay is where field errors are shown. A nil ErrorDisplay means the
// page has no error regions and display updates are skipped.
type ErrorDisplay interface {
	Clear(field string)
	Show(field, message string)
}

// ErrorRegionID is the id of the element holding a field's error message.
func ErrorRegionID(field string) string {
	return field + "-error"
}

// RegionState is the state of one field and its error region.
type RegionState struct {
	Field      string   `json:"field"`
	FieldClass []string `json:"field_class"`
	Text       string   `json:"text"`
	Class      []string `json:"class"`
}

func (r RegionState) Showing() bool {
	return r.Text != ""
}

// DisplayState records error display updates so the page can apply them.
// Regions keep the order fields were first touched in.
type DisplayState struct {
	order   []string
	regions map[string]*RegionState
}

func NewDisplayState() *DisplayState {
	return &DisplayState{regions: make(map[string]*RegionState)}
}

func (d *DisplayState) region(field string) *RegionState {
	r, ok := d.regions[field]
	if !ok {
		r = &RegionState{Field: field, FieldClass: []string{}, Class: []string{}}
		d.regions[field] = r
		d.order = append(d.order, field)
	}
	return r
}

func (d *DisplayState) Clear(field string) {
	r := d.region(field)
	r.Text = ""
	r.FieldClass = []string{}
	r.Class = []string{}
}

func (d *DisplayState) Show(field, message string) {
	r := d.region(field)
	r.Text = message
	r.FieldClass = []string{ErrorClass}
	r.Class = []string{ShowClass}
}

// Region returns the recorded state for field.
func (d *DisplayState) Region(field string) (RegionState, bool) {
	r, ok := d.regions[field]
	if !ok {
		return RegionState{}, false
	}
	return *r, true
}

// FirstError returns the first field, in touch order, that shows an error.
func (d *DisplayState) FirstError() string {
	for _, field := range d.order {
		if d.regions[field].Showing() {
			return field
		}
	}
	return ""
}

// MarshalJSON encodes the regions keyed by error region id.
func (d *DisplayState) MarshalJSON() ([]byte, error) {
	out := make(map[string]RegionState, len(d.regions))
	for field, r := range d.regions {
		out[ErrorRegionID(field)] = *r
	}
	return json.Marshal(out)
}
