package cel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func announcementDoc(typ string, priority int64, date string) map[string]interface{} {
	return map[string]interface{}{
		"id":       "1",
		"title":    "Launch",
		"content":  "We shipped",
		"type":     typ,
		"priority": priority,
		"date":     date,
		"active":   true,
	}
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator("announcement")
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid comparison", expr: `announcement.type == "feature"`},
		{name: "valid numeric", expr: `announcement.priority > 1`},
		{name: "invalid syntax", expr: `invalid syntax here!!!`, wantError: true},
		{name: "undefined variable", expr: `event.name == "x"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompileFilter_RejectsNonBool(t *testing.T) {
	eval, err := NewEvaluator("announcement")
	require.NoError(t, err)

	_, err = eval.CompileFilter(`announcement.title`)
	assert.Error(t, err)
}

func TestFilter_Matches(t *testing.T) {
	eval, err := NewEvaluator("announcement")
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		doc  map[string]interface{}
		want bool
	}{
		{name: "hide internal keeps feature", expr: VisibilityExpressionExamples["hide_internal"], doc: announcementDoc("feature", 1, "2024-01-15"), want: true},
		{name: "hide internal drops internal", expr: VisibilityExpressionExamples["hide_internal"], doc: announcementDoc("internal", 1, "2024-01-15"), want: false},
		{name: "priority bound", expr: VisibilityExpressionExamples["top_priorities"], doc: announcementDoc("update", 3, "2024-01-15"), want: false},
		{name: "published before now", expr: VisibilityExpressionExamples["published_already"], doc: announcementDoc("update", 1, "2024-01-15"), want: true},
		{name: "scheduled after now", expr: VisibilityExpressionExamples["published_already"], doc: announcementDoc("update", 1, "2024-06-01"), want: false},
		{name: "combined", expr: VisibilityExpressionExamples["combined"], doc: announcementDoc("feature", 2, "2024-01-15"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := eval.CompileFilter(tt.expr)
			require.NoError(t, err)

			got, err := f.Matches(context.Background(), tt.doc, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_MissingKeyErrors(t *testing.T) {
	eval, err := NewEvaluator("announcement")
	require.NoError(t, err)

	f, err := eval.CompileFilter(`announcement.audience == "beta"`)
	require.NoError(t, err)

	_, err = f.Matches(context.Background(), announcementDoc("feature", 1, "2024-01-15"), time.Now())
	assert.Error(t, err)
}
