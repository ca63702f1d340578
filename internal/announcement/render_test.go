package announcement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAnnouncement(t *testing.T) {
	html, err := RenderAnnouncement(Announcement{
		ID:      ID{Value: "1", Numeric: true},
		Title:   "Beta opens",
		Content: "Sign up today",
		Date:    "2024-01-01",
		Type:    "feature",
	})
	require.NoError(t, err)

	assert.Contains(t, html, `<div class="announcement-card type-feature" data-id="1">`)
	assert.Contains(t, html, `<h3 class="announcement-title">Beta opens</h3>`)
	assert.Contains(t, html, `<span class="announcement-date">January 1, 2024</span>`)
	assert.Contains(t, html, `<p class="announcement-content">Sign up today</p>`)
	assert.Contains(t, html, `<span class="announcement-type type-feature">feature</span>`)
}

func TestRenderAnnouncement_EscapesHostileInput(t *testing.T) {
	html, err := RenderAnnouncement(Announcement{
		ID:      ID{Value: `1" onclick="x()`},
		Title:   `<script>alert(1)</script>`,
		Content: `<img src=x onerror=alert(1)>`,
		Date:    "2024-01-01",
		Type:    `info" onmouseover="x`,
	})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<img")
	assert.NotContains(t, html, `" onclick=`)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, `class="announcement-card type-infoonmouseoverx"`)
}

func TestTypeClass(t *testing.T) {
	assert.Equal(t, "feature", TypeClass("Feature"))
	assert.Equal(t, "major-update", TypeClass(" major-update "))
	assert.Equal(t, "ab", TypeClass("a b"))
	assert.Equal(t, "", TypeClass(`"><`))
}

func TestRenderer_AllowMarkup(t *testing.T) {
	r := NewRenderer(true)

	html, err := r.Render(Announcement{
		Title:   "<b>t</b>",
		Content: `<strong>New</strong> <a href="https://example.com">docs</a><script>x()</script>`,
		Date:    "2024-01-01",
		Type:    "info",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "<strong>New</strong>")
	assert.Contains(t, html, `href="https://example.com"`)
	assert.NotContains(t, html, "<script>")
	assert.True(t, strings.Contains(html, "&lt;b&gt;t&lt;/b&gt;"), "titles stay escaped")
}
