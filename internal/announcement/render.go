package announcement

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	EmptyPlaceholder = `<div class="announcement-loading">No announcements at this time.</div>`
	ErrorPlaceholder = `<div class="announcement-loading">Error loading announcements. Please try again later.</div>`
)

var cardTemplate = template.Must(template.New("card").Parse(`
      <div class="announcement-card type-{{.TypeClass}}" data-id="{{.ID}}">
        <div class="announcement-header">
          <h3 class="announcement-title">{{.Title}}</h3>
          <span class="announcement-date">{{.Date}}</span>
        </div>
        <p class="announcement-content">{{.Content}}</p>
        <span class="announcement-type type-{{.TypeClass}}">{{.Type}}</span>
      </div>
    `))

var typeClassInvalid = regexp.MustCompile(`[^a-z0-9-]`)

// TypeClass reduces an announcement type to a safe CSS class token.
func TypeClass(t string) string {
	return typeClassInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(t)), "")
}

type card struct {
	ID        string
	Title     string
	Date      string
	Content   interface{}
	Type      string
	TypeClass string
}

// Renderer turns announcements into card markup. Every field is escaped;
// with a markup policy, content is sanitized against it instead.
type Renderer struct {
	markup *bluemonday.Policy
}

func NewRenderer(allowMarkup bool) *Renderer {
	r := &Renderer{}
	if allowMarkup {
		r.markup = contentPolicy()
	}
	return r
}

// contentPolicy allows the inline formatting authors use in announcement
// bodies.
func contentPolicy() *bluemonday.Policy {
	policy := bluemonday.StrictPolicy()
	policy.AllowElements("b", "strong", "i", "em", "u", "code", "br", "span")
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowURLSchemes("https", "mailto")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

func (r *Renderer) Render(a Announcement) (string, error) {
	c := card{
		ID:        a.ID.String(),
		Title:     a.Title,
		Date:      FormatDate(a.Date),
		Content:   a.Content,
		Type:      a.Type,
		TypeClass: TypeClass(a.Type),
	}
	if r.markup != nil {
		c.Content = template.HTML(r.markup.Sanitize(a.Content))
	}

	var sb strings.Builder
	if err := cardTemplate.Execute(&sb, c); err != nil {
		return "", err
	}
	return sb.String(), nil
}

var plainRenderer = NewRenderer(false)

// RenderAnnouncement renders one card with all fields escaped.
func RenderAnnouncement(a Announcement) (string, error) {
	return plainRenderer.Render(a)
}
