package analytics

import (
	"context"

	"github.com/gin-gonic/gin"

	"microsite/pkg/logging"
	"microsite/pkg/middleware"
)

// HeaderPageURL lets the site report the page an API call was made from.
const HeaderPageURL = "X-Page-URL"

// Page describes the page a visitor is on. It replaces the browser globals
// the events used to be enriched from.
type Page struct {
	URL       string `json:"url"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer"`
	SessionID string `json:"session_id"`
}

type pageKey struct{}

func WithPage(ctx context.Context, page Page) context.Context {
	return context.WithValue(ctx, pageKey{}, page)
}

// PageFrom returns the page stored in ctx, or a zero Page.
func PageFrom(ctx context.Context) Page {
	if ctx == nil {
		return Page{}
	}
	page, _ := ctx.Value(pageKey{}).(Page)
	return page
}

// PageMiddleware derives the Page for each request.
func PageMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := Page{
			URL:       c.GetHeader(HeaderPageURL),
			UserAgent: c.Request.UserAgent(),
			Referrer:  c.Request.Referer(),
			SessionID: c.GetHeader(middleware.HeaderSessionID),
		}
		if page.URL == "" {
			page.URL = page.Referrer
		}
		if page.URL == "" {
			page.URL = requestURL(c)
		}

		ctx := WithPage(c.Request.Context(), page)
		if page.SessionID != "" && logging.GetSessionID(ctx) == "" {
			ctx = logging.WithSessionID(ctx, page.SessionID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
