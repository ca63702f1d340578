package analytics

import (
	"fmt"
	"regexp"
	"time"
)

// Event names emitted by the service itself.
const (
	EventUserInteraction     = "user_interaction"
	EventFormSubmission      = "form_submission"
	EventConversion          = "conversion"
	EventAnnouncementsLoaded = "announcements_loaded"
	EventAnnouncementClicked = "announcement_clicked"
	EventPageView            = "page_view"
	EventPageLoadTime        = "page_load_time"
	EventScrollDepth         = "scroll_depth"
	EventTimeOnPage          = "time_on_page"
)

// TimestampLayout matches the browser's toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var eventNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Event is an enriched analytics event as handed to a collector.
type Event struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  time.Time              `json:"timestamp"`
	URL        string                 `json:"url"`
	UserAgent  string                 `json:"userAgent"`
	SessionID  string                 `json:"session_id,omitempty"`
}

func ValidEventName(name string) bool {
	return eventNamePattern.MatchString(name)
}

// ValidateProperties accepts scalar values and flat lists of scalars, the
// shapes the telemetry collectors can index.
func ValidateProperties(props map[string]interface{}) error {
	for key, value := range props {
		if key == "" {
			return fmt.Errorf("property names must not be empty")
		}
		switch v := value.(type) {
		case nil, string, bool, float64, float32, int, int32, int64:
		case []interface{}:
			for i, item := range v {
				if !isScalar(item) {
					return fmt.Errorf("property %q[%d]: nested values are not supported", key, i)
				}
			}
		case []string:
		default:
			return fmt.Errorf("property %q: unsupported value type %T", key, value)
		}
	}
	return nil
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}
