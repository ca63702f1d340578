package cel

// VisibilityExpressionExamples are feed visibility rules content authors can
// drop into feed.visibility_expression.
var VisibilityExpressionExamples = map[string]string{
	"hide_internal":     `announcement.type != "internal"`,
	"only_feature":      `announcement.type == "feature"`,
	"top_priorities":    `announcement.priority <= 2`,
	"published_already": `timestamp(announcement.date + "T00:00:00Z") <= now`,
	"has_content":       `has(announcement.content) && announcement.content != ""`,
	"combined":          `announcement.type in ["feature", "update"] && announcement.priority < 5`,
}
