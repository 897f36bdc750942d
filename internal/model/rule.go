package model

// Rule assigns a category to transactions whose note contains a substring.
type Rule struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	ID         string `json:"id"`
	Contains   string `json:"contains"`
	CategoryID string `json:"categoryId"`
	Priority   int    `json:"priority"`
}

// RecordID implements Record.
func (r Rule) RecordID() string { return r.ID }

// IsEnabled reports whether the rule takes part in matching. A rule without
// an explicit enabled flag is enabled.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
