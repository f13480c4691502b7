package models

// Template is a reusable board shape: a business-app preset or a snapshot
// taken from an existing board.
type Template struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string           `json:"category,omitempty" yaml:"category,omitempty"`
	BusinessApp string           `json:"business_app,omitempty" yaml:"business_app,omitempty"`
	Tags        []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Columns     []Column         `json:"columns" yaml:"columns"`
	Views       []View           `json:"views,omitempty" yaml:"views,omitempty"`
	Groups      []Group          `json:"groups,omitempty" yaml:"groups,omitempty"`
	Automations []Automation     `json:"automations,omitempty" yaml:"automations,omitempty"`
	Items       []map[string]any `json:"items,omitempty" yaml:"items,omitempty"`
	Settings    *Settings        `json:"settings,omitempty" yaml:"-"`
	Builtin     bool             `json:"builtin" yaml:"-"`
}
