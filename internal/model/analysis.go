package model

import "time"

// AnalysisType is one entry of the prompt catalog: a named, versioned
// system prompt driving one kind of deal analysis.
type AnalysisType struct {
	ID           string         `json:"type_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SystemPrompt string         `json:"system_prompt"`
	Active       bool           `json:"is_active"`
	Version      int            `json:"version"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// Section is one h2-delimited block of an analysis response.
type Section struct {
	ID      string `json:"section_id"`
	Title   string `json:"section_title"`
	Content string `json:"content"`
}

// Analysis is a persisted analysis run. UserInput holds the assembled
// deal document verbatim as an audit trail of what the model saw.
type Analysis struct {
	ID            string         `json:"analysis_id"`
	DealID        string         `json:"deal_id"`
	DealName      string         `json:"deal_name"`
	Type          string         `json:"analysis_type"`
	TypeName      string         `json:"type_name,omitempty"`
	UserInput     string         `json:"user_input,omitempty"`
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	FullResponse  string         `json:"full_response"`
	PromptVersion int            `json:"prompt_version"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// FeedbackRating is a reviewer's verdict on one analysis section.
type FeedbackRating string

const (
	FeedbackUp   FeedbackRating = "up"
	FeedbackDown FeedbackRating = "down"
)

// Valid reports whether the rating is one of the accepted values.
func (r FeedbackRating) Valid() bool {
	return r == FeedbackUp || r == FeedbackDown
}

// Feedback is one reviewer verdict on one section of one analysis.
// At most one feedback row exists per (analysis, section) pair.
type Feedback struct {
	AnalysisID    string         `json:"analysis_id"`
	SectionID     string         `json:"section_id"`
	SectionTitle  string         `json:"section_title"`
	Rating        FeedbackRating `json:"feedback"`
	Reason        string         `json:"feedback_reason,omitempty"`
	Correction    string         `json:"user_correction,omitempty"`
	PromptVersion int            `json:"prompt_version"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// FeedbackStat aggregates section-level feedback per analysis type.
// Accuracy counts unreviewed sections as good: (total - negative) /
// total, as a rounded percentage.
type FeedbackStat struct {
	TypeID           string `json:"type_id"`
	Name             string `json:"name"`
	TotalSections    int    `json:"total_sections"`
	NegativeFeedback int    `json:"negative_feedback"`
	AnalysisCount    int    `json:"analysis_count"`
	Accuracy         int    `json:"accuracy"`
}
