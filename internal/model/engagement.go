package model

// Category identifies which engagement variant a record belongs to.
// Values double as the CRM object-type names used in association and
// batch-read URLs.
type Category string

const (
	CategoryEmail   Category = "emails"
	CategoryNote    Category = "notes"
	CategoryCall    Category = "calls"
	CategoryMeeting Category = "meetings"
	CategoryTask    Category = "tasks"
)

// CategorySpec pairs a category with the property projection fetched
// for its records. This is configuration data: new categories can be
// added here without touching the aggregation algorithm.
type CategorySpec struct {
	Category   Category
	Properties []string
}

// Catalog returns the fixed, ordered engagement category table.
// Iteration order determines accumulation order (and therefore the
// tie order of equal-timestamp records downstream), not presentation
// order.
func Catalog() []CategorySpec {
	return []CategorySpec{
		{Category: CategoryEmail, Properties: []string{
			"hs_email_subject", "hs_email_text", "hs_email_html", "hs_timestamp",
			"hs_email_direction", "hs_email_from_email", "hs_email_to_email",
			"hs_email_from_firstname", "hs_email_from_lastname",
		}},
		{Category: CategoryNote, Properties: []string{
			"hs_note_body", "hs_timestamp", "hubspot_owner_id", "hs_body_preview",
		}},
		{Category: CategoryCall, Properties: []string{
			"hs_call_body", "hs_call_title", "hs_timestamp", "hs_call_duration",
			"hs_call_direction", "hs_call_status", "hs_call_from_number",
			"hs_call_to_number", "hs_call_recording_url",
		}},
		{Category: CategoryMeeting, Properties: []string{
			"hs_meeting_title", "hs_meeting_body", "hs_timestamp",
			"hs_meeting_start_time", "hs_meeting_end_time", "hs_meeting_outcome",
		}},
		{Category: CategoryTask, Properties: []string{
			"hs_task_subject", "hs_task_body", "hs_timestamp", "hs_task_status",
			"hs_task_priority",
		}},
	}
}

// Engagement is one interaction record tagged with its category at
// fetch time. Timestamp is epoch milliseconds parsed from the record's
// hs_timestamp property; absent or malformed values are 0, which sorts
// such records first.
type Engagement struct {
	ID         string            `json:"id"`
	Category   Category          `json:"category"`
	Timestamp  int64             `json:"timestamp"`
	Properties map[string]string `json:"properties"`
}

// Prop returns the named property, or "" when absent.
func (e Engagement) Prop(name string) string {
	return e.Properties[name]
}
