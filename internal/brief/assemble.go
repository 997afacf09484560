package brief

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/dealbrief/internal/model"
)

// orDefault substitutes a fallback for an absent value at presentation
// time, keeping "absent" out of the data models themselves.
func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Assemble renders the complete deal document: header, contact and
// company sections, the chronological activity timeline, and the URL
// index. Sections with no data are omitted entirely rather than
// rendered as empty headers.
func Assemble(deal model.Deal, contacts []model.Contact, companies []model.Company, engagements []model.Engagement, urls *URLIndex) string {
	lines := []string{
		fmt.Sprintf("# Deal: %s", orDefault(deal.Name, "Unknown Deal")),
		fmt.Sprintf("\n**Amount:** %s", orDefault(deal.Amount, "N/A")),
		fmt.Sprintf("**Stage:** %s", orDefault(deal.Stage, "N/A")),
		fmt.Sprintf("**Created:** %s", orDefault(deal.CreateDate, "N/A")),
		fmt.Sprintf("**Close Date:** %s", orDefault(deal.CloseDate, "N/A")),
		fmt.Sprintf("**Description:** %s", orDefault(deal.Description, "N/A")),
		"",
	}

	if len(contacts) > 0 {
		lines = append(lines, "## Associated Contacts")
		for _, c := range contacts {
			name := orDefault(strings.TrimSpace(c.FirstName+" "+c.LastName), "Unknown")
			entry := fmt.Sprintf("- %s (%s)", name, orDefault(c.Email, "N/A"))
			if c.Company != "" {
				entry += " - " + c.Company
			}
			lines = append(lines, entry)
		}
		lines = append(lines, "")
	}

	if len(companies) > 0 {
		lines = append(lines, "## Associated Companies")
		for _, c := range companies {
			entry := fmt.Sprintf("- **%s**", orDefault(c.Name, "Unknown"))
			if c.Domain != "" {
				entry += fmt.Sprintf(" (%s)", c.Domain)
			}
			if c.Industry != "" {
				entry += " - " + c.Industry
			}
			lines = append(lines, entry)
		}
		lines = append(lines, "")
	}

	// Stable sort: equal timestamps keep their aggregation order.
	sorted := make([]model.Engagement, len(engagements))
	copy(sorted, engagements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	lines = append(lines,
		"## Activity Timeline (Chronological)",
		fmt.Sprintf("*%d total activities*\n", len(sorted)),
	)
	for _, e := range sorted {
		lines = append(lines, renderEngagement(e)...)
	}

	if urls != nil && urls.Len() > 0 {
		lines = appendURLSection(lines, urls)
	}

	return strings.Join(lines, "\n")
}

// renderEngagement dispatches to the category-specific template.
func renderEngagement(e model.Engagement) []string {
	switch e.Category {
	case model.CategoryEmail:
		return renderEmail(e)
	case model.CategoryNote:
		return renderNote(e)
	case model.CategoryCall:
		return renderCall(e)
	case model.CategoryMeeting:
		return renderMeeting(e)
	case model.CategoryTask:
		return renderTask(e)
	}
	return nil
}

func renderEmail(e model.Engagement) []string {
	dirLabel := "INBOUND"
	if e.Prop("hs_email_direction") == "EMAIL" {
		dirLabel = "OUTBOUND"
	}
	body := Clean(e.Prop("hs_email_text"), true)
	if body == "" {
		body = Clean(e.Prop("hs_email_html"), true)
	}
	return []string{
		fmt.Sprintf("### [%s] EMAIL (%s)", formatTimestamp(e.Prop("hs_timestamp")), dirLabel),
		fmt.Sprintf("**Subject:** %s", orDefault(e.Prop("hs_email_subject"), "(No subject)")),
		fmt.Sprintf("**From:** %s -> **To:** %s", e.Prop("hs_email_from_email"), e.Prop("hs_email_to_email")),
		"\n" + body + "\n",
		"---",
	}
}

func renderNote(e model.Engagement) []string {
	body := Clean(e.Prop("hs_note_body"), true)
	if body == "" {
		body = e.Prop("hs_body_preview")
	}
	return []string{
		fmt.Sprintf("### [%s] NOTE", formatTimestamp(e.Prop("hs_timestamp"))),
		"\n" + body + "\n",
		"---",
	}
}

func renderCall(e model.Engagement) []string {
	heading := fmt.Sprintf("### [%s] CALL: %s%s",
		formatTimestamp(e.Prop("hs_timestamp")),
		orDefault(e.Prop("hs_call_title"), "Call"),
		callDuration(e.Prop("hs_call_duration")))
	out := []string{heading}
	if body := e.Prop("hs_call_body"); body != "" {
		out = append(out, "\n"+Clean(body, true)+"\n")
	}
	return append(out, "---")
}

func renderMeeting(e model.Engagement) []string {
	out := []string{fmt.Sprintf("### [%s] MEETING: %s",
		formatTimestamp(e.Prop("hs_timestamp")),
		orDefault(e.Prop("hs_meeting_title"), "Meeting"))}
	if outcome := e.Prop("hs_meeting_outcome"); outcome != "" {
		out = append(out, fmt.Sprintf("**Outcome:** %s", outcome))
	}
	if body := e.Prop("hs_meeting_body"); body != "" {
		out = append(out, "\n"+Clean(body, true)+"\n")
	}
	return append(out, "---")
}

func renderTask(e model.Engagement) []string {
	out := []string{fmt.Sprintf("### [%s] TASK: %s [%s]",
		formatTimestamp(e.Prop("hs_timestamp")),
		orDefault(e.Prop("hs_task_subject"), "Task"),
		e.Prop("hs_task_status"))}
	if body := e.Prop("hs_task_body"); body != "" {
		out = append(out, "\n"+Clean(body, true)+"\n")
	}
	return append(out, "---")
}

// callDuration renders " (Xm Ys)" from a numeric duration value, or ""
// when the value is absent or non-numeric.
func callDuration(raw string) string {
	if raw == "" {
		return ""
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ""
	}
	secs := int(d)
	return fmt.Sprintf(" (%dm %ds)", secs/60, secs%60)
}

func appendURLSection(lines []string, ix *URLIndex) []string {
	lines = append(lines,
		"\n## Linked Documents & URLs",
		fmt.Sprintf("*%d unique URLs found in deal activities*\n", ix.Len()),
	)

	var docURLs, hubspotURLs, otherURLs []string
	for _, u := range ix.URLs() {
		switch classifyURL(u) {
		case bucketDocuments:
			docURLs = append(docURLs, u)
		case bucketInternal:
			hubspotURLs = append(hubspotURLs, u)
		case bucketOther:
			otherURLs = append(otherURLs, u)
		}
	}

	if len(docURLs) > 0 {
		lines = append(lines, "### Meeting Notes & Documents")
		for _, u := range docURLs {
			lines = appendURLEntry(lines, ix, u)
		}
	}
	if len(hubspotURLs) > 0 {
		lines = append(lines, "\n### HubSpot Links")
		for _, u := range hubspotURLs {
			lines = appendURLEntry(lines, ix, u)
		}
	}
	if len(otherURLs) > 0 {
		lines = append(lines, "\n### Other Links")
		for _, u := range otherURLs[:min(20, len(otherURLs))] {
			lines = appendURLEntry(lines, ix, u)
		}
		if len(otherURLs) > 20 {
			lines = append(lines, fmt.Sprintf("*... and %d more*", len(otherURLs)-20))
		}
	}

	return append(lines, "")
}

// appendURLEntry writes one URL line plus its provenance contexts,
// capped at three with an ellipsis when more exist.
func appendURLEntry(lines []string, ix *URLIndex, url string) []string {
	lines = append(lines, "- "+url)
	contexts := ix.Contexts(url)
	ctxStr := strings.Join(contexts[:min(3, len(contexts))], ", ")
	if len(contexts) > 3 {
		ctxStr += "..."
	}
	return append(lines, fmt.Sprintf("  *Found in: %s*", ctxStr))
}
