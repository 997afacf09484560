package brief

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/dealbrief/internal/model"
)

// urlToken matches a URL-like token; the final character class refuses
// likely sentence-terminator punctuation, so "https://a.com/b." yields
// "https://a.com/b".
var urlToken = regexp.MustCompile(`https?://[^\s<>"']+[^\s<>"'.,]`)

// ExtractURLs returns the URLs found in content with trailing
// punctuation trimmed, deduplicated in first-encounter order.
func ExtractURLs(content string) []string {
	if content == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range urlToken.FindAllString(content, -1) {
		u := strings.TrimRight(m, ".,;:")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// URLIndex is an ordered URL-to-provenance mapping. Iteration order is
// first-encounter order across the aggregated engagements, which
// follows category-catalog order rather than chronological order.
type URLIndex struct {
	order    []string
	contexts map[string][]string
}

func NewURLIndex() *URLIndex {
	return &URLIndex{contexts: make(map[string][]string)}
}

// Add appends a provenance context for url, registering the URL on
// first sight.
func (ix *URLIndex) Add(url, context string) {
	if _, ok := ix.contexts[url]; !ok {
		ix.order = append(ix.order, url)
	}
	ix.contexts[url] = append(ix.contexts[url], context)
}

// Len reports the number of distinct URLs indexed.
func (ix *URLIndex) Len() int {
	return len(ix.order)
}

// URLs returns the indexed URLs in first-encounter order.
func (ix *URLIndex) URLs() []string {
	return ix.order
}

// Contexts returns the provenance labels recorded for url, in append
// order.
func (ix *URLIndex) Contexts(url string) []string {
	return ix.contexts[url]
}

// CollectURLs indexes every URL found in engagement bodies together
// with a human-readable provenance label. Each body is cleaned with
// URLs preserved first, so angle-wrapped URLs are unwrapped into
// extractable form and quoted-reply noise does not contribute entries.
func CollectURLs(engagements []model.Engagement) *URLIndex {
	ix := NewURLIndex()
	for _, eng := range engagements {
		content, label := urlSource(eng)
		for _, u := range ExtractURLs(Clean(content, true)) {
			ix.Add(u, label)
		}
	}
	return ix
}

// urlSource picks the body property scanned for URLs and builds the
// provenance label for one engagement.
func urlSource(eng model.Engagement) (content, label string) {
	ts := formatTimestamp(eng.Prop("hs_timestamp"))
	switch eng.Category {
	case model.CategoryEmail:
		content = eng.Prop("hs_email_text")
		if content == "" {
			content = eng.Prop("hs_email_html")
		}
		label = fmt.Sprintf("Email: %s (%s)", orDefault(eng.Prop("hs_email_subject"), "(No subject)"), ts)
	case model.CategoryNote:
		content = eng.Prop("hs_note_body")
		label = fmt.Sprintf("Note (%s)", ts)
	case model.CategoryCall:
		content = eng.Prop("hs_call_body")
		label = fmt.Sprintf("Call: %s (%s)", orDefault(eng.Prop("hs_call_title"), "Call"), ts)
	case model.CategoryMeeting:
		content = eng.Prop("hs_meeting_body")
		label = fmt.Sprintf("Meeting: %s (%s)", orDefault(eng.Prop("hs_meeting_title"), "Meeting"), ts)
	case model.CategoryTask:
		content = eng.Prop("hs_task_body")
		label = fmt.Sprintf("Task: %s (%s)", orDefault(eng.Prop("hs_task_subject"), "Task"), ts)
	}
	return content, label
}

// documentHosts mark collaborative-doc and file-storage links.
var documentHosts = []string{
	"docs.google", "drive.google", "notion.so", "dropbox", "sharepoint", "onedrive",
}

type urlBucket int

const (
	bucketDocuments urlBucket = iota
	bucketInternal
	bucketOther
)

// classifyURL assigns a URL to a presentation bucket. Classification
// never alters dedup identity.
func classifyURL(url string) urlBucket {
	lower := strings.ToLower(url)
	for _, host := range documentHosts {
		if strings.Contains(lower, host) {
			return bucketDocuments
		}
	}
	if strings.Contains(lower, "hubspot") {
		return bucketInternal
	}
	return bucketOther
}
