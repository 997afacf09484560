// Package brief builds the deal analysis document: it fetches the deal
// record with its associated contacts, companies, and engagements from
// the CRM, cleans engagement bodies, indexes linked URLs, and assembles
// everything into a single markdown artifact for the model prompt.
package brief

import (
	"html"
	"regexp"
	"strings"
)

// Cleaning rules, applied in fixed order. Later rules operate on
// already-detagged text.
var (
	// markupTag matches any tag-like angle span: "<p>", "</div>", "<br/>".
	markupTag = regexp.MustCompile(`<[^>]+>`)

	// wrappedURL matches an angle-bracket-wrapped URL: "<https://a.com/b>"
	wrappedURL = regexp.MustCompile(`<(https?://[^>]+)>`)

	// bareURL matches an unwrapped URL token.
	bareURL = regexp.MustCompile(`https?://\S+`)

	// emailOnlyLine matches a signature line holding just an address: "jo@acme.com"
	emailOnlyLine = regexp.MustCompile(`(?m)^\s*[\w.-]+@[\w.-]+\.\w+\s*$`)

	// phoneOnlyLine matches a signature line holding just a phone number:
	// "(555) 123-4567", "555.123.4567"
	phoneOnlyLine = regexp.MustCompile(`(?m)^\s*\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\s*$`)

	// quotedReplyBlock matches a reply header like
	// "On Mon, Jan 12, 2026 at 3:04 PM Jo Smith wrote:" and everything after it.
	quotedReplyBlock = regexp.MustCompile(`(?s)On\s+\w{3},\s+\w{3}\s+\d{1,2},\s+\d{4}\s+at\s+[\d:]+\s*[AP]M.*?wrote:.*`)

	// quotedLine matches "> quoted text" reply lines.
	quotedLine = regexp.MustCompile(`(?m)^\s*>.*$`)

	// mailHeaderLine matches forwarded-mail headers, optionally bolded:
	// "From: jo@acme.com", "*Subject:* Renewal"
	mailHeaderLine = regexp.MustCompile(`(?m)^\s*\*?(?:From|Sent|To|Cc|Subject|Date):\*?\s*.*$`)

	// Whitespace normalization.
	tripleNewline = regexp.MustCompile(`\n{3,}`)
	horizontalWS  = regexp.MustCompile(`[ \t]+`)
	blankRun      = regexp.MustCompile(`\n\s*\n`)
)

// Clean strips markup and mail noise from an engagement body, returning
// plain text. With preserveURLs, angle-wrapped URLs are unwrapped to
// bare form so they survive into the output; without it, wrapped and
// bare URLs are removed entirely. This is a best-effort heuristic
// cleaner: rules 4-7 can misfire on unusual signatures, which is
// accepted.
func Clean(raw string, preserveURLs bool) string {
	if raw == "" {
		return ""
	}

	// 1. Strip markup tags. Angle-wrapped URLs are not markup; leave
	// them for the URL rules below.
	text := markupTag.ReplaceAllStringFunc(raw, func(m string) string {
		if strings.HasPrefix(m, "<http://") || strings.HasPrefix(m, "<https://") {
			return m
		}
		return " "
	})

	// 2. Decode entities, which can reintroduce literal angle brackets.
	text = html.UnescapeString(text)

	// 3. URL handling.
	if preserveURLs {
		text = wrappedURL.ReplaceAllString(text, "$1")
	} else {
		text = wrappedURL.ReplaceAllString(text, "")
		text = bareURL.ReplaceAllString(text, "")
	}

	// 4-7. Signature and reply noise.
	text = emailOnlyLine.ReplaceAllString(text, "")
	text = phoneOnlyLine.ReplaceAllString(text, "")
	text = quotedReplyBlock.ReplaceAllString(text, "")
	text = quotedLine.ReplaceAllString(text, "")
	text = mailHeaderLine.ReplaceAllString(text, "")

	// 8. Whitespace normalization.
	text = tripleNewline.ReplaceAllString(text, "\n\n")
	text = horizontalWS.ReplaceAllString(text, " ")
	text = blankRun.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
