package analysis

import (
	"fmt"
	"strings"

	"github.com/sells-group/dealbrief/internal/model"
)

// ParseSections splits a markdown analysis into its h2-delimited
// sections. Section IDs are positional (section_1, section_2, ...) so
// feedback rows stay attached to a slot even when titles are reworded.
// Text before the first heading is dropped.
func ParseSections(markdown string) []model.Section {
	sections := []model.Section{}

	var current *model.Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		sections = append(sections, *current)
	}

	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &model.Section{
				ID:    fmt.Sprintf("section_%d", len(sections)+1),
				Title: strings.TrimSpace(line[3:]),
			}
			body = nil
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	return sections
}
