package store

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"

	"github.com/sells-group/dealbrief/internal/model"
)

// sectionHeading counts h2 headers in a stored response; each heading
// is one reviewable section.
var sectionHeading = regexp.MustCompile(`(?m)^## `)

// statRow is one stored analysis as read for stats aggregation.
type statRow struct {
	AnalysisID   string
	TypeID       string
	TypeName     string
	FullResponse string
}

// aggregateFeedbackStats folds analysis rows and per-analysis negative
// feedback counts into per-type accuracy stats. Sections without
// feedback count as good. Analyses whose responses contain no sections
// are skipped. Both backends share this so the math cannot drift.
func aggregateFeedbackStats(rows []statRow, negatives map[string]int) []model.FeedbackStat {
	byType := map[string]*model.FeedbackStat{}
	var order []string

	for _, row := range rows {
		sections := len(sectionHeading.FindAllStringIndex(row.FullResponse, -1))
		if sections == 0 {
			continue
		}

		st, ok := byType[row.TypeID]
		if !ok {
			name := row.TypeName
			if name == "" {
				name = row.TypeID
			}
			st = &model.FeedbackStat{TypeID: row.TypeID, Name: name}
			byType[row.TypeID] = st
			order = append(order, row.TypeID)
		}

		st.TotalSections += sections
		st.NegativeFeedback += negatives[row.AnalysisID]
		st.AnalysisCount++
	}

	stats := make([]model.FeedbackStat, 0, len(order))
	for _, typeID := range order {
		st := byType[typeID]
		st.Accuracy = accuracyPct(st.TotalSections, st.NegativeFeedback)
		stats = append(stats, *st)
	}

	// Most used types first.
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].AnalysisCount > stats[j].AnalysisCount
	})

	return stats
}

// accuracyPct is (total - negative) / total as a rounded percentage.
func accuracyPct(total, negative int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(total-negative) / float64(total) * 100))
}

// marshalMetadata renders a metadata map as JSON, empty object when nil.
func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
