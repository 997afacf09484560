// Package registry loads the analysis-type catalog from its seed
// sources: a YAML file checked into the repo and the team's Notion
// database. The store is authoritative at runtime; these loaders only
// feed SeedAnalysisTypes.
package registry

import (
	"context"
	"os"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/pkg/notion"
)

type seedFile struct {
	AnalysisTypes []seedType `yaml:"analysis_types"`
}

type seedType struct {
	ID           string         `yaml:"type_id"`
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	SystemPrompt string         `yaml:"system_prompt"`
	Metadata     map[string]any `yaml:"metadata"`
}

// LoadSeedFile reads analysis types from a YAML seed file. Every entry
// needs a type_id and a system_prompt; name falls back to the type_id.
func LoadSeedFile(path string) ([]model.AnalysisType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read seed file %s", path)
	}

	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, eris.Wrap(err, "registry: parse seed file")
	}
	if len(sf.AnalysisTypes) == 0 {
		return nil, eris.Errorf("registry: no analysis types in %s", path)
	}

	types := make([]model.AnalysisType, 0, len(sf.AnalysisTypes))
	for i, st := range sf.AnalysisTypes {
		if st.ID == "" {
			return nil, eris.Errorf("registry: seed entry %d: missing type_id", i+1)
		}
		if st.SystemPrompt == "" {
			return nil, eris.Errorf("registry: seed type %s: missing system_prompt", st.ID)
		}
		name := st.Name
		if name == "" {
			name = st.ID
		}
		types = append(types, model.AnalysisType{
			ID:           st.ID,
			Name:         name,
			Description:  st.Description,
			SystemPrompt: st.SystemPrompt,
			Active:       true,
			Metadata:     st.Metadata,
		})
	}
	return types, nil
}

// SyncFromNotion queries the Notion analysis-type database for all
// active rows and returns them as model.AnalysisType values. Rows
// missing a Type ID or System Prompt are skipped with a warning.
func SyncFromNotion(ctx context.Context, client notion.Client, dbID string) ([]model.AnalysisType, error) {
	pages, err := notion.QueryActive(ctx, client, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "registry: sync analysis types")
	}

	var types []model.AnalysisType
	for _, p := range pages {
		at, err := parseTypePage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed analysis-type page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		types = append(types, at)
	}

	return types, nil
}

func parseTypePage(p notionapi.Page) (model.AnalysisType, error) {
	at := model.AnalysisType{
		Active:   true,
		Metadata: map[string]any{"notion_page_id": string(p.ID)},
	}

	// Name (title)
	if prop, ok := p.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			at.Name = plainText(tp.Title)
		}
	}

	// Type ID (rich_text)
	if prop, ok := p.Properties["Type ID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			at.ID = plainText(rtp.RichText)
		}
	}

	// Description (rich_text)
	if prop, ok := p.Properties["Description"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			at.Description = plainText(rtp.RichText)
		}
	}

	// System Prompt (rich_text)
	if prop, ok := p.Properties["System Prompt"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			at.SystemPrompt = plainText(rtp.RichText)
		}
	}

	if at.ID == "" {
		return at, eris.New("missing Type ID property")
	}
	if at.SystemPrompt == "" {
		return at, eris.New("missing System Prompt property")
	}
	if at.Name == "" {
		at.Name = at.ID
	}

	return at, nil
}

// plainText concatenates the plain_text values from a slice of RichText.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
