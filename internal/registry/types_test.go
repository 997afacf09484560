package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	// Replace global logger with no-op for tests (suppress warning output).
	zap.ReplaceGlobals(zap.NewNop())
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	path := writeSeedFile(t, `
analysis_types:
  - type_id: risk_assessment
    name: Risk Assessment
    description: Scores deal risk
    system_prompt: You are a deal risk analyst.
    metadata:
      team: revops
  - type_id: comp_analysis
    system_prompt: Compare this deal against market comps.
`)

	types, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, types, 2)

	assert.Equal(t, "risk_assessment", types[0].ID)
	assert.Equal(t, "Risk Assessment", types[0].Name)
	assert.Equal(t, "Scores deal risk", types[0].Description)
	assert.Equal(t, "You are a deal risk analyst.", types[0].SystemPrompt)
	assert.True(t, types[0].Active)
	assert.Equal(t, "revops", types[0].Metadata["team"])

	// Name falls back to the type ID.
	assert.Equal(t, "comp_analysis", types[1].Name)
}

func TestLoadSeedFile_MissingFile(t *testing.T) {
	types, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Nil(t, types)
	assert.Contains(t, err.Error(), "registry: read seed file")
}

func TestLoadSeedFile_Empty(t *testing.T) {
	path := writeSeedFile(t, "analysis_types: []\n")

	types, err := LoadSeedFile(path)
	assert.Error(t, err)
	assert.Nil(t, types)
	assert.Contains(t, err.Error(), "no analysis types")
}

func TestLoadSeedFile_MissingTypeID(t *testing.T) {
	path := writeSeedFile(t, `
analysis_types:
  - name: Unnamed
    system_prompt: prompt
`)

	_, err := LoadSeedFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing type_id")
}

func TestLoadSeedFile_MissingSystemPrompt(t *testing.T) {
	path := writeSeedFile(t, `
analysis_types:
  - type_id: risk_assessment
    name: Risk Assessment
`)

	_, err := LoadSeedFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing system_prompt")
}

func TestLoadSeedFile_MalformedYAML(t *testing.T) {
	path := writeSeedFile(t, "analysis_types: {not: [valid")

	_, err := LoadSeedFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registry: parse seed file")
}

func TestSyncFromNotion(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "types-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == "Active"
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{
			makeTypePage("page-1", "risk_assessment", "Risk Assessment", "Scores deal risk", "You are a deal risk analyst."),
			makeTypePage("page-2", "comp_analysis", "Comp Analysis", "", "Compare against market comps."),
		},
		HasMore: false,
	}, nil).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.NoError(t, err)
	require.Len(t, types, 2)

	assert.Equal(t, "risk_assessment", types[0].ID)
	assert.Equal(t, "Risk Assessment", types[0].Name)
	assert.Equal(t, "Scores deal risk", types[0].Description)
	assert.Equal(t, "You are a deal risk analyst.", types[0].SystemPrompt)
	assert.True(t, types[0].Active)
	assert.Equal(t, "page-1", types[0].Metadata["notion_page_id"])

	assert.Equal(t, "comp_analysis", types[1].ID)
	assert.Empty(t, types[1].Description)
	mc.AssertExpectations(t)
}

func TestSyncFromNotion_Pagination(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	// First page.
	mc.On("QueryDatabase", ctx, "types-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{makeTypePage("page-1", "risk_assessment", "Risk Assessment", "", "Assess risk.")},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cursor-2"),
	}, nil).Once()

	// Second page.
	mc.On("QueryDatabase", ctx, "types-db", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor("cursor-2")
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{makeTypePage("page-2", "comp_analysis", "Comp Analysis", "", "Compare.")},
		HasMore: false,
	}, nil).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "risk_assessment", types[0].ID)
	assert.Equal(t, "comp_analysis", types[1].ID)
	mc.AssertExpectations(t)
}

func TestSyncFromNotion_MalformedPagesSkipped(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "types-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				makeTypePage("page-1", "risk_assessment", "Risk Assessment", "", "Assess risk."),
				makeTypePage("page-2", "", "No Type ID", "", "Prompt."),
				makeTypePage("page-3", "no_prompt", "No Prompt", "", ""),
			},
			HasMore: false,
		}, nil).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.NoError(t, err) // malformed pages are warnings, not errors
	require.Len(t, types, 1)
	assert.Equal(t, "risk_assessment", types[0].ID)
	mc.AssertExpectations(t)
}

func TestSyncFromNotion_NameFallsBackToTypeID(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "types-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{makeTypePage("page-1", "risk_assessment", "", "", "Assess risk.")},
			HasMore: false,
		}, nil).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "risk_assessment", types[0].Name)
	mc.AssertExpectations(t)
}

func TestSyncFromNotion_Empty(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "types-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{},
			HasMore: false,
		}, nil).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.NoError(t, err)
	assert.Empty(t, types)
	mc.AssertExpectations(t)
}

func TestSyncFromNotion_QueryError(t *testing.T) {
	mc := new(mockNotionClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "types-db", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	types, err := SyncFromNotion(ctx, mc, "types-db")
	assert.Error(t, err)
	assert.Nil(t, types)
	assert.Contains(t, err.Error(), "registry: sync analysis types")
	mc.AssertExpectations(t)
}

// makeTypePage builds a fake notionapi.Page with analysis-type properties.
// Property names match the team's Analysis Types Notion DB.
func makeTypePage(id, typeID, name, description, systemPrompt string) notionapi.Page {
	props := make(notionapi.Properties)

	props["Name"] = &notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{{PlainText: name}},
	}

	props["Type ID"] = &notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{{PlainText: typeID}},
	}

	props["Description"] = &notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{{PlainText: description}},
	}

	props["System Prompt"] = &notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{{PlainText: systemPrompt}},
	}

	props["Status"] = &notionapi.StatusProperty{
		Type:   notionapi.PropertyTypeStatus,
		Status: notionapi.Status{Name: "Active"},
	}

	return notionapi.Page{
		ID:         notionapi.ObjectID(id),
		Properties: props,
	}
}
