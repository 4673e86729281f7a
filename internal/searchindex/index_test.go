package searchindex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/registryclient"
	"github.com/mcpctl/orchestrator/internal/searchindex"
)

func sampleTools() []registryclient.RegistryTool {
	return []registryclient.RegistryTool{
		{
			ID:          "weather",
			Name:        "Weather Forecast",
			Description: "Get current weather and forecasts for any city",
			Publisher:   registryclient.Publisher{Name: "Acme Corp"},
			Categories:  []string{"weather", "utility"},
		},
		{
			ID:          "jira",
			Name:        "Jira Integration",
			Description: "Search and manage Jira issues and projects",
			Publisher:   registryclient.Publisher{Name: "Atlassian"},
			Categories:  []string{"productivity", "development"},
		},
		{
			ID:          "github",
			Name:        "GitHub Tools",
			Description: "Work with GitHub repositories, issues, and pull requests",
			Publisher:   registryclient.Publisher{Name: "GitHub"},
			Categories:  []string{"development"},
		},
	}
}

func TestIndex_Search_RanksRelevantDocFirst(t *testing.T) {
	idx := searchindex.New(sampleTools())

	results, err := idx.Search("weather")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "weather", results[0].Tool.ID)
}

func TestIndex_Search_MatchesAcrossFields(t *testing.T) {
	idx := searchindex.New(sampleTools())

	results, err := idx.Search("development")
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.Tool.ID] = true
	}
	assert.True(t, ids["jira"])
	assert.True(t, ids["github"])
	assert.False(t, ids["weather"])
}

func TestIndex_Search_EmptyQuery_QueryError(t *testing.T) {
	idx := searchindex.New(sampleTools())

	_, err := idx.Search("   ")
	require.Error(t, err)
	assert.Equal(t, orcherr.QueryError, orcherr.KindOf(err))
}

func TestIndex_Search_NoMatches_EmptyResults(t *testing.T) {
	idx := searchindex.New(sampleTools())

	results, err := idx.Search("nonexistentterm")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_ResultsSortedDescending(t *testing.T) {
	idx := searchindex.New(sampleTools())

	results, err := idx.Search("issues")
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestIndex_Rebuild_ReplacesContents(t *testing.T) {
	idx := searchindex.New(sampleTools())

	idx.Rebuild([]registryclient.RegistryTool{
		{ID: "slack", Name: "Slack Messaging", Description: "Send and receive Slack messages"},
	})

	results, err := idx.Search("weather")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search("slack")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "slack", results[0].Tool.ID)
}

func TestIndex_Search_EmptyIndex(t *testing.T) {
	idx := searchindex.New(nil)

	results, err := idx.Search("anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}
