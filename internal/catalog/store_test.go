package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpctl/orchestrator/internal/catalog"
	"github.com/mcpctl/orchestrator/internal/mcprotocol"
	"github.com/mcpctl/orchestrator/internal/orcherr"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleServer(id string) catalog.ServerDefinition {
	return catalog.ServerDefinition{
		ID:          id,
		Name:        "Weather Tool",
		Description: "fetches weather data",
		ToolsType:   catalog.ToolsTypeNode,
		Enabled:     true,
		EntryPoint:  "dist/index.js",
		Configuration: catalog.Configuration{
			Command: "node",
			Args:    []string{"dist/index.js"},
			Env: map[string]catalog.EnvVar{
				"API_KEY": {Description: "weather API key", Required: true},
			},
		},
		ServerType:       catalog.ServerKindPackage,
		WorkingDirectory: "/srv/weather",
	}
}

func TestStore_SaveAndGetServer(t *testing.T) {
	s := newTestStore(t)

	def := sampleServer("weather")
	require.NoError(t, s.SaveServer(def))

	got, err := s.GetServer("weather")
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.ToolsType, got.ToolsType)
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{"dist/index.js"}, got.Configuration.Args)
	require.Contains(t, got.Configuration.Env, "API_KEY")
	assert.True(t, got.Configuration.Env["API_KEY"].Required)
}

func TestStore_GetServer_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetServer("missing")
	require.Error(t, err)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}

func TestStore_SaveServer_UpsertReplacesEnv(t *testing.T) {
	s := newTestStore(t)

	def := sampleServer("weather")
	require.NoError(t, s.SaveServer(def))

	def.Configuration.Env = map[string]catalog.EnvVar{
		"REGION": {Description: "region code"},
	}
	require.NoError(t, s.SaveServer(def))

	got, err := s.GetServer("weather")
	require.NoError(t, err)
	assert.NotContains(t, got.Configuration.Env, "API_KEY")
	assert.Contains(t, got.Configuration.Env, "REGION")
}

func TestStore_GetAllServers_InsertionOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveServer(sampleServer("b-server")))
	require.NoError(t, s.SaveServer(sampleServer("a-server")))
	require.NoError(t, s.SaveServer(sampleServer("c-server")))

	all, err := s.GetAllServers()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b-server", "a-server", "c-server"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestStore_DeleteServer_CascadesTools(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveServer(sampleServer("weather")))
	require.NoError(t, s.SaveServerTool(catalog.ServerToolInfo{
		ServerID: "weather",
		ID:       "get_forecast",
		Name:     "get_forecast",
	}))

	require.NoError(t, s.DeleteServer("weather"))

	_, err := s.GetServer("weather")
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))

	tools, err := s.GetServerTools("weather")
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestStore_DeleteServer_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteServer("missing")
	require.Error(t, err)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}

func TestStore_ServerTools_SaveGetDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveServer(sampleServer("weather")))

	schema := &mcprotocol.JSONSchema{
		Type: mcprotocol.NewSchemaTypeString("object"),
		Properties: map[string]*mcprotocol.JSONSchema{
			"city": {Type: mcprotocol.NewSchemaTypeString("string")},
		},
		Required: []string{"city"},
	}

	require.NoError(t, s.SaveServerTool(catalog.ServerToolInfo{
		ServerID:    "weather",
		ID:          "get_forecast",
		Name:        "get_forecast",
		Description: "get a forecast",
		InputSchema: schema,
	}))

	tools, err := s.GetServerTools("weather")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "get_forecast", tools[0].Name)
	require.NotNil(t, tools[0].InputSchema)
	assert.Equal(t, []string{"object"}, tools[0].InputSchema.Type.Strings())

	require.NoError(t, s.DeleteServerTool("get_forecast", "weather"))
	tools, err = s.GetServerTools("weather")
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestStore_ServerTools_UpsertByCompositeKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveServer(sampleServer("weather")))

	require.NoError(t, s.SaveServerTool(catalog.ServerToolInfo{ServerID: "weather", ID: "t1", Name: "old name"}))
	require.NoError(t, s.SaveServerTool(catalog.ServerToolInfo{ServerID: "weather", ID: "t1", Name: "new name"}))

	tools, err := s.GetServerTools("weather")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "new name", tools[0].Name)
}

func TestStore_Settings_SaveGetUpsert(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSetting(catalog.SettingToolsHidden)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))

	require.NoError(t, s.SaveSetting(catalog.SettingToolsHidden, "true"))
	v, err := s.GetSetting(catalog.SettingToolsHidden)
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	require.NoError(t, s.SaveSetting(catalog.SettingToolsHidden, "false"))
	v, err = s.GetSetting(catalog.SettingToolsHidden)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestStore_ClearAll(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveServer(sampleServer("weather")))
	require.NoError(t, s.SaveSetting(catalog.SettingToolsHidden, "true"))

	require.NoError(t, s.ClearAll())

	all, err := s.GetAllServers()
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.GetSetting(catalog.SettingToolsHidden)
	assert.Equal(t, orcherr.NotFound, orcherr.KindOf(err))
}
