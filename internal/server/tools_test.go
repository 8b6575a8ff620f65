package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedTools = []string{
	"colormatch_load",
	"colormatch_add_sample",
	"colormatch_list_samples",
	"colormatch_remove_sample",
	"colormatch_clear_samples",
	"colormatch_sample_color",
	"colormatch_region_preview",
	"colormatch_sample_overlay",
	"colormatch_run_search",
	"colormatch_status",
	"colormatch_poll_result",
	"colormatch_wait",
	"colormatch_cancel",
	"colormatch_matches",
}

func toolByName(t *testing.T, name string) Tool {
	t.Helper()
	for _, tool := range GetToolDefinitions() {
		if tool.Name == name {
			return tool
		}
	}
	require.Failf(t, "tool not found", "tool %s not found", name)
	return Tool{}
}

// toolProperty returns one property schema of a tool.
func toolProperty(t *testing.T, tool Tool, name string) map[string]interface{} {
	t.Helper()
	props, ok := tool.InputSchema["properties"].(map[string]interface{})
	require.True(t, ok, "InputSchema properties should be a map")
	prop, ok := props[name].(map[string]interface{})
	require.True(t, ok, "%s has no property %q", tool.Name, name)
	return prop
}

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, expectedTools, names)
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)
			require.NotNil(t, tool.InputSchema)
			assert.Equal(t, "object", tool.InputSchema["type"])
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			require.True(t, ok, "InputSchema properties should be a map")

			// Every required field must be declared.
			if required, ok := tool.InputSchema["required"].([]string); ok {
				for _, r := range required {
					assert.Contains(t, props, r, "required field has no property")
				}
			}
		})
	}
}

func TestToolDefinitions_AddSampleRequired(t *testing.T) {
	tool := toolByName(t, "colormatch_add_sample")

	required, ok := tool.InputSchema["required"].([]string)
	require.True(t, ok, "required should be a string slice")
	assert.ElementsMatch(t, []string{"x", "y", "width", "height", "expected"}, required)
}

func TestToolDefinitions_RunSearchGridOptional(t *testing.T) {
	tool := toolByName(t, "colormatch_run_search")

	assert.NotContains(t, tool.InputSchema, "required", "colormatch_run_search should not require any parameter")
	grid := toolProperty(t, tool, "grid")
	gridProps, ok := grid["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, gridProps, "diagonal")
	assert.Contains(t, gridProps, "off_diagonal")
}

func TestToolDefinitions_WaitDocumentsBlocking(t *testing.T) {
	tool := toolByName(t, "colormatch_wait")

	assert.Contains(t, tool.Description, "blocks the server")
	timeout := toolProperty(t, tool, "timeout_seconds")
	assert.Equal(t, maxWaitTimeout.Seconds(), float64(timeout["maximum"].(int)))
}

func TestToolDefinitions_LoadReload(t *testing.T) {
	tool := toolByName(t, "colormatch_load")

	reload := toolProperty(t, tool, "reload")
	assert.Equal(t, "boolean", reload["type"])
	assert.Equal(t, []string{"path"}, tool.InputSchema["required"])
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t)

	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	tools, ok := result["tools"].([]Tool)
	require.True(t, ok, "tools should be []Tool, got %T", result["tools"])
	assert.Len(t, tools, len(expectedTools))
}
