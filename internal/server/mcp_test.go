package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/smolex/internal/resolver"
)

// Test Plan for MCP tools:
// - lookup_interface returns structured items tagged with their source
// - lookup_code returns source strings, or the semantic answer on a miss
// - JSON-encoded and bare string arguments are coerced to arrays
// - Missing name arrays are tool errors; empty arrays fall back like any miss
// - Resolver failures are reported as tool errors
// - Both tools are registered on the server
// - ServeMCP answers over the given streams and stops when ctx is cancelled

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (*mcp.CallToolResult, string) {
	t.Helper()

	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err, "should not return system error")
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	return result, textContent.Text
}

func TestLookupInterfaceTool(t *testing.T) {
	t.Parallel()

	handler := createLookupInterfaceHandler(fooResolver(t))
	result, text := callTool(t, handler, map[string]interface{}{
		"class_names": []interface{}{"Foo"},
	})
	assert.False(t, result.IsError)

	var response struct {
		Source string          `json:"source"`
		Data   []InterfaceItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "structured", response.Source)
	require.Len(t, response.Data, 1)
	assert.Equal(t, "class Foo:\n    def bar(self):\n        ...\n", response.Data[0].Interface)
}

func TestLookupCodeTool(t *testing.T) {
	t.Parallel()

	handler := createLookupCodeHandler(fooResolver(t))

	_, text := callTool(t, handler, map[string]interface{}{"items": []interface{}{"bar"}})
	var response ToolResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "structured", response.Source)
	assert.Equal(t, []any{"def bar(self):\n    return 1"}, response.Data)

	_, text = callTool(t, handler, map[string]interface{}{"items": `["Baz"]`})
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "semantic", response.Source)
	assert.Equal(t, []any{"class Baz:\n    def run(self): ..."}, response.Data)
}

func TestBindArguments_Coercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"array", []interface{}{"A", "B"}, []string{"A", "B"}},
		{"string slice", []string{"A"}, []string{"A"}},
		{"json string", `["A", "B"]`, []string{"A", "B"}},
		{"bare string", "A", []string{"A"}},
	}
	for _, tt := range tests {
		var args lookupCodeArgs
		request := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]interface{}{"items": tt.raw}}}
		require.NoError(t, bindArguments(request, &args), tt.name)
		assert.Equal(t, tt.want, args.Items, tt.name)
	}
}

func TestLookupTools_MissingArguments(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{}
	handler := createLookupInterfaceHandler(lookup)

	for _, args := range []map[string]interface{}{
		{},
		{"class_names": nil},
	} {
		result, text := callTool(t, handler, args)
		assert.True(t, result.IsError)
		assert.Contains(t, text, "class_names parameter is required")
	}
	assert.Nil(t, lookup.names)
}

func TestLookupTools_EmptyListFallsBack(t *testing.T) {
	t.Parallel()

	handler := createLookupCodeHandler(fooResolver(t))
	result, text := callTool(t, handler, map[string]interface{}{"items": []interface{}{}})
	assert.False(t, result.IsError)

	var response ToolResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "semantic", response.Source)
	assert.Equal(t, []any{"class Baz:\n    def run(self): ..."}, response.Data)
}

func TestLookupTools_ResolverError(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{err: &resolver.FallbackError{Query: "q", Err: errors.New("index offline")}}
	result, text := callTool(t, createLookupCodeHandler(lookup), map[string]interface{}{
		"items": []interface{}{"X"},
	})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "index offline")
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	t.Parallel()

	s := NewMCPServer(&fakeLookup{}, "test")
	tools := s.ListTools()
	assert.Contains(t, tools, "lookup_interface")
	assert.Contains(t, tools, "lookup_code")
}

func TestServeMCP_StopsOnCancel(t *testing.T) {
	t.Parallel()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	defer outR.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeMCP(ctx, NewMCPServer(&fakeLookup{}, "test"), inR, outW)
	}()

	_, err := io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n")
	require.NoError(t, err)

	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	var response struct {
		ID     int             `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &response))
	assert.Equal(t, 1, response.ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeMCP did not return after cancel")
	}
}
