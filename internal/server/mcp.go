package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the lookup tools.
func NewMCPServer(lookup Lookuper, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"smolex",
		version,
		server.WithToolCapabilities(true),
	)
	AddLookupInterfaceTool(s, lookup)
	AddLookupCodeTool(s, lookup)
	return s
}

// ServeMCP serves s over the given stdio streams until ctx is cancelled or
// in is exhausted.
func ServeMCP(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	if err := stdio.Listen(ctx, in, out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// AddLookupInterfaceTool registers the lookup_interface tool.
func AddLookupInterfaceTool(s *server.MCPServer, lookup Lookuper) {
	tool := mcp.NewTool(
		"lookup_interface",
		mcp.WithDescription(`Get the interface of existing classes in the indexed codebase: class header, docstring, and method signatures with docstrings, bodies omitted.

Use this before writing code that calls into an existing class.
If no class matches exactly, the answer comes from a semantic search over the codebase instead.`),
		mcp.WithArray("class_names",
			mcp.Required(),
			mcp.Description("Class names to look up, e.g. ['UserRepository', 'Config']")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createLookupInterfaceHandler(lookup))
}

// AddLookupCodeTool registers the lookup_code tool.
func AddLookupCodeTool(s *server.MCPServer, lookup Lookuper) {
	tool := mcp.NewTool(
		"lookup_code",
		mcp.WithDescription(`Get the full existing source code of classes, methods or functions in the indexed codebase.

If no definition matches exactly, the answer comes from a semantic search over the codebase instead.`),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description("Names of classes, methods or functions, e.g. ['parse_config', 'Router']")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createLookupCodeHandler(lookup))
}

// ToolResponse is the JSON body of a lookup tool result.
type ToolResponse struct {
	Source string `json:"source"`
	Data   []any  `json:"data"`
}

type lookupInterfaceArgs struct {
	ClassNames []string `json:"class_names"`
}

type lookupCodeArgs struct {
	Items []string `json:"items"`
}

func createLookupInterfaceHandler(lookup Lookuper) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !hasArgument(request, "class_names") {
			return mcp.NewToolResultError("class_names parameter is required"), nil
		}
		var args lookupInterfaceArgs
		if err := bindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := lookup.LookupInterface(ctx, args.ClassNames)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		response := ToolResponse{Source: result.Source.String(), Data: []any{}}
		for _, v := range result.Structured {
			response.Data = append(response.Data, toInterfaceItem(v))
		}
		if result.Semantic != "" {
			response.Data = append(response.Data, result.Semantic)
		}
		return jsonResult(response)
	}
}

func createLookupCodeHandler(lookup Lookuper) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !hasArgument(request, "items") {
			return mcp.NewToolResultError("items parameter is required"), nil
		}
		var args lookupCodeArgs
		if err := bindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := lookup.LookupCode(ctx, args.Items)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		response := ToolResponse{Source: result.Source.String(), Data: []any{}}
		for _, source := range result.Structured {
			response.Data = append(response.Data, source)
		}
		if result.Semantic != "" {
			response.Data = append(response.Data, result.Semantic)
		}
		return jsonResult(response)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
