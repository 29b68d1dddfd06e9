package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register adds every tool of svc to server.
func Register(server *mcp.Server, svc *Service) {
	addTool(server, "list_qkviews",
		"List all QKView IDs in your iHealth account collection.",
		svc.ListQKViews)
	addTool(server, "upload_qkview",
		"Upload a QKView file to iHealth for analysis.",
		svc.UploadQKView)
	addTool(server, "delete_qkview",
		"Delete a specific QKView from your iHealth account by its ID.",
		svc.DeleteQKView)
	addTool(server, "delete_all_qkviews",
		"Delete ALL QKViews from your iHealth account. Use with extreme caution.",
		svc.DeleteAllQKViews)
	addTool(server, "get_qkview_metadata",
		"Get metadata for a specific QKView including serial number, timestamps, and case info.",
		svc.GetQKViewMetadata)
	addTool(server, "update_qkview_metadata",
		"Update metadata for a specific QKView such as description, visibility, and case numbers.",
		svc.UpdateQKViewMetadata)
	addTool(server, "get_qkview_diagnostics",
		"Get diagnostics for a QKView. Set diagnostic_set to 'hit' for issues found or 'miss' for passed checks.",
		svc.GetQKViewDiagnostics)
	addTool(server, "get_diagnostics_hits",
		"Get only the diagnostic hits (issues found) for a QKView.",
		svc.GetDiagnosticsHits)
	addTool(server, "get_diagnostics_misses",
		"Get only the diagnostic misses (passed checks) for a QKView.",
		svc.GetDiagnosticsMisses)
	addTool(server, "list_qkview_files",
		"List all files contained within a QKView, referenced by hash.",
		svc.ListQKViewFiles)
	addTool(server, "get_qkview_file",
		"Download a specific file from a QKView by its hash. Use 'qkview' as file_hash to get the original file.",
		svc.GetQKViewFile)
	addTool(server, "download_original_qkview",
		"Download the original QKView file that was uploaded.",
		svc.DownloadOriginalQKView)
	addTool(server, "list_available_commands",
		"List available tmsh commands that can be retrieved from a QKView.",
		svc.ListAvailableCommands)
	addTool(server, "get_command_output",
		"Get the output of a specific tmsh command captured in the QKView.",
		svc.GetCommandOutput)
	addTool(server, "get_bigip_info",
		"Get BIG-IP system information from a QKView including hardware, software, and licensing details.",
		svc.GetBigIPInfo)
	addTool(server, "get_bigip_slot_info",
		"Get BIG-IP information for a specific slot. Use slot 0 for appliances or specify blade slot for chassis.",
		svc.GetBigIPSlotInfo)
	addTool(server, "get_hardware_info",
		"Get hardware information from a QKView for a specific slot.",
		svc.GetHardwareInfo)
	addTool(server, "get_software_info",
		"Get software version information from a QKView for a specific slot.",
		svc.GetSoftwareInfo)
	addTool(server, "get_license_info",
		"Get licensing information from a QKView for a specific slot.",
		svc.GetLicenseInfo)
	addTool(server, "get_api_info",
		"Get F5 iHealth API version and operating parameters.",
		svc.GetAPIInfo)
	addTool(server, "search_qkview_logs",
		"Search through log files in a QKView for a specific term.",
		svc.SearchQKViewLogs)
	addTool(server, "validate_credentials",
		"Validate that the F5 iHealth API credentials are configured and working.",
		svc.ValidateCredentials)
}

// addTool adapts a Service method to an MCP tool handler. Each call gets its
// own logger carrying the tool name and a call ID.
func addTool[In any](server *mcp.Server, name, description string, fn func(context.Context, In) Result) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error) {
		logger := slog.Default().With("tool", name, "call_id", uuid.NewString())
		start := time.Now()

		result := fn(withLogger(ctx, logger), input)

		logger.DebugContext(ctx, "tool call finished",
			"is_error", result.IsError,
			"duration", time.Since(start),
		)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Text}},
			IsError: result.IsError,
		}, nil, nil
	})
}
