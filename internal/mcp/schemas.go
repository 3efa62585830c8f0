package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Full-text search over documents synchronized from Dropbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms matched against file names and content",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "1-based result page",
					"default":     1,
					"minimum":     1,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"file_types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict to file extensions without the dot (e.g. pdf, docx)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"start_date": map[string]interface{}{
					"type":        "string",
					"description": "Earliest creation time, RFC 3339 or YYYY-MM-DD",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"description": "Latest creation time, RFC 3339 or YYYY-MM-DD",
				},
				"min_size_mb": map[string]interface{}{
					"type":        "number",
					"description": "Minimum file size in megabytes",
					"minimum":     0,
				},
				"max_size_mb": map[string]interface{}{
					"type":        "number",
					"description": "Maximum file size in megabytes",
					"minimum":     0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index size and the outcome of the last synchronization runs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// syncFolderTool returns the tool definition for sync_folder
func syncFolderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_folder",
		Description: "Synchronize the Dropbox folder into the search index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "full re-lists the folder, incremental applies changes since the last cursor",
					"enum":        []string{"incremental", "full"},
					"default":     "incremental",
				},
			},
		},
	}
}
