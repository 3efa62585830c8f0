package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeSyncInProgress = -32002 // Another full sync is already running
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// maxReportedErrors caps the error messages included in a sync report
const maxReportedErrors = 5

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	q := types.SearchQuery{
		Q:         query,
		Page:      getIntDefault(args, "page", 0),
		Limit:     getIntDefault(args, "limit", 0),
		FileTypes: getStrings(args, "file_types"),
	}

	var err error
	if q.DateRange.Start, err = getTime(args, "start_date"); err != nil {
		return nil, invalidParam("start_date", err)
	}
	if q.DateRange.End, err = getTime(args, "end_date"); err != nil {
		return nil, invalidParam("end_date", err)
	}
	if mb, ok := getFloat(args, "min_size_mb"); ok {
		bytes := types.MegabytesToBytes(mb)
		q.MinSize = &bytes
	}
	if mb, ok := getFloat(args, "max_size_mb"); ok {
		bytes := types.MegabytesToBytes(mb)
		q.MaxSize = &bytes
	}

	resp, err := s.searcher.Search(ctx, q)
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search parameters", map[string]interface{}{
			"param":  verr.Field,
			"reason": verr.Reason,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, hit := range resp.Results {
		result := map[string]interface{}{
			"file_name":     hit.FileName,
			"file_type":     hit.FileType,
			"file_size":     hit.FileSize,
			"dropbox_path":  hit.SourcePath,
			"created_at":    hit.CreatedAt.Format(time.RFC3339),
			"last_modified": hit.ModifiedAt.Format(time.RFC3339),
			"score":         hit.Score,
		}
		if hit.URL != "" {
			result["url"] = hit.URL
		}
		if len(hit.Highlights) > 0 {
			result["highlights"] = hit.Highlights
		}
		results = append(results, result)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":     results,
		"total":       resp.Total,
		"page":        resp.Page,
		"total_pages": resp.TotalPages,
		"cache_hit":   resp.CacheHit,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.syncer.Status()

	response := map[string]interface{}{
		"sync_running": status.Running,
		"has_cursor":   status.HasCursor,
	}
	if status.LastFull != nil {
		response["last_full_sync"] = summarize(status.LastFull)
	}
	if status.LastIncremental != nil {
		response["last_incremental_sync"] = summarize(status.LastIncremental)
	}

	if s.counter != nil {
		count, err := s.counter.Count(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to count documents", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["documents"] = count
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncFolder handles the sync_folder tool invocation
func (s *Server) handleSyncFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var (
		stats *indexer.Statistics
		err   error
	)
	switch mode := getStringDefault(args, "mode", string(indexer.ModeIncremental)); mode {
	case string(indexer.ModeIncremental):
		stats, err = s.syncer.RunIncrementalSync(ctx)
	case string(indexer.ModeFull):
		stats, err = s.syncer.RunFullSync(ctx)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{string(indexer.ModeIncremental), string(indexer.ModeFull)},
		})
	}

	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeSyncInProgress, "a full sync is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(summarize(stats))), nil
}

// summarize renders run statistics for tool output
func summarize(stats *indexer.Statistics) map[string]interface{} {
	counts := make(map[string]int, len(stats.Counts))
	for action, n := range stats.Counts {
		counts[string(action)] = n
	}

	summary := map[string]interface{}{
		"mode":        stats.Mode,
		"started_at":  stats.StartedAt.Format(time.RFC3339),
		"duration_ms": stats.Duration.Milliseconds(),
		"entries":     stats.Entries,
		"outcomes":    counts,
		"failures":    len(stats.Failures),
	}
	if stats.FellBack {
		summary["fell_back_to_full"] = true
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			summary["errors"] = stats.ErrorMessages[:maxReportedErrors]
			summary["error_count"] = errorCount
		} else {
			summary["errors"] = stats.ErrorMessages
		}
	}
	return summary
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func invalidParam(param string, err error) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+param, map[string]interface{}{
		"param":  param,
		"reason": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the call arguments, empty when absent
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloat extracts an optional numeric parameter
func getFloat(args map[string]interface{}, key string) (float64, bool) {
	switch val := args[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	}
	return 0, false
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStrings extracts a string array parameter
func getStrings(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val != "" {
			return []string{val}
		}
	}
	return nil
}

// getTime extracts an optional RFC 3339 or YYYY-MM-DD timestamp
func getTime(args map[string]interface{}, key string) (*time.Time, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", val)
}
