// Package mcp implements the Model Context Protocol (MCP) server for dropsearch.
//
// The MCP server exposes three tools to AI assistants:
//   - search_documents: full-text search over the synchronized documents
//   - get_status: index size and the last synchronization runs
//   - sync_folder: run a full or incremental synchronization on demand
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so stdout carries protocol messages only.
//
// # Basic Usage
//
//	dropsearch mcp
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "quarterly budget",
//	    "file_types": ["pdf", "docx"],
//	    "start_date": "2024-01-01",
//	    "max_size_mb": 10,
//	    "page": 1,
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "file_name": "Q3-budget.pdf",
//	      "file_type": "pdf",
//	      "file_size": 482113,
//	      "dropbox_path": "/reports/Q3-budget.pdf",
//	      "created_at": "2024-01-03T09:12:44Z",
//	      "last_modified": "2024-01-05T16:20:02Z",
//	      "score": 7.31,
//	      "url": "https://dl.dropboxusercontent.com/...",
//	      "highlights": ["Q3 <em>budget</em> summary..."]
//	    }
//	  ],
//	  "total": 1,
//	  "page": 1,
//	  "total_pages": 1,
//	  "cache_hit": false
//	}
//
// # Tool: get_status
//
//	Response:
//	{
//	  "sync_running": false,
//	  "has_cursor": true,
//	  "documents": 1284,
//	  "last_full_sync": {"mode": "full", "entries": 1290, "outcomes": {...}, ...}
//	}
//
// # Tool: sync_folder
//
// mode is "incremental" (default) or "full". The response is the run
// summary in the same shape as last_full_sync above.
//
// # Error Codes
//
//   - -32602: invalid parameters (bad dates, page or limit out of range)
//   - -32603: internal error (index unavailable, provider failure)
//   - -32002: a full sync is already running
//   - -32004: empty query
package mcp
