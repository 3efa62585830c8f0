package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "dropsearch"
)

// Searcher answers search queries
type Searcher interface {
	Search(ctx context.Context, query types.SearchQuery) (*types.SearchResponse, error)
}

// Syncer runs synchronization on demand
type Syncer interface {
	RunFullSync(ctx context.Context) (*indexer.Statistics, error)
	RunIncrementalSync(ctx context.Context) (*indexer.Statistics, error)
	Status() indexer.Status
}

// DocumentCounter reports the index size
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	syncer   Syncer
	counter  DocumentCounter
}

// NewServer creates a new MCP server instance. counter may be nil.
func NewServer(searcher Searcher, syncer Syncer, counter DocumentCounter, version string) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version),
		searcher: searcher,
		syncer:   syncer,
		counter:  counter,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(logging.L()))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(syncFolderTool(), s.handleSyncFolder)
}
