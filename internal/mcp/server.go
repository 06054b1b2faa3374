package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/memvault-mcp/internal/cache"
	"github.com/dshills/memvault-mcp/internal/config"
	"github.com/dshills/memvault-mcp/internal/gitsync"
	"github.com/dshills/memvault-mcp/internal/search"
	"github.com/dshills/memvault-mcp/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "memvault-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// shutdownGrace bounds how long shutdown waits for in-flight
	// replication jobs before abandoning them.
	shutdownGrace = 10 * time.Second
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	store  *store.Store
	cache  *cache.Cache
	engine *search.Engine
	syncer *gitsync.Manager // nil when replication is disabled
	log    zerolog.Logger
}

// NewServer creates a new MCP server instance wired to the record store,
// relevance engine, and (when enabled) the replication manager.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	st, err := store.New(cfg.FilesDir(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	pc := cache.New(log)
	engine := search.New(cfg.FilesDir(), pc, cfg.MaxSearchResults, log)

	var syncer *gitsync.Manager
	if cfg.EnableSync {
		syncer = gitsync.New(gitsync.Config{
			RepoDir:        cfg.BaseDir,
			RemoteURL:      cfg.GitRemoteURL,
			RetryAttempts:  cfg.GitRetryAttempts,
			RetryDelay:     cfg.GitRetryDelay,
			CommandTimeout: cfg.GitCommandTimeout,
		}, nil, log)
	}

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:    mcpServer,
		store:  st,
		cache:  pc,
		engine: engine,
		syncer: syncer,
		log:    log.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. The
// parse-cache watcher and replication workers run for the lifetime of ctx.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.syncer != nil {
		if err := s.syncer.Initialize(ctx); err != nil {
			// Replication is non-fatal by contract: record storage keeps
			// working locally.
			s.log.Warn().Err(err).Msg("repository reconciliation failed, replication disabled")
			s.syncer = nil
		} else {
			s.syncer.Start(ctx)
		}
	}

	if err := s.cache.Watch(ctx, s.store.Dir()); err != nil {
		s.log.Warn().Err(err).Msg("cache watcher unavailable, relying on mtime checks only")
	}

	err := server.ServeStdio(s.mcp)

	if s.syncer != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer drainCancel()
		if serr := s.syncer.Shutdown(drainCtx); serr != nil {
			s.log.Warn().Err(serr).Msg("replication shutdown incomplete")
		}
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(rememberTool(), s.handleRemember)
	s.mcp.AddTool(thinkTool(), s.handleThink)
	s.mcp.AddTool(recallTool(), s.handleRecall)
}
