// Package mcp exposes stored memories to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
)

const defaultLimit = 10

type Server struct {
	repo core.MemoriesRepository
	mcp  *server.MCPServer
}

func NewServer(repo core.MemoriesRepository) *Server {
	s := &Server{repo: repo}
	s.mcp = server.NewMCPServer(
		core.AppName,
		core.AppVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcpproto.NewTool("search_memories",
		mcpproto.WithDescription("Search analysed conversations for a phrase"),
		mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Text to look for")),
		mcpproto.WithNumber("limit", mcpproto.Description("Maximum number of results")),
	), s.searchMemories)

	s.mcp.AddTool(mcpproto.NewTool("get_memory",
		mcpproto.WithDescription("Fetch the latest analysis of one conversation as markdown"),
		mcpproto.WithString("conversation_id", mcpproto.Required(), mcpproto.Description("Conversation id")),
	), s.getMemory)

	s.mcp.AddTool(mcpproto.NewTool("list_memories",
		mcpproto.WithDescription("List the most recently analysed conversations"),
		mcpproto.WithString("source", mcpproto.Description("Only this source")),
		mcpproto.WithNumber("limit", mcpproto.Description("Maximum number of results")),
	), s.listMemories)

	return s
}

func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks until stdin is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type summary struct {
	ConversationID string `json:"conversationId"`
	Source         string `json:"source"`
	MessageCount   int    `json:"messageCount"`
	AnalyzedAt     string `json:"analyzedAt"`
	Title          string `json:"title"`
}

func (s *Server) searchMemories(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	mems, err := s.repo.SearchMemories(ctx, query, req.GetInt("limit", defaultLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}
	return summaries(mems)
}

func (s *Server) listMemories(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	mems, err := s.repo.ListMemories(ctx, core.MemoryFilter{
		Source: req.GetString("source", ""),
		Limit:  req.GetInt("limit", defaultLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return summaries(mems)
}

func (s *Server) getMemory(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	mem, err := s.repo.GetMemory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	if mem == nil {
		return mcpproto.NewToolResultError(fmt.Sprintf("no memory for conversation %q", id)), nil
	}

	analysis, err := sink.DecodeAnalysis(*mem)
	if err != nil {
		return nil, err
	}
	return mcpproto.NewToolResultText(sink.RenderMarkdown(core.MemoryRecord{
		ID:             mem.ID,
		ConversationID: mem.ConversationID,
		SessionID:      mem.SessionID,
		Source:         mem.Source,
		ContentHash:    mem.ContentHash,
		AnalyzedAt:     mem.AnalyzedAt,
		Analysis:       analysis,
	})), nil
}

func summaries(mems []core.StoredMemory) (*mcpproto.CallToolResult, error) {
	out := make([]summary, 0, len(mems))
	for _, m := range mems {
		sm := summary{
			ConversationID: m.ConversationID,
			Source:         m.Source,
			MessageCount:   m.MessageCount,
			AnalyzedAt:     m.AnalyzedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if analysis, err := sink.DecodeAnalysis(m); err == nil {
			sm.Title = sink.Title(analysis)
		}
		out = append(out, sm)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memories: %w", err)
	}
	return mcpproto.NewToolResultText(string(data)), nil
}
