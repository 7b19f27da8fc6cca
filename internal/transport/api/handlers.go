package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
	"github.com/sandevgo/tuskmem/pkg/conv"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const maxLimit = 500

// memoryView is a stored memory with its analysis decoded.
type memoryView struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversationId"`
	SessionID      string               `json:"sessionId"`
	Source         string               `json:"source"`
	ContentHash    string               `json:"contentHash"`
	MessageCount   int                  `json:"messageCount"`
	AnalyzedAt     time.Time            `json:"analyzedAt"`
	Analysis       *core.AnalysisResult `json:"analysis,omitempty"`
}

type listResponse struct {
	Memories []memoryView `json:"memories"`
	Count    int          `json:"count"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": core.AppVersion})
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	mems, err := s.repo.ListMemories(r.Context(), core.MemoryFilter{
		Source:         r.URL.Query().Get("source"),
		ConversationID: r.URL.Query().Get("conversation"),
		Limit:          limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.views(r, mems))
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mem, err := s.repo.GetMemory(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if mem == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	analysis, err := sink.DecodeAnalysis(*mem)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := toView(*mem, analysis)

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, view)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sink.RenderMarkdown(toRecord(*mem, analysis))))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(conv.MarkdownToHTML([]byte(sink.RenderMarkdown(toRecord(*mem, analysis))))))
	default:
		writeError(w, http.StatusBadRequest, "format must be json, markdown or html")
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	mems, err := s.repo.SearchMemories(r.Context(), q, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.views(r, mems))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.SourceStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if stats == nil {
		stats = []core.SourceStat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": stats})
}

func (s *Server) capture(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")

	triggered := []string{}
	for _, t := range s.targets {
		if source == "" || source == t.Name() {
			t.Trigger()
			triggered = append(triggered, t.Name())
		}
	}
	if len(triggered) == 0 {
		writeError(w, http.StatusNotFound, "no matching source")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"triggered": triggered})
}

func (s *Server) views(r *http.Request, mems []core.StoredMemory) listResponse {
	full := r.URL.Query().Get("full") == "true"
	out := listResponse{Memories: make([]memoryView, 0, len(mems))}
	for _, m := range mems {
		var analysis *core.AnalysisResult
		if full {
			decoded, err := sink.DecodeAnalysis(m)
			if err != nil {
				log.FromCtx(r.Context()).Warn().Err(err).Str("memory", m.ID).Msg("skipping undecodable memory")
				continue
			}
			analysis = decoded
		}
		out.Memories = append(out.Memories, toView(m, analysis))
	}
	out.Count = len(out.Memories)
	return out
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	log.FromCtx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func toView(m core.StoredMemory, analysis *core.AnalysisResult) memoryView {
	return memoryView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SessionID:      m.SessionID,
		Source:         m.Source,
		ContentHash:    m.ContentHash,
		MessageCount:   m.MessageCount,
		AnalyzedAt:     m.AnalyzedAt,
		Analysis:       analysis,
	}
}

func toRecord(m core.StoredMemory, analysis *core.AnalysisResult) core.MemoryRecord {
	return core.MemoryRecord{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SessionID:      m.SessionID,
		Source:         m.Source,
		ContentHash:    m.ContentHash,
		AnalyzedAt:     m.AnalyzedAt,
		Analysis:       analysis,
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
