package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/bpmnchat/pkg/diagram"
	"github.com/papercomputeco/bpmnchat/pkg/llm"
	"github.com/papercomputeco/bpmnchat/pkg/session"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

const maxListLimit = 500

// SessionSummary is the list view of a stored session.
type SessionSummary struct {
	ID         string `json:"id"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Reasoner   bool   `json:"reasoner"`
	Prompt     string `json:"prompt"`
	Outcome    string `json:"outcome"`
	HasDiagram bool   `json:"has_diagram"`
	DurationMs int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

// ListResponse wraps a page of session summaries.
type ListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// StatsResponse counts stored sessions by outcome.
type StatsResponse struct {
	Total    int            `json:"total"`
	Outcomes map[string]int `json:"outcomes"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns session counts per outcome.
func (s *Server) handleStats(c *fiber.Ctx) error {
	recs, err := s.driver.List(c.Context(), storage.ListOptions{})
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list sessions"})
	}

	stats := StatsResponse{Total: len(recs), Outcomes: map[string]int{}}
	for _, rec := range recs {
		stats.Outcomes[rec.Outcome]++
	}
	return c.JSON(stats)
}

// handleListSessions returns stored sessions, newest first. Supports the
// "limit" and "outcome" query parameters.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	opts := storage.ListOptions{Outcome: c.Query("outcome")}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		opts.Limit = min(limit, maxListLimit)
	}

	if opts.Outcome != "" {
		if _, err := session.ParseState(opts.Outcome); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "unknown outcome", Details: err.Error()})
		}
	}

	recs, err := s.driver.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list sessions"})
	}

	resp := ListResponse{Sessions: make([]SessionSummary, 0, len(recs))}
	for _, rec := range recs {
		resp.Sessions = append(resp.Sessions, summarize(rec))
	}
	resp.Count = len(resp.Sessions)
	return c.JSON(resp)
}

// handleGetSession returns a single stored session.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	rec, status, errResp := s.lookup(c)
	if errResp != nil {
		return c.Status(status).JSON(errResp)
	}
	return c.JSON(rec)
}

// handleGetDiagram returns the formatted diagram of a session as XML.
func (s *Server) handleGetDiagram(c *fiber.Ctx) error {
	rec, status, errResp := s.lookup(c)
	if errResp != nil {
		return c.Status(status).JSON(errResp)
	}
	if rec.Diagram == "" {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "session has no diagram"})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.SendString(diagram.Format(rec.Diagram))
}

// lookup loads the session named by the ":id" parameter. On failure it
// returns the status and body to reply with.
func (s *Server) lookup(c *fiber.Ctx) (*storage.Record, int, *llm.ErrorResponse) {
	id := c.Params("id")
	if id == "" {
		return nil, fiber.StatusBadRequest, &llm.ErrorResponse{Error: "id parameter required"}
	}

	rec, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, fiber.StatusNotFound, &llm.ErrorResponse{Error: "session not found"}
		}
		s.logger.Error("failed to get session", "id", id, "error", err)
		return nil, fiber.StatusInternalServerError, &llm.ErrorResponse{Error: "failed to get session"}
	}
	return rec, fiber.StatusOK, nil
}

func summarize(rec *storage.Record) SessionSummary {
	return SessionSummary{
		ID:         rec.ID,
		Provider:   rec.Provider,
		Model:      rec.Model,
		Reasoner:   rec.Reasoner,
		Prompt:     rec.Prompt,
		Outcome:    rec.Outcome,
		HasDiagram: rec.Diagram != "",
		DurationMs: rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
		StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339),
	}
}
