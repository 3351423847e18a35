package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"property-intelligence/internal/analysis"
	stderrors "property-intelligence/internal/common/errors"
	"property-intelligence/internal/store"
)

const maxQuestionLength = 2000

type errorEnvelope struct {
	Error *stderrors.StandardError `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("response encode failed", nil)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, stdErr *stderrors.StandardError) {
	s.writeJSON(w, status, errorEnvelope{Error: stdErr})
}

type analyzeResponse struct {
	analysis.Result
	QueryID int64 `json:"query_id,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("invalid JSON body"))
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("question must not be empty"))
		return
	}
	if len(req.Question) > maxQuestionLength {
		s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("question too long"))
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	result := s.analyzer.Analyze(r.Context(), req)

	if result.BudgetExceeded {
		s.writeJSON(w, http.StatusTooManyRequests, analyzeResponse{Result: result})
		return
	}

	resp := analyzeResponse{Result: result}
	id, err := s.store.StoreQuery(r.Context(), store.QueryRecord{
		UserID:           req.UserID,
		Question:         req.Question,
		Answer:           result.FinalAnswer,
		Location:         string(result.LocationDetected),
		Provider:         result.LLMProvider,
		QuestionType:     result.QuestionType,
		TokensUsed:       result.TokenUsage,
		Confidence:       result.Confidence,
		ProcessingTimeMS: int64(result.ProcessingTime * 1000),
		SearchPerformed:  result.SearchPerformed,
		Success:          result.Success,
	})
	if err != nil {
		// The answer is still worth returning when persistence fails.
		s.logger.WithError(err).Error("failed to persist query", map[string]interface{}{
			"request_id": result.RequestID,
		})
	} else {
		resp.QueryID = id
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("invalid limit"))
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	records, err := s.store.QueryHistory(r.Context(), limit, r.URL.Query().Get("user_id"))
	if err != nil {
		s.logger.WithError(err).Error("history query failed", nil)
		s.writeError(w, http.StatusInternalServerError, stderrors.NewStoreQueryFailedError("history", err))
		return
	}
	if records == nil {
		records = []store.QueryRecord{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"queries": records,
		"count":   len(records),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("stats query failed", nil)
		s.writeError(w, http.StatusInternalServerError, stderrors.NewStoreQueryFailedError("stats", err))
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.cfg.App.ExampleQuestions
	if questions == nil {
		questions = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
	})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("user id required"))
		return
	}

	stats, err := s.store.UserStats(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).Error("user stats query failed", map[string]interface{}{
			"user_id": userID,
		})
		s.writeError(w, http.StatusInternalServerError, stderrors.NewStoreQueryFailedError("user stats", err))
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, stderrors.NewInvalidRequestError("invalid query id"))
		return
	}

	err = s.store.DeleteQuery(r.Context(), id, r.URL.Query().Get("user_id"))
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, http.StatusNotFound, stderrors.NewNotFoundError("query"))
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("delete query failed", map[string]interface{}{
			"id": id,
		})
		s.writeError(w, http.StatusInternalServerError, stderrors.NewStoreQueryFailedError("delete", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": id,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]bool{}
	if s.status != nil {
		components = s.status()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"service":    s.cfg.App.Name,
		"version":    s.cfg.App.Version,
		"components": components,
	})
}
