package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/oppuna-lab/oppuna/pkg/usecase"
	"github.com/oppuna-lab/oppuna/pkg/utils/errutil"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

type chatRequest struct {
	UserID    string `json:"user_id"`
	UserInput string `json:"user_input"`
}

type chatResponse struct {
	Reply               string   `json:"reply"`
	Crisis              bool     `json:"crisis"`
	FollowUpSuggestions []string `json:"follow_up_suggestions"`
	Degraded            bool     `json:"degraded"`
}

type suggestRequest struct {
	UserID         string `json:"user_id"`
	PartialInput   string `json:"partial_input"`
	MaxSuggestions int    `json:"max_suggestions"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

type historyEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	UserID  string         `json:"user_id"`
	History []historyEntry `json:"history"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps use case errors to HTTP status codes. Dependency outages
// never reach this point; the use case layer degrades them into a 200
// payload, so anything other than invalid input is an internal error.
func statusFor(err error) int {
	if errors.Is(err, usecase.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "oppuna",
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid chat request body"), http.StatusBadRequest)
			return
		}

		result, err := uc.Chat(ctx, req.UserID, req.UserInput)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusFor(err))
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			Reply:               result.Reply,
			Crisis:              result.Crisis,
			FollowUpSuggestions: result.FollowUpSuggestions,
			Degraded:            result.Degraded,
		})
	}
}

func (s *Server) handleSuggest(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid suggest request body"), http.StatusBadRequest)
			return
		}

		// Suggestions are keyed on the partial text only; the user ID is
		// accepted for API parity and carried on the request log context.
		if req.UserID != "" {
			ctx = logging.With(ctx, logging.From(ctx).With("user_id", req.UserID))
		}

		suggestions, err := uc.Suggest(ctx, req.PartialInput, req.MaxSuggestions)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusFor(err))
			return
		}

		writeJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
	}
}

func (s *Server) handleHistory(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "userID")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				errutil.HandleHTTP(ctx, w,
					goerr.Wrap(usecase.ErrInvalidInput, "invalid limit", goerr.V("limit", raw)),
					http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		records, err := uc.History(ctx, userID, limit)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, statusFor(err))
			return
		}

		entries := make([]historyEntry, len(records))
		for i, rec := range records {
			entries[i] = historyEntry{
				Role:      rec.Role.String(),
				Text:      rec.Text,
				CreatedAt: rec.CreatedAt,
			}
		}

		writeJSON(w, http.StatusOK, historyResponse{UserID: userID, History: entries})
	}
}

func (s *Server) handleClearHistory(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := chi.URLParam(r, "userID")

		if err := uc.ClearHistory(ctx, userID); err != nil {
			errutil.HandleHTTP(ctx, w, err, statusFor(err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "user_id": userID})
	}
}
