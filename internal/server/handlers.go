// File: internal/server/handlers.go
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/command"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleCommand runs one command synchronously and returns its result. The
// result body is authoritative; the HTTP status only mirrors its error kind.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var env command.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if env.Name == "" {
		s.respondError(w, http.StatusBadRequest, "missing command name")
		return
	}

	result := s.dispatcher.Dispatch(r.Context(), env)
	s.respondJSON(w, statusForResult(result), result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	infos := s.dispatcher.Manager().Sessions()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(infos),
		"sessions": infos,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	result := s.dispatcher.Dispatch(r.Context(), command.Envelope{
		Session: id,
		Name:    command.CloseSession,
	})
	s.respondJSON(w, statusForResult(result), result)
}

// statusForResult maps result error kinds onto HTTP statuses so plain HTTP
// clients can branch without parsing the body.
func statusForResult(r command.Result) int {
	if r.Success {
		return http.StatusOK
	}
	switch r.ErrorKind {
	case command.KindInvalidArgument:
		return http.StatusBadRequest
	case command.KindNotFound:
		return http.StatusNotFound
	case command.KindTimeout:
		return http.StatusRequestTimeout
	case command.KindPathEscape, command.KindPrivateTargetBlocked:
		return http.StatusForbidden
	case command.KindStrictViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response.", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
