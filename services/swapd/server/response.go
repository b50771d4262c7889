package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/quotes"
)

// envelope is the body shape of every API response.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

var (
	errBadRequest      = errors.New("bad_request")
	errUnauthenticated = errors.New("unauthenticated")
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   true,
		Data:      data,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     kind,
		Message:   message,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

// fail maps err onto a status and writes the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		s.logger.Debug("request rejected", "path", r.URL.Path, "kind", kind, "error", err)
	}
	s.writeError(w, status, kind, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, swapledger.ErrUnauthorized):
		return http.StatusForbidden, swapledger.ErrorKind(err)
	case errors.Is(err, swapledger.ErrNotFound), errors.Is(err, quotes.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, swapledger.ErrSystemPaused):
		return http.StatusServiceUnavailable, swapledger.ErrorKind(err)
	case errors.Is(err, swapledger.ErrInvalidAmount),
		errors.Is(err, swapledger.ErrInvalidAddress),
		errors.Is(err, swapledger.ErrUnsupportedToken),
		errors.Is(err, swapledger.ErrSlippageExceeded),
		errors.Is(err, swapledger.ErrDeadlineExpired),
		errors.Is(err, swapledger.ErrInsufficientFunds),
		errors.Is(err, swapledger.ErrInsufficientAllowance),
		errors.Is(err, swapledger.ErrTokenExists),
		errors.Is(err, swapledger.ErrInvalidToken):
		return http.StatusBadRequest, swapledger.ErrorKind(err)
	default:
		return http.StatusInternalServerError, "internal"
	}
}
