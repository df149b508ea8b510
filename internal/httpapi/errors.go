package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/chess-review/internal/chess"
	"github.com/park285/chess-review/internal/chess/uci"
	"github.com/park285/chess-review/internal/review"
	reviewsvc "github.com/park285/chess-review/internal/service/review"
	"github.com/park285/chess-review/pkg/reviewdto"
)

// statusFor maps a service error to its HTTP status and wire form.
func statusFor(err error) (int, reviewdto.DomainError) {
	de := reviewdto.DomainError{Message: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chess.ErrMalformedPGN):
		status, de.Code = http.StatusBadRequest, "malformed_pgn"
	case errors.Is(err, review.ErrInvalidGame):
		status, de.Code = http.StatusBadRequest, "invalid_game"
	case errors.Is(err, chess.ErrIllegalMove):
		status, de.Code = http.StatusBadRequest, "illegal_move"
	case errors.Is(err, chess.ErrInvalidPosition):
		status, de.Code = http.StatusBadRequest, "invalid_position"
	case errors.Is(err, reviewsvc.ErrUnknownProfile):
		status, de.Code = http.StatusBadRequest, "unknown_profile"
	case errors.Is(err, errBadRequest):
		status, de.Code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, reviewsvc.ErrJobNotFound):
		status, de.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, reviewsvc.ErrJobNotReady):
		status, de.Code, de.Retryable = http.StatusConflict, "not_ready", true
	case errors.Is(err, reviewsvc.ErrServiceClosed), errors.Is(err, uci.ErrEngineUnavailable), errors.Is(err, errLiveDisabled), errors.Is(err, errLiveBusy):
		status, de.Code, de.Retryable = http.StatusServiceUnavailable, "unavailable", true
	case errors.Is(err, uci.ErrEngineCommunication):
		status, de.Code, de.Retryable = http.StatusBadGateway, "engine_error", true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, de.Code, de.Retryable = http.StatusServiceUnavailable, "cancelled", true
	default:
		de.Code = "internal"
		de.Message = "internal error"
	}
	return status, de
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, de := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api_request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeJSON(w, status, reviewdto.ErrorResponse{Error: de})
}
