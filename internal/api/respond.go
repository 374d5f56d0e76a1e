package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"menu-allergen-scanner/pkg/circuit"
	errs "menu-allergen-scanner/pkg/errors"
	"menu-allergen-scanner/pkg/logging"
)

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to a status code, a kind and a client-safe message.
func classify(err error) (int, string, string) {
	var tooLarge *http.MaxBytesError
	var v *errs.ValidationError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "validation", "request body too large"
	case errors.As(err, &v):
		return http.StatusBadRequest, "validation", v.Msg
	case errors.Is(err, circuit.ErrOpen):
		return http.StatusServiceUnavailable, "unavailable", "upstream temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "upstream timed out"
	case errs.Is(err, errs.ErrParse):
		return http.StatusBadGateway, "parse", "upstream returned an unexpected payload"
	case errs.Is(err, errs.ErrExternal):
		return http.StatusBadGateway, "external", "upstream request failed"
	case errs.Is(err, errs.ErrConfig):
		return http.StatusServiceUnavailable, "config", "service is not configured"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	log := s.log.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", err, logging.String("kind", kind), logging.Int("status", status))
	} else {
		log.Debug("request rejected", logging.String("kind", kind), logging.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody{
		Error:     errorDetail{Kind: kind, Message: msg},
		RequestID: logging.RequestID(r.Context()),
	})
}

// decodeJSON reads at most limit bytes of JSON into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	const op = "api.decodeJSON"
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errs.NewValidation(op, "request body too large", err)
		case errors.Is(err, io.EOF):
			return errs.NewValidation(op, "request body is required", nil)
		default:
			return errs.NewValidation(op, "request body is not valid json", err)
		}
	}
	return nil
}
