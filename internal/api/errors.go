package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"querydesk/internal/domain"
	"querydesk/internal/service/query"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var empty *domain.EmptyInputError
	var conflict *domain.ConflictError
	var running *domain.AlreadyRunningError
	var connErr *domain.ConnectionError
	var queryErr *domain.QueryError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &empty):
		return http.StatusBadRequest
	case errors.As(err, &conflict), errors.As(err, &running):
		return http.StatusConflict
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	case errors.As(err, &queryErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, query.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the JSON body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := httpStatusFromDomainError(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, Error{Code: code, Message: msg})
}
