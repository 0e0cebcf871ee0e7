package ingest

import "net/http"

// Status classifies an envelope as success or one of the failure kinds.
type Status string

const (
	StatusOK            Status = "OK"
	StatusBadRequest    Status = "BAD_REQUEST"
	StatusNotFound      Status = "NOT_FOUND"
	StatusInternalError Status = "INTERNAL_SERVER_ERROR"
)

// HTTPCode maps the status onto the matching HTTP status code.
func (s Status) HTTPCode() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the uniform response returned for every ingest call. Entity is
// nil on failure.
type Envelope[T any] struct {
	Message string `json:"message"`
	Status  Status `json:"status"`
	Entity  *T     `json:"entity"`
}

// Success wraps entity in an OK envelope.
func Success[T any](message string, entity *T) Envelope[T] {
	return Envelope[T]{Message: message, Status: StatusOK, Entity: entity}
}

// ErrorEnvelope converts err into a failure envelope. Errors outside the
// ingest taxonomy get a generic message so store details never leak.
func ErrorEnvelope[T any](err error) Envelope[T] {
	status, message := Classify(err)
	return Envelope[T]{Message: message, Status: status}
}
