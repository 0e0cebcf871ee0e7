package ingest

import (
	"errors"
	"fmt"
	"strings"
)

const (
	msgStoreFailed   = "Sorry! could not store file"
	msgReadFailed    = "Sorry! could not read file"
	msgInternalError = "Sorry! something went wrong"
)

// publicError is implemented by every error in the ingest taxonomy.
type publicError interface {
	error
	Status() Status
	PublicMessage() string
}

// Classify returns the status and caller-safe message for err.
func Classify(err error) (Status, string) {
	var pe publicError
	if errors.As(err, &pe) {
		return pe.Status(), pe.PublicMessage()
	}
	return StatusInternalError, msgInternalError
}

// InvalidFileFormatError rejects a file whose declared content type is not
// whitelisted. It is returned before any store is touched.
type InvalidFileFormatError struct {
	Filename    string
	ContentType string
	Accepted    []string
}

func (e *InvalidFileFormatError) Error() string {
	return fmt.Sprintf("Wrong file type upload %s while required => [%s]",
		e.ContentType, strings.Join(e.Accepted, " "))
}

func (e *InvalidFileFormatError) Status() Status        { return StatusBadRequest }
func (e *InvalidFileFormatError) PublicMessage() string { return e.Error() }

// EmptyBatchError rejects a batch call with no items.
type EmptyBatchError struct {
	Size int
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("Sorry! Filename contains invalid length %d", e.Size)
}

func (e *EmptyBatchError) Status() Status        { return StatusBadRequest }
func (e *EmptyBatchError) PublicMessage() string { return e.Error() }

// Offender is a batch entry rejected by content type validation.
type Offender struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (o Offender) String() string {
	return o.Filename + " => " + o.ContentType
}

// ValidationAggregateError lists every batch entry with a rejected content
// type. Nothing in the batch was stored.
type ValidationAggregateError struct {
	Offenders []Offender
	Accepted  []string
	// Accounts is set when the batch carried account fields.
	Accounts bool
}

func (e *ValidationAggregateError) Error() string {
	names := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		names[i] = o.String()
	}
	msg := fmt.Sprintf("Wrong file type upload [%s] while required => [%s]",
		strings.Join(names, ", "), strings.Join(e.Accepted, " "))
	if e.Accounts {
		return "Account with " + msg
	}
	return msg
}

func (e *ValidationAggregateError) Status() Status        { return StatusBadRequest }
func (e *ValidationAggregateError) PublicMessage() string { return e.Error() }

// InvalidAccountError rejects account fields that fail validation. Index is
// the batch position, or -1 for single calls.
type InvalidAccountError struct {
	Index int
	Err   error
}

func (e *InvalidAccountError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("Invalid account at index %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("Invalid account: %v", e.Err)
}

func (e *InvalidAccountError) Unwrap() error         { return e.Err }
func (e *InvalidAccountError) Status() Status        { return StatusBadRequest }
func (e *InvalidAccountError) PublicMessage() string { return e.Error() }

// Storage operations reported by StorageError.
const (
	OpBlobWrite     = "blob write"
	OpMetadataWrite = "metadata write"
	OpAccountWrite  = "account write"
	OpMetadataRead  = "metadata read"
	OpBlobRead      = "blob read"
)

// StorageError reports a store failure after validation passed. Err keeps the
// store's error for logs; it is never shown to callers.
type StorageError struct {
	Op    string
	Index int
	Err   error
}

func (e *StorageError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s failed for item %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error  { return e.Err }
func (e *StorageError) Status() Status { return StatusInternalError }

func (e *StorageError) PublicMessage() string {
	if e.Op == OpMetadataRead || e.Op == OpBlobRead {
		return msgReadFailed
	}
	return msgStoreFailed
}

// NotFoundError reports a lookup for an unknown file id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string         { return fmt.Sprintf("File not found with id %s", e.ID) }
func (e *NotFoundError) Status() Status        { return StatusNotFound }
func (e *NotFoundError) PublicMessage() string { return e.Error() }
