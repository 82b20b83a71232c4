package exhibition

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound is the base of every entity not-found error
	ErrNotFound = errors.New("not found")

	ErrExhibitionNotFound   = fmt.Errorf("exhibition %w", ErrNotFound)
	ErrSectionNotFound      = fmt.Errorf("section %w", ErrNotFound)
	ErrContentBlockNotFound = fmt.Errorf("content block %w", ErrNotFound)
	ErrBookNotFound         = fmt.Errorf("book %w", ErrNotFound)
	ErrAuthorNotFound       = fmt.Errorf("author %w", ErrNotFound)
	ErrGenreNotFound        = fmt.Errorf("genre %w", ErrNotFound)

	// ErrDuplicateSlug indicates another exhibition already uses the derived slug
	ErrDuplicateSlug = errors.New("slug already exists")

	// ErrDuplicateName indicates an author or genre name is taken
	ErrDuplicateName = errors.New("name already exists")

	// ErrOrderConflict indicates the requested position is held by a sibling
	ErrOrderConflict = errors.New("order already taken in scope")

	// ErrInvariantViolation indicates a content block breaks the text/book rule
	ErrInvariantViolation = errors.New("content block invariant violated")

	ErrTextRequiresPayload   = fmt.Errorf("text block requires text and no book reference: %w", ErrInvariantViolation)
	ErrBookRequiresReference = fmt.Errorf("book block requires a book reference and no text: %w", ErrInvariantViolation)

	// ErrInvalidReference indicates a referenced book, author or genre does not exist
	ErrInvalidReference = errors.New("invalid reference")

	// ErrUnsupportedMediaType indicates an upload outside the allowed image types
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrPayloadTooLarge indicates an upload above the configured ceiling
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrStorageIO indicates a blob store read, write or delete failed
	ErrStorageIO = errors.New("storage i/o failed")

	// ErrTransactionFailure indicates a transaction could not begin or commit
	ErrTransactionFailure = errors.New("transaction failed")

	// ErrInvalidRequest indicates a request failed field validation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBlobNotFound is returned by blob stores for a missing name
	ErrBlobNotFound = errors.New("blob not found")
)

// OperationError represents a failed operation on a single entity
type OperationError struct {
	Entity string
	ID     uuid.UUID
	Op     string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s operation %s failed for %s: %v", e.Entity, e.Op, e.ID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations.
// It matches ErrStorageIO unless it wraps ErrBlobNotFound.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageIO && !errors.Is(e.Err, ErrBlobNotFound)
}

func opError(entity string, id uuid.UUID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Entity: entity, ID: id, Op: op, Err: err}
}
