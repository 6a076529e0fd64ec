package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced to a caller maps onto one of these.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrDuplicateSkipped = errors.New("duplicate skipped")
	ErrStorage          = errors.New("storage error")
	ErrAccessDenied     = errors.New("access denied")
)

var (
	// Lookup errors
	ErrOperationNotFound       = fmt.Errorf("operation %w", ErrNotFound)
	ErrDeletionRequestNotFound = fmt.Errorf("deletion request %w", ErrNotFound)
	ErrTrashEntryNotFound      = fmt.Errorf("trash entry %w", ErrNotFound)
	ErrShopNotFound            = fmt.Errorf("shop %w", ErrNotFound)
	ErrAgentNotFound           = fmt.Errorf("agent %w", ErrNotFound)
	ErrClientNotFound          = fmt.Errorf("client %w", ErrNotFound)

	// State machine errors
	ErrInvalidTransition   = fmt.Errorf("%w: transition not allowed", ErrConflict)
	ErrOpenRequestExists   = fmt.Errorf("%w: an open deletion request already exists", ErrConflict)
	ErrNotPending          = fmt.Errorf("%w: operation is not pending", ErrConflict)
	ErrNotATransfer        = fmt.Errorf("%w: operation is not a transfer", ErrConflict)
	ErrDestinationMismatch = fmt.Errorf("%w: destination shop does not match", ErrConflict)
	ErrAlreadyRestored     = fmt.Errorf("%w: trash entry already restored", ErrConflict)
	ErrStaleUpdate         = fmt.Errorf("%w: submitted change is older than stored row", ErrConflict)
	ErrBusinessCodeTaken   = fmt.Errorf("%w: business code already in use", ErrConflict)

	// Request shape errors
	ErrMissingIdentification = fmt.Errorf("%w: reference, business code, operation id or composite key required", ErrValidation)
	ErrTooManyCodes          = fmt.Errorf("%w: too many business codes", ErrValidation)
	ErrUnreconciledAmounts   = fmt.Errorf("%w: net amount plus commission must equal gross amount", ErrValidation)

	// Scope errors
	ErrAgentWithoutShop = fmt.Errorf("%w: agent without shop_id", ErrAccessDenied)
)

// ErrorKind is the stable machine-readable class of an error.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindDuplicateSkipped ErrorKind = "duplicate_skipped"
	KindStorage          ErrorKind = "storage"
	KindAccessDenied     ErrorKind = "access_denied"
)

// KindOf classifies err. Anything not carrying a known kind is a storage failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrDuplicateSkipped):
		return KindDuplicateSkipped
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindStorage
	}
}

// FieldError reports a missing or malformed request field.
type FieldError struct {
	Field   string
	Message string
}

// NewFieldError creates a validation error for field.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

// WrapStorage tags err as a storage failure of op. Errors that already carry a kind pass through.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindStorage {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the storage kind.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
