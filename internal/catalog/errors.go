package catalog

import "errors"

var (
	// ErrNotFound reports a movie that does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrTransport reports a failed provider call.
	ErrTransport = errors.New("catalog: provider transport error")
	// ErrStore reports a failed store read, write or transaction.
	ErrStore = errors.New("catalog: store error")
	// ErrConflict reports a write that duplicates an existing record.
	ErrConflict = errors.New("catalog: conflict")
	// ErrValidation reports a rating or query parameter outside its contract.
	ErrValidation = errors.New("catalog: validation error")
)
