package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrFileSkipped       = errors.New("file skipped")
	ErrSupplierUnknown   = errors.New("supplier not in master list")
)
