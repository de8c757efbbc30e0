package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrValidation         = errors.New("validation failed")
	ErrChainOfCustody     = errors.New("chain of custody violation")
	ErrAccessDenied       = errors.New("access denied")
)
