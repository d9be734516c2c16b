package domain

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrUpstream         = errors.New("payment gateway unavailable")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrAlreadyResolved  = errors.New("order already resolved")
)
