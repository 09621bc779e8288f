package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStep        = errors.New("invalid step")
	ErrStepIncomplete     = errors.New("step incomplete")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrValidation         = errors.New("validation failed")
	ErrNotCustom          = errors.New("payment method is not custom")
	ErrUpstream           = errors.New("upstream request failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrLockHeld           = errors.New("lock already held")
)
