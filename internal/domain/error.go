package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Callback validation errors. Returned only for callbacks that matched a
	// known intent; they must reject the event without any writes.
	ErrSignatureInvalid = errors.New("payload signature invalid")
	ErrAmountMismatch   = errors.New("amount or currency does not match intent")
	ErrPayerMismatch    = errors.New("paying user does not own this intent")
	ErrProviderMismatch = errors.New("intent belongs to another provider")
	ErrPlanInactive     = errors.New("plan is not active")
	ErrVariantInactive  = errors.New("plan variant is not active")
)
