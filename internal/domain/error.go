package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Billing errors
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPaymentInit         = errors.New("payment initialization failed")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrVerificationFailed  = errors.New("gateway verification failed")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrInvalidReference    = errors.New("malformed payment reference")
	ErrNoPaidSubscription  = errors.New("no active paid subscription")

	// Persistence errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
