package cqrs

import "errors"

// Errors returned by command and query services. Handlers map them to HTTP
// status codes with errors.Is.
var (
	ErrForbidden = errors.New("forbidden")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")

	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountArchived     = errors.New("account archived")
	ErrAccountHasActivity  = errors.New("account has transactions")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryMismatch    = errors.New("category mismatch")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionExists   = errors.New("transaction already exists")
	ErrBudgetNotFound      = errors.New("budget not found")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidRange       = errors.New("invalid range")
)
