package hub

import "errors"

var (
	ErrInvoiceNotFound     = errors.New("hub: invoice not found")
	ErrRemittanceNotFound  = errors.New("hub: remittance not found")
	ErrInvalidAmount       = errors.New("hub: invalid amount")
	ErrSameSenderRecipient = errors.New("hub: sender and recipient must differ")
	ErrInvalidDueDate      = errors.New("hub: due date must be in the future")
	ErrCounterOverflow     = errors.New("hub: identifier counter exhausted")
	ErrUnauthorizedCaller  = errors.New("hub: caller not authorized")
	ErrInvoicePaid         = errors.New("hub: invoice already paid")
	ErrInvoiceNotOpen      = errors.New("hub: invoice is not open")
	ErrInvoiceNotOverdue   = errors.New("hub: invoice is not past due")
	ErrRemittanceClosed    = errors.New("hub: remittance already completed")
	ErrAmlFlagged          = errors.New("hub: remittance flagged by aml screening")
	ErrNotFlagged          = errors.New("hub: remittance is not flagged")
	ErrRateLimited         = errors.New("hub: rate limit exceeded")
	ErrBatchTooLarge       = errors.New("hub: batch exceeds maximum size")
	ErrEmptyBatch          = errors.New("hub: batch is empty")
	ErrBatchLengthMismatch = errors.New("hub: batch argument lengths differ")
)
