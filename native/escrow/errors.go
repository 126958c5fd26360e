package escrow

import "errors"

var (
	ErrNotFound            = errors.New("escrow: not found")
	ErrInvalidAmount       = errors.New("escrow: invalid amount")
	ErrSameSenderRecipient = errors.New("escrow: sender and recipient must differ")
	ErrUnsupportedAsset    = errors.New("escrow: unsupported asset")
	ErrCounterOverflow     = errors.New("escrow: identifier counter exhausted")
	ErrKYCFailed           = errors.New("escrow: kyc verification failed")
	ErrWrongSender         = errors.New("escrow: caller is not the escrow sender")
	ErrNotPending          = errors.New("escrow: escrow is not accepting deposits")
	ErrNotFunded           = errors.New("escrow: escrow is not fully funded")
	ErrInsufficientAmount  = errors.New("escrow: amount exceeds remaining commitment")
	ErrNotApproved         = errors.New("escrow: escrow is not releasable")
	ErrAlreadyReleased     = errors.New("escrow: escrow already released")
	ErrAlreadyRefunded     = errors.New("escrow: escrow already refunded")
	ErrQuorumNotMet        = errors.New("escrow: multi-party quorum not met")
	ErrExpired             = errors.New("escrow: escrow expired")
	ErrNotExpired          = errors.New("escrow: escrow has not expired")
	ErrUnauthorizedCaller  = errors.New("escrow: caller not authorized")
	ErrUnauthorizedRefund  = errors.New("escrow: refund caller not authorized")
	ErrInsufficientFunds   = errors.New("escrow: insufficient escrowed funds")
	ErrNoFundsAvailable    = errors.New("escrow: no funds available")
	ErrInsufficientBalance = errors.New("escrow: insufficient account balance")
	ErrPartialNotAllowed   = errors.New("escrow: partial release not enabled")
	ErrPartialFlowActive   = errors.New("escrow: full release disallowed after a partial release")
	ErrRateLimited         = errors.New("escrow: rate limit exceeded")

	ErrInvalidApproverCount    = errors.New("escrow: invalid approver count")
	ErrApproverNotWhitelisted  = errors.New("escrow: approver not whitelisted")
	ErrAlreadyApproved         = errors.New("escrow: approver already approved")
	ErrNoApproval              = errors.New("escrow: no approval recorded for approver")
	ErrApproverExists          = errors.New("escrow: approver already whitelisted")
	ErrMultiPartyExists        = errors.New("escrow: multi-party approval already configured")
	ErrMultiPartyNotConfigured = errors.New("escrow: multi-party approval not configured")
	ErrMultiPartyFinalized     = errors.New("escrow: multi-party approval finalized")
	ErrApprovalTimeout         = errors.New("escrow: approval window elapsed")
)
