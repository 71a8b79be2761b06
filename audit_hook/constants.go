package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionLedgerOpened = "ledger.opened"
	ActionLedgerClosed = "ledger.closed"

	// Contribution actions
	ActionContributionAccepted = "contribution.accepted"
	ActionContributionRejected = "contribution.rejected"

	// Withdrawal actions
	ActionWithdrawalCompleted    = "withdrawal.completed"
	ActionWithdrawalFailed       = "withdrawal.failed"
	ActionWithdrawalUnauthorized = "withdrawal.unauthorized"
)

// Resource constants for audit events.
const (
	ResourceLedger       = "ledger"
	ResourceContribution = "contribution"
	ResourceWithdrawal   = "withdrawal"
)

// Category constants for audit events.
const (
	CategoryFunding = "funding"
	CategoryPayout  = "payout"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
