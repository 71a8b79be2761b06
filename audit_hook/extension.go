// Package audithook bridges Crowdfund ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/plugin"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnInit                 = (*Extension)(nil)
	_ plugin.OnShutdown             = (*Extension)(nil)
	_ plugin.OnContributionAccepted = (*Extension)(nil)
	_ plugin.OnContributionRejected = (*Extension)(nil)
	_ plugin.OnWithdrawn            = (*Extension)(nil)
	_ plugin.OnWithdrawalFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(ctx context.Context, l interface{}) error {
	ledger, ok := l.(*crowdfund.Ledger)
	if !ok {
		return nil
	}
	return e.record(ctx, ActionLedgerOpened, SeverityInfo, OutcomeSuccess,
		ResourceLedger, ledger.ID().String(), CategoryFunding, nil,
		"owner", ledger.Owner().String(),
		"minimum_usd", ledger.MinimumUSD().String(),
	)
}

// OnShutdown implements plugin.OnShutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionLedgerClosed, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", CategoryFunding, nil,
	)
}

// ──────────────────────────────────────────────────
// Contribution hooks
// ──────────────────────────────────────────────────

// OnContributionAccepted implements plugin.OnContributionAccepted.
func (e *Extension) OnContributionAccepted(ctx context.Context, c *contribution.Contribution) error {
	return e.record(ctx, ActionContributionAccepted, SeverityInfo, OutcomeSuccess,
		ResourceContribution, c.ID.String(), CategoryFunding, nil,
		"ledger_id", c.LedgerID.String(),
		"funder", c.Funder.String(),
		"amount_wei", c.Amount.WeiString(),
		"usd_value", c.USDValue.String(),
		"price_round_id", c.PriceRoundID,
	)
}

// OnContributionRejected implements plugin.OnContributionRejected.
func (e *Extension) OnContributionRejected(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount, reason error) error {
	severity := SeverityInfo
	if errors.Is(reason, crowdfund.ErrOracleUnavailable) {
		severity = SeverityError
	}
	return e.record(ctx, ActionContributionRejected, severity, OutcomeFailure,
		ResourceLedger, ledgerID.String(), CategoryFunding, reason,
		"funder", funder.String(),
		"amount_wei", amount.WeiString(),
	)
}

// ──────────────────────────────────────────────────
// Withdrawal hooks
// ──────────────────────────────────────────────────

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, w *withdrawal.Withdrawal) error {
	return e.record(ctx, ActionWithdrawalCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWithdrawal, w.ID.String(), CategoryPayout, nil,
		"ledger_id", w.LedgerID.String(),
		"recipient", w.Recipient.String(),
		"amount_wei", w.Amount.WeiString(),
		"method", string(w.Method),
		"funders_cleared", w.FundersCleared,
	)
}

// OnWithdrawalFailed implements plugin.OnWithdrawalFailed.
func (e *Extension) OnWithdrawalFailed(ctx context.Context, ledgerID id.LedgerID, caller types.Address, method withdrawal.Method, reason error) error {
	if errors.Is(reason, crowdfund.ErrNotOwner) {
		return e.record(ctx, ActionWithdrawalUnauthorized, SeverityWarning, OutcomeFailure,
			ResourceLedger, ledgerID.String(), CategoryAccess, reason,
			"caller", caller.String(),
			"method", string(method),
		)
	}
	return e.record(ctx, ActionWithdrawalFailed, SeverityCritical, OutcomeFailure,
		ResourceLedger, ledgerID.String(), CategoryPayout, reason,
		"caller", caller.String(),
		"method", string(method),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
