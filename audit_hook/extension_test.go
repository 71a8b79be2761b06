package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/xraph/crowdfund"
	audithook "github.com/xraph/crowdfund/audit_hook"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
)

const (
	owner  types.Address = "0x00000000000000000000000000000000000000a1"
	funder types.Address = "0x00000000000000000000000000000000000000a2"
)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *memRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Action
	}
	return out
}

func (r *memRecorder) find(action string) *audithook.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range r.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

func runScenario(t *testing.T, ext *audithook.Extension) {
	t.Helper()
	ctx := context.Background()
	vault := payout.NewVault()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l, err := crowdfund.Create(ctx, memory.New(), owner, priceoracle.NewMockFeedUSD(2000), vault,
		crowdfund.WithLogger(logger),
		crowdfund.WithPlugin(ext),
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, _ = l.Contribute(ctx, funder, types.MustParseEther("0.01"))
	if _, err := l.Contribute(ctx, funder, types.Ether(1)); err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	_, _ = l.Withdraw(ctx, funder)

	vault.Reject(owner, nil)
	_, _ = l.CheaperWithdraw(ctx, owner)
	vault.Accept(owner)

	if _, err := l.Withdraw(ctx, owner); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	_ = l.Close(ctx)
}

func TestExtensionRecordsLedgerEvents(t *testing.T) {
	rec := &memRecorder{}
	runScenario(t, audithook.New(rec))

	want := []string{
		audithook.ActionLedgerOpened,
		audithook.ActionContributionRejected,
		audithook.ActionContributionAccepted,
		audithook.ActionWithdrawalUnauthorized,
		audithook.ActionWithdrawalFailed,
		audithook.ActionWithdrawalCompleted,
		audithook.ActionLedgerClosed,
	}
	if got := rec.actions(); !slices.Equal(got, want) {
		t.Fatalf("actions = %v\nwant %v", got, want)
	}

	accepted := rec.find(audithook.ActionContributionAccepted)
	if accepted.Metadata["amount_wei"] != "1000000000000000000" {
		t.Errorf("amount_wei = %v", accepted.Metadata["amount_wei"])
	}
	if accepted.Metadata["usd_value"] != "$2000.00" {
		t.Errorf("usd_value = %v", accepted.Metadata["usd_value"])
	}

	unauthorized := rec.find(audithook.ActionWithdrawalUnauthorized)
	if unauthorized.Severity != audithook.SeverityWarning || unauthorized.Category != audithook.CategoryAccess {
		t.Errorf("unexpected unauthorized event %+v", unauthorized)
	}
	if unauthorized.Metadata["caller"] != string(funder) {
		t.Errorf("caller = %v", unauthorized.Metadata["caller"])
	}

	failed := rec.find(audithook.ActionWithdrawalFailed)
	if failed.Severity != audithook.SeverityCritical || failed.Reason == "" {
		t.Errorf("unexpected failed event %+v", failed)
	}

	completed := rec.find(audithook.ActionWithdrawalCompleted)
	if completed.Metadata["method"] != "withdraw" || completed.Metadata["funders_cleared"] != 1 {
		t.Errorf("unexpected completed metadata %v", completed.Metadata)
	}
}

func TestExtensionEnabledActions(t *testing.T) {
	rec := &memRecorder{}
	runScenario(t, audithook.New(rec,
		audithook.WithEnabledActions(audithook.ActionWithdrawalCompleted, audithook.ActionWithdrawalUnauthorized),
	))

	want := []string{audithook.ActionWithdrawalUnauthorized, audithook.ActionWithdrawalCompleted}
	if got := rec.actions(); !slices.Equal(got, want) {
		t.Errorf("actions = %v, want %v", got, want)
	}
}

func TestExtensionDisabledActions(t *testing.T) {
	rec := &memRecorder{}
	runScenario(t, audithook.New(rec,
		audithook.WithDisabledActions(audithook.ActionLedgerOpened, audithook.ActionLedgerClosed),
	))

	for _, action := range rec.actions() {
		if action == audithook.ActionLedgerOpened || action == audithook.ActionLedgerClosed {
			t.Errorf("disabled action %q was recorded", action)
		}
	}
	if len(rec.actions()) != 5 {
		t.Errorf("actions = %v, want 5 events", rec.actions())
	}
}

func TestExtensionRecorderFailureIsLogged(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	}), audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := ext.OnShutdown(context.Background()); err != nil {
		t.Errorf("recorder failures should not propagate, got %v", err)
	}
}
