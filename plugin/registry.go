package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/crowdfund/contribution"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/types"
	"github.com/xraph/crowdfund/withdrawal"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onContributionAccepted []OnContributionAccepted
	onContributionRejected []OnContributionRejected
	onWithdrawn            []OnWithdrawn
	onWithdrawalFailed     []OnWithdrawalFailed
	onPriceRead            []OnPriceRead
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnContributionAccepted); ok {
		r.onContributionAccepted = append(r.onContributionAccepted, v)
	}
	if v, ok := p.(OnContributionRejected); ok {
		r.onContributionRejected = append(r.onContributionRejected, v)
	}
	if v, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, v)
	}
	if v, ok := p.(OnWithdrawalFailed); ok {
		r.onWithdrawalFailed = append(r.onWithdrawalFailed, v)
	}
	if v, ok := p.(OnPriceRead); ok {
		r.onPriceRead = append(r.onPriceRead, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeFor[OnInit](), "OnInit"},
	{reflect.TypeFor[OnShutdown](), "OnShutdown"},
	{reflect.TypeFor[OnContributionAccepted](), "OnContributionAccepted"},
	{reflect.TypeFor[OnContributionRejected](), "OnContributionRejected"},
	{reflect.TypeFor[OnWithdrawn](), "OnWithdrawn"},
	{reflect.TypeFor[OnWithdrawalFailed](), "OnWithdrawalFailed"},
	{reflect.TypeFor[OnPriceRead](), "OnPriceRead"},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitContributionAccepted emits a contribution accepted event.
func (r *Registry) EmitContributionAccepted(ctx context.Context, c *contribution.Contribution) {
	r.mu.RLock()
	plugins := r.onContributionAccepted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnContributionAccepted(ctx, c)
		}); err != nil {
			r.logger.Warn("plugin OnContributionAccepted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitContributionRejected emits a contribution rejected event.
func (r *Registry) EmitContributionRejected(ctx context.Context, ledgerID id.LedgerID, funder types.Address, amount types.Amount, reason error) {
	r.mu.RLock()
	plugins := r.onContributionRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnContributionRejected(ctx, ledgerID, funder, amount, reason)
		}); err != nil {
			r.logger.Warn("plugin OnContributionRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWithdrawn emits a withdrawal completed event.
func (r *Registry) EmitWithdrawn(ctx context.Context, w *withdrawal.Withdrawal) {
	r.mu.RLock()
	plugins := r.onWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWithdrawn(ctx, w)
		}); err != nil {
			r.logger.Warn("plugin OnWithdrawn failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWithdrawalFailed emits a withdrawal failed event.
func (r *Registry) EmitWithdrawalFailed(ctx context.Context, ledgerID id.LedgerID, caller types.Address, method withdrawal.Method, reason error) {
	r.mu.RLock()
	plugins := r.onWithdrawalFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWithdrawalFailed(ctx, ledgerID, caller, method, reason)
		}); err != nil {
			r.logger.Warn("plugin OnWithdrawalFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPriceRead emits a price read event.
func (r *Registry) EmitPriceRead(ctx context.Context, ledgerID id.LedgerID, price priceoracle.Price, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onPriceRead
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPriceRead(ctx, ledgerID, price, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnPriceRead failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a contribution or withdrawal.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
