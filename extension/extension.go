// Package extension provides the Forge extension adapter for Crowdfund.
//
// It implements the forge.Extension interface to integrate a funding ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.crowdfund" or "crowdfund" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/crowdfund"
	"github.com/xraph/crowdfund/id"
	"github.com/xraph/crowdfund/payout"
	"github.com/xraph/crowdfund/priceoracle"
	"github.com/xraph/crowdfund/store"
	"github.com/xraph/crowdfund/store/memory"
	"github.com/xraph/crowdfund/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "crowdfund"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Price-gated crowdfunding ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts a Crowdfund ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	ledger     *crowdfund.Ledger
	store      store.Store
	feed       priceoracle.Feed
	payer      payout.Transferer
	ledgerOpts []crowdfund.Option
}

// New creates a new Crowdfund Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger returns the running ledger. It is nil until Start completes.
func (e *Extension) Ledger() *crowdfund.Ledger { return e.ledger }

// Register implements [forge.Extension]. It loads configuration and
// registers the ledger in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.resolveDependencies(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*crowdfund.Ledger, error) {
		if e.ledger == nil {
			return nil, errors.New("crowdfund: extension not started")
		}
		return e.ledger, nil
	})
}

// resolveDependencies checks the collaborators that have no safe default and
// falls back to a memory store when none was provided.
func (e *Extension) resolveDependencies() error {
	if e.feed == nil {
		return errors.New("crowdfund: a price feed is required; use WithPriceFeed")
	}
	if e.payer == nil {
		return errors.New("crowdfund: a transferer is required; use WithTransferer")
	}
	if e.store == nil {
		e.store = memory.New()
	}
	return nil
}

// Start implements [forge.Extension]. It migrates the store and creates or
// re-opens the configured ledger.
func (e *Extension) Start(ctx context.Context) error {
	if e.store == nil {
		return errors.New("crowdfund: extension not initialized")
	}

	l, err := e.openLedger(ctx)
	if err != nil {
		return err
	}
	e.ledger = l

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	defer e.MarkStopped()

	if e.ledger == nil {
		return nil
	}
	if err := e.ledger.Close(ctx); err != nil {
		return err
	}
	return e.store.Close()
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("crowdfund: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.ledger != nil {
		return e.ledger.Verify(ctx)
	}
	return nil
}

// openLedger migrates the store unless disabled, then opens the configured
// ledger or creates a new one.
func (e *Extension) openLedger(ctx context.Context) (*crowdfund.Ledger, error) {
	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("crowdfund: migrate: %w", err)
		}
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return nil, err
	}

	if e.config.LedgerID != "" {
		ledgerID, err := id.ParseLedgerID(e.config.LedgerID)
		if err != nil {
			return nil, fmt.Errorf("crowdfund: ledger_id: %w", err)
		}
		return crowdfund.Open(ctx, e.store, ledgerID, e.feed, e.payer, opts...)
	}

	return crowdfund.Create(ctx, e.store, types.NewAddress(e.config.Owner), e.feed, e.payer, opts...)
}

// buildLedgerOpts constructs crowdfund.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]crowdfund.Option, error) {
	opts := make([]crowdfund.Option, 0, len(e.ledgerOpts)+3)

	if e.config.MinimumUSD != "" {
		minimum, err := types.ParseUSD(e.config.MinimumUSD)
		if err != nil {
			return nil, fmt.Errorf("crowdfund: minimum_usd: %w", err)
		}
		opts = append(opts, crowdfund.WithMinimumUSD(minimum))
	}
	if e.config.FeedDecimals > 0 {
		opts = append(opts, crowdfund.WithFeedDecimals(e.config.FeedDecimals))
	}
	if e.config.MaxPriceAge > 0 {
		opts = append(opts, crowdfund.WithMaxPriceAge(e.config.MaxPriceAge))
	}

	// Pass-through options win over config.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("crowdfund: configuration is required but not found in config files; " +
				"ensure 'extensions.crowdfund' or 'crowdfund' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("crowdfund: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("ledger_id", e.config.LedgerID),
		forge.F("owner", e.config.Owner),
		forge.F("minimum_usd", e.config.MinimumUSD),
		forge.F("feed_decimals", e.config.FeedDecimals),
		forge.F("max_price_age", e.config.MaxPriceAge),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.crowdfund", "crowdfund"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("crowdfund: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("crowdfund: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MinimumUSD == "" {
		cfg.MinimumUSD = defaults.MinimumUSD
	}
	if cfg.FeedDecimals == 0 {
		cfg.FeedDecimals = defaults.FeedDecimals
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.LedgerID == "" {
		yamlConfig.LedgerID = programmaticConfig.LedgerID
	}
	if yamlConfig.Owner == "" {
		yamlConfig.Owner = programmaticConfig.Owner
	}
	if yamlConfig.MinimumUSD == "" {
		yamlConfig.MinimumUSD = programmaticConfig.MinimumUSD
	}
	if yamlConfig.FeedDecimals == 0 {
		yamlConfig.FeedDecimals = programmaticConfig.FeedDecimals
	}
	if yamlConfig.MaxPriceAge == 0 {
		yamlConfig.MaxPriceAge = programmaticConfig.MaxPriceAge
	}
	return mergeWithDefaults(yamlConfig)
}
