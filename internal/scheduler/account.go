// Package scheduler runs one independent trading loop per account.
package scheduler

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bot/internal/combiner"
	"github.com/rxtech-lab/argo-bot/internal/events"
	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/ledger"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/position"
	"github.com/rxtech-lab/argo-bot/internal/sizing"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"go.uber.org/zap"
)

// TradingConfig holds the entry rules of one account.
type TradingConfig struct {
	Instruments      []string      `validate:"required,min=1,dive,required"`
	MinStrength      float64       `validate:"gte=0,lte=1"`
	ScanInterval     time.Duration `validate:"gt=0"`
	MaxOpenPositions int           `validate:"gte=1"`
	EnableLong       bool
	EnableShort      bool
	// ATRTimeframe selects the table whose atr column feeds ATR stops.
	// Empty means the shortest timeframe the active strategy reads.
	ATRTimeframe types.Timeframe
}

// AccountConfig is everything one account needs besides its collaborators.
type AccountConfig struct {
	ID string `validate:"required"`
	// Strategy is a catalog id. Empty selects the signal combiner.
	Strategy string
	Params   strategy.Params
	Trading  TradingConfig
	Sizing   sizing.Config
	Stops    sizing.StopConfig
	Position position.Config
	Combiner combiner.Config
}

// TradeHistory receives every closed trade.
type TradeHistory interface {
	Insert(account string, record types.TradeRecord) error
}

// Dependencies are the collaborators of an account. Catalog, History, Publisher, Recorder and Logger
// are optional.
type Dependencies struct {
	Catalog   *strategy.Catalog
	Provider  marketdata.Provider
	Exchange  exchange.Client
	History   TradeHistory
	Publisher events.Publisher
	Recorder  *Recorder
	Logger    *logger.Logger
}

// AccountContext owns the strategy registry, position manager and statistics of one account.
// Nothing in it is shared with other accounts.
type AccountContext struct {
	id        string
	config    AccountConfig
	catalog   *strategy.Catalog
	registry  *strategy.Registry
	sizer     *sizing.Sizer
	stops     *sizing.StopCalculator
	positions *position.Manager
	tracker   *ledger.Tracker
	provider  marketdata.Provider
	exchange  exchange.Client
	history   TradeHistory
	publisher events.Publisher
	recorder  *Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewAccount builds a fresh registry for the account, registers the signal combiner as the default
// strategy and activates the configured one.
func NewAccount(config AccountConfig, deps Dependencies) (*AccountContext, error) {
	validate := validator.New()

	if err := validate.Var(config.ID, "required"); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "account id is required")
	}

	if err := validate.Struct(config.Trading); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid trading config for account %s", config.ID)
	}

	if deps.Provider == nil || deps.Exchange == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "account %s needs a market data provider and an exchange", config.ID)
	}

	base := deps.Logger
	if base == nil {
		base = logger.NewNopLogger()
	}

	log := base.ForAccount(config.ID)

	comb, err := combiner.New(config.Combiner)
	if err != nil {
		return nil, err
	}

	registry := strategy.NewRegistry()
	if err := registry.Register(combiner.ID, comb); err != nil {
		return nil, err
	}

	a := &AccountContext{
		id:        config.ID,
		config:    config,
		catalog:   deps.Catalog,
		registry:  registry,
		provider:  deps.Provider,
		exchange:  deps.Exchange,
		history:   deps.History,
		publisher: deps.Publisher,
		recorder:  deps.Recorder,
		logger:    log,
		now:       time.Now,
	}

	if a.publisher == nil {
		a.publisher = events.NopPublisher{}
	}

	if err := a.SetStrategy(cmp.Or(config.Strategy, combiner.ID), config.Params); err != nil {
		return nil, err
	}

	if a.sizer, err = sizing.NewSizer(config.Sizing); err != nil {
		return nil, err
	}

	if a.stops, err = sizing.NewStopCalculator(config.Stops, log); err != nil {
		return nil, err
	}

	if a.positions, err = position.NewManager(config.Position, log); err != nil {
		return nil, err
	}

	a.tracker = ledger.NewTracker(config.ID, log)
	a.tracker.SetStrategy(a.descriptor().Info())

	return a, nil
}

func (a *AccountContext) ID() string {
	return a.id
}

func (a *AccountContext) Registry() *strategy.Registry {
	return a.registry
}

func (a *AccountContext) Positions() *position.Manager {
	return a.positions
}

func (a *AccountContext) Interval() time.Duration {
	return a.config.Trading.ScanInterval
}

// SetStrategy activates id, building it from the catalog on first use. Passing params for a strategy
// the account already holds rebuilds it with those params; nil params reactivate the existing instance.
func (a *AccountContext) SetStrategy(id string, params strategy.Params) error {
	registered := slices.Contains(a.registry.Strategies(), id)

	if !registered || len(params) > 0 {
		switch {
		case registered && (a.catalog == nil || !a.catalog.Has(id)):
			return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s cannot be rebuilt with new parameters", id)
		case a.catalog == nil:
			return errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not available without a catalog", id)
		}

		s, err := a.catalog.New(id, params)
		if err != nil {
			return err
		}

		if registered {
			err = a.registry.Replace(id, s)
		} else {
			err = a.registry.Register(id, s)
		}

		if err != nil {
			return err
		}
	}

	if err := a.registry.SetActive(id); err != nil {
		return err
	}

	if a.tracker != nil {
		a.tracker.SetStrategy(a.descriptor().Info())
	}

	a.logger.Info("Strategy activated", zap.String("strategy", id))

	return nil
}

// Stats returns the cumulative statistics, marked to the last polled prices.
func (a *AccountContext) Stats() types.TradeStats {
	a.tracker.SetUnrealizedPnL(a.positions.UnrealizedPnL())

	return a.tracker.Cumulative()
}

// DailyStats returns the statistics of the current UTC date.
func (a *AccountContext) DailyStats() types.TradeStats {
	a.tracker.SetUnrealizedPnL(a.positions.UnrealizedPnL())

	return a.tracker.Daily()
}

// Restore adopts the positions the exchange reports, so a restarted process keeps managing them.
// Positions without protective levels get percentage levels from their entry price.
func (a *AccountContext) Restore(ctx context.Context) error {
	positions, err := a.exchange.ListOpenPositions(ctx)
	if err != nil {
		return err
	}

	for i := range positions {
		p := &positions[i]

		if p.StopPrice <= 0 || p.TargetPrice <= 0 {
			levels, err := a.stops.Levels(p.Side, p.EntryPrice, optional.None[float64]())
			if err != nil {
				return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "cannot derive levels for %s", p.Instrument)
			}

			p.StopPrice = levels.Stop
			p.TargetPrice = levels.Target
		}

		if a.config.Position.TrailingEnabled && !p.TrailingEnabled {
			p.TrailingEnabled = true
			p.TrailingDistance = a.config.Position.TrailingPct
		}

		p.Strategy = cmp.Or(p.Strategy, a.registry.ActiveID())
		if p.Leverage <= 0 {
			p.Leverage = a.sizer.Leverage()
		}
	}

	if err := a.positions.Restore(positions); err != nil {
		return err
	}

	if len(positions) > 0 {
		a.logger.Info("Positions restored", zap.Int("count", len(positions)))
	}

	return nil
}

func (a *AccountContext) descriptor() types.StrategyDescriptor {
	s, ok := a.registry.Active()
	if !ok {
		return types.StrategyDescriptor{}
	}

	return s.Descriptor()
}
