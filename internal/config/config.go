// Package config loads the bot configuration file and turns it into the configs of the runtime
// components.
package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bot/internal/combiner"
	"github.com/rxtech-lab/argo-bot/internal/events"
	"github.com/rxtech-lab/argo-bot/internal/exchange"
	"github.com/rxtech-lab/argo-bot/internal/indicator"
	"github.com/rxtech-lab/argo-bot/internal/position"
	"github.com/rxtech-lab/argo-bot/internal/scheduler"
	"github.com/rxtech-lab/argo-bot/internal/sizing"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log        LogConfig          `json:"log" yaml:"log"`
	Market     MarketConfig       `json:"market" yaml:"market"`
	Indicators IndicatorConfig    `json:"indicators" yaml:"indicators"`
	Risk       RiskConfig         `json:"risk" yaml:"risk"`
	Trading    TradingConfig      `json:"trading" yaml:"trading"`
	Combiner   CombinerConfig     `json:"combiner" yaml:"combiner"`
	Strategies StrategiesConfig   `json:"strategies" yaml:"strategies"`
	Accounts   []Account          `json:"accounts" yaml:"accounts" jsonschema:"description=Accounts traded by this process, each with its own strategy and ledger" validate:"required,min=1,dive"`
	Storage    StorageConfig      `json:"storage" yaml:"storage"`
	Metrics    MetricsConfig      `json:"metrics" yaml:"metrics"`
	Events     events.KafkaConfig `json:"events" yaml:"events"`

	catalog *strategy.Catalog
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error" default:"info" validate:"oneof=debug info warn error"`
}

// ZapLevel returns the configured level. Validate guarantees it parses.
func (c LogConfig) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return zapcore.InfoLevel
	}

	return level
}

type MarketConfig struct {
	Provider    string   `json:"provider" yaml:"provider" jsonschema:"description=Market data provider,enum=binance,enum=polygon,enum=static" default:"binance" validate:"oneof=binance polygon static"`
	APIKey      string   `json:"api_key" yaml:"api_key" jsonschema:"description=API key of the market data provider (polygon only)"`
	Instruments []string `json:"instruments" yaml:"instruments" jsonschema:"description=Instruments scanned by every account unless overridden" validate:"required,min=1,dive,required"`
	// Timeframes restricts what strategies may read. Empty allows every supported timeframe.
	Timeframes []string `json:"timeframes,omitempty" yaml:"timeframes,omitempty" jsonschema:"description=Timeframes the provider is allowed to serve, empty for all"`
	Lookback   int      `json:"lookback" yaml:"lookback" jsonschema:"description=Number of bars fetched per table,default=250" default:"250" validate:"gte=30"`
}

type IndicatorConfig struct {
	EMAPeriods []int       `json:"ema_periods" yaml:"ema_periods" default:"[9,15,20,21,50,200]" validate:"required,min=1,dive,gt=0"`
	SMAPeriod  int         `json:"sma_period" yaml:"sma_period" default:"20" validate:"gt=0"`
	MACD       MACDConfig  `json:"macd" yaml:"macd"`
	RSIPeriod  int         `json:"rsi_period" yaml:"rsi_period" default:"14" validate:"gt=0"`
	ATRPeriod  int         `json:"atr_period" yaml:"atr_period" default:"14" validate:"gt=0"`
	Bollinger  BandsConfig `json:"bollinger" yaml:"bollinger"`
}

type MACDConfig struct {
	Fast   int `json:"fast" yaml:"fast" default:"12" validate:"gt=0"`
	Slow   int `json:"slow" yaml:"slow" default:"26" validate:"gtfield=Fast"`
	Signal int `json:"signal" yaml:"signal" default:"9" validate:"gt=0"`
}

type BandsConfig struct {
	Period int     `json:"period" yaml:"period" default:"20" validate:"gt=0"`
	StdDev float64 `json:"std_dev" yaml:"std_dev" default:"2" validate:"gt=0"`
}

type RiskConfig struct {
	MaxPositionPct      float64 `json:"max_position_pct" yaml:"max_position_pct" jsonschema:"description=Share of the balance a full strength signal commits" default:"0.1" validate:"gt=0,lte=1"`
	Leverage            float64 `json:"leverage" yaml:"leverage" default:"5" validate:"gte=1,lte=125"`
	SizePrecision       int32   `json:"size_precision" yaml:"size_precision" default:"3" validate:"gte=0,lte=8"`
	PricePrecision      int32   `json:"price_precision" yaml:"price_precision" default:"2" validate:"gte=0,lte=8"`
	StopLossPct         float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" default:"0.02" validate:"gt=0,lt=1"`
	TakeProfitPct       float64 `json:"take_profit_pct" yaml:"take_profit_pct" default:"0.04" validate:"gt=0,lt=1"`
	UseATR              bool    `json:"use_atr" yaml:"use_atr" jsonschema:"description=Derive stop and target from the ATR when it is available"`
	ATRStopMultiplier   float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier" default:"1.5" validate:"gt=0"`
	ATRTargetMultiplier float64 `json:"atr_target_multiplier" yaml:"atr_target_multiplier" default:"3" validate:"gt=0"`
	TrailingEnabled     bool    `json:"trailing_enabled" yaml:"trailing_enabled" default:"true"`
	TrailingPct         float64 `json:"trailing_pct" yaml:"trailing_pct" default:"0.015" validate:"gte=0,lt=1"`
}

type TradingConfig struct {
	MinStrength       float64       `json:"min_strength" yaml:"min_strength" jsonschema:"description=Signals weaker than this never open a position" default:"0.5" validate:"gte=0,lte=1"`
	ScanInterval      time.Duration `json:"scan_interval" yaml:"scan_interval" jsonschema:"description=Pause between two cycles of an account" default:"1m" validate:"gte=1s"`
	MaxOpenPositions  int           `json:"max_open_positions" yaml:"max_open_positions" default:"3" validate:"gte=1"`
	EnableLong        bool          `json:"enable_long" yaml:"enable_long" default:"true"`
	EnableShort       bool          `json:"enable_short" yaml:"enable_short" default:"true"`
	ReversalEnabled   bool          `json:"reversal_enabled" yaml:"reversal_enabled" default:"true"`
	ReversalThreshold float64       `json:"reversal_threshold" yaml:"reversal_threshold" default:"0.7" validate:"gte=0,lte=1"`
	DryRun            bool          `json:"dry_run" yaml:"dry_run" jsonschema:"description=Trade on a local ledger instead of the exchange" default:"true"`
	ATRTimeframe      string        `json:"atr_timeframe" yaml:"atr_timeframe" jsonschema:"description=Timeframe whose ATR feeds ATR stops, empty for the shortest one"`
}

// CombinerConfig uses one field per horizon so a partial override keeps the other defaults.
type CombinerConfig struct {
	Horizons     HorizonTimeframes `json:"horizons" yaml:"horizons"`
	Weights      HorizonWeights    `json:"weights" yaml:"weights"`
	TrendPeriods []int             `json:"trend_periods" yaml:"trend_periods" default:"[9,21]" validate:"required,min=2,dive,gt=0"`
	AnchorPeriod int               `json:"anchor_period" yaml:"anchor_period" jsonschema:"description=EMA period price must sit beyond for the full trend score, 0 disables it" default:"200" validate:"gte=0"`
	Oversold     float64           `json:"oversold" yaml:"oversold" default:"30" validate:"gt=0,lt=100"`
	Overbought   float64           `json:"overbought" yaml:"overbought" default:"70" validate:"gtfield=Oversold,lt=100"`
}

type HorizonTimeframes struct {
	Short  string `json:"short_term" yaml:"short_term" default:"5m"`
	Medium string `json:"medium_term" yaml:"medium_term" default:"1h"`
	Long   string `json:"long_term" yaml:"long_term" default:"4h"`
}

type HorizonWeights struct {
	Short  float64 `json:"short_term" yaml:"short_term" default:"0.3" validate:"gte=0"`
	Medium float64 `json:"medium_term" yaml:"medium_term" default:"0.3" validate:"gte=0"`
	Long   float64 `json:"long_term" yaml:"long_term" default:"0.4" validate:"gte=0"`
}

type StrategiesConfig struct {
	RuleFiles []string `json:"rule_files" yaml:"rule_files" jsonschema:"description=YAML rule documents registered as strategies"`
}

type Account struct {
	ID             string          `json:"id" yaml:"id" validate:"required"`
	Strategy       string          `json:"strategy" yaml:"strategy" jsonschema:"description=Catalog id of the active strategy" default:"signal_combiner" validate:"required"`
	Params         strategy.Params `json:"params,omitempty" yaml:"params,omitempty"`
	InitialBalance float64         `json:"initial_balance" yaml:"initial_balance" jsonschema:"description=Starting balance of the simulation ledger" default:"10000" validate:"gt=0"`
	LedgerPath     string          `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty" jsonschema:"description=Ledger file, defaults to <storage.ledger_dir>/<id>.json"`
	// DryRun overrides trading.dry_run when set
	DryRun      *bool    `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Instruments []string `json:"instruments,omitempty" yaml:"instruments,omitempty" validate:"omitempty,dive,required"`
	// Binance is checked by Validate after the risk section fills its gaps
	Binance *exchange.BinanceConfig `json:"binance,omitempty" yaml:"binance,omitempty" validate:"-"`
}

// UnmarshalYAML applies the defaults before decoding so list entries get them too.
func (a *Account) UnmarshalYAML(node *yaml.Node) error {
	if err := defaults.Set(a); err != nil {
		return err
	}

	type plain Account

	return node.Decode((*plain)(a))
}

type StorageConfig struct {
	HistoryPath string `json:"history_path" yaml:"history_path" jsonschema:"description=Parquet file the trade history is exported to, empty keeps it in memory"`
	LedgerDir   string `json:"ledger_dir" yaml:"ledger_dir" default:"data/ledgers"`
}

type MetricsConfig struct {
	Listen string `json:"listen" yaml:"listen" jsonschema:"description=Address of the metrics and health endpoints, empty disables them" default:":9090"`
}

// Load reads path and expands environment variables. Relative paths in the file are taken from the
// file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	cfg, err := decode([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}

	cfg.resolveRelative(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to apply config defaults", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to decode config", err)
	}

	return cfg, nil
}

// Validate checks the struct tags and the rules that span sections. It also builds the strategy
// catalog, so rule files are read here.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	for _, tf := range c.Market.Timeframes {
		if _, err := types.ParseTimeframe(tf); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidTimeframe, err, "market.timeframes: %s", tf)
		}
	}

	if c.Trading.ATRTimeframe != "" {
		tf, err := types.ParseTimeframe(c.Trading.ATRTimeframe)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidTimeframe, err, "trading.atr_timeframe: %s", c.Trading.ATRTimeframe)
		}

		if !c.timeframeAllowed(tf) {
			return errors.Newf(errors.ErrCodeInvalidTimeframe, "trading.atr_timeframe %s is not in market.timeframes", tf)
		}
	}

	if c.Market.Provider == string(marketdata.ProviderPolygon) && c.Market.APIKey == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "market.api_key is required for the polygon provider")
	}

	if _, err := c.CombinerConfig(); err != nil {
		return err
	}

	for _, period := range append(slices.Clone(c.Combiner.TrendPeriods), c.Combiner.AnchorPeriod) {
		if period > 0 && !slices.Contains(c.Indicators.EMAPeriods, period) {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "combiner EMA period %d is missing from indicators.ema_periods", period)
		}
	}

	if c.Risk.StopLossPct >= c.Risk.TakeProfitPct {
		return errors.Newf(errors.ErrCodeInvalidStopLoss, "risk.stop_loss_pct %.4f must be below risk.take_profit_pct %.4f", c.Risk.StopLossPct, c.Risk.TakeProfitPct)
	}

	if c.Risk.ATRStopMultiplier >= c.Risk.ATRTargetMultiplier {
		return errors.Newf(errors.ErrCodeInvalidStopLoss, "risk.atr_stop_multiplier %.2f must be below risk.atr_target_multiplier %.2f", c.Risk.ATRStopMultiplier, c.Risk.ATRTargetMultiplier)
	}

	catalog, err := c.buildCatalog()
	if err != nil {
		return err
	}

	produced, err := c.producedColumns()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Accounts))

	for _, account := range c.Accounts {
		if _, ok := seen[account.ID]; ok {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate account id %s", account.ID)
		}

		seen[account.ID] = struct{}{}

		timeframes, columns, err := c.strategyNeeds(catalog, account)
		if err != nil {
			return errors.Wrapf(errors.GetCode(err), err, "account %s", account.ID)
		}

		for _, col := range columns {
			if !slices.Contains(produced, col) {
				return errors.Newf(errors.ErrCodeInvalidConfiguration,
					"account %s: strategy %s reads column %s which the indicators section does not produce", account.ID, account.Strategy, col)
			}
		}

		for _, tf := range timeframes {
			if !c.timeframeAllowed(tf) {
				return errors.Newf(errors.ErrCodeInvalidTimeframe, "account %s: strategy %s reads %s which market.timeframes does not allow", account.ID, account.Strategy, tf)
			}
		}

		if !c.IsDryRun(account) {
			if account.Binance == nil {
				return errors.Newf(errors.ErrCodeInvalidConfiguration, "account %s trades live but has no binance section", account.ID)
			}

			if err := validate.Struct(c.BinanceConfig(account)); err != nil {
				return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "account %s", account.ID)
			}
		}
	}

	c.catalog = catalog

	return nil
}

// strategyNeeds builds the account's strategy once and returns the timeframes and indicator columns
// it reads. Unknown ids and bad params fail here instead of when the account starts.
func (c *Config) strategyNeeds(catalog *strategy.Catalog, account Account) ([]types.Timeframe, []string, error) {
	if account.Strategy == combiner.ID {
		if len(account.Params) > 0 {
			return nil, nil, errors.New(errors.ErrCodeStrategyConfigError, "the signal combiner is configured in the combiner section, not by params")
		}

		comb, err := c.CombinerConfig()
		if err != nil {
			return nil, nil, err
		}

		// combiner periods are checked against indicators.ema_periods on their own
		return slices.Collect(maps.Values(comb.Horizons)), nil, nil
	}

	s, err := catalog.New(account.Strategy, account.Params)
	if err != nil {
		return nil, nil, err
	}

	var columns []string
	if reader, ok := s.(strategy.ColumnReader); ok {
		columns = reader.RequiredColumns()
	}

	return s.RequiredTimeframes(), columns, nil
}

// producedColumns lists every column the configured indicators write.
func (c *Config) producedColumns() ([]string, error) {
	registry, err := c.IndicatorRegistry()
	if err != nil {
		return nil, err
	}

	var columns []string

	for _, name := range registry.ListIndicators() {
		ind, err := registry.GetIndicator(name)
		if err != nil {
			return nil, err
		}

		columns = append(columns, ind.Columns()...)
	}

	return columns, nil
}

func (c *Config) timeframeAllowed(tf types.Timeframe) bool {
	return len(c.Market.Timeframes) == 0 || slices.Contains(c.Market.Timeframes, string(tf))
}

func (c *Config) buildCatalog() (*strategy.Catalog, error) {
	catalog := strategy.DefaultCatalog()

	for _, path := range c.Strategies.RuleFiles {
		doc, err := strategy.LoadRuleFile(path)
		if err != nil {
			return nil, err
		}

		if err := catalog.RegisterRule(doc); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// resolveRelative makes file paths relative to the config file's directory.
func (c *Config) resolveRelative(dir string) {
	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}

		return filepath.Join(dir, path)
	}

	for i, path := range c.Strategies.RuleFiles {
		c.Strategies.RuleFiles[i] = resolve(path)
	}

	c.Storage.HistoryPath = resolve(c.Storage.HistoryPath)
	c.Storage.LedgerDir = resolve(c.Storage.LedgerDir)

	for i := range c.Accounts {
		c.Accounts[i].LedgerPath = resolve(c.Accounts[i].LedgerPath)
	}
}

// Catalog returns the strategy catalog built by Validate.
func (c *Config) Catalog() *strategy.Catalog {
	if c.catalog == nil {
		c.catalog = strategy.DefaultCatalog()
	}

	return c.catalog
}

func (c *Config) SizingConfig() sizing.Config {
	return sizing.Config{
		Leverage:       c.Risk.Leverage,
		MaxPositionPct: c.Risk.MaxPositionPct,
		SizePrecision:  c.Risk.SizePrecision,
	}
}

func (c *Config) StopConfig() sizing.StopConfig {
	return sizing.StopConfig{
		StopLossPct:         c.Risk.StopLossPct,
		TakeProfitPct:       c.Risk.TakeProfitPct,
		UseATR:              c.Risk.UseATR,
		ATRStopMultiplier:   c.Risk.ATRStopMultiplier,
		ATRTargetMultiplier: c.Risk.ATRTargetMultiplier,
	}
}

func (c *Config) PositionConfig() position.Config {
	return position.Config{
		TrailingEnabled:   c.Risk.TrailingEnabled,
		TrailingPct:       c.Risk.TrailingPct,
		ReversalEnabled:   c.Trading.ReversalEnabled,
		ReversalThreshold: c.Trading.ReversalThreshold,
	}
}

// CombinerConfig converts the combiner section and checks it the way the combiner will.
func (c *Config) CombinerConfig() (combiner.Config, error) {
	horizons := map[types.Horizon]string{
		types.HorizonShort:  c.Combiner.Horizons.Short,
		types.HorizonMedium: c.Combiner.Horizons.Medium,
		types.HorizonLong:   c.Combiner.Horizons.Long,
	}

	cfg := combiner.Config{
		Horizons: make(map[types.Horizon]types.Timeframe, len(horizons)),
		Weights: map[types.Horizon]float64{
			types.HorizonShort:  c.Combiner.Weights.Short,
			types.HorizonMedium: c.Combiner.Weights.Medium,
			types.HorizonLong:   c.Combiner.Weights.Long,
		},
		TrendPeriods: slices.Clone(c.Combiner.TrendPeriods),
		AnchorPeriod: c.Combiner.AnchorPeriod,
		Oversold:     c.Combiner.Oversold,
		Overbought:   c.Combiner.Overbought,
	}

	for horizon, raw := range horizons {
		tf, err := types.ParseTimeframe(raw)
		if err != nil {
			return combiner.Config{}, errors.Wrapf(errors.ErrCodeInvalidTimeframe, err, "combiner.horizons.%s", horizon)
		}

		cfg.Horizons[horizon] = tf
	}

	if _, err := combiner.New(cfg); err != nil {
		return combiner.Config{}, err
	}

	return cfg, nil
}

// IndicatorRegistry returns a registry holding every indicator configured with this file's periods.
func (c *Config) IndicatorRegistry() (indicator.IndicatorRegistry, error) {
	ind := c.Indicators

	emaPeriods := make([]any, 0, len(ind.EMAPeriods))
	for _, p := range ind.EMAPeriods {
		emaPeriods = append(emaPeriods, p)
	}

	configured := []struct {
		indicator indicator.Indicator
		params    []any
	}{
		{indicator.NewEMA(), emaPeriods},
		{indicator.NewMA(), []any{ind.SMAPeriod}},
		{indicator.NewMACD(), []any{ind.MACD.Fast, ind.MACD.Slow, ind.MACD.Signal}},
		{indicator.NewRSI(), []any{ind.RSIPeriod}},
		{indicator.NewATR(), []any{ind.ATRPeriod}},
		{indicator.NewBollingerBands(), []any{ind.Bollinger.Period, ind.Bollinger.StdDev}},
	}

	registry := indicator.NewIndicatorRegistry()

	for _, entry := range configured {
		if err := entry.indicator.Config(entry.params...); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "indicator %s", entry.indicator.Name())
		}

		if err := registry.RegisterIndicator(entry.indicator); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (c *Config) SourceConfig() marketdata.SourceConfig {
	return marketdata.SourceConfig{
		Type:   marketdata.ProviderType(c.Market.Provider),
		APIKey: c.Market.APIKey,
	}
}

// IsDryRun reports whether the account trades on its local ledger.
func (c *Config) IsDryRun(account Account) bool {
	if account.DryRun != nil {
		return *account.DryRun
	}

	return c.Trading.DryRun
}

// LedgerPath returns the ledger file of the account.
func (c *Config) LedgerPath(account Account) string {
	if account.LedgerPath != "" {
		return account.LedgerPath
	}

	return filepath.Join(c.Storage.LedgerDir, fmt.Sprintf("%s.json", account.ID))
}

// BinanceConfig returns the exchange config of a live account with the risk section filling what
// the account leaves empty.
func (c *Config) BinanceConfig(account Account) exchange.BinanceConfig {
	var cfg exchange.BinanceConfig
	if account.Binance != nil {
		cfg = *account.Binance
	}

	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}

	if cfg.Leverage == 0 {
		cfg.Leverage = c.Risk.Leverage
	}

	if cfg.QuantityPrecision == 0 {
		cfg.QuantityPrecision = c.Risk.SizePrecision
	}

	if cfg.PricePrecision == 0 {
		cfg.PricePrecision = c.Risk.PricePrecision
	}

	return cfg
}

// AccountConfig assembles the scheduler config of one account.
func (c *Config) AccountConfig(account Account) (scheduler.AccountConfig, error) {
	comb, err := c.CombinerConfig()
	if err != nil {
		return scheduler.AccountConfig{}, err
	}

	instruments := account.Instruments
	if len(instruments) == 0 {
		instruments = c.Market.Instruments
	}

	return scheduler.AccountConfig{
		ID:       account.ID,
		Strategy: account.Strategy,
		Params:   account.Params,
		Trading: scheduler.TradingConfig{
			Instruments:      slices.Clone(instruments),
			MinStrength:      c.Trading.MinStrength,
			ScanInterval:     c.Trading.ScanInterval,
			MaxOpenPositions: c.Trading.MaxOpenPositions,
			EnableLong:       c.Trading.EnableLong,
			EnableShort:      c.Trading.EnableShort,
			ATRTimeframe:     types.Timeframe(c.Trading.ATRTimeframe),
		},
		Sizing:   c.SizingConfig(),
		Stops:    c.StopConfig(),
		Position: c.PositionConfig(),
		Combiner: comb,
	}, nil
}

// Sample returns the defaults with one paper account, as written next to the schema.
func Sample() *Config {
	cfg := &Config{}
	account := Account{ID: "paper"}

	// the default tags are static, a failure here is a programming error
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}

	if err := defaults.Set(&account); err != nil {
		panic(err)
	}

	cfg.Market.Instruments = []string{"BTCUSDT", "ETHUSDT"}
	cfg.Accounts = []Account{account}

	return cfg
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	return strategy.ToJSONSchema(&Config{})
}
