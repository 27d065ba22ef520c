package strategy

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/internal/version"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
	"gopkg.in/yaml.v3"
)

// RuleOperator compares two operands of a rule condition.
type RuleOperator string

const (
	OpGreaterThan      RuleOperator = "gt"
	OpLessThan         RuleOperator = "lt"
	OpGreaterThanEqual RuleOperator = "gte"
	OpLessThanEqual    RuleOperator = "lte"
	OpCrossAbove       RuleOperator = "cross_above"
	OpCrossBelow       RuleOperator = "cross_below"
)

// RuleCondition compares a column against another column or a constant on one timeframe.
type RuleCondition struct {
	Timeframe types.Timeframe `yaml:"timeframe" json:"timeframe" validate:"required"`
	Left      string          `yaml:"left" json:"left" validate:"required"`
	Op        RuleOperator    `yaml:"op" json:"op" validate:"required,oneof=gt lt gte lte cross_above cross_below"`
	Right     string          `yaml:"right,omitempty" json:"right,omitempty" validate:"required_without=Value,excluded_with=Value"`
	Value     *float64        `yaml:"value,omitempty" json:"value,omitempty"`
	// Weight defaults to 1
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty" validate:"gte=0"`
	// Required conditions must hold for the group to fire at all
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`
}

// RuleGroup fires when its required conditions hold. Its strength is the weighted share of
// satisfied conditions.
type RuleGroup struct {
	All []RuleCondition `yaml:"all" json:"all" validate:"required,min=1,dive"`
}

// RuleDocument is a declarative user strategy. Nothing in it is executed; the host evaluates
// the conditions against indicator tables.
type RuleDocument struct {
	ID          string                `yaml:"id" json:"id" validate:"required,max=64"`
	Name        string                `yaml:"name" json:"name" validate:"required"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string                `yaml:"version" json:"version" validate:"required"`
	Engine      string                `yaml:"engine,omitempty" json:"engine,omitempty"`
	Timeframes  []types.Timeframe     `yaml:"timeframes" json:"timeframes" validate:"required,min=1"`
	Indicators  []types.IndicatorType `yaml:"indicators" json:"indicators" validate:"required,min=1"`
	MinStrength float64               `yaml:"min_strength" json:"min_strength" validate:"gte=0,lte=1"`
	Long        *RuleGroup            `yaml:"long,omitempty" json:"long,omitempty" validate:"required_without=Short"`
	Short       *RuleGroup            `yaml:"short,omitempty" json:"short,omitempty"`
}

var (
	ohlcvColumns    = []string{"open", "high", "low", "close", "volume"}
	fixedColumns    = []string{"macd", "macd_signal", "macd_histogram", "rsi", "atr", "bb_upper", "bb_middle", "bb_lower"}
	periodicColumns = regexp.MustCompile(`^(ema|sma|rsi)_[1-9][0-9]*$`)
	macdColumns     = regexp.MustCompile(`^macd(_signal|_histogram)?_[1-9][0-9]*_[1-9][0-9]*_[1-9][0-9]*$`)
)

func knownColumn(name string) bool {
	return slices.Contains(ohlcvColumns, name) ||
		slices.Contains(fixedColumns, name) ||
		periodicColumns.MatchString(name) ||
		macdColumns.MatchString(name)
}

// ParseRuleDocument decodes and validates a YAML rule document.
func ParseRuleDocument(data []byte) (*RuleDocument, error) {
	var doc RuleDocument

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRule, "failed to parse rule document", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return &doc, nil
}

// LoadRuleFile reads a rule document from disk.
func LoadRuleFile(path string) (*RuleDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidRule, err, "failed to read rule file %s", path)
	}

	return ParseRuleDocument(data)
}

// Validate checks structure, column names, timeframes and engine compatibility.
func (d *RuleDocument) Validate() error {
	if err := validate.Struct(d); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRule, "invalid rule document", err)
	}

	if _, err := version.Parse(d.Version); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidRule, err, "rule %s", d.ID)
	}

	if err := version.CheckVersionCompatibility(version.RuleAPIVersion, d.Engine); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidRule, err, "rule %s", d.ID)
	}

	for _, tf := range d.Timeframes {
		if _, err := types.ParseTimeframe(string(tf)); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidRule, err, "rule %s", d.ID)
		}
	}

	for _, group := range []*RuleGroup{d.Long, d.Short} {
		if group == nil {
			continue
		}

		for i, c := range group.All {
			if !slices.Contains(d.Timeframes, c.Timeframe) {
				return errors.Newf(errors.ErrCodeInvalidRule, "rule %s: condition %d uses undeclared timeframe %s", d.ID, i, c.Timeframe)
			}

			if !knownColumn(c.Left) {
				return errors.Newf(errors.ErrCodeInvalidRule, "rule %s: condition %d: unknown column %q", d.ID, i, c.Left)
			}

			if c.Right != "" && !knownColumn(c.Right) {
				return errors.Newf(errors.ErrCodeInvalidRule, "rule %s: condition %d: unknown column %q", d.ID, i, c.Right)
			}
		}
	}

	return nil
}

// Columns lists the indicator columns the conditions compare, sorted. Bar fields are left out.
func (d *RuleDocument) Columns() []string {
	var cols []string

	for _, group := range []*RuleGroup{d.Long, d.Short} {
		if group == nil {
			continue
		}

		for _, c := range group.All {
			for _, name := range []string{c.Left, c.Right} {
				if name != "" && !slices.Contains(ohlcvColumns, name) && !slices.Contains(cols, name) {
					cols = append(cols, name)
				}
			}
		}
	}

	slices.Sort(cols)

	return cols
}

// Descriptor describes the document as a catalog entry.
func (d *RuleDocument) Descriptor() types.StrategyDescriptor {
	return types.StrategyDescriptor{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		Timeframes:  slices.Clone(d.Timeframes),
		Indicators:  slices.Clone(d.Indicators),
		Parameters:  map[string]any{"min_strength": d.MinStrength},
	}
}

type ruleParams struct {
	MinStrength float64 `json:"min_strength" validate:"gte=0,lte=1"`
}

// RuleFactory returns a catalog factory for the document.
func RuleFactory(doc *RuleDocument) Factory {
	return func(params Params) (Strategy, error) {
		p, err := decodeParams(doc.ID, params, ruleParams{MinStrength: doc.MinStrength})
		if err != nil {
			return nil, err
		}

		return &RuleStrategy{doc: doc, minStrength: p.MinStrength}, nil
	}
}

// RuleStrategy evaluates a RuleDocument.
type RuleStrategy struct {
	doc         *RuleDocument
	minStrength float64
}

func (s *RuleStrategy) Descriptor() types.StrategyDescriptor {
	d := s.doc.Descriptor()
	d.Parameters["min_strength"] = s.minStrength

	return d
}

func (s *RuleStrategy) RequiredTimeframes() []types.Timeframe {
	return slices.Clone(s.doc.Timeframes)
}

func (s *RuleStrategy) RequiredIndicators() []types.IndicatorType {
	return slices.Clone(s.doc.Indicators)
}

func (s *RuleStrategy) RequiredColumns() []string {
	return s.doc.Columns()
}

func (s *RuleStrategy) Analyze(data marketdata.Frames, currentPrice float64) types.Signal {
	if reason, missing := missingFrames(data, s.doc.Timeframes); missing {
		return flat(s.doc.ID, reason)
	}

	reasons := []string{}

	longStrength, longFired, longReasons := evaluateGroup(s.doc.Long, data)
	shortStrength, shortFired, shortReasons := evaluateGroup(s.doc.Short, data)

	action, strength := types.ActionFlat, 0.0

	switch {
	case longFired && (!shortFired || longStrength > shortStrength):
		action, strength = types.ActionLong, longStrength
		reasons = append(reasons, longReasons...)
	case shortFired && (!longFired || shortStrength > longStrength):
		action, strength = types.ActionShort, shortStrength
		reasons = append(reasons, shortReasons...)
	case longFired && shortFired:
		reasons = append(reasons, fmt.Sprintf("long and short rules tied at %.2f", longStrength))
	default:
		reasons = append(reasons, "no rule group fired")
	}

	action, reasons = belowThreshold(action, strength, s.minStrength, reasons)

	indicators := map[string]float64{
		"current_price":  currentPrice,
		"long_strength":  longStrength,
		"short_strength": shortStrength,
	}

	return finish(s.doc.ID, action, strength, reasons, indicators, map[string]any{"rule_version": s.doc.Version})
}

// evaluateGroup returns the weighted share of satisfied conditions and whether the group fired.
func evaluateGroup(group *RuleGroup, data marketdata.Frames) (float64, bool, []string) {
	if group == nil {
		return 0, false, nil
	}

	var total, satisfied float64

	reasons := []string{}

	for _, c := range group.All {
		weight := c.Weight
		if weight == 0 {
			weight = 1
		}

		total += weight

		ok, known := c.holds(data)
		if ok {
			satisfied += weight
			reasons = append(reasons, c.String())

			continue
		}

		if c.Required {
			if !known {
				return 0, false, []string{fmt.Sprintf("required condition %s has no data", c)}
			}

			return 0, false, nil
		}
	}

	if total == 0 || satisfied == 0 {
		return 0, false, nil
	}

	return satisfied / total, true, reasons
}

// holds evaluates the condition. known is false when the operands are missing.
func (c RuleCondition) holds(data marketdata.Frames) (ok bool, known bool) {
	table, present := data.Get(c.Timeframe)
	if !present {
		return false, false
	}

	left, ok := table.Value(c.Left, 0)
	if !ok {
		return false, false
	}

	right, ok := c.operand(table, 0)
	if !ok {
		return false, false
	}

	switch c.Op {
	case OpGreaterThan:
		return left > right, true
	case OpLessThan:
		return left < right, true
	case OpGreaterThanEqual:
		return left >= right, true
	case OpLessThanEqual:
		return left <= right, true
	case OpCrossAbove, OpCrossBelow:
		prevLeft, ok := table.Value(c.Left, 1)
		if !ok {
			return false, false
		}

		prevRight, ok := c.operand(table, 1)
		if !ok {
			return false, false
		}

		if c.Op == OpCrossAbove {
			return left > right && prevLeft <= prevRight, true
		}

		return left < right && prevLeft >= prevRight, true
	default:
		return false, false
	}
}

func (c RuleCondition) operand(table marketdata.Table, ago int) (float64, bool) {
	if c.Value != nil {
		return *c.Value, true
	}

	return table.Value(c.Right, ago)
}

func (c RuleCondition) String() string {
	right := c.Right
	if c.Value != nil {
		right = fmt.Sprintf("%g", *c.Value)
	}

	return fmt.Sprintf("%s: %s %s %s", c.Timeframe, c.Left, c.Op, right)
}
