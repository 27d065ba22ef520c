package types

import "maps"

// StrategyDescriptor describes a registered strategy. It is immutable once registered;
// use Clone to hand out copies.
type StrategyDescriptor struct {
	ID          string          `json:"id" yaml:"id" validate:"required"`
	Name        string          `json:"name" yaml:"name" validate:"required"`
	Description string          `json:"description" yaml:"description"`
	Version     string          `json:"version" yaml:"version" validate:"required"`
	Timeframes  []Timeframe     `json:"timeframes" yaml:"timeframes" validate:"required,min=1"`
	Indicators  []IndicatorType `json:"indicators" yaml:"indicators" validate:"required,min=1"`
	Parameters  map[string]any  `json:"parameters" yaml:"parameters"`
	// Stateful strategies keep bounded history between evaluations
	Stateful bool `json:"stateful" yaml:"stateful"`
}

// Clone returns a deep copy.
func (d StrategyDescriptor) Clone() StrategyDescriptor {
	out := d
	out.Timeframes = append([]Timeframe{}, d.Timeframes...)
	out.Indicators = append([]IndicatorType{}, d.Indicators...)
	out.Parameters = maps.Clone(d.Parameters)

	if out.Parameters == nil {
		out.Parameters = map[string]any{}
	}

	return out
}

// Info returns the short identification used in stats output.
func (d StrategyDescriptor) Info() StrategyInfo {
	return StrategyInfo{ID: d.ID, Version: d.Version, Name: d.Name}
}
