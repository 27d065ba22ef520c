package marketdata

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

type staticKey struct {
	instrument string
	timeframe  types.Timeframe
}

// StaticSource serves bars held in memory.
type StaticSource struct {
	bars   map[staticKey][]types.MarketData
	prices map[string]float64
	mu     sync.RWMutex
}

// NewStaticSource creates an empty in-memory source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		bars:   make(map[staticKey][]types.MarketData),
		prices: make(map[string]float64),
		mu:     sync.RWMutex{},
	}
}

// SetBars replaces the bars of one instrument and timeframe.
func (s *StaticSource) SetBars(instrument string, timeframe types.Timeframe, bars []types.MarketData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars[staticKey{instrument, timeframe}] = append([]types.MarketData{}, bars...)
}

// SetPrice overrides the latest price of an instrument.
func (s *StaticSource) SetPrice(instrument string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[instrument] = price
}

// Bars returns up to limit of the most recent bars.
func (s *StaticSource) Bars(_ context.Context, instrument string, timeframe types.Timeframe, limit int) ([]types.MarketData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.bars[staticKey{instrument, timeframe}]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	return append([]types.MarketData{}, bars...), nil
}

// LatestPrice returns the override price, or the last close of the shortest timeframe loaded.
func (s *StaticSource) LatestPrice(_ context.Context, instrument string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if price, ok := s.prices[instrument]; ok {
		return price, nil
	}

	var (
		best  types.MarketData
		found bool
		span  = types.Timeframe1d.Duration() + 1
	)

	for key, bars := range s.bars {
		if key.instrument != instrument || len(bars) == 0 {
			continue
		}

		if d := key.timeframe.Duration(); d < span {
			span = d
			best = bars[len(bars)-1]
			found = true
		}
	}

	if !found {
		return 0, errors.Newf(errors.ErrCodeNoDataFound, "no price available for %s", instrument)
	}

	return best.Close, nil
}
