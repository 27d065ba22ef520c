package strategy

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
	"github.com/rxtech-lab/argo-bot/pkg/marketdata"
)

type activeStrategy struct {
	id       string
	strategy Strategy
}

// Registry holds the strategy instances of a single account and its active selection.
// Registries are never shared between accounts.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	active     atomic.Pointer[activeStrategy]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy under id.
func (r *Registry) Register(id string, s Strategy) error {
	if s == nil {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[id]; exists {
		return errors.Newf(errors.ErrCodeStrategyAlreadyExists, "strategy %s already registered", id)
	}

	r.strategies[id] = s

	return nil
}

// Replace swaps the instance registered under id. If id is active, the new instance takes over at once.
func (r *Registry) Replace(id string, s Strategy) error {
	if s == nil {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[id]; !exists {
		return errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not registered", id)
	}

	r.strategies[id] = s

	if a := r.active.Load(); a != nil && a.id == id {
		r.active.Store(&activeStrategy{id: id, strategy: s})
	}

	return nil
}

// SetActive selects the strategy used by Evaluate. Stateful strategies are reset when selected.
func (r *Registry) SetActive(id string) error {
	r.mu.RLock()
	s, ok := r.strategies[id]
	r.mu.RUnlock()

	if !ok {
		return errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not registered", id)
	}

	if stateful, ok := s.(Stateful); ok {
		stateful.Reset()
	}

	r.active.Store(&activeStrategy{id: id, strategy: s})

	return nil
}

// Active returns the active strategy and whether one is selected.
func (r *Registry) Active() (Strategy, bool) {
	a := r.active.Load()
	if a == nil {
		return nil, false
	}

	return a.strategy, true
}

// ActiveID returns the id of the active strategy, or "".
func (r *Registry) ActiveID() string {
	a := r.active.Load()
	if a == nil {
		return ""
	}

	return a.id
}

// MetadataStrategy is the signal metadata key holding the id of the strategy that produced it.
const MetadataStrategy = "strategy"

// Evaluate runs the active strategy and stamps its id on the signal.
func (r *Registry) Evaluate(data marketdata.Frames, currentPrice float64) (types.Signal, error) {
	a := r.active.Load()
	if a == nil {
		return types.NewFlatSignal("no active strategy"), errors.New(errors.ErrCodeNoActiveStrategy, "no active strategy selected")
	}

	signal := a.strategy.Analyze(data, currentPrice).Normalize()
	signal.Metadata = maps.Clone(signal.Metadata)
	signal.Metadata[MetadataStrategy] = a.id

	return signal, nil
}

// SignalStrategy returns the id stamped on signal by Evaluate, or "".
func SignalStrategy(signal types.Signal) string {
	id, _ := signal.Metadata[MetadataStrategy].(string)

	return id
}

// Strategies lists the registered ids, sorted.
func (r *Registry) Strategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.strategies))
}
