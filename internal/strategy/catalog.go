package strategy

import (
	"maps"
	"slices"
	"sync"

	"github.com/rxtech-lab/argo-bot/internal/types"
	"github.com/rxtech-lab/argo-bot/internal/version"
	"github.com/rxtech-lab/argo-bot/pkg/errors"
)

type catalogEntry struct {
	descriptor types.StrategyDescriptor
	factory    Factory
	// params is a typed parameter struct used for schema export
	params any
}

// Catalog is the shared list of strategy descriptors and factories.
// It is written while the process starts and read concurrently by every account afterwards.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]catalogEntry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]catalogEntry)}
}

// DefaultCatalog returns a catalog holding the built-in strategies.
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	builtins := []struct {
		factory Factory
		params  any
	}{
		{NewEMACrossover, DefaultEMACrossoverParams()},
		{NewMACDMomentum, DefaultMACDMomentumParams()},
		{NewRSIReversion, DefaultRSIReversionParams()},
		{NewCombined, DefaultCombinedParams()},
		{NewSupportResistance, DefaultSupportResistanceParams()},
	}

	for _, b := range builtins {
		s, err := b.factory(nil)
		if err != nil {
			panic(err)
		}

		if err := c.register(s.Descriptor(), b.factory, b.params); err != nil {
			panic(err)
		}
	}

	return c
}

// Register adds a strategy. Duplicate ids, empty timeframe or indicator sets and
// versions that are not semver are rejected.
func (c *Catalog) Register(descriptor types.StrategyDescriptor, factory Factory) error {
	return c.register(descriptor, factory, nil)
}

// RegisterRule adds a user rule document.
func (c *Catalog) RegisterRule(doc *RuleDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	return c.register(doc.Descriptor(), RuleFactory(doc), ruleParams{MinStrength: doc.MinStrength})
}

func (c *Catalog) register(descriptor types.StrategyDescriptor, factory Factory, params any) error {
	if factory == nil {
		return errors.Newf(errors.ErrCodeStrategyConfigError, "strategy %s has no factory", descriptor.ID)
	}

	if err := validate.Struct(descriptor); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "invalid descriptor for strategy %q", descriptor.ID)
	}

	if _, err := version.Parse(descriptor.Version); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "strategy %s", descriptor.ID)
	}

	for _, tf := range descriptor.Timeframes {
		if _, err := types.ParseTimeframe(string(tf)); err != nil {
			return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "strategy %s", descriptor.ID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[descriptor.ID]; exists {
		return errors.Newf(errors.ErrCodeStrategyAlreadyExists, "strategy %s already registered", descriptor.ID)
	}

	c.entries[descriptor.ID] = catalogEntry{
		descriptor: descriptor.Clone(),
		factory:    factory,
		params:     params,
	}

	return nil
}

// List returns copies of every descriptor, sorted by id.
func (c *Catalog) List() []types.StrategyDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.StrategyDescriptor, 0, len(c.entries))
	for _, id := range slices.Sorted(maps.Keys(c.entries)) {
		out = append(out, c.entries[id].descriptor.Clone())
	}

	return out
}

// Get returns a copy of the descriptor registered under id.
func (c *Catalog) Get(id string) (types.StrategyDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return types.StrategyDescriptor{}, false
	}

	return entry.descriptor.Clone(), true
}

// Has reports whether id is registered.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)

	return ok
}

// New builds a fresh instance of id for one account.
func (c *Catalog) New(id string, params Params) (Strategy, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", id)
	}

	return entry.factory(params)
}

// Schema returns the JSON schema of the parameters accepted by id.
func (c *Catalog) Schema(id string) (string, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok {
		return "", errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", id)
	}

	if entry.params == nil {
		return ToJSONSchema(struct{}{})
	}

	return ToJSONSchema(entry.params)
}
