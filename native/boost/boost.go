package boost

import "errors"

// BpsDenominator is the fixed basis-point denominator shared across the vault.
const BpsDenominator = 10_000

var (
	ErrBpsTooHigh   = errors.New("boost: boost bps exceeds denominator")
	ErrRuleNotFound = errors.New("boost: rule not found")
)

// Item identifies a single non-fungible token held inside a lock.
type Item struct {
	Collection [20]byte
	TokenID    uint64
}

// Rule configures the boost granted for holding items of one collection.
type Rule struct {
	Active        bool
	RequiredCount uint64
	BoostBps      uint64
}

// RegistryState is the persistence surface the registry needs.
type RegistryState interface {
	BoostRuleGet(collection [20]byte) (Rule, bool)
	BoostRulePut(collection [20]byte, rule Rule) error
}

// Registry maps collections to their boost rules and aggregates the boost a
// set of held items earns.
type Registry struct {
	state RegistryState
}

// NewRegistry creates a registry over the supplied state backend.
func NewRegistry(state RegistryState) *Registry {
	return &Registry{state: state}
}

// SetRule installs or replaces the rule for a collection.
func (r *Registry) SetRule(collection [20]byte, rule Rule) error {
	if rule.BoostBps > BpsDenominator {
		return ErrBpsTooHigh
	}
	return r.state.BoostRulePut(collection, rule)
}

// Rule returns the configured rule for a collection.
func (r *Registry) Rule(collection [20]byte) (Rule, error) {
	rule, ok := r.state.BoostRuleGet(collection)
	if !ok {
		return Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

// BoostOf computes the aggregate boost in basis points for the supplied held
// items. Items are grouped per collection with a single map pass; a collection
// contributes its BoostBps once when its rule is active and the held count
// meets the required threshold. Collections without a rule contribute nothing.
func (r *Registry) BoostOf(items []Item) uint64 {
	if len(items) == 0 {
		return 0
	}
	counts := make(map[[20]byte]uint64, len(items))
	for _, item := range items {
		counts[item.Collection]++
	}
	var total uint64
	for collection, held := range counts {
		rule, ok := r.state.BoostRuleGet(collection)
		if !ok || !rule.Active || rule.RequiredCount == 0 {
			continue
		}
		if held >= rule.RequiredCount {
			total += rule.BoostBps
		}
	}
	return total
}
