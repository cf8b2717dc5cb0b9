package tier

import (
	"errors"
	"math/big"
	"sync"
)

// BpsDenominator is the basis-point denominator used across fee math.
const BpsDenominator = 10_000

var (
	ErrTierNotFound    = errors.New("tier: not found")
	ErrInvalidTier     = errors.New("tier: invalid configuration")
	ErrFeeOutOfBounds  = errors.New("tier: deposit fee outside tier bounds")
	ErrNotFactoryOwner = errors.New("tier: caller is not the factory owner")
)

// Tier is one fee-schedule profile a deployed vault instance is assigned to.
type Tier struct {
	Name              string
	PerformanceFeeBps uint64
	DepositFeeMinBps  uint64
	DepositFeeMaxBps  uint64
	PlatformShareBps  uint64
}

// Validate checks the tier's internal consistency.
func (t Tier) Validate() error {
	if t.PerformanceFeeBps > BpsDenominator {
		return ErrInvalidTier
	}
	if t.DepositFeeMaxBps > BpsDenominator || t.DepositFeeMinBps > t.DepositFeeMaxBps {
		return ErrInvalidTier
	}
	if t.PlatformShareBps > BpsDenominator {
		return ErrInvalidTier
	}
	return nil
}

// Registry is the factory-side mapping from deployed instance identity to its
// tier. Instance configuration is an explicit per-instance object, never a
// shared global.
type Registry struct {
	mu        sync.RWMutex
	owner     [20]byte
	recipient [20]byte
	tiers     map[[32]byte]Tier
}

// NewRegistry creates a registry owned by the factory operator. Fees routed to
// the platform land at the recipient address.
func NewRegistry(owner, recipient [20]byte) *Registry {
	return &Registry{
		owner:     owner,
		recipient: recipient,
		tiers:     make(map[[32]byte]Tier),
	}
}

// Assign binds an instance to a tier. Factory owner only.
func (r *Registry) Assign(caller [20]byte, instance [32]byte, t Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotFactoryOwner
	}
	if err := t.Validate(); err != nil {
		return err
	}
	r.tiers[instance] = t
	return nil
}

// TierOf resolves the tier assigned to an instance.
func (r *Registry) TierOf(instance [32]byte) (Tier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tiers[instance]
	if !ok {
		return Tier{}, ErrTierNotFound
	}
	return t, nil
}

// Schedule materialises the fee-schedule capability for one instance.
func (r *Registry) Schedule(instance [32]byte) (*Schedule, error) {
	t, err := r.TierOf(instance)
	if err != nil {
		return nil, err
	}
	return &Schedule{tier: t, recipient: r.recipient}, nil
}

// Schedule computes performance fees and deposit-fee splits for one instance's
// tier.
type Schedule struct {
	tier      Tier
	recipient [20]byte
}

// NewSchedule builds a standalone schedule. Used by tests and single-instance
// deployments without a factory.
func NewSchedule(t Tier, recipient [20]byte) (*Schedule, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Schedule{tier: t, recipient: recipient}, nil
}

// Tier returns the underlying tier profile.
func (s *Schedule) Tier() Tier { return s.tier }

// FeeRecipient returns the platform fee address.
func (s *Schedule) FeeRecipient() [20]byte { return s.recipient }

// CheckDepositFee validates an instance-chosen deposit fee against the tier
// bounds.
func (s *Schedule) CheckDepositFee(feeBps uint64) error {
	if feeBps < s.tier.DepositFeeMinBps || feeBps > s.tier.DepositFeeMaxBps {
		return ErrFeeOutOfBounds
	}
	return nil
}

// PerformanceFee returns the fee owed on a gross reward funding, floored.
func (s *Schedule) PerformanceFee(gross *big.Int) *big.Int {
	if gross == nil || gross.Sign() <= 0 || s.tier.PerformanceFeeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(gross, new(big.Int).SetUint64(s.tier.PerformanceFeeBps))
	return fee.Quo(fee, big.NewInt(BpsDenominator))
}

// DepositFeeSplit divides a collected deposit fee between the platform and the
// instance admin. The platform share is floored, the admin share takes the
// remainder.
func (s *Schedule) DepositFeeSplit(fee *big.Int) (platform, admin *big.Int) {
	if fee == nil || fee.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	platform = new(big.Int).Mul(fee, new(big.Int).SetUint64(s.tier.PlatformShareBps))
	platform.Quo(platform, big.NewInt(BpsDenominator))
	admin = new(big.Int).Sub(fee, platform)
	return platform, admin
}
