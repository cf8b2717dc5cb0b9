package state

import (
	"math/big"

	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
)

type userEpochKey struct {
	Owner   [20]byte
	EpochID uint64
}

type tokenHolderKey struct {
	Token  [20]byte
	Holder [20]byte
}

type itemKey struct {
	Collection [20]byte
	TokenID    uint64
}

// Admin holds the per-instance administrative switches of a vault.
type Admin struct {
	Owner            [20]byte
	Paused           bool
	EmergencyEnabled bool
	DepositFeeBps    uint64
}

// Manager is the in-memory vault state. It satisfies the state surfaces of the
// lock ledger, boost registry, epoch ledger and accumulator, and carries the
// balance and NFT books used by the capability adapters. Mutating operations
// run against a Clone and swap it in on success, so a failed operation leaves
// the previous state untouched.
type Manager struct {
	locks       map[[20]byte]*lock.Lock
	rules       map[[20]byte]boost.Rule
	epochs      []*epoch.Epoch
	powers      map[userEpochKey]*big.Int
	contributed map[userEpochKey]bool
	claimable   map[[20]byte]map[uint64]bool
	cumulative  map[[20]byte]*big.Int
	topHolder   [20]byte
	topPower    *big.Int
	admin       Admin

	durationSum   uint64
	durationCount uint64

	balances   map[tokenHolderKey]*big.Int
	allowances map[tokenHolderKey]map[[20]byte]*big.Int
	nftOwners  map[itemKey][20]byte
	nftOps     map[itemKey]map[[20]byte]bool
}

// NewManager creates an empty vault state.
func NewManager() *Manager {
	return &Manager{
		locks:       make(map[[20]byte]*lock.Lock),
		rules:       make(map[[20]byte]boost.Rule),
		powers:      make(map[userEpochKey]*big.Int),
		contributed: make(map[userEpochKey]bool),
		claimable:   make(map[[20]byte]map[uint64]bool),
		cumulative:  make(map[[20]byte]*big.Int),
		topPower:    big.NewInt(0),
		balances:    make(map[tokenHolderKey]*big.Int),
		allowances:  make(map[tokenHolderKey]map[[20]byte]*big.Int),
		nftOwners:   make(map[itemKey][20]byte),
		nftOps:      make(map[itemKey]map[[20]byte]bool),
	}
}

// --- lock.LedgerState ---

// LockGet returns the lock stored for an owner.
func (m *Manager) LockGet(owner [20]byte) (*lock.Lock, bool) {
	l, ok := m.locks[owner]
	return l, ok
}

// LockPut stores a lock record.
func (m *Manager) LockPut(l *lock.Lock) error {
	m.locks[l.Owner] = l
	return nil
}

// LockDelete removes a lock record.
func (m *Manager) LockDelete(owner [20]byte) error {
	delete(m.locks, owner)
	return nil
}

// --- boost.RegistryState ---

// BoostRuleGet returns the boost rule for a collection.
func (m *Manager) BoostRuleGet(collection [20]byte) (boost.Rule, bool) {
	rule, ok := m.rules[collection]
	return rule, ok
}

// BoostRulePut stores a boost rule.
func (m *Manager) BoostRulePut(collection [20]byte, rule boost.Rule) error {
	m.rules[collection] = rule
	return nil
}

// --- epoch.State ---

// CurrentEpochID returns the highest epoch index, if any epoch exists.
func (m *Manager) CurrentEpochID() (uint64, bool) {
	if len(m.epochs) == 0 {
		return 0, false
	}
	return uint64(len(m.epochs) - 1), true
}

// EpochGet returns the epoch with the supplied id.
func (m *Manager) EpochGet(id uint64) (*epoch.Epoch, bool) {
	if id >= uint64(len(m.epochs)) {
		return nil, false
	}
	return m.epochs[id], true
}

// EpochPut replaces a stored epoch.
func (m *Manager) EpochPut(ep *epoch.Epoch) error {
	if ep.ID >= uint64(len(m.epochs)) {
		return epoch.ErrEpochNotFound
	}
	m.epochs[ep.ID] = ep
	return nil
}

// EpochAppend adds a new epoch at the next index and returns its id.
func (m *Manager) EpochAppend(ep *epoch.Epoch) (uint64, error) {
	id := uint64(len(m.epochs))
	ep.ID = id
	m.epochs = append(m.epochs, ep)
	return id, nil
}

// EpochCount returns the number of epochs ever opened.
func (m *Manager) EpochCount() uint64 {
	return uint64(len(m.epochs))
}

// UserEpochPower returns the stored integrated contribution.
func (m *Manager) UserEpochPower(owner [20]byte, epochID uint64) *big.Int {
	if v, ok := m.powers[userEpochKey{Owner: owner, EpochID: epochID}]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// SetUserEpochPower stores the integrated contribution.
func (m *Manager) SetUserEpochPower(owner [20]byte, epochID uint64, value *big.Int) error {
	key := userEpochKey{Owner: owner, EpochID: epochID}
	if value == nil || value.Sign() == 0 {
		m.powers[key] = big.NewInt(0)
		return nil
	}
	m.powers[key] = new(big.Int).Set(value)
	return nil
}

// HasContributed reports the first-contribution guard flag.
func (m *Manager) HasContributed(owner [20]byte, epochID uint64) bool {
	return m.contributed[userEpochKey{Owner: owner, EpochID: epochID}]
}

// SetContributed sets the first-contribution guard flag.
func (m *Manager) SetContributed(owner [20]byte, epochID uint64) error {
	m.contributed[userEpochKey{Owner: owner, EpochID: epochID}] = true
	return nil
}

// ClaimableHas reports whether the epoch is in the owner's claimable set.
func (m *Manager) ClaimableHas(owner [20]byte, epochID uint64) bool {
	return m.claimable[owner][epochID]
}

// ClaimableAdd registers the epoch into the owner's claimable set.
func (m *Manager) ClaimableAdd(owner [20]byte, epochID uint64) error {
	set, ok := m.claimable[owner]
	if !ok {
		set = make(map[uint64]bool)
		m.claimable[owner] = set
	}
	set[epochID] = true
	return nil
}

// ClaimableRemove drops the epoch from the owner's claimable set.
func (m *Manager) ClaimableRemove(owner [20]byte, epochID uint64) error {
	if set, ok := m.claimable[owner]; ok {
		delete(set, epochID)
	}
	return nil
}

// ClaimableList returns the owner's claimable epoch ids in ascending order.
func (m *Manager) ClaimableList(owner [20]byte) []uint64 {
	set := m.claimable[owner]
	if len(set) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// CumulativePower returns the owner's all-time leaderboard credit.
func (m *Manager) CumulativePower(owner [20]byte) *big.Int {
	if v, ok := m.cumulative[owner]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// SetCumulativePower stores the owner's all-time leaderboard credit.
func (m *Manager) SetCumulativePower(owner [20]byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	m.cumulative[owner] = new(big.Int).Set(value)
	return nil
}

// TopHolder returns the current record holder and its cumulative power.
func (m *Manager) TopHolder() ([20]byte, *big.Int) {
	return m.topHolder, new(big.Int).Set(m.topPower)
}

// SetTopHolder replaces the record holder.
func (m *Manager) SetTopHolder(owner [20]byte, value *big.Int) error {
	m.topHolder = owner
	if value == nil {
		value = big.NewInt(0)
	}
	m.topPower = new(big.Int).Set(value)
	return nil
}

// --- admin + stats ---

// AdminState returns the administrative switches.
func (m *Manager) AdminState() Admin { return m.admin }

// SetAdminState replaces the administrative switches.
func (m *Manager) SetAdminState(admin Admin) error {
	m.admin = admin
	return nil
}

// RecordLockDuration folds a created lock's duration into the running average.
func (m *Manager) RecordLockDuration(duration uint64) error {
	m.durationSum += duration
	m.durationCount++
	return nil
}

// AverageLockDuration returns the mean duration of all locks ever created.
func (m *Manager) AverageLockDuration() uint64 {
	if m.durationCount == 0 {
		return 0
	}
	return m.durationSum / m.durationCount
}

// Clone produces a deep copy of the manager. Engine operations mutate a clone
// and swap it in only after every external transfer succeeded.
func (m *Manager) Clone() *Manager {
	clone := NewManager()
	for owner, l := range m.locks {
		clone.locks[owner] = l.Clone()
	}
	for collection, rule := range m.rules {
		clone.rules[collection] = rule
	}
	clone.epochs = make([]*epoch.Epoch, len(m.epochs))
	for i, ep := range m.epochs {
		clone.epochs[i] = ep.Clone()
	}
	for key, v := range m.powers {
		clone.powers[key] = new(big.Int).Set(v)
	}
	for key, v := range m.contributed {
		clone.contributed[key] = v
	}
	for owner, set := range m.claimable {
		copied := make(map[uint64]bool, len(set))
		for id, v := range set {
			copied[id] = v
		}
		clone.claimable[owner] = copied
	}
	for owner, v := range m.cumulative {
		clone.cumulative[owner] = new(big.Int).Set(v)
	}
	clone.topHolder = m.topHolder
	clone.topPower = new(big.Int).Set(m.topPower)
	clone.admin = m.admin
	clone.durationSum = m.durationSum
	clone.durationCount = m.durationCount
	for key, v := range m.balances {
		clone.balances[key] = new(big.Int).Set(v)
	}
	for key, spenders := range m.allowances {
		copied := make(map[[20]byte]*big.Int, len(spenders))
		for spender, v := range spenders {
			copied[spender] = new(big.Int).Set(v)
		}
		clone.allowances[key] = copied
	}
	for key, owner := range m.nftOwners {
		clone.nftOwners[key] = owner
	}
	for key, ops := range m.nftOps {
		copied := make(map[[20]byte]bool, len(ops))
		for op, v := range ops {
			copied[op] = v
		}
		clone.nftOps[key] = copied
	}
	return clone
}
