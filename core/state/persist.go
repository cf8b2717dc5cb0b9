package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
	"lockvault/storage"
)

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeAddr(s string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 20 {
		return out, fmt.Errorf("state: address must be 20 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func encodeBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid integer %q", s)
	}
	return v, nil
}

type storedItem struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

type storedLock struct {
	Owner     string       `json:"owner"`
	Principal string       `json:"principal"`
	StartTime uint64       `json:"startTime"`
	EndTime   uint64       `json:"endTime"`
	PeakPower string       `json:"peakPower"`
	Items     []storedItem `json:"items,omitempty"`
}

type storedRule struct {
	Collection    string `json:"collection"`
	Active        bool   `json:"active"`
	RequiredCount uint64 `json:"requiredCount"`
	BoostBps      uint64 `json:"boostBps"`
}

type storedReward struct {
	Token            string `json:"token"`
	Regular          string `json:"regular"`
	LeaderboardBonus string `json:"leaderboardBonus"`
}

type storedEpoch struct {
	ID                 uint64         `json:"id"`
	StartTime          uint64         `json:"startTime"`
	EndTime            uint64         `json:"endTime"`
	TotalPower         string         `json:"totalPower"`
	Rewards            []storedReward `json:"rewards,omitempty"`
	LeaderboardBps     uint64         `json:"leaderboardBps"`
	LeaderboardClaimed bool           `json:"leaderboardClaimed"`
}

type storedUserEpoch struct {
	Owner   string `json:"owner"`
	EpochID uint64 `json:"epoch"`
	Value   string `json:"value,omitempty"`
}

type storedClaimable struct {
	Owner  string   `json:"owner"`
	Epochs []uint64 `json:"epochs"`
}

type storedLeaderboard struct {
	Holder     string            `json:"holder"`
	Power      string            `json:"power"`
	Cumulative map[string]string `json:"cumulative,omitempty"`
}

type storedAdmin struct {
	Owner            string `json:"owner"`
	Paused           bool   `json:"paused"`
	EmergencyEnabled bool   `json:"emergencyEnabled"`
	DepositFeeBps    uint64 `json:"depositFeeBps"`
}

type storedStats struct {
	DurationSum   uint64 `json:"durationSum"`
	DurationCount uint64 `json:"durationCount"`
}

type storedBank struct {
	Balances   map[string]string            `json:"balances,omitempty"`
	Allowances map[string]map[string]string `json:"allowances,omitempty"`
}

type storedNFTs struct {
	Owners    map[string]string          `json:"owners,omitempty"`
	Approvals map[string]map[string]bool `json:"approvals,omitempty"`
}

func tokenHolderString(key tokenHolderKey) string {
	return encodeAddr(key.Token) + ":" + encodeAddr(key.Holder)
}

func parseTokenHolder(s string) (tokenHolderKey, error) {
	var key tokenHolderKey
	if len(s) != 81 || s[40] != ':' {
		return key, fmt.Errorf("state: invalid token-holder key %q", s)
	}
	token, err := decodeAddr(s[:40])
	if err != nil {
		return key, err
	}
	holder, err := decodeAddr(s[41:])
	if err != nil {
		return key, err
	}
	return tokenHolderKey{Token: token, Holder: holder}, nil
}

func itemKeyString(key itemKey) string {
	return fmt.Sprintf("%s:%d", encodeAddr(key.Collection), key.TokenID)
}

func parseItemKey(s string) (itemKey, error) {
	var key itemKey
	if len(s) < 42 || s[40] != ':' {
		return key, fmt.Errorf("state: invalid item key %q", s)
	}
	collection, err := decodeAddr(s[:40])
	if err != nil {
		return key, err
	}
	var tokenID uint64
	if _, err := fmt.Sscanf(s[41:], "%d", &tokenID); err != nil {
		return key, err
	}
	return itemKey{Collection: collection, TokenID: tokenID}, nil
}

func putJSON(db storage.Database, key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return db.Put(key, raw)
}

func getJSON(db storage.Database, key []byte, out interface{}) (bool, error) {
	raw, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

// Commit writes the full manager state to the database.
func (m *Manager) Commit(db storage.Database) error {
	locks := make([]storedLock, 0, len(m.locks))
	for _, l := range m.locks {
		stored := storedLock{
			Owner:     encodeAddr(l.Owner),
			Principal: encodeBig(l.Principal),
			StartTime: l.StartTime,
			EndTime:   l.EndTime,
			PeakPower: encodeBig(l.PeakPower),
		}
		for _, item := range l.BoostedItems {
			stored.Items = append(stored.Items, storedItem{Collection: encodeAddr(item.Collection), TokenID: item.TokenID})
		}
		locks = append(locks, stored)
	}
	if err := putJSON(db, keyLocks, locks); err != nil {
		return err
	}

	rules := make([]storedRule, 0, len(m.rules))
	for collection, rule := range m.rules {
		rules = append(rules, storedRule{
			Collection:    encodeAddr(collection),
			Active:        rule.Active,
			RequiredCount: rule.RequiredCount,
			BoostBps:      rule.BoostBps,
		})
	}
	if err := putJSON(db, keyRules, rules); err != nil {
		return err
	}

	epochs := make([]storedEpoch, 0, len(m.epochs))
	for _, ep := range m.epochs {
		stored := storedEpoch{
			ID:                 ep.ID,
			StartTime:          ep.StartTime,
			EndTime:            ep.EndTime,
			TotalPower:         encodeBig(ep.TotalPower),
			LeaderboardBps:     ep.LeaderboardBps,
			LeaderboardClaimed: ep.LeaderboardClaimed,
		}
		for _, entry := range ep.Rewards {
			stored.Rewards = append(stored.Rewards, storedReward{
				Token:            encodeAddr(entry.Token),
				Regular:          encodeBig(entry.Regular),
				LeaderboardBonus: encodeBig(entry.LeaderboardBonus),
			})
		}
		epochs = append(epochs, stored)
	}
	if err := putJSON(db, keyEpochs, epochs); err != nil {
		return err
	}

	powers := make([]storedUserEpoch, 0, len(m.powers))
	for key, v := range m.powers {
		powers = append(powers, storedUserEpoch{Owner: encodeAddr(key.Owner), EpochID: key.EpochID, Value: encodeBig(v)})
	}
	if err := putJSON(db, keyPowers, powers); err != nil {
		return err
	}

	contributed := make([]storedUserEpoch, 0, len(m.contributed))
	for key, flag := range m.contributed {
		if !flag {
			continue
		}
		contributed = append(contributed, storedUserEpoch{Owner: encodeAddr(key.Owner), EpochID: key.EpochID})
	}
	if err := putJSON(db, keyContributed, contributed); err != nil {
		return err
	}

	claimables := make([]storedClaimable, 0, len(m.claimable))
	for owner := range m.claimable {
		epochsList := m.ClaimableList(owner)
		if len(epochsList) == 0 {
			continue
		}
		claimables = append(claimables, storedClaimable{Owner: encodeAddr(owner), Epochs: epochsList})
	}
	if err := putJSON(db, keyClaimable, claimables); err != nil {
		return err
	}

	leaderboard := storedLeaderboard{
		Holder:     encodeAddr(m.topHolder),
		Power:      encodeBig(m.topPower),
		Cumulative: make(map[string]string, len(m.cumulative)),
	}
	for owner, v := range m.cumulative {
		leaderboard.Cumulative[encodeAddr(owner)] = encodeBig(v)
	}
	if err := putJSON(db, keyLeaderboard, leaderboard); err != nil {
		return err
	}

	admin := storedAdmin{
		Owner:            encodeAddr(m.admin.Owner),
		Paused:           m.admin.Paused,
		EmergencyEnabled: m.admin.EmergencyEnabled,
		DepositFeeBps:    m.admin.DepositFeeBps,
	}
	if err := putJSON(db, keyAdmin, admin); err != nil {
		return err
	}

	if err := putJSON(db, keyStats, storedStats{DurationSum: m.durationSum, DurationCount: m.durationCount}); err != nil {
		return err
	}

	bank := storedBank{
		Balances:   make(map[string]string, len(m.balances)),
		Allowances: make(map[string]map[string]string, len(m.allowances)),
	}
	for key, v := range m.balances {
		bank.Balances[tokenHolderString(key)] = encodeBig(v)
	}
	for key, spenders := range m.allowances {
		entry := make(map[string]string, len(spenders))
		for spender, v := range spenders {
			entry[encodeAddr(spender)] = encodeBig(v)
		}
		bank.Allowances[tokenHolderString(key)] = entry
	}
	if err := putJSON(db, keyBank, bank); err != nil {
		return err
	}

	nfts := storedNFTs{
		Owners:    make(map[string]string, len(m.nftOwners)),
		Approvals: make(map[string]map[string]bool, len(m.nftOps)),
	}
	for key, owner := range m.nftOwners {
		nfts.Owners[itemKeyString(key)] = encodeAddr(owner)
	}
	for key, ops := range m.nftOps {
		entry := make(map[string]bool, len(ops))
		for op, approved := range ops {
			entry[encodeAddr(op)] = approved
		}
		nfts.Approvals[itemKeyString(key)] = entry
	}
	return putJSON(db, keyNFTs, nfts)
}

// Load restores a manager from the database. A missing section leaves the
// corresponding part of the state empty.
func Load(db storage.Database) (*Manager, error) {
	m := NewManager()

	var locks []storedLock
	if ok, err := getJSON(db, keyLocks, &locks); err != nil {
		return nil, err
	} else if ok {
		for _, stored := range locks {
			owner, err := decodeAddr(stored.Owner)
			if err != nil {
				return nil, err
			}
			principal, err := decodeBig(stored.Principal)
			if err != nil {
				return nil, err
			}
			peak, err := decodeBig(stored.PeakPower)
			if err != nil {
				return nil, err
			}
			l := &lock.Lock{
				Owner:     owner,
				Principal: principal,
				StartTime: stored.StartTime,
				EndTime:   stored.EndTime,
				PeakPower: peak,
			}
			for _, item := range stored.Items {
				collection, err := decodeAddr(item.Collection)
				if err != nil {
					return nil, err
				}
				l.BoostedItems = append(l.BoostedItems, boost.Item{Collection: collection, TokenID: item.TokenID})
			}
			m.locks[owner] = l
		}
	}

	var rules []storedRule
	if ok, err := getJSON(db, keyRules, &rules); err != nil {
		return nil, err
	} else if ok {
		for _, stored := range rules {
			collection, err := decodeAddr(stored.Collection)
			if err != nil {
				return nil, err
			}
			m.rules[collection] = boost.Rule{
				Active:        stored.Active,
				RequiredCount: stored.RequiredCount,
				BoostBps:      stored.BoostBps,
			}
		}
	}

	var epochs []storedEpoch
	if ok, err := getJSON(db, keyEpochs, &epochs); err != nil {
		return nil, err
	} else if ok {
		m.epochs = make([]*epoch.Epoch, 0, len(epochs))
		for _, stored := range epochs {
			total, err := decodeBig(stored.TotalPower)
			if err != nil {
				return nil, err
			}
			ep := &epoch.Epoch{
				ID:                 stored.ID,
				StartTime:          stored.StartTime,
				EndTime:            stored.EndTime,
				TotalPower:         total,
				LeaderboardBps:     stored.LeaderboardBps,
				LeaderboardClaimed: stored.LeaderboardClaimed,
			}
			for _, reward := range stored.Rewards {
				token, err := decodeAddr(reward.Token)
				if err != nil {
					return nil, err
				}
				regular, err := decodeBig(reward.Regular)
				if err != nil {
					return nil, err
				}
				bonus, err := decodeBig(reward.LeaderboardBonus)
				if err != nil {
					return nil, err
				}
				ep.Rewards = append(ep.Rewards, epoch.RewardEntry{Token: token, Regular: regular, LeaderboardBonus: bonus})
			}
			m.epochs = append(m.epochs, ep)
		}
	}

	var powers []storedUserEpoch
	if ok, err := getJSON(db, keyPowers, &powers); err != nil {
		return nil, err
	} else if ok {
		for _, stored := range powers {
			owner, err := decodeAddr(stored.Owner)
			if err != nil {
				return nil, err
			}
			value, err := decodeBig(stored.Value)
			if err != nil {
				return nil, err
			}
			m.powers[userEpochKey{Owner: owner, EpochID: stored.EpochID}] = value
		}
	}

	var contributed []storedUserEpoch
	if ok, err := getJSON(db, keyContributed, &contributed); err != nil {
		return nil, err
	} else if ok {
		for _, stored := range contributed {
			owner, err := decodeAddr(stored.Owner)
			if err != nil {
				return nil, err
			}
			m.contributed[userEpochKey{Owner: owner, EpochID: stored.EpochID}] = true
		}
	}

	var claimables []storedClaimable
	if ok, err := getJSON(db, keyClaimable, &claimables); err != nil {
		return nil, err
	} else if ok {
		for _, stored := range claimables {
			owner, err := decodeAddr(stored.Owner)
			if err != nil {
				return nil, err
			}
			for _, id := range stored.Epochs {
				if err := m.ClaimableAdd(owner, id); err != nil {
					return nil, err
				}
			}
		}
	}

	var leaderboard storedLeaderboard
	if ok, err := getJSON(db, keyLeaderboard, &leaderboard); err != nil {
		return nil, err
	} else if ok {
		holder, err := decodeAddr(leaderboard.Holder)
		if err != nil {
			return nil, err
		}
		power, err := decodeBig(leaderboard.Power)
		if err != nil {
			return nil, err
		}
		m.topHolder = holder
		m.topPower = power
		for encoded, value := range leaderboard.Cumulative {
			owner, err := decodeAddr(encoded)
			if err != nil {
				return nil, err
			}
			v, err := decodeBig(value)
			if err != nil {
				return nil, err
			}
			m.cumulative[owner] = v
		}
	}

	var admin storedAdmin
	if ok, err := getJSON(db, keyAdmin, &admin); err != nil {
		return nil, err
	} else if ok {
		owner, err := decodeAddr(admin.Owner)
		if err != nil {
			return nil, err
		}
		m.admin = Admin{
			Owner:            owner,
			Paused:           admin.Paused,
			EmergencyEnabled: admin.EmergencyEnabled,
			DepositFeeBps:    admin.DepositFeeBps,
		}
	}

	var stats storedStats
	if ok, err := getJSON(db, keyStats, &stats); err != nil {
		return nil, err
	} else if ok {
		m.durationSum = stats.DurationSum
		m.durationCount = stats.DurationCount
	}

	var bank storedBank
	if ok, err := getJSON(db, keyBank, &bank); err != nil {
		return nil, err
	} else if ok {
		for encoded, value := range bank.Balances {
			key, err := parseTokenHolder(encoded)
			if err != nil {
				return nil, err
			}
			v, err := decodeBig(value)
			if err != nil {
				return nil, err
			}
			m.balances[key] = v
		}
		for encoded, spenders := range bank.Allowances {
			key, err := parseTokenHolder(encoded)
			if err != nil {
				return nil, err
			}
			entry := make(map[[20]byte]*big.Int, len(spenders))
			for spenderHex, value := range spenders {
				spender, err := decodeAddr(spenderHex)
				if err != nil {
					return nil, err
				}
				v, err := decodeBig(value)
				if err != nil {
					return nil, err
				}
				entry[spender] = v
			}
			m.allowances[key] = entry
		}
	}

	var nfts storedNFTs
	if ok, err := getJSON(db, keyNFTs, &nfts); err != nil {
		return nil, err
	} else if ok {
		for encoded, ownerHex := range nfts.Owners {
			key, err := parseItemKey(encoded)
			if err != nil {
				return nil, err
			}
			owner, err := decodeAddr(ownerHex)
			if err != nil {
				return nil, err
			}
			m.nftOwners[key] = owner
		}
		for encoded, ops := range nfts.Approvals {
			key, err := parseItemKey(encoded)
			if err != nil {
				return nil, err
			}
			entry := make(map[[20]byte]bool, len(ops))
			for opHex, approved := range ops {
				op, err := decodeAddr(opHex)
				if err != nil {
					return nil, err
				}
				entry[op] = approved
			}
			m.nftOps[key] = entry
		}
	}

	return m, nil
}
