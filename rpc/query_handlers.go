package rpc

import (
	"net/http"

	"lockvault/native/vault"
)

type lockResult struct {
	Owner           string      `json:"owner"`
	Principal       string      `json:"principal"`
	StartTime       uint64      `json:"startTime"`
	EndTime         uint64      `json:"endTime"`
	PeakPower       string      `json:"peakPower"`
	CurrentPower    string      `json:"currentPower"`
	BoostBps        uint64      `json:"boostBps"`
	Items           []itemParam `json:"items,omitempty"`
	ClaimableEpochs []uint64    `json:"claimableEpochs,omitempty"`
}

type rewardResult struct {
	Token            string `json:"token"`
	Regular          string `json:"regular"`
	LeaderboardBonus string `json:"leaderboardBonus"`
}

type epochResult struct {
	ID                 uint64         `json:"id"`
	StartTime          uint64         `json:"startTime"`
	EndTime            uint64         `json:"endTime"`
	Ended              bool           `json:"ended"`
	TotalPower         string         `json:"totalPower"`
	Rewards            []rewardResult `json:"rewards,omitempty"`
	LeaderboardBps     uint64         `json:"leaderboardBps"`
	LeaderboardClaimed bool           `json:"leaderboardClaimed"`
}

func lockResultFrom(snap vault.LockSnapshot) lockResult {
	out := lockResult{
		Owner:           hexAddr(snap.Owner),
		Principal:       snap.Principal.String(),
		StartTime:       snap.StartTime,
		EndTime:         snap.EndTime,
		PeakPower:       snap.PeakPower.String(),
		CurrentPower:    snap.CurrentPower.String(),
		BoostBps:        snap.BoostBps,
		ClaimableEpochs: snap.ClaimableEpochs,
	}
	for _, item := range snap.BoostedItems {
		out.Items = append(out.Items, itemParam{Collection: hexAddr(item.Collection), TokenID: item.TokenID})
	}
	return out
}

func epochResultFrom(snap vault.EpochSnapshot) epochResult {
	out := epochResult{
		ID:                 snap.ID,
		StartTime:          snap.StartTime,
		EndTime:            snap.EndTime,
		Ended:              snap.Ended,
		TotalPower:         snap.TotalPower.String(),
		LeaderboardBps:     snap.LeaderboardBps,
		LeaderboardClaimed: snap.LeaderboardClaimed,
	}
	for _, entry := range snap.Rewards {
		out.Rewards = append(out.Rewards, rewardResult{
			Token:            hexAddr(entry.Token),
			Regular:          entry.Regular.String(),
			LeaderboardBonus: entry.LeaderboardBonus.String(),
		})
	}
	return out
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func (s *Server) ownerParam(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params ownerParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return [20]byte{}, false
	}
	owner, err := parseAddr(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return [20]byte{}, false
	}
	return owner, true
}

func (s *Server) handleGetLock(w http.ResponseWriter, req *RPCRequest) {
	owner, ok := s.ownerParam(w, req)
	if !ok {
		return
	}
	snap, err := s.engine.LockOf(owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, lockResultFrom(snap))
}

func (s *Server) handleGetPower(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Owner string  `json:"owner"`
		At    *uint64 `json:"at,omitempty"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddr(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	power := s.engine.CurrentPower(owner)
	if params.At != nil {
		power = s.engine.PowerAt(owner, *params.At)
	}
	writeResult(w, req.ID, map[string]string{"power": power.String()})
}

func (s *Server) handleGetEpoch(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Epoch *uint64 `json:"epoch,omitempty"`
	}
	if len(req.Params) > 0 {
		if err := parseParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	var (
		snap vault.EpochSnapshot
		err  error
	)
	if params.Epoch != nil {
		snap, err = s.engine.EpochInfo(*params.Epoch)
	} else {
		snap, err = s.engine.CurrentEpoch()
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, epochResultFrom(snap))
}

func (s *Server) handleGetEpochPower(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Owner string `json:"owner"`
		Epoch uint64 `json:"epoch"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddr(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"power": s.engine.UserEpochPower(owner, params.Epoch).String(),
	})
}

func (s *Server) handleGetClaimable(w http.ResponseWriter, req *RPCRequest) {
	owner, ok := s.ownerParam(w, req)
	if !ok {
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"epochs": s.engine.ClaimableEpochs(owner),
	})
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, req *RPCRequest) {
	holder, power := s.engine.TopHolder()
	writeResult(w, req.ID, map[string]string{
		"holder": hexAddr(holder),
		"power":  power.String(),
	})
}

func (s *Server) handleGetBoost(w http.ResponseWriter, req *RPCRequest) {
	owner, ok := s.ownerParam(w, req)
	if !ok {
		return
	}
	writeResult(w, req.ID, map[string]uint64{"boostBps": s.engine.BoostOf(owner)})
}

func (s *Server) handleGetStats(w http.ResponseWriter, req *RPCRequest) {
	writeResult(w, req.ID, map[string]interface{}{
		"paused":              s.engine.Paused(),
		"owner":               hexAddr(s.engine.Admin()),
		"averageLockDuration": s.engine.AverageLockDuration(),
	})
}
