package rpc

import (
	"errors"
	"math/big"
	"net/http"

	"lockvault/core/state"
	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
	"lockvault/native/tier"
	"lockvault/native/vault"
)

type statusResult struct {
	Status string `json:"status"`
}

var okResult = statusResult{Status: "ok"}

// engineErrorCodes maps the engine's sentinel groups to JSON-RPC error codes:
// missing entities, state conflicts, failed preconditions and argument
// rejections each get a distinct code so clients can branch without parsing
// messages. Anything unmapped falls through to codeServerError.
var engineErrorCodes = []struct {
	code      int
	sentinels []error
}{
	{codeNotFound, []error{
		lock.ErrNoLock,
		epoch.ErrEpochNotFound,
		epoch.ErrNoCurrentEpoch,
		boost.ErrRuleNotFound,
		vault.ErrItemNotLocked,
		state.ErrItemNotFound,
	}},
	{codeConflict, []error{
		lock.ErrAlreadyLocked,
		epoch.ErrEpochActive,
		epoch.ErrAlreadyClaimed,
		epoch.ErrAlreadyRegistered,
		epoch.ErrNotTopHolder,
		vault.ErrPaused,
		vault.ErrReentrantCall,
	}},
	{codePrecondition, []error{
		vault.ErrLockNotExpired,
		vault.ErrEmergencyDisabled,
		vault.ErrInsufficientAllowance,
		vault.ErrInsufficientBalance,
		vault.ErrNotItemOwner,
		vault.ErrItemNotApproved,
		epoch.ErrEpochEnded,
		epoch.ErrEpochNotEnded,
		epoch.ErrNotClaimable,
		epoch.ErrNoRewards,
		state.ErrInsufficientBalance,
		state.ErrInsufficientAllowance,
		state.ErrNotItemOwner,
		state.ErrItemNotApproved,
	}},
	{codeInvalidParams, []error{
		vault.ErrZeroAddress,
		vault.ErrLengthMismatch,
		lock.ErrAmountTooSmall,
		lock.ErrDurationOutOfRange,
		lock.ErrExpiredMustAddFirst,
		lock.ErrNoOp,
		lock.ErrTooManyItems,
		epoch.ErrDurationOutOfRange,
		epoch.ErrLengthMismatch,
		epoch.ErrZeroAmount,
		epoch.ErrNoRewardTokens,
		epoch.ErrLeaderboardBps,
		boost.ErrBpsTooHigh,
		tier.ErrFeeOutOfBounds,
	}},
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	if errors.Is(err, vault.ErrNotOwner) {
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
		return
	}
	for _, group := range engineErrorCodes {
		for _, sentinel := range group.sentinels {
			if errors.Is(err, sentinel) {
				writeError(w, http.StatusOK, id, group.code, err.Error(), nil)
				return
			}
		}
	}
	writeError(w, http.StatusOK, id, codeServerError, err.Error(), nil)
}

type itemParam struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

func parseItems(params []itemParam) ([]boost.Item, error) {
	items := make([]boost.Item, 0, len(params))
	for _, p := range params {
		collection, err := parseAddr(p.Collection)
		if err != nil {
			return nil, err
		}
		items = append(items, boost.Item{Collection: collection, TokenID: p.TokenID})
	}
	return items, nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		Amount   string `json:"amount"`
		Duration uint64 `json:"duration"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseBig(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Deposit(caller, amount, params.Duration); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleExpandLock(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller      string `json:"caller"`
		ExtraAmount string `json:"extraAmount"`
		NewDuration uint64 `json:"newDuration"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	extra := big.NewInt(0)
	if params.ExtraAmount != "" {
		if extra, err = parseBig(params.ExtraAmount); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	if err := s.engine.ExpandLock(caller, extra, params.NewDuration); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) callerOnly(w http.ResponseWriter, req *RPCRequest, op func([20]byte) error) {
	var params callerParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	s.callerOnly(w, req, s.engine.Withdraw)
}

func (s *Server) handleWithdrawAllNFTs(w http.ResponseWriter, req *RPCRequest) {
	s.callerOnly(w, req, s.engine.WithdrawAllNFTs)
}

func (s *Server) handleParticipate(w http.ResponseWriter, req *RPCRequest) {
	s.callerOnly(w, req, s.engine.Participate)
}

func (s *Server) handleDepositNFTs(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string      `json:"caller"`
		Items  []itemParam `json:"items"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	items, err := parseItems(params.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.DepositNFTs(caller, items); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleWithdrawNFT(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Collection string `json:"collection"`
		TokenID    uint64 `json:"tokenId"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.WithdrawNFT(caller, collection, params.TokenID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type claimParams struct {
	Caller string `json:"caller"`
	Epoch  uint64 `json:"epoch"`
}

func (s *Server) handleClaimEpochRewards(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.ClaimEpochRewards(caller, params.Epoch); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleClaimLeaderboard(w http.ResponseWriter, req *RPCRequest) {
	var params claimParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.ClaimLeaderboardBonus(caller, params.Epoch); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

type fundingParams struct {
	Caller  string   `json:"caller"`
	Tokens  []string `json:"tokens"`
	Amounts []string `json:"amounts"`
}

func (p fundingParams) decode() ([20]byte, [][20]byte, []*big.Int, error) {
	caller, err := parseAddr(p.Caller)
	if err != nil {
		return [20]byte{}, nil, nil, err
	}
	tokens := make([][20]byte, 0, len(p.Tokens))
	for _, raw := range p.Tokens {
		token, err := parseAddr(raw)
		if err != nil {
			return [20]byte{}, nil, nil, err
		}
		tokens = append(tokens, token)
	}
	amounts := make([]*big.Int, 0, len(p.Amounts))
	for _, raw := range p.Amounts {
		amount, err := parseBig(raw)
		if err != nil {
			return [20]byte{}, nil, nil, err
		}
		amounts = append(amounts, amount)
	}
	return caller, tokens, amounts, nil
}

func (s *Server) handleStartEpoch(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		fundingParams
		EndTime        uint64 `json:"endTime"`
		LeaderboardBps uint64 `json:"leaderboardBps"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, tokens, amounts, err := params.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.StartEpoch(caller, tokens, amounts, params.EndTime, params.LeaderboardBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleAddRewards(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		fundingParams
		Epoch uint64 `json:"epoch"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, tokens, amounts, err := params.decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.AddRewardsToEpoch(caller, params.Epoch, tokens, amounts); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Paused bool   `json:"paused"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetPaused(caller, params.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSetEmergencyEnabled(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller  string `json:"caller"`
		Enabled bool   `json:"enabled"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetEmergencyEnabled(caller, params.Enabled); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSetDepositFeeBps(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		FeeBps uint64 `json:"feeBps"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetDepositFeeBps(caller, params.FeeBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleSetBoostRule(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller        string `json:"caller"`
		Collection    string `json:"collection"`
		Active        bool   `json:"active"`
		RequiredCount uint64 `json:"requiredCount"`
		BoostBps      uint64 `json:"boostBps"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collection, err := parseAddr(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	rule := boost.Rule{
		Active:        params.Active,
		RequiredCount: params.RequiredCount,
		BoostBps:      params.BoostBps,
	}
	if err := s.engine.SetBoostRule(caller, collection, rule); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		User   string `json:"user"`
	}
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddr(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.EmergencyWithdrawFor(caller, user); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult)
}
