package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lockvault/native/vault"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeNotFound       = -32002
	codeConflict       = -32003
	codePrecondition   = -32004
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the vault engine over a JSON-RPC style POST endpoint.
// Mutating methods require the bearer auth token; reads are open.
type Server struct {
	engine    *vault.Engine
	authToken string

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	perMin   float64
	burst    int
}

// NewServer creates an RPC server over the engine. An empty authToken disables
// every mutating method.
func NewServer(engine *vault.Engine, authToken string, rateLimitPerMin int) *Server {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 600
	}
	return &Server{
		engine:    engine,
		authToken: strings.TrimSpace(authToken),
		visitors:  make(map[string]*rate.Limiter),
		perMin:    float64(rateLimitPerMin),
		burst:     rateLimitPerMin,
	}
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.Handle)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("rpc server listening", "addr", addr)
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// Handle is the main request handler. Exported so tests can drive it through
// httptest without binding a port.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.allow(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestID := uuid.NewString()
	slog.Debug("rpc request", "id", requestID, "method", req.Method, "client", clientID(r))

	handler, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if handler.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	handler.fn(w, req)
}

type route struct {
	auth bool
	fn   func(http.ResponseWriter, *RPCRequest)
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"vault_deposit":             {true, s.handleDeposit},
		"vault_expandLock":          {true, s.handleExpandLock},
		"vault_withdraw":            {true, s.handleWithdraw},
		"vault_depositNFTs":         {true, s.handleDepositNFTs},
		"vault_withdrawNFT":         {true, s.handleWithdrawNFT},
		"vault_withdrawAllNFTs":     {true, s.handleWithdrawAllNFTs},
		"vault_participate":         {true, s.handleParticipate},
		"vault_claimEpochRewards":   {true, s.handleClaimEpochRewards},
		"vault_claimLeaderboard":    {true, s.handleClaimLeaderboard},
		"epoch_start":               {true, s.handleStartEpoch},
		"epoch_addRewards":          {true, s.handleAddRewards},
		"admin_setPaused":           {true, s.handleSetPaused},
		"admin_setEmergencyEnabled": {true, s.handleSetEmergencyEnabled},
		"admin_setDepositFeeBps":    {true, s.handleSetDepositFeeBps},
		"admin_setBoostRule":        {true, s.handleSetBoostRule},
		"admin_emergencyWithdraw":   {true, s.handleEmergencyWithdraw},
		"vault_getLock":             {false, s.handleGetLock},
		"vault_getPower":            {false, s.handleGetPower},
		"vault_getEpoch":            {false, s.handleGetEpoch},
		"vault_getEpochPower":       {false, s.handleGetEpochPower},
		"vault_getClaimable":        {false, s.handleGetClaimable},
		"vault_getLeaderboard":      {false, s.handleGetLeaderboard},
		"vault_getBoost":            {false, s.handleGetBoost},
		"vault_getStats":            {false, s.handleGetStats},
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allow(client string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.perMin/60.0), s.burst)
		s.visitors[client] = limiter
	}
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddr(s string) ([20]byte, error) {
	if !common.IsHexAddress(s) {
		return [20]byte{}, fmt.Errorf("invalid address %q", s)
	}
	return [20]byte(common.HexToAddress(s)), nil
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func hexAddr(addr [20]byte) string {
	return common.Address(addr).Hex()
}
