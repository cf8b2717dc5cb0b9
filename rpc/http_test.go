package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lockvault/core/state"
	"lockvault/native/epoch"
	"lockvault/native/lock"
	"lockvault/native/tier"
	"lockvault/native/vault"
)

const (
	testToken = "test-token"
	aliceHex  = "0x0000000000000000000000000000000000000001"
	adminHex  = "0x00000000000000000000000000000000000000d4"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	schedule, err := tier.NewSchedule(tier.Tier{
		Name:              "standard",
		PerformanceFeeBps: 1_000,
		DepositFeeMaxBps:  1_000,
		PlatformShareBps:  5_000,
	}, addr(0xE5))
	if err != nil {
		t.Fatal(err)
	}
	cfg := vault.Config{
		StakeToken:    addr(0xA1),
		VaultAddress:  addr(0xC3),
		Owner:         addr(0xD4),
		DepositFeeBps: 500,
		Lock: lock.Params{
			MinLockAmount:   big.NewInt(100),
			MinLockDuration: 100,
			MaxLockDuration: 1_000_000,
		},
		Epoch: epoch.Params{
			MinEpochDuration: 100,
			MaxEpochDuration: 1_000_000,
		},
	}
	manager := state.NewManager()
	manager.SetTokenBalance(addr(0xA1), addr(0x01), big.NewInt(1_000))
	manager.SetTokenAllowance(addr(0xA1), addr(0x01), addr(0xC3), big.NewInt(1_000))
	engine := vault.NewEngine(cfg, manager, schedule)
	return NewServer(engine, testToken, 600)
}

func post(t *testing.T, s *Server, token, body string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handle(rec, req)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return rec, resp
}

func TestHandleRejectsUnauthenticatedMutation(t *testing.T) {
	s := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"1000","duration":1000}]}`

	rec, resp := post(t, s, "", body)
	if rec.Code != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("unauthenticated deposit: code=%d resp=%+v", rec.Code, resp.Error)
	}

	rec, resp = post(t, s, "wrong-token", body)
	if rec.Code != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("wrong token: code=%d resp=%+v", rec.Code, resp.Error)
	}
}

func TestHandleDepositAndQuery(t *testing.T) {
	s := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"1000","duration":1000}]}`
	rec, resp := post(t, s, testToken, body)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("deposit: code=%d err=%+v", rec.Code, resp.Error)
	}

	query := `{"jsonrpc":"2.0","id":2,"method":"vault_getLock","params":[{"owner":"` + aliceHex + `"}]}`
	_, resp = post(t, s, "", query)
	if resp.Error != nil {
		t.Fatalf("get lock: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatal(err)
	}
	var result lockResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.Principal != "950" || result.CurrentPower != "950" {
		t.Fatalf("lock result = %+v", result)
	}
}

func TestHandleDomainErrorSurfaced(t *testing.T) {
	s := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"vault_withdraw","params":[{"caller":"` + aliceHex + `"}]}`
	_, resp := post(t, s, testToken, body)
	if resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("withdraw without lock: %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Message, "no existing lock") {
		t.Fatalf("error message = %q", resp.Error.Message)
	}
}

func TestHandleSentinelCodeMapping(t *testing.T) {
	s := newTestServer(t)

	refund := func(s *Server) {
		m := s.engine.State()
		m.SetTokenBalance(addr(0xA1), addr(0x01), big.NewInt(1_000))
		m.SetTokenAllowance(addr(0xA1), addr(0x01), addr(0xC3), big.NewInt(1_000))
	}

	steps := []struct {
		name  string
		setup func(*Server)
		body  string
		code  int
	}{
		{
			name: "missing lock",
			body: `{"jsonrpc":"2.0","id":1,"method":"vault_withdraw","params":[{"caller":"` + aliceHex + `"}]}`,
			code: codeNotFound,
		},
		{
			name: "duration below minimum",
			body: `{"jsonrpc":"2.0","id":2,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"1000","duration":50}]}`,
			code: codeInvalidParams,
		},
		{
			name: "allowance too small",
			body: `{"jsonrpc":"2.0","id":3,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"2000","duration":1000}]}`,
			code: codePrecondition,
		},
		{
			name: "first deposit commits",
			body: `{"jsonrpc":"2.0","id":4,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"1000","duration":1000}]}`,
		},
		{
			name:  "second deposit conflicts",
			setup: refund,
			body:  `{"jsonrpc":"2.0","id":5,"method":"vault_deposit","params":[{"caller":"` + aliceHex + `","amount":"1000","duration":1000}]}`,
			code:  codeConflict,
		},
		{
			name: "claim against unknown epoch",
			body: `{"jsonrpc":"2.0","id":6,"method":"vault_claimEpochRewards","params":[{"caller":"` + aliceHex + `","epoch":5}]}`,
			code: codeNotFound,
		},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if step.setup != nil {
				step.setup(s)
			}
			_, resp := post(t, s, testToken, step.body)
			if step.code == 0 {
				if resp.Error != nil {
					t.Fatalf("unexpected error: %+v", resp.Error)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != step.code {
				t.Fatalf("error = %+v, want code %d", resp.Error, step.code)
			}
		})
	}
}

func TestHandleOwnerGatedOp(t *testing.T) {
	s := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"admin_setPaused","params":[{"caller":"` + aliceHex + `","paused":true}]}`
	rec, resp := post(t, s, testToken, body)
	if rec.Code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("non-owner pause: code=%d resp=%+v", rec.Code, resp.Error)
	}

	body = `{"jsonrpc":"2.0","id":2,"method":"admin_setPaused","params":[{"caller":"` + adminHex + `","paused":true}]}`
	rec, resp = post(t, s, testToken, body)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("owner pause: code=%d resp=%+v", rec.Code, resp.Error)
	}
}

func TestHandleBadRequests(t *testing.T) {
	s := newTestServer(t)

	_, resp := post(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"no_such_method"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: %+v", resp.Error)
	}

	_, resp = post(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"vault_getLock","params":[{"owner":"garbage"}]}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("bad address: %+v", resp.Error)
	}

	_, resp = post(t, s, "", `{not json`)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("bad json: %+v", resp.Error)
	}

	_, resp = post(t, s, "", `{"jsonrpc":"1.0","id":1,"method":"vault_getStats"}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("bad version: %+v", resp.Error)
	}
}

func TestHandleRateLimit(t *testing.T) {
	s := newTestServer(t)
	// One request per minute with burst one: the second call must be throttled.
	s.perMin = 1
	s.burst = 1

	body := `{"jsonrpc":"2.0","id":1,"method":"vault_getStats"}`
	if rec, resp := post(t, s, "", body); rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("first request: code=%d resp=%+v", rec.Code, resp.Error)
	}
	rec, resp := post(t, s, "", body)
	if rec.Code != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("second request: code=%d resp=%+v", rec.Code, resp.Error)
	}
}
