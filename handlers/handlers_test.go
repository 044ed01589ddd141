package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bridge-project/bridge"
	"bridge-project/channel"
	"bridge-project/db"
	"bridge-project/handlers"
	"bridge-project/htlc"
	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/routers"
	"bridge-project/sigs"
)

var now = time.UnixMilli(1_700_000_000_000)

func testServer(t *testing.T) *mux.Router {
	logger.Logger = zap.NewNop()

	ldb, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })

	store := repository.NewLedgerStore(ldb, "ETH")
	verifier := sigs.Secp256k1{}
	h := handlers.NewHandler(
		ledger.NewService(store),
		bridge.NewGate(store, bridge.NewTwoThirdsQuorum(verifier), 10, "depositaddr"),
		channel.NewMachine(store, verifier, channel.Config{LocalIndex: 1, EscrowAccount: "depositaddr", MirrorRetries: 1}),
		htlc.NewMachine(store, func() time.Time { return now }),
	)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, h)
	return router
}

func do(router *mux.Router, method, path, client string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if client != "" {
		req.Header.Set(handlers.ClientIDHeader, client)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

type errorBody struct {
	Error string `json:"error"`
	Code  uint32 `json:"code"`
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestMint_Success(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodPost, "/accounts/mint", "alice", map[string]uint64{"amount": 100})
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}

	res = do(router, http.MethodGet, "/accounts/me", "alice", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var me struct {
		Account string `json:"account"`
		Balance uint64 `json:"balance"`
	}
	json.NewDecoder(res.Body).Decode(&me)
	if me.Account != "alice" || me.Balance != 100 {
		t.Fatalf("expected alice with 100, got %+v", me)
	}
}

func TestMint_MissingClient(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodPost, "/accounts/mint", "", map[string]uint64{"amount": 100})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", res.Code)
	}
	if body := decodeError(t, res); body.Code != models.ErrUnauthorized.ABCICode() {
		t.Fatalf("expected code %d, got %+v", models.ErrUnauthorized.ABCICode(), body)
	}
}

func TestMint_InvalidPayload(t *testing.T) {
	router := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/accounts/mint", bytes.NewBufferString("{"))
	req.Header.Set(handlers.ClientIDHeader, "alice")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}

func TestClientAccount_NotFound(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodGet, "/accounts/me", "nobody", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", res.Code)
	}
}

func TestSetPublicKey_OnlyOwner(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodPut, "/accounts/alice/public-key", "bob", map[string]string{"publicKey": "02aa"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", res.Code)
	}

	res = do(router, http.MethodPut, "/accounts/alice/public-key", "alice", map[string]string{"publicKey": "02aa"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected malformed key 400, got %d", res.Code)
	}
}

func TestHTLC_WithdrawThenRedeem(t *testing.T) {
	router := testServer(t)

	if res := do(router, http.MethodPost, "/accounts/mint", "A", map[string]uint64{"amount": 100}); res.Code != http.StatusOK {
		t.Fatalf("mint failed: %d", res.Code)
	}

	terms := htlc.Terms{
		SecretHash: sigs.HashHex([]byte("s")),
		Sender:     "A",
		Recipient:  "B",
		Value:      100,
		Endtime:    now.Add(time.Minute).UnixMilli(),
	}
	res := do(router, http.MethodPost, "/htlcs", "A", terms)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}

	res = do(router, http.MethodPost, "/htlcs/A/B/withdraw", "B", map[string]string{"preimage": "nope"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected wrong preimage 400, got %d", res.Code)
	}

	res = do(router, http.MethodPost, "/htlcs/A/B/withdraw", "B", map[string]string{"preimage": "s"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var contract models.HTLC
	json.NewDecoder(res.Body).Decode(&contract)
	if contract.State != models.HTLCWithdrawn {
		t.Fatalf("expected WITHDRAWN, got %s", contract.State)
	}

	res = do(router, http.MethodPost, "/htlcs/A/B/redeem", "A", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", res.Code)
	}
	if body := decodeError(t, res); body.Code != models.ErrStateMismatch.ABCICode() {
		t.Fatalf("expected state mismatch code, got %+v", body)
	}

	res = do(router, http.MethodGet, "/accounts/B/balance", "", nil)
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	json.NewDecoder(res.Body).Decode(&balance)
	if balance.Balance != 100 {
		t.Fatalf("expected B to hold 100, got %d", balance.Balance)
	}
}

func TestHTLC_RedeemTooEarly(t *testing.T) {
	router := testServer(t)
	do(router, http.MethodPost, "/accounts/mint", "A", map[string]uint64{"amount": 10})

	terms := htlc.Terms{SecretHash: sigs.HashHex([]byte("s")), Sender: "A", Recipient: "B", Value: 10, Endtime: now.Add(time.Minute).UnixMilli()}
	if res := do(router, http.MethodPost, "/htlcs", "A", terms); res.Code != http.StatusCreated {
		t.Fatalf("issue failed: %d", res.Code)
	}

	res := do(router, http.MethodPost, "/htlcs/A/B/redeem", "A", nil)
	if res.Code != http.StatusTooEarly {
		t.Fatalf("expected status 425, got %d", res.Code)
	}
}

func TestRegisterRelayer_InsufficientStake(t *testing.T) {
	router := testServer(t)
	do(router, http.MethodPost, "/accounts/mint", "r1", map[string]uint64{"amount": 50})

	res := do(router, http.MethodPost, "/relayers", "r1", map[string]uint64{"stake": 5})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}

	res = do(router, http.MethodPost, "/relayers", "r1", map[string]uint64{"stake": 20})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}

	res = do(router, http.MethodGet, "/relayers/r1", "", nil)
	var relayer models.Relayer
	json.NewDecoder(res.Body).Decode(&relayer)
	if relayer.Stake != 20 {
		t.Fatalf("expected stake 20, got %d", relayer.Stake)
	}
}

func TestApproveRecord_DigestMismatch(t *testing.T) {
	router := testServer(t)

	record := models.RecordFromForeign{Entries: []models.CrossChainContext{{
		CID:          "c1",
		State:        models.ChannelInit,
		BalanceProof: models.BalanceProof{CID: "c1", Balances: [2]uint64{1, 1}},
	}}}
	res := do(router, http.MethodPost, "/records/deadbeef/approve", "r1", record)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}

func TestSubmitRecord_NotRelayer(t *testing.T) {
	router := testServer(t)

	record := models.RecordFromForeign{Entries: []models.CrossChainContext{{
		CID:          "c1",
		State:        models.ChannelInit,
		BalanceProof: models.BalanceProof{CID: "c1", Balances: [2]uint64{1, 1}},
	}}}
	res := do(router, http.MethodPost, "/records", "mallory", record)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", res.Code)
	}
}

func TestChannel_NotFound(t *testing.T) {
	router := testServer(t)

	for _, path := range []string{"/channels/c9", "/contexts/c9"} {
		if res := do(router, http.MethodGet, path, "", nil); res.Code != http.StatusNotFound {
			t.Fatalf("%s: expected status 404, got %d", path, res.Code)
		}
	}
}

func TestCreateChannel_TimesOutWithoutMirror(t *testing.T) {
	router := testServer(t)

	bob, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	do(router, http.MethodPost, "/accounts/mint", "bob", map[string]uint64{"amount": 100})
	if res := do(router, http.MethodPut, "/accounts/bob/public-key", "bob", map[string]string{"publicKey": sigs.PublicKeyHex(bob)}); res.Code != http.StatusOK {
		t.Fatalf("set key failed: %d %s", res.Code, res.Body.String())
	}

	proof := models.BalanceProof{CID: "c1", Balances: [2]uint64{40, 60}}
	sig, err := sigs.Sign(bob, proof.SigningBytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := channel.CreateRequest{
		CID:           "c1",
		Participants:  [2]string{"alice", "bob"},
		Chains:        [2]string{"eth", "fabric"},
		Balances:      [2]uint64{40, 60},
		ArgueWindowMs: 1000,
		Signatures:    [2]string{"", sig},
	}

	res := do(router, http.MethodPost, "/channels", "alice", req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for the foreign participant, got %d", res.Code)
	}

	res = do(router, http.MethodPost, "/channels", "bob", req)
	if res.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected status 504, got %d, body: %s", res.Code, res.Body.String())
	}

	res = do(router, http.MethodGet, "/contexts/c1", "", nil)
	var pair bridge.ContextPair
	json.NewDecoder(res.Body).Decode(&pair)
	if pair.Outbound == nil || pair.Outbound.State != models.ChannelInit {
		t.Fatalf("expected the INIT proposal to stay published, got %+v", pair)
	}
}

func TestCloseChannel_ProofForOtherChannel(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodPost, "/channels/c1/close", "bob", models.BalanceProof{CID: "c2"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Code)
	}
}

func TestRequestID_Echoed(t *testing.T) {
	router := testServer(t)

	res := do(router, http.MethodGet, "/accounts/x/balance", "", nil)
	if res.Header().Get(routers.RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/accounts/x/balance", nil)
	req.Header.Set(routers.RequestIDHeader, "7f0f5a1e-8a55-4b0e-9d0a-0c6f7f4c2a11")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(routers.RequestIDHeader); got != "7f0f5a1e-8a55-4b0e-9d0a-0c6f7f4c2a11" {
		t.Fatalf("expected the caller's request id, got %q", got)
	}
}

func TestGetPublicKey(t *testing.T) {
	router := testServer(t)

	if res := do(router, http.MethodGet, "/accounts/alice/public-key", "", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 before registration, got %d", res.Code)
	}

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key := sigs.PublicKeyHex(priv)
	if res := do(router, http.MethodPut, "/accounts/alice/public-key", "alice", map[string]string{"publicKey": key}); res.Code != http.StatusOK {
		t.Fatalf("set key failed: %d %s", res.Code, res.Body.String())
	}

	res := do(router, http.MethodGet, "/accounts/alice/public-key", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	var body struct {
		PublicKey string `json:"publicKey"`
	}
	json.NewDecoder(res.Body).Decode(&body)
	if body.PublicKey != key {
		t.Fatalf("expected %s, got %s", key, body.PublicKey)
	}
}

func TestHTLCExists(t *testing.T) {
	router := testServer(t)

	exists := func() bool {
		t.Helper()
		res := do(router, http.MethodGet, "/htlcs/A/B/exists", "", nil)
		if res.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", res.Code)
		}
		var body struct {
			Exists bool `json:"exists"`
		}
		json.NewDecoder(res.Body).Decode(&body)
		return body.Exists
	}

	if exists() {
		t.Fatalf("expected no htlc before issue")
	}

	do(router, http.MethodPost, "/accounts/mint", "A", map[string]uint64{"amount": 10})
	terms := htlc.Terms{SecretHash: sigs.HashHex([]byte("s")), Sender: "A", Recipient: "B", Value: 10, Endtime: now.Add(time.Minute).UnixMilli()}
	if res := do(router, http.MethodPost, "/htlcs", "A", terms); res.Code != http.StatusCreated {
		t.Fatalf("issue failed: %d", res.Code)
	}

	if !exists() {
		t.Fatalf("expected the htlc to exist after issue")
	}
}
