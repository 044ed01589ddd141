package channel_test

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"bridge-project/bridge"
	"bridge-project/channel"
	"bridge-project/db"
	"bridge-project/ledger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

const escrowAccount = "depositaddr"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testLedger is one side of the bridge with its own storage and machines.
type testLedger struct {
	store    *repository.LedgerStore
	accounts *ledger.Service
	gate     *bridge.Gate
	machine  *channel.Machine
	clock    *fakeClock
	// onSleep runs each time a driver waits; the clock has already advanced.
	onSleep func()
	sleeps  int
}

func newTestLedger(t *testing.T, localIndex int, foreign string) *testLedger {
	t.Helper()
	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	l := &testLedger{
		store: repository.NewLedgerStore(ldb, foreign),
		clock: newFakeClock(),
	}
	l.accounts = ledger.NewService(l.store)
	l.gate = bridge.NewGate(l.store, bridge.NewTwoThirdsQuorum(sigs.Secp256k1{}), 10, escrowAccount)
	l.machine = channel.NewMachine(l.store, sigs.Secp256k1{}, channel.Config{
		LocalIndex:    localIndex,
		EscrowAccount: escrowAccount,
		MirrorRetries: 3,
		RetryDelay:    10 * time.Millisecond,
	},
		channel.WithClock(l.clock.Now),
		channel.WithSleeper(func(ctx context.Context, d time.Duration) error {
			l.sleeps++
			l.clock.Advance(d)
			if l.onSleep != nil {
				l.onSleep()
			}
			return ctx.Err()
		}),
	)
	return l
}

// fund mints amount to account and registers its signing key.
func (l *testLedger) fund(t *testing.T, account string, key *ecdsa.PrivateKey, amount uint64) {
	t.Helper()
	if amount > 0 {
		_, err := l.accounts.Mint(account, amount)
		require.NoError(t, err)
	}
	require.NoError(t, l.accounts.SetPublicKey(account, account, sigs.PublicKeyHex(key)))
}

// setMirror writes the foreign mirror directly, standing in for an attested record.
func (l *testLedger) setMirror(t *testing.T, state models.ChannelState, proof models.BalanceProof) {
	t.Helper()
	require.NoError(t, l.store.Update(func(r *repository.Repository) error {
		return r.PutContextFromForeign(&models.CrossChainContext{CID: proof.CID, State: state, BalanceProof: proof})
	}))
}

func (l *testLedger) outbound(t *testing.T, cid string) *models.CrossChainContext {
	t.Helper()
	pair, err := l.gate.Contexts(cid)
	require.NoError(t, err)
	require.NotNil(t, pair.Outbound)
	return pair.Outbound
}

func (l *testLedger) balance(t *testing.T, account string) uint64 {
	t.Helper()
	b, err := l.accounts.Balance(account)
	require.NoError(t, err)
	return b
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}

// signProof fills the signature slots of proof for the given keys; a nil key leaves the slot untouched.
func signProof(t *testing.T, proof models.BalanceProof, keys ...*ecdsa.PrivateKey) models.BalanceProof {
	t.Helper()
	for i, k := range keys {
		if k == nil {
			continue
		}
		sig, err := sigs.Sign(k, proof.SigningBytes())
		require.NoError(t, err)
		proof.Signatures[i] = sig
	}
	return proof
}
