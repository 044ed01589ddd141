// Package channel implements the payment channel lifecycle between a
// participant on this ledger and one on the foreign ledger:
//
//	INIT -> ACTIVATED -> PRECLOSE -> CLOSED
//	                  \-----------> CLOSED
//
// Each side publishes its view of a channel as a ctxTo context and observes
// the other side through the attested ctxFrom mirror. Waiting for the mirror
// and waiting out an argue window never happen inside a transaction: every
// step is its own atomic operation, and the blocking drivers (Create, Close)
// sleep between steps and re-invoke them.
package channel

import (
	"context"
	"math"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

type Config struct {
	// LocalIndex is the zero-based index of the participant whose account lives on this ledger.
	LocalIndex    int
	EscrowAccount string
	MirrorRetries int
	RetryDelay    time.Duration
}

// Machine owns channel records and their protocol.
type Machine struct {
	store    repository.Store
	verifier sigs.Verifier
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Machine)

// WithClock replaces the wall clock used for argue window deadlines.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithSleeper replaces how the drivers wait between steps.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) { m.sleep = sleep }
}

func NewMachine(store repository.Store, verifier sigs.Verifier, cfg Config, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		verifier: verifier,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Machine) nowMillis() int64 {
	return m.now().UnixMilli()
}

// CreateRequest carries the parameters both participants agreed on off-ledger.
type CreateRequest struct {
	CID           string    `json:"cid"`
	Participants  [2]string `json:"participants"`
	Chains        [2]string `json:"chains"`
	Balances      [2]uint64 `json:"balances"`
	ArgueWindowMs int64     `json:"argueWindowMs"`
	Signatures    [2]string `json:"signatures"`
}

// DeriveCID is the conventional channel id: the hex sha256 of both
// participants followed by both chains. Create derives it when CID is empty,
// so signers must sign proofs over the derived id.
func DeriveCID(participants, chains [2]string) string {
	return sigs.HashHex([]byte(participants[0] + participants[1] + chains[0] + chains[1]))
}

func (req *CreateRequest) withCID() {
	if req.CID == "" {
		req.CID = DeriveCID(req.Participants, req.Chains)
	}
}

func (req *CreateRequest) initialProof() models.BalanceProof {
	return models.BalanceProof{
		CID:        req.CID,
		TxID:       0,
		Balances:   req.Balances,
		Signatures: req.Signatures,
	}
}

func (req *CreateRequest) validate() error {
	if req.Participants[0] == "" || req.Participants[1] == "" || req.Participants[0] == req.Participants[1] {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "channel %s needs two distinct participants", req.CID)
	}
	if req.ArgueWindowMs < 0 {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "channel %s argue window %d is negative", req.CID, req.ArgueWindowMs)
	}
	if req.Balances[0] > math.MaxUint64-req.Balances[1] {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "channel %s balances overflow", req.CID)
	}
	return nil
}

// Create proposes the channel, then polls for the foreign mirror up to
// MirrorRetries times, sleeping RetryDelay between attempts outside any
// transaction. Without a mirror it fails with ErrTimeout and leaves no
// channel; the published proposal stays and a later Create reuses it.
func (m *Machine) Create(ctx context.Context, caller string, req CreateRequest) (*models.Channel, error) {
	req.withCID()
	if _, err := m.Propose(caller, req); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= m.cfg.MirrorRetries; attempt++ {
		ch, err := m.Activate(caller, req)
		if err == nil {
			return ch, nil
		}
		if !errorsmod.IsOf(err, models.ErrMirrorPending) {
			return nil, err
		}
		if attempt == m.cfg.MirrorRetries {
			break
		}
		if err := m.sleep(ctx, m.cfg.RetryDelay); err != nil {
			return nil, errorsmod.Wrapf(models.ErrTimeout, "create channel %s: %v", req.CID, err)
		}
	}

	logger.Logger.Warn("Foreign mirror did not appear", zap.String("cid", req.CID), zap.Int("attempts", m.cfg.MirrorRetries))
	return nil, errorsmod.Wrapf(models.ErrTimeout, "create channel %s: no foreign mirror after %d attempts", req.CID, m.cfg.MirrorRetries)
}

// Propose publishes ctxTo{INIT} for the channel. Re-proposing the same
// parameters is a no-op; a different proposal for the same id is rejected.
func (m *Machine) Propose(caller string, req CreateRequest) (*models.CrossChainContext, error) {
	req.withCID()
	if err := req.validate(); err != nil {
		return nil, err
	}
	local := req.Participants[m.cfg.LocalIndex]
	if caller != local {
		return nil, errorsmod.Wrapf(models.ErrUnauthorized, "cannot create channel %s, client %q is not participant %d %s",
			req.CID, caller, m.cfg.LocalIndex+1, local)
	}
	proof := req.initialProof()

	out := &models.CrossChainContext{CID: req.CID, State: models.ChannelInit, BalanceProof: proof}
	published := false
	err := m.store.Update(func(r *repository.Repository) error {
		if ch, err := r.Channel(req.CID); err == nil {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s already exists in state %s", req.CID, ch.State)
		} else if !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}

		ok, err := m.signedBy(r, caller, m.cfg.LocalIndex, proof)
		if err != nil {
			return err
		}
		if !ok {
			return errorsmod.Wrapf(models.ErrInvalidSignature, "channel %s: signature %d does not belong to %s", req.CID, m.cfg.LocalIndex+1, caller)
		}

		existing, err := r.ContextToForeign(req.CID)
		switch {
		case err == nil:
			if existing.State != models.ChannelInit || !existing.BalanceProof.Equal(proof) {
				return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s already has a different pending proposal in state %s", req.CID, existing.State)
			}
			return nil
		case !errorsmod.IsOf(err, models.ErrNotFound):
			return err
		}

		published = true
		return r.PutContextToForeign(out)
	})
	if err != nil {
		return nil, err
	}

	if published {
		logger.Logger.Info("Published channel proposal", zap.String("cid", req.CID),
			zap.Strings("participants", req.Participants[:]), zap.Strings("chains", req.Chains[:]))
	}
	return out, nil
}

// Activate commits the channel once the foreign mirror reports the same
// INIT proposal. The local participant's deposit is locked into the channel.
// ErrMirrorPending means the mirror has not arrived yet.
func (m *Machine) Activate(caller string, req CreateRequest) (*models.Channel, error) {
	req.withCID()
	if err := req.validate(); err != nil {
		return nil, err
	}
	local := req.Participants[m.cfg.LocalIndex]
	if caller != local {
		return nil, errorsmod.Wrapf(models.ErrUnauthorized, "cannot activate channel %s, client %q is not participant %d %s",
			req.CID, caller, m.cfg.LocalIndex+1, local)
	}
	proof := req.initialProof()

	var ch *models.Channel
	err := m.store.Update(func(r *repository.Repository) error {
		if existing, err := r.Channel(req.CID); err == nil {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s already exists in state %s", req.CID, existing.State)
		} else if !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}

		out, err := r.ContextToForeign(req.CID)
		if err != nil {
			return err
		}
		if out.State != models.ChannelInit || !out.BalanceProof.Equal(proof) {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s was not proposed with these parameters", req.CID)
		}

		mirror, err := r.ContextFromForeign(req.CID)
		if errorsmod.IsOf(err, models.ErrNotFound) {
			return errorsmod.Wrapf(models.ErrMirrorPending, "channel %s", req.CID)
		}
		if err != nil {
			return err
		}
		if mirror.State != models.ChannelInit {
			return errorsmod.Wrapf(models.ErrStateMismatch, "fail to create channel %s: foreign state expected %s, got %s",
				req.CID, models.ChannelInit, mirror.State)
		}
		if !mirror.BalanceProof.Equal(proof) {
			return errorsmod.Wrapf(models.ErrStateMismatch, "fail to create channel %s: foreign balance proof differs", req.CID)
		}

		key, err := r.PublicKey(local)
		if err != nil {
			return err
		}
		if !sigs.VerifyHex(m.verifier, proof.SigningBytes(), proof.Signatures[m.cfg.LocalIndex], key) {
			return errorsmod.Wrapf(models.ErrInvalidSignature, "channel %s: signature %d does not match %s's current key", req.CID, m.cfg.LocalIndex+1, local)
		}

		if err := ledger.NewBalances(r).Debit(local, req.Balances[m.cfg.LocalIndex]); err != nil {
			return err
		}

		ch = &models.Channel{
			CID:           req.CID,
			Participants:  req.Participants,
			Chains:        req.Chains,
			Balances:      req.Balances,
			ArgueWindowMs: req.ArgueWindowMs,
			State:         models.ChannelActivated,
			BalanceProof:  proof,
		}
		ch.PublicKeys[m.cfg.LocalIndex] = key
		return r.PutChannel(ch)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Channel activated", zap.String("cid", ch.CID), zap.Uint64s("balances", ch.Balances[:]))
	return ch, nil
}

// Channel returns the committed channel record.
func (m *Machine) Channel(cid string) (*models.Channel, error) {
	var ch *models.Channel
	err := m.store.View(func(r *repository.Repository) error {
		var err error
		ch, err = r.Channel(cid)
		return err
	})
	return ch, err
}

// signedBy reports whether proof carries account's valid signature at index.
// An account without a registered key never signs.
func (m *Machine) signedBy(r *repository.Repository, account string, index int, proof models.BalanceProof) (bool, error) {
	key, err := r.PublicKey(account)
	if errorsmod.IsOf(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sigs.VerifyHex(m.verifier, proof.SigningBytes(), proof.Signatures[index], key), nil
}

// signedByLocal reports whether proof carries the local participant's
// signature under the key bound into ch at activation. Rotating the account
// key later does not change which proofs the channel accepts.
func (m *Machine) signedByLocal(ch *models.Channel, proof models.BalanceProof) bool {
	i := m.cfg.LocalIndex
	return sigs.VerifyHex(m.verifier, proof.SigningBytes(), proof.Signatures[i], ch.PublicKeys[i])
}

// localParticipant checks that caller is this ledger's participant of ch.
func (m *Machine) localParticipant(ch *models.Channel, caller string) error {
	if caller == "" || ch.Participants[m.cfg.LocalIndex] != caller {
		return errorsmod.Wrapf(models.ErrUnauthorized, "channel %s: client %q is not participant %d %s",
			ch.CID, caller, m.cfg.LocalIndex+1, ch.Participants[m.cfg.LocalIndex])
	}
	return nil
}

func (m *Machine) publish(r *repository.Repository, cid string, state models.ChannelState, proof models.BalanceProof) (*models.CrossChainContext, error) {
	out := &models.CrossChainContext{CID: cid, State: state, BalanceProof: proof}
	if err := r.PutContextToForeign(out); err != nil {
		return nil, err
	}
	return out, nil
}
