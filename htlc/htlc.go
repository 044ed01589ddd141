// Package htlc implements hashed-timelock contracts on a single ledger. One
// contract slot exists per (sender, recipient) pair:
//
//	ISSUED -> WITHDRAWN (recipient reveals the preimage)
//	ISSUED -> REDEEMED  (sender reclaims after endtime)
//	WITHDRAWN | REDEEMED -> ISSUED via Refund, version + 1
package htlc

import (
	"encoding/hex"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

// Terms are the parameters of one swap cycle.
type Terms struct {
	SecretHash string `json:"secretHash"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Value      uint64 `json:"value"`
	Endtime    int64  `json:"endtime"` // unix ms
}

func (t *Terms) validate() error {
	if t.Sender == "" || t.Recipient == "" || t.Sender == t.Recipient {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "htlc %s:%s needs two distinct parties", t.Sender, t.Recipient)
	}
	if t.Value == 0 {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "htlc %s:%s value must be positive", t.Sender, t.Recipient)
	}
	if b, err := hex.DecodeString(t.SecretHash); err != nil || len(b) != 32 {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "htlc %s:%s secret hash %q is not a hex sha256 digest", t.Sender, t.Recipient, t.SecretHash)
	}
	return nil
}

type Machine struct {
	store repository.Store
	now   func() time.Time
}

func NewMachine(store repository.Store, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, now: now}
}

// Issue locks terms.Value from the sender into a new cycle. A slot whose last
// cycle is finished is reused with the next version.
func (m *Machine) Issue(caller string, terms Terms) (*models.HTLC, error) {
	if caller != terms.Sender {
		return nil, errorsmod.Wrapf(models.ErrUnauthorized, "cannot issue htlc %s:%s, current client %q isn't sender %s",
			terms.Sender, terms.Recipient, caller, terms.Sender)
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}

	var h *models.HTLC
	err := m.store.Update(func(r *repository.Repository) error {
		version := uint64(0)
		prior, err := r.HTLC(terms.Sender, terms.Recipient)
		switch {
		case err == nil:
			if !prior.Terminal() {
				return errorsmod.Wrapf(models.ErrStateMismatch, "cannot issue htlc %s:%s, version %d is still %s",
					terms.Sender, terms.Recipient, prior.Version, prior.State)
			}
			version = prior.Version + 1
		case !errorsmod.IsOf(err, models.ErrNotFound):
			return err
		}

		if err := ledger.NewBalances(r).Debit(terms.Sender, terms.Value); err != nil {
			return errorsmod.Wrapf(err, "cannot issue htlc %s:%s", terms.Sender, terms.Recipient)
		}

		h = &models.HTLC{
			SecretHash: terms.SecretHash,
			Sender:     terms.Sender,
			Recipient:  terms.Recipient,
			Value:      terms.Value,
			Endtime:    terms.Endtime,
			State:      models.HTLCIssued,
			Version:    version,
		}
		return r.PutHTLC(h)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Issued htlc", zap.String("sender", h.Sender), zap.String("recipient", h.Recipient),
		zap.Uint64("value", h.Value), zap.Int64("endtime", h.Endtime), zap.Uint64("version", h.Version))
	return h, nil
}

// Withdraw releases the locked value to the recipient on the correct preimage.
// A non-nil version must match the current cycle.
func (m *Machine) Withdraw(caller, sender, recipient, preimage string, version *uint64) (*models.HTLC, error) {
	var h *models.HTLC
	err := m.store.Update(func(r *repository.Repository) error {
		var err error
		h, err = r.HTLC(sender, recipient)
		if err != nil {
			return err
		}
		if caller != h.Recipient {
			return errorsmod.Wrapf(models.ErrUnauthorized, "cannot withdraw htlc %s:%s, current client %q isn't recipient %s",
				sender, recipient, caller, h.Recipient)
		}
		if err := expectIssued(h, version); err != nil {
			return errorsmod.Wrap(err, "cannot withdraw")
		}
		if got := sigs.HashHex([]byte(preimage)); got != h.SecretHash {
			return errorsmod.Wrapf(models.ErrInvalidPreimage, "cannot withdraw htlc %s:%s, preimage hashes to %s, secret hash is %s",
				sender, recipient, got, h.SecretHash)
		}

		if err := ledger.NewBalances(r).Credit(h.Recipient, h.Value); err != nil {
			return err
		}
		h.State = models.HTLCWithdrawn
		h.Preimage = &preimage
		return r.PutHTLC(h)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Withdrew htlc", zap.String("sender", sender), zap.String("recipient", recipient),
		zap.Uint64("value", h.Value), zap.Uint64("version", h.Version))
	return h, nil
}

// Redeem returns the locked value to the sender once endtime has passed.
func (m *Machine) Redeem(caller, sender, recipient string, version *uint64) (*models.HTLC, error) {
	var h *models.HTLC
	err := m.store.Update(func(r *repository.Repository) error {
		var err error
		h, err = r.HTLC(sender, recipient)
		if err != nil {
			return err
		}
		if caller != h.Sender {
			return errorsmod.Wrapf(models.ErrUnauthorized, "cannot redeem htlc %s:%s, current client %q isn't sender %s",
				sender, recipient, caller, h.Sender)
		}
		if err := expectIssued(h, version); err != nil {
			return errorsmod.Wrap(err, "cannot redeem")
		}
		if now := m.now().UnixMilli(); now < h.Endtime {
			return errorsmod.Wrapf(models.ErrTooEarly, "cannot redeem htlc %s:%s, endtime %d not reached, now %d",
				sender, recipient, h.Endtime, now)
		}

		if err := ledger.NewBalances(r).Credit(h.Sender, h.Value); err != nil {
			return err
		}
		h.State = models.HTLCRedeemed
		return r.PutHTLC(h)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Redeemed htlc", zap.String("sender", sender), zap.String("recipient", recipient),
		zap.Uint64("value", h.Value), zap.Uint64("version", h.Version))
	return h, nil
}

// Refund starts a new cycle in a finished slot: the sender locks value again
// under new terms and the version increments. Parties are taken from the
// stored slot.
func (m *Machine) Refund(caller string, terms Terms) (*models.HTLC, error) {
	var h *models.HTLC
	err := m.store.Update(func(r *repository.Repository) error {
		var err error
		h, err = r.HTLC(terms.Sender, terms.Recipient)
		if err != nil {
			return err
		}
		if caller != h.Sender {
			return errorsmod.Wrapf(models.ErrUnauthorized, "cannot refund htlc %s:%s, current client %q isn't sender %s",
				h.Sender, h.Recipient, caller, h.Sender)
		}
		terms.Sender, terms.Recipient = h.Sender, h.Recipient
		if err := terms.validate(); err != nil {
			return err
		}
		if !h.Terminal() {
			return errorsmod.Wrapf(models.ErrStateMismatch, "cannot refund htlc %s:%s, version %d is still %s",
				h.Sender, h.Recipient, h.Version, h.State)
		}

		if err := ledger.NewBalances(r).Debit(h.Sender, terms.Value); err != nil {
			return errorsmod.Wrapf(err, "cannot refund htlc %s:%s", h.Sender, h.Recipient)
		}
		h.SecretHash = terms.SecretHash
		h.Value = terms.Value
		h.Endtime = terms.Endtime
		h.Preimage = nil
		h.State = models.HTLCIssued
		h.Version++
		return r.PutHTLC(h)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Refunded htlc", zap.String("sender", h.Sender), zap.String("recipient", h.Recipient),
		zap.Uint64("value", h.Value), zap.Uint64("version", h.Version))
	return h, nil
}

func (m *Machine) HTLC(sender, recipient string) (*models.HTLC, error) {
	var h *models.HTLC
	err := m.store.View(func(r *repository.Repository) error {
		var err error
		h, err = r.HTLC(sender, recipient)
		return err
	})
	return h, err
}

// Exists reports whether the pair has ever had a contract.
func (m *Machine) Exists(sender, recipient string) (bool, error) {
	_, err := m.HTLC(sender, recipient)
	if errorsmod.IsOf(err, models.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func expectIssued(h *models.HTLC, version *uint64) error {
	if version != nil && *version != h.Version {
		return errorsmod.Wrapf(models.ErrStateMismatch, "htlc %s:%s is at version %d, not %d", h.Sender, h.Recipient, h.Version, *version)
	}
	if h.State != models.HTLCIssued {
		return errorsmod.Wrapf(models.ErrStateMismatch, "htlc %s:%s state expected %s, got %s", h.Sender, h.Recipient, models.HTLCIssued, h.State)
	}
	return nil
}
