// Package bridge is the trust boundary for foreign-ledger facts. It keeps the
// relayer registry (staked accounts allowed to attest), stores submitted
// records of foreign contexts, and commits a record's entries into the
// ctxFrom mirror only once a stake-weighted quorum of relayers has signed it.
package bridge

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
	"bridge-project/sigs"
)

// Gate implements relayer registration and record attestation.
type Gate struct {
	store    repository.Store
	quorum   QuorumVerifier
	minStake uint64
	escrow   string
}

func NewGate(store repository.Store, quorum QuorumVerifier, minStake uint64, escrowAccount string) *Gate {
	return &Gate{store: store, quorum: quorum, minStake: minStake, escrow: escrowAccount}
}

// Register stakes the caller as a relayer, moving stake into the pooled
// escrow. A registered relayer calling again tops up its stake.
func (g *Gate) Register(caller string, stake uint64) (*models.Relayer, error) {
	if caller == "" {
		return nil, errorsmod.Wrap(models.ErrUnauthorized, "register requires a caller identity")
	}
	if stake < g.minStake {
		return nil, errorsmod.Wrapf(models.ErrInsufficientStake, "register failed, deposit %d is less than required %d", stake, g.minStake)
	}

	var relayer *models.Relayer
	err := g.store.Update(func(r *repository.Repository) error {
		if err := ledger.NewBalances(r).Transfer(caller, g.escrow, stake); err != nil {
			return err
		}

		relayer = &models.Relayer{Address: caller}
		if existing, err := r.Relayer(caller); err == nil {
			relayer.Stake = existing.Stake
		} else if !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}
		relayer.Stake += stake
		return r.PutRelayer(relayer)
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Registered relayer", zap.String("relayer", caller), zap.Uint64("stake", relayer.Stake))
	return relayer, nil
}

// RecordDigest is the id of a record and the message relayers sign. It
// covers the nonce and the entries, not the approval.
func RecordDigest(record models.RecordFromForeign) (string, error) {
	data, err := json.Marshal(struct {
		Nonce   uint64                     `json:"nonce"`
		Entries []models.CrossChainContext `json:"entries"`
	}{record.Nonce, record.Entries})
	if err != nil {
		return "", err
	}
	return sigs.HashHex(data), nil
}

// SubmitRecord stores a pending record. Submitting content already stored is a no-op.
func (g *Gate) SubmitRecord(caller string, record models.RecordFromForeign) (*models.StoredRecord, error) {
	if err := validateEntries(record.Entries); err != nil {
		return nil, err
	}
	digest, err := RecordDigest(record)
	if err != nil {
		return nil, err
	}

	var stored *models.StoredRecord
	created := false
	err = g.store.Update(func(r *repository.Repository) error {
		if err := requireRelayer(r, caller); err != nil {
			return err
		}

		existing, err := r.Record(digest)
		if err == nil {
			stored = existing
			return nil
		}
		if !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}

		stored = &models.StoredRecord{
			Digest:      digest,
			Nonce:       record.Nonce,
			Entries:     record.Entries,
			Status:      models.RecordPending,
			SubmittedBy: caller,
		}
		created = true
		return r.PutRecord(stored)
	})
	if err != nil {
		return nil, err
	}

	if created {
		logger.Logger.Info("Submitted foreign record", zap.String("digest", digest), zap.String("relayer", caller), zap.Int("entries", len(record.Entries)))
	}
	return stored, nil
}

// ApproveRecord verifies the aggregate signature over the record and, on
// quorum, writes every entry into the foreign mirror. This is the only path
// that writes ctxFrom records.
func (g *Gate) ApproveRecord(caller string, record models.RecordFromForeign, approval models.AggregateSignature) (*models.StoredRecord, error) {
	if err := validateEntries(record.Entries); err != nil {
		return nil, err
	}
	digest, err := RecordDigest(record)
	if err != nil {
		return nil, err
	}

	var stored *models.StoredRecord
	err = g.store.Update(func(r *repository.Repository) error {
		if err := requireRelayer(r, caller); err != nil {
			return err
		}

		var err error
		stored, err = r.Record(digest)
		if err != nil {
			return err
		}
		if stored.Status != models.RecordPending {
			return errorsmod.Wrapf(models.ErrStateMismatch, "record %s: expected %s, got %s", digest, models.RecordPending, stored.Status)
		}

		if err := g.quorum.VerifyQuorum(r, digest, approval); err != nil {
			return err
		}

		for i := range stored.Entries {
			if err := r.PutContextFromForeign(&stored.Entries[i]); err != nil {
				return err
			}
		}
		stored.Status = models.RecordApproved
		stored.Approval = approval
		return r.PutRecord(stored)
	})
	if err != nil {
		logger.Logger.Warn("Foreign record rejected", zap.String("digest", digest), zap.String("relayer", caller), zap.Error(err))
		return nil, err
	}

	logger.Logger.Info("Approved foreign record", zap.String("digest", digest), zap.Int("signers", len(approval)))
	return stored, nil
}

func (g *Gate) Relayer(address string) (*models.Relayer, error) {
	var relayer *models.Relayer
	err := g.store.View(func(r *repository.Repository) error {
		var err error
		relayer, err = r.Relayer(address)
		return err
	})
	return relayer, err
}

func (g *Gate) Record(digest string) (*models.StoredRecord, error) {
	var rec *models.StoredRecord
	err := g.store.View(func(r *repository.Repository) error {
		var err error
		rec, err = r.Record(digest)
		return err
	})
	return rec, err
}

// ContextPair is what each side currently knows about a channel: the context
// published for the foreign ledger and the attested mirror received from it.
type ContextPair struct {
	Outbound *models.CrossChainContext `json:"outbound,omitempty"`
	Inbound  *models.CrossChainContext `json:"inbound,omitempty"`
}

// Contexts returns both directions for cid; NotFound when neither exists.
func (g *Gate) Contexts(cid string) (*ContextPair, error) {
	pair := &ContextPair{}
	err := g.store.View(func(r *repository.Repository) error {
		out, err := r.ContextToForeign(cid)
		if err != nil && !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}
		pair.Outbound = out

		in, err := r.ContextFromForeign(cid)
		if err != nil && !errorsmod.IsOf(err, models.ErrNotFound) {
			return err
		}
		pair.Inbound = in

		if pair.Outbound == nil && pair.Inbound == nil {
			return errorsmod.Wrapf(models.ErrNotFound, "no context for channel %s", cid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func requireRelayer(r *repository.Repository, caller string) error {
	if _, err := r.Relayer(caller); err != nil {
		if errorsmod.IsOf(err, models.ErrNotFound) {
			return errorsmod.Wrapf(models.ErrUnauthorized, "client %q is not a registered relayer", caller)
		}
		return err
	}
	return nil
}

func validateEntries(entries []models.CrossChainContext) error {
	if len(entries) == 0 {
		return errorsmod.Wrap(models.ErrInvalidRequest, "record carries no entries")
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.CID == "" {
			return errorsmod.Wrapf(models.ErrInvalidRequest, "entry %d has no channel id", i)
		}
		if seen[e.CID] {
			return errorsmod.Wrapf(models.ErrInvalidRequest, "channel %s appears twice in one record", e.CID)
		}
		seen[e.CID] = true
		switch e.State {
		case models.ChannelInit, models.ChannelActivated, models.ChannelPreClose, models.ChannelClosed:
		default:
			return errorsmod.Wrapf(models.ErrInvalidRequest, "entry %s has unknown state %q", e.CID, e.State)
		}
		if e.BalanceProof.CID != e.CID {
			return errorsmod.Wrapf(models.ErrInvalidRequest, "entry %s carries a balance proof for channel %s", e.CID, e.BalanceProof.CID)
		}
	}
	return nil
}
