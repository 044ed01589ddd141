package channel

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/logger"
	"bridge-project/models"
	"bridge-project/repository"
)

// PendingClose describes a close waiting out its argue window.
type PendingClose struct {
	CID          string              `json:"cid"`
	Deadline     int64               `json:"deadline"` // unix ms
	BalanceProof models.BalanceProof `json:"balanceProof"`
}

// CloseResult is the outcome of resolving a close.
type CloseResult struct {
	CID          string              `json:"cid"`
	State        models.ChannelState `json:"state"`
	Settled      bool                `json:"settled"`
	BalanceProof models.BalanceProof `json:"balanceProof"`
}

// Close requests a close with proof, waits out the argue window and resolves
// it against the foreign mirror.
func (m *Machine) Close(ctx context.Context, caller, cid string, proof models.BalanceProof) (*CloseResult, error) {
	pending, err := m.RequestClose(caller, cid, proof)
	if err != nil {
		return nil, err
	}

	for {
		wait := time.Duration(pending.Deadline-m.nowMillis()) * time.Millisecond
		if err := m.sleep(ctx, wait); err != nil {
			return nil, errorsmod.Wrapf(models.ErrTimeout, "close channel %s: %v", cid, err)
		}
		res, err := m.ResolveClose(caller, cid)
		if errorsmod.IsOf(err, models.ErrTooEarly) {
			continue
		}
		return res, err
	}
}

// RequestClose moves the channel to PRECLOSE and publishes ctxTo{PRECLOSE}.
// The close can be resolved once the channel's argue window has elapsed.
func (m *Machine) RequestClose(caller, cid string, proof models.BalanceProof) (*PendingClose, error) {
	var pending *PendingClose
	err := m.store.Update(func(r *repository.Repository) error {
		ch, err := r.Channel(cid)
		if err != nil {
			return err
		}
		if err := m.localParticipant(ch, caller); err != nil {
			return err
		}
		if err := requireOpen(ch, models.ChannelActivated); err != nil {
			return err
		}
		if err := checkProofShape(ch, proof); err != nil {
			return err
		}

		if !m.signedByLocal(ch, proof) {
			return errorsmod.Wrapf(models.ErrInvalidSignature, "close channel %s failed, signature %d is not %s's", cid, m.cfg.LocalIndex+1, caller)
		}
		if proof.TxID < ch.BalanceProof.TxID {
			return errorsmod.Wrapf(models.ErrStaleProof, "close channel %s: txid %d is older than %d", cid, proof.TxID, ch.BalanceProof.TxID)
		}

		ch.State = models.ChannelPreClose
		ch.CloseDeadline = m.nowMillis() + ch.ArgueWindowMs
		ch.PendingProof = &proof
		if err := r.PutChannel(ch); err != nil {
			return err
		}
		if _, err := m.publish(r, cid, models.ChannelPreClose, proof); err != nil {
			return err
		}

		pending = &PendingClose{CID: cid, Deadline: ch.CloseDeadline, BalanceProof: proof}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Channel close requested", zap.String("cid", cid), zap.Uint64("txid", proof.TxID), zap.Int64("deadline", pending.Deadline))
	return pending, nil
}

// ResolveClose finishes a pending close once its argue window has passed,
// according to what the foreign mirror reports:
//   - INIT or ACTIVATED: the foreign side never accepted the close, either by
//     refusing it or by not answering; the channel stays open.
//   - CLOSED: the foreign side finalized already; settle with its proof.
//   - PRECLOSE: both sides raced. The mirrored proof wins if it carries our
//     signature and is not older; otherwise our proof is used. Either way the
//     channel closes and ctxTo{CLOSED} answers the foreign side.
func (m *Machine) ResolveClose(caller, cid string) (*CloseResult, error) {
	var res *CloseResult
	err := m.store.Update(func(r *repository.Repository) error {
		ch, err := r.Channel(cid)
		if err != nil {
			return err
		}
		if err := m.localParticipant(ch, caller); err != nil {
			return err
		}
		if err := requireOpen(ch, models.ChannelPreClose); err != nil {
			return err
		}
		if ch.PendingProof == nil {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s has no pending close", cid)
		}
		if now := m.nowMillis(); now < ch.CloseDeadline {
			return errorsmod.Wrapf(models.ErrTooEarly, "channel %s argue window ends at %d, now %d", cid, ch.CloseDeadline, now)
		}

		mirror, err := r.ContextFromForeign(cid)
		if err != nil {
			return err
		}

		proof := *ch.PendingProof
		switch mirror.State {
		case models.ChannelInit, models.ChannelActivated:
			ch.State = models.ChannelActivated
			ch.CloseDeadline = 0
			ch.PendingProof = nil
			if err := r.PutChannel(ch); err != nil {
				return err
			}
			if _, err := m.publish(r, cid, models.ChannelActivated, ch.BalanceProof); err != nil {
				return err
			}
			res = &CloseResult{CID: cid, State: models.ChannelActivated, BalanceProof: ch.BalanceProof}
			return nil

		case models.ChannelClosed:
			proof = mirror.BalanceProof

		case models.ChannelPreClose:
			if m.signedByLocal(ch, mirror.BalanceProof) && mirror.BalanceProof.TxID >= proof.TxID && checkProofShape(ch, mirror.BalanceProof) == nil {
				proof = mirror.BalanceProof
			}

		default:
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s: unexpected foreign state %q", cid, mirror.State)
		}

		if err := m.settlement(r, ch, proof); err != nil {
			return err
		}
		if _, err := m.publish(r, cid, models.ChannelClosed, proof); err != nil {
			return err
		}
		res = &CloseResult{CID: cid, State: models.ChannelClosed, Settled: true, BalanceProof: proof}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Settled {
		logger.Logger.Info("Channel closed", zap.String("cid", cid), zap.Uint64("txid", res.BalanceProof.TxID),
			zap.Uint64s("balances", res.BalanceProof.Balances[:]))
	} else {
		logger.Logger.Warn("Channel close refused by foreign ledger", zap.String("cid", cid))
	}
	return res, nil
}

// CloseArgue answers a close the foreign participant raised (the mirror shows
// PRECLOSE):
//   - the mirrored proof lacks our signature: the close is unauthorized, so
//     ctxTo{ACTIVATED} reverts it.
//   - newProof lacks our signature: settle now with the channel's proof.
//   - otherwise newProof supersedes; ctxTo{PRECLOSE, newProof} lets the other
//     side resolve with it.
func (m *Machine) CloseArgue(caller, cid string, newProof models.BalanceProof) (*models.CrossChainContext, error) {
	var out *models.CrossChainContext
	err := m.store.Update(func(r *repository.Repository) error {
		ch, err := r.Channel(cid)
		if err != nil {
			return err
		}
		if err := m.localParticipant(ch, caller); err != nil {
			return err
		}
		if err := requireOpen(ch, models.ChannelActivated, models.ChannelPreClose); err != nil {
			return err
		}

		mirror, err := r.ContextFromForeign(cid)
		if err != nil {
			return err
		}
		if mirror.State != models.ChannelPreClose {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s: foreign state expected %s, got %s", cid, models.ChannelPreClose, mirror.State)
		}

		if !m.signedByLocal(ch, mirror.BalanceProof) {
			out, err = m.publish(r, cid, models.ChannelActivated, ch.BalanceProof)
			return err
		}

		if !m.signedByLocal(ch, newProof) {
			if err := m.settlement(r, ch, ch.BalanceProof); err != nil {
				return err
			}
			out, err = m.publish(r, cid, models.ChannelClosed, ch.BalanceProof)
			return err
		}

		if err := checkProofShape(ch, newProof); err != nil {
			return err
		}
		if newProof.TxID < mirror.BalanceProof.TxID {
			return errorsmod.Wrapf(models.ErrStaleProof, "channel %s: argued txid %d is older than the foreign proof's %d",
				cid, newProof.TxID, mirror.BalanceProof.TxID)
		}

		ch.State = models.ChannelPreClose
		ch.CloseDeadline = m.nowMillis() + ch.ArgueWindowMs
		ch.PendingProof = &newProof
		if err := r.PutChannel(ch); err != nil {
			return err
		}
		out, err = m.publish(r, cid, models.ChannelPreClose, newProof)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Channel close argued", zap.String("cid", cid), zap.String("reply", string(out.State)), zap.Uint64("txid", out.BalanceProof.TxID))
	return out, nil
}

// Finalize settles a channel the foreign side has already closed, using the
// mirrored proof. It needs no argue window: the foreign CLOSED is final.
func (m *Machine) Finalize(caller, cid string) (*CloseResult, error) {
	var res *CloseResult
	err := m.store.Update(func(r *repository.Repository) error {
		ch, err := r.Channel(cid)
		if err != nil {
			return err
		}
		if err := m.localParticipant(ch, caller); err != nil {
			return err
		}
		mirror, err := r.ContextFromForeign(cid)
		if err != nil {
			return err
		}
		if mirror.State != models.ChannelClosed {
			return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s: foreign state expected %s, got %s", cid, models.ChannelClosed, mirror.State)
		}

		if err := m.settlement(r, ch, mirror.BalanceProof); err != nil {
			return err
		}
		if _, err := m.publish(r, cid, models.ChannelClosed, mirror.BalanceProof); err != nil {
			return err
		}
		res = &CloseResult{CID: cid, State: models.ChannelClosed, Settled: true, BalanceProof: mirror.BalanceProof}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Channel finalized from foreign close", zap.String("cid", cid), zap.Uint64("txid", res.BalanceProof.TxID))
	return res, nil
}

// requireOpen rejects closed channels with ErrAlreadySettled and any state
// outside allowed with ErrStateMismatch.
func requireOpen(ch *models.Channel, allowed ...models.ChannelState) error {
	if ch.State == models.ChannelClosed {
		return errorsmod.Wrapf(models.ErrAlreadySettled, "channel %s is closed", ch.CID)
	}
	for _, s := range allowed {
		if ch.State == s {
			return nil
		}
	}
	return errorsmod.Wrapf(models.ErrStateMismatch, "channel %s: expected %v, got %s", ch.CID, allowed, ch.State)
}

// checkProofShape requires a proof for this channel that splits exactly its funds.
func checkProofShape(ch *models.Channel, proof models.BalanceProof) error {
	if proof.CID != ch.CID {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "balance proof is for channel %s, not %s", proof.CID, ch.CID)
	}
	if proof.Balances[0] > ch.Total() || proof.Balances[1] != ch.Total()-proof.Balances[0] {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "channel %s: balance proof splits %v, channel holds %d",
			ch.CID, proof.Balances, ch.Total())
	}
	return nil
}
