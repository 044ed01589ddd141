package channel

import (
	errorsmod "cosmossdk.io/errors"

	"bridge-project/ledger"
	"bridge-project/models"
	"bridge-project/repository"
)

// settlement pays out the local participant's share of proof and closes ch.
// The difference between the local deposit and that share moves to (or, when
// the local side gained, comes from) the pooled escrow. It runs at most once
// per channel.
func (m *Machine) settlement(r *repository.Repository, ch *models.Channel, proof models.BalanceProof) error {
	if ch.State == models.ChannelClosed {
		return errorsmod.Wrapf(models.ErrAlreadySettled, "channel %s was settled with txid %d", ch.CID, ch.BalanceProof.TxID)
	}
	if err := checkProofShape(ch, proof); err != nil {
		return err
	}

	local := m.cfg.LocalIndex
	deposit := ch.Balances[local]
	share := proof.Balances[local]

	balances := ledger.NewBalances(r)
	if err := balances.Credit(ch.Participants[local], share); err != nil {
		return err
	}
	switch {
	case deposit > share:
		if err := balances.Credit(m.cfg.EscrowAccount, deposit-share); err != nil {
			return err
		}
	case share > deposit:
		if err := balances.Debit(m.cfg.EscrowAccount, share-deposit); err != nil {
			return errorsmod.Wrapf(err, "escrow cannot cover channel %s settlement", ch.CID)
		}
	}

	ch.BalanceProof = proof
	ch.State = models.ChannelClosed
	ch.CloseDeadline = 0
	ch.PendingProof = nil
	return r.PutChannel(ch)
}
