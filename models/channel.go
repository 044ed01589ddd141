package models

import (
	"encoding/json"
)

// ChannelState is the lifecycle state of a payment channel, shared by the
// Channel record and the CrossChainContext that mirrors it.
type ChannelState string

const (
	ChannelInit      ChannelState = "INIT"
	ChannelActivated ChannelState = "ACTIVATED"
	ChannelPreClose  ChannelState = "PRECLOSE"
	ChannelClosed    ChannelState = "CLOSED"
)

// BalanceProof is an agreed split of a channel's funds. Signatures[i] is
// participant i's hex signature over SigningBytes.
type BalanceProof struct {
	CID        string    `json:"cid"`
	TxID       uint64    `json:"txid"`
	Balances   [2]uint64 `json:"balances"`
	Signatures [2]string `json:"signatures"`
}

// SigningBytes is the canonical encoding participants sign: the proof without its signatures.
func (bp BalanceProof) SigningBytes() []byte {
	b, _ := json.Marshal(struct {
		CID      string    `json:"cid"`
		TxID     uint64    `json:"txid"`
		Balances [2]uint64 `json:"balances"`
	}{bp.CID, bp.TxID, bp.Balances})
	return b
}

// Equal compares two proofs field by field.
func (bp BalanceProof) Equal(other BalanceProof) bool {
	return bp.CID == other.CID &&
		bp.TxID == other.TxID &&
		bp.Balances == other.Balances &&
		bp.Signatures == other.Signatures
}

type Channel struct {
	CID           string       `json:"cid"`
	Participants  [2]string    `json:"participants"`
	Chains        [2]string    `json:"chains"`
	Balances      [2]uint64    `json:"balances"`
	ArgueWindowMs int64        `json:"argueWindowMs"`
	State         ChannelState `json:"state"`
	BalanceProof  BalanceProof `json:"balanceProof"`
	// PublicKeys[i] is the key participant i signs this channel's proofs with, fixed at activation.
	// Only the local participant's key is known on this ledger.
	PublicKeys [2]string `json:"publicKeys"`
	// CloseDeadline is the unix ms after which a pending close may be resolved; zero when no close is pending.
	CloseDeadline int64 `json:"closeDeadline,omitempty"`
	// PendingProof is the proof a pending close will settle with unless the foreign side supersedes it.
	PendingProof *BalanceProof `json:"pendingProof,omitempty"`
}

// Total is the amount of funds the channel splits.
func (c *Channel) Total() uint64 {
	return c.Balances[0] + c.Balances[1]
}

// CrossChainContext is the snapshot of a channel one ledger publishes for the other to observe.
type CrossChainContext struct {
	CID          string       `json:"cid"`
	State        ChannelState `json:"state"`
	BalanceProof BalanceProof `json:"balanceProof"`
}
