package models

type Relayer struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

// RelayerSignature is one relayer's hex signature over a record digest.
type RelayerSignature struct {
	Relayer   string `json:"relayer"`
	Signature string `json:"signature"`
}

// AggregateSignature is the multi-signature a quorum of relayers produces over one record.
type AggregateSignature []RelayerSignature

// RecordFromForeign is a batch of foreign-chain facts awaiting or carrying quorum approval.
// Nonce is chosen by the relayers and distinguishes two relays of identical entries.
type RecordFromForeign struct {
	Nonce    uint64              `json:"nonce"`
	Entries  []CrossChainContext `json:"entries"`
	Approval AggregateSignature  `json:"approval,omitempty"`
}

type RecordStatus string

const (
	RecordPending  RecordStatus = "PENDING"
	RecordApproved RecordStatus = "APPROVED"
)

// StoredRecord is a RecordFromForeign as persisted, keyed by its digest.
type StoredRecord struct {
	Digest      string              `json:"digest"`
	Nonce       uint64              `json:"nonce"`
	Entries     []CrossChainContext `json:"entries"`
	Status      RecordStatus        `json:"status"`
	SubmittedBy string              `json:"submittedBy"`
	Approval    AggregateSignature  `json:"approval,omitempty"`
}
