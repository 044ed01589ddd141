package models

type HTLCState string

const (
	HTLCIssued    HTLCState = "ISSUED"
	HTLCWithdrawn HTLCState = "WITHDRAWN"
	HTLCRedeemed  HTLCState = "REDEEMED"
)

// HTLC is keyed by (Sender, Recipient). Refund recycles the slot and bumps Version.
type HTLC struct {
	SecretHash string    `json:"secretHash"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Value      uint64    `json:"value"`
	Endtime    int64     `json:"endtime"` // unix ms
	Preimage   *string   `json:"preimage"`
	State      HTLCState `json:"state"`
	Version    uint64    `json:"version"`
}

// Terminal reports whether the current cycle has released its escrow.
func (h *HTLC) Terminal() bool {
	return h.State == HTLCWithdrawn || h.State == HTLCRedeemed
}
