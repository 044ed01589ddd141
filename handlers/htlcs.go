package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"bridge-project/htlc"
)

type withdrawRequest struct {
	Preimage string  `json:"preimage"`
	Version  *uint64 `json:"version,omitempty"`
}

type redeemRequest struct {
	Version *uint64 `json:"version,omitempty"`
}

// IssueHTLC handles POST /htlcs
func (h *Handler) IssueHTLC(w http.ResponseWriter, r *http.Request) {
	var terms htlc.Terms
	if err := decode(r, &terms); err != nil {
		writeError(w, r, "Failed to decode htlc", err)
		return
	}

	contract, err := h.HTLCs.Issue(clientID(r), terms)
	if err != nil {
		writeError(w, r, "Failed to issue htlc", err)
		return
	}
	writeJSON(w, http.StatusCreated, contract)
}

func (h *Handler) GetHTLC(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contract, err := h.HTLCs.HTLC(vars["sender"], vars["recipient"])
	if err != nil {
		writeError(w, r, "Failed to get htlc", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (h *Handler) WithdrawHTLC(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "Failed to decode withdraw", err)
		return
	}

	vars := mux.Vars(r)
	contract, err := h.HTLCs.Withdraw(clientID(r), vars["sender"], vars["recipient"], req.Preimage, req.Version)
	if err != nil {
		writeError(w, r, "Failed to withdraw htlc", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// RedeemHTLC handles POST /htlcs/{sender}/{recipient}/redeem. An empty body is allowed.
func (h *Handler) RedeemHTLC(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, "Failed to decode redeem", err)
			return
		}
	}

	vars := mux.Vars(r)
	contract, err := h.HTLCs.Redeem(clientID(r), vars["sender"], vars["recipient"], req.Version)
	if err != nil {
		writeError(w, r, "Failed to redeem htlc", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// RefundHTLC handles POST /htlcs/{sender}/{recipient}/refund with the next cycle's terms.
func (h *Handler) RefundHTLC(w http.ResponseWriter, r *http.Request) {
	var terms htlc.Terms
	if err := decode(r, &terms); err != nil {
		writeError(w, r, "Failed to decode refund", err)
		return
	}

	vars := mux.Vars(r)
	terms.Sender, terms.Recipient = vars["sender"], vars["recipient"]
	contract, err := h.HTLCs.Refund(clientID(r), terms)
	if err != nil {
		writeError(w, r, "Failed to refund htlc", err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// HTLCExists handles GET /htlcs/{sender}/{recipient}/exists
func (h *Handler) HTLCExists(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	exists, err := h.HTLCs.Exists(vars["sender"], vars["recipient"])
	if err != nil {
		writeError(w, r, "Failed to check htlc", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sender":    vars["sender"],
		"recipient": vars["recipient"],
		"exists":    exists,
	})
}
