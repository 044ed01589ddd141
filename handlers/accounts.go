package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type mintRequest struct {
	Amount uint64 `json:"amount"`
}

type publicKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// Mint handles POST /accounts/mint
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "Failed to decode mint", err)
		return
	}

	balance, err := h.Accounts.Mint(clientID(r), req.Amount)
	if err != nil {
		writeError(w, r, "Failed to mint", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": clientID(r),
		"balance": balance,
	})
}

// ClientAccount handles GET /accounts/me: the caller's identity and balance
func (h *Handler) ClientAccount(w http.ResponseWriter, r *http.Request) {
	caller := clientID(r)
	balance, err := h.Accounts.ClientBalance(caller)
	if err != nil {
		writeError(w, r, "Failed to get client balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": caller,
		"balance": balance,
	})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	balance, err := h.Accounts.Balance(account)
	if err != nil {
		writeError(w, r, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"balance": balance,
	})
}

// SetPublicKey handles PUT /accounts/{account}/public-key
func (h *Handler) SetPublicKey(w http.ResponseWriter, r *http.Request) {
	var req publicKeyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "Failed to decode public key", err)
		return
	}

	account := mux.Vars(r)["account"]
	if err := h.Accounts.SetPublicKey(clientID(r), account, req.PublicKey); err != nil {
		writeError(w, r, "Failed to set public key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":   account,
		"publicKey": req.PublicKey,
	})
}

func (h *Handler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	key, err := h.Accounts.PublicKey(account)
	if err != nil {
		writeError(w, r, "Failed to get public key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":   account,
		"publicKey": key,
	})
}
