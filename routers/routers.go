package routers

import (
	"bridge-project/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the bridge
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {
	r.Use(RequestID, AccessLog)

	// Accounts and signing keys
	r.HandleFunc("/accounts/mint", h.Mint).Methods("POST")
	r.HandleFunc("/accounts/me", h.ClientAccount).Methods("GET")
	r.HandleFunc("/accounts/{account}/balance", h.Balance).Methods("GET")
	r.HandleFunc("/accounts/{account}/public-key", h.SetPublicKey).Methods("PUT")
	r.HandleFunc("/accounts/{account}/public-key", h.GetPublicKey).Methods("GET")

	// Relayer registry and foreign record attestation
	r.HandleFunc("/relayers", h.RegisterRelayer).Methods("POST")
	r.HandleFunc("/relayers/{address}", h.GetRelayer).Methods("GET")
	r.HandleFunc("/records", h.SubmitRecord).Methods("POST")
	r.HandleFunc("/records/{digest}/approve", h.ApproveRecord).Methods("POST")
	r.HandleFunc("/records/{digest}", h.GetRecord).Methods("GET")
	r.HandleFunc("/contexts/{cid}", h.GetContexts).Methods("GET")

	// Payment channels
	r.HandleFunc("/channels", h.CreateChannel).Methods("POST")
	r.HandleFunc("/channels/{cid}", h.GetChannel).Methods("GET")
	r.HandleFunc("/channels/{cid}/close", h.CloseChannel).Methods("POST")
	r.HandleFunc("/channels/{cid}/close/resolve", h.ResolveClose).Methods("POST")
	r.HandleFunc("/channels/{cid}/argue", h.ArgueClose).Methods("POST")
	r.HandleFunc("/channels/{cid}/finalize", h.FinalizeChannel).Methods("POST")

	// Hashed-timelock contracts
	r.HandleFunc("/htlcs", h.IssueHTLC).Methods("POST")
	r.HandleFunc("/htlcs/{sender}/{recipient}", h.GetHTLC).Methods("GET")
	r.HandleFunc("/htlcs/{sender}/{recipient}/exists", h.HTLCExists).Methods("GET")
	r.HandleFunc("/htlcs/{sender}/{recipient}/withdraw", h.WithdrawHTLC).Methods("POST")
	r.HandleFunc("/htlcs/{sender}/{recipient}/redeem", h.RedeemHTLC).Methods("POST")
	r.HandleFunc("/htlcs/{sender}/{recipient}/refund", h.RefundHTLC).Methods("POST")
}
