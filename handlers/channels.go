package handlers

import (
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"github.com/gorilla/mux"

	"bridge-project/channel"
	"bridge-project/models"
)

// CreateChannel handles POST /channels. It blocks until the foreign mirror
// shows up or the retries run out.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channel.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "Failed to decode channel", err)
		return
	}

	ch, err := h.Channels.Create(r.Context(), clientID(r), req)
	if err != nil {
		writeError(w, r, "Failed to create channel", err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.Channels.Channel(mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, r, "Failed to get channel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// balanceProof decodes a proof body and pins it to the channel in the path.
func balanceProof(r *http.Request) (models.BalanceProof, error) {
	var proof models.BalanceProof
	if err := decode(r, &proof); err != nil {
		return proof, err
	}
	cid := mux.Vars(r)["cid"]
	if proof.CID == "" {
		proof.CID = cid
	}
	if proof.CID != cid {
		return proof, errorsmod.Wrapf(models.ErrInvalidRequest, "balance proof is for channel %s, path names %s", proof.CID, cid)
	}
	return proof, nil
}

// CloseChannel handles POST /channels/{cid}/close. It returns as soon as
// the channel is PRECLOSE; the client resolves after the deadline.
func (h *Handler) CloseChannel(w http.ResponseWriter, r *http.Request) {
	proof, err := balanceProof(r)
	if err != nil {
		writeError(w, r, "Failed to decode balance proof", err)
		return
	}

	pending, err := h.Channels.RequestClose(clientID(r), proof.CID, proof)
	if err != nil {
		writeError(w, r, "Failed to close channel", err)
		return
	}
	writeJSON(w, http.StatusAccepted, pending)
}

func (h *Handler) ResolveClose(w http.ResponseWriter, r *http.Request) {
	res, err := h.Channels.ResolveClose(clientID(r), mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, r, "Failed to resolve close", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ArgueClose handles POST /channels/{cid}/argue
func (h *Handler) ArgueClose(w http.ResponseWriter, r *http.Request) {
	proof, err := balanceProof(r)
	if err != nil {
		writeError(w, r, "Failed to decode balance proof", err)
		return
	}

	out, err := h.Channels.CloseArgue(clientID(r), proof.CID, proof)
	if err != nil {
		writeError(w, r, "Failed to argue close", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) FinalizeChannel(w http.ResponseWriter, r *http.Request) {
	res, err := h.Channels.Finalize(clientID(r), mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, r, "Failed to finalize channel", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
