package handlers

import (
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"github.com/gorilla/mux"

	"bridge-project/bridge"
	"bridge-project/models"
)

type registerRequest struct {
	Stake uint64 `json:"stake"`
}

// RegisterRelayer handles POST /relayers
func (h *Handler) RegisterRelayer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, "Failed to decode register", err)
		return
	}

	relayer, err := h.Gate.Register(clientID(r), req.Stake)
	if err != nil {
		writeError(w, r, "Failed to register relayer", err)
		return
	}
	writeJSON(w, http.StatusCreated, relayer)
}

func (h *Handler) GetRelayer(w http.ResponseWriter, r *http.Request) {
	relayer, err := h.Gate.Relayer(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, r, "Failed to get relayer", err)
		return
	}
	writeJSON(w, http.StatusOK, relayer)
}

// SubmitRecord handles POST /records
func (h *Handler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	var record models.RecordFromForeign
	if err := decode(r, &record); err != nil {
		writeError(w, r, "Failed to decode record", err)
		return
	}

	stored, err := h.Gate.SubmitRecord(clientID(r), record)
	if err != nil {
		writeError(w, r, "Failed to submit record", err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ApproveRecord handles POST /records/{digest}/approve. The body is the
// record with its approval; its digest must match the path.
func (h *Handler) ApproveRecord(w http.ResponseWriter, r *http.Request) {
	var record models.RecordFromForeign
	if err := decode(r, &record); err != nil {
		writeError(w, r, "Failed to decode approval", err)
		return
	}

	digest, err := bridge.RecordDigest(record)
	if err != nil {
		writeError(w, r, "Failed to digest record", err)
		return
	}
	if want := mux.Vars(r)["digest"]; digest != want {
		writeError(w, r, "Record digest mismatch",
			errorsmod.Wrapf(models.ErrInvalidRequest, "record digest is %s, path names %s", digest, want))
		return
	}

	stored, err := h.Gate.ApproveRecord(clientID(r), record, record.Approval)
	if err != nil {
		writeError(w, r, "Failed to approve record", err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Gate.Record(mux.Vars(r)["digest"])
	if err != nil {
		writeError(w, r, "Failed to get record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetContexts handles GET /contexts/{cid}: what relayers carry across and what arrived
func (h *Handler) GetContexts(w http.ResponseWriter, r *http.Request) {
	pair, err := h.Gate.Contexts(mux.Vars(r)["cid"])
	if err != nil {
		writeError(w, r, "Failed to get contexts", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
