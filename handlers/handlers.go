package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"bridge-project/bridge"
	"bridge-project/channel"
	"bridge-project/htlc"
	"bridge-project/ledger"
	"bridge-project/logger"
	"bridge-project/models"
)

// ClientIDHeader carries the caller identity. Authenticating it is left to
// the gateway in front of this service.
const ClientIDHeader = "X-Client-ID"

// Handler contains the HTTP handlers for the bridge API endpoints
type Handler struct {
	Accounts *ledger.Service
	Gate     *bridge.Gate
	Channels *channel.Machine
	HTLCs    *htlc.Machine
}

// NewHandler creates and returns a new Handler instance
func NewHandler(accounts *ledger.Service, gate *bridge.Gate, channels *channel.Machine, htlcs *htlc.Machine) *Handler {
	return &Handler{Accounts: accounts, Gate: gate, Channels: channels, HTLCs: htlcs}
}

var statusByKind = []struct {
	kind   *errorsmod.Error
	status int
}{
	{models.ErrUnauthorized, http.StatusForbidden},
	{models.ErrInvalidSignature, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrStateMismatch, http.StatusConflict},
	{models.ErrAlreadySettled, http.StatusConflict},
	{models.ErrStaleProof, http.StatusConflict},
	{models.ErrMirrorPending, http.StatusConflict},
	{models.ErrInsufficientBalance, http.StatusBadRequest},
	{models.ErrInsufficientStake, http.StatusBadRequest},
	{models.ErrInvalidPreimage, http.StatusBadRequest},
	{models.ErrInvalidRequest, http.StatusBadRequest},
	{models.ErrQuorumNotReached, http.StatusUnprocessableEntity},
	{models.ErrTooEarly, http.StatusTooEarly},
	{models.ErrTimeout, http.StatusGatewayTimeout},
}

// StatusFor maps an error kind to its HTTP status; unknown errors are 500.
func StatusFor(err error) int {
	for _, s := range statusByKind {
		if errors.Is(err, s.kind) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func clientID(r *http.Request) string {
	return r.Header.Get(ClientIDHeader)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errorsmod.Wrapf(models.ErrInvalidRequest, "invalid request payload: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusFor(err)
	_, code, _ := errorsmod.ABCIInfo(err, false)
	fields := []zap.Field{zap.Error(err), zap.String("path", r.URL.Path), zap.Int("status", status)}
	if status >= http.StatusInternalServerError {
		logger.Logger.Error(msg, fields...)
	} else {
		logger.Logger.Warn(msg, fields...)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}
