package repository

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"bridge-project/db"
	"bridge-project/models"
)

// Record prefixes. The foreign-facing prefixes are built by ForeignPrefixes.
const (
	ChannelPrefix   = "channel"
	RelayerPrefix   = "relayer"
	BalancePrefix   = "balance"
	HTLCPrefix      = "htlc"
	PublicKeyPrefix = "publicKey"
)

const keySep = "\x00"

// Prefixes holds the record prefixes that name the foreign ledger, e.g. ctxToETH.
type Prefixes struct {
	CtxTo      string
	CtxFrom    string
	RecordFrom string
}

func ForeignPrefixes(foreign string) Prefixes {
	return Prefixes{
		CtxTo:      "ctxTo" + foreign,
		CtxFrom:    "ctxFrom" + foreign,
		RecordFrom: "recordFrom" + foreign,
	}
}

// CompositeKey joins prefix and parts as \x00prefix\x00part1\x00part2\x00.
// Called with no parts it yields the range prefix of every key under prefix.
func CompositeKey(prefix string, parts ...string) []byte {
	var b strings.Builder
	b.WriteString(keySep)
	b.WriteString(prefix)
	b.WriteString(keySep)
	for _, p := range parts {
		b.WriteString(p)
		b.WriteString(keySep)
	}
	return []byte(b.String())
}

// Repository is the typed view of the ledger inside one transaction or snapshot.
type Repository struct {
	kv       db.KV
	prefixes Prefixes
}

func New(kv db.KV, prefixes Prefixes) *Repository {
	return &Repository{kv: kv, prefixes: prefixes}
}

func (r *Repository) Prefixes() Prefixes {
	return r.prefixes
}

// GetState returns the raw value under (prefix, parts); found is false when absent.
func (r *Repository) GetState(prefix string, parts ...string) (value []byte, found bool, err error) {
	value, err = r.kv.Get(CompositeKey(prefix, parts...))
	if errors.Is(err, db.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, len(value) > 0, nil
}

// PutState stores the raw value under (prefix, parts).
func (r *Repository) PutState(prefix string, parts []string, value []byte) error {
	return r.kv.Put(CompositeKey(prefix, parts...), value)
}

func (r *Repository) getJSON(out any, prefix string, parts ...string) (bool, error) {
	data, found, err := r.GetState(prefix, parts...)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errorsmod.Wrapf(err, "decode %s/%s", prefix, strings.Join(parts, "/"))
	}
	return true, nil
}

func (r *Repository) putJSON(v any, prefix string, parts ...string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.PutState(prefix, parts, data)
}

// Channel loads a committed channel; ErrNotFound when absent.
func (r *Repository) Channel(cid string) (*models.Channel, error) {
	var ch models.Channel
	found, err := r.getJSON(&ch, ChannelPrefix, cid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(models.ErrNotFound, "channel %s does not exist", cid)
	}
	return &ch, nil
}

func (r *Repository) PutChannel(ch *models.Channel) error {
	return r.putJSON(ch, ChannelPrefix, ch.CID)
}

// ContextToForeign returns the context this ledger published for cid.
func (r *Repository) ContextToForeign(cid string) (*models.CrossChainContext, error) {
	return r.context(r.prefixes.CtxTo, cid)
}

func (r *Repository) PutContextToForeign(c *models.CrossChainContext) error {
	return r.putJSON(c, r.prefixes.CtxTo, c.CID)
}

// ContextFromForeign returns the attested mirror of the foreign side for cid.
func (r *Repository) ContextFromForeign(cid string) (*models.CrossChainContext, error) {
	return r.context(r.prefixes.CtxFrom, cid)
}

// PutContextFromForeign is reserved for the attestation gate; no client-facing
// operation writes the mirror directly.
func (r *Repository) PutContextFromForeign(c *models.CrossChainContext) error {
	return r.putJSON(c, r.prefixes.CtxFrom, c.CID)
}

func (r *Repository) context(prefix, cid string) (*models.CrossChainContext, error) {
	var c models.CrossChainContext
	found, err := r.getJSON(&c, prefix, cid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(models.ErrNotFound, "%s context for channel %s does not exist", prefix, cid)
	}
	return &c, nil
}

func (r *Repository) Relayer(address string) (*models.Relayer, error) {
	var rl models.Relayer
	found, err := r.getJSON(&rl, RelayerPrefix, address)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(models.ErrNotFound, "relayer %s is not registered", address)
	}
	return &rl, nil
}

func (r *Repository) PutRelayer(rl *models.Relayer) error {
	return r.putJSON(rl, RelayerPrefix, rl.Address)
}

// Relayers returns every registered relayer in key order.
func (r *Repository) Relayers() ([]*models.Relayer, error) {
	iter := r.kv.NewIterator(CompositeKey(RelayerPrefix))
	defer iter.Release()

	var relayers []*models.Relayer
	for iter.Next() {
		var rl models.Relayer
		if err := json.Unmarshal(iter.Value(), &rl); err != nil {
			return nil, err
		}
		relayers = append(relayers, &rl)
	}
	return relayers, iter.Error()
}

// Balance returns the account balance; found is false for an account never credited.
func (r *Repository) Balance(account string) (balance uint64, found bool, err error) {
	data, found, err := r.GetState(BalancePrefix, account)
	if err != nil || !found {
		return 0, found, err
	}
	balance, err = strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, errorsmod.Wrapf(err, "decode balance of %s", account)
	}
	return balance, true, nil
}

func (r *Repository) PutBalance(account string, balance uint64) error {
	return r.PutState(BalancePrefix, []string{account}, []byte(strconv.FormatUint(balance, 10)))
}

// HTLC loads the contract slot of a (sender, recipient) pair.
func (r *Repository) HTLC(sender, recipient string) (*models.HTLC, error) {
	var h models.HTLC
	found, err := r.getJSON(&h, HTLCPrefix, sender, recipient)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(models.ErrNotFound, "htlc %s:%s does not exist", sender, recipient)
	}
	return &h, nil
}

func (r *Repository) PutHTLC(h *models.HTLC) error {
	return r.putJSON(h, HTLCPrefix, h.Sender, h.Recipient)
}

func (r *Repository) Record(digest string) (*models.StoredRecord, error) {
	var rec models.StoredRecord
	found, err := r.getJSON(&rec, r.prefixes.RecordFrom, digest)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(models.ErrNotFound, "record %s does not exist", digest)
	}
	return &rec, nil
}

func (r *Repository) PutRecord(rec *models.StoredRecord) error {
	return r.putJSON(rec, r.prefixes.RecordFrom, rec.Digest)
}

// PublicKey returns the hex public key registered for account.
func (r *Repository) PublicKey(account string) (string, error) {
	data, found, err := r.GetState(PublicKeyPrefix, account)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errorsmod.Wrapf(models.ErrNotFound, "no public key registered for %s", account)
	}
	return string(data), nil
}

func (r *Repository) PutPublicKey(account, publicKeyHex string) error {
	return r.PutState(PublicKeyPrefix, []string{account}, []byte(publicKeyHex))
}
