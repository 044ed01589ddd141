// Package sigs provides the signature and hash capabilities the state
// machines consume: secp256k1 recoverable signatures over sha256 digests for
// balance proofs and relayer approvals, and the hex sha256 used for HTLC
// secret hashes.
package sigs

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// SignatureLength is the expected length of an ECDSA signature (r||s||v)
	SignatureLength = 65
	// recoveryIDIndex is the byte position of the recovery ID (v) in the signature
	recoveryIDIndex = 64
)

// Verifier checks that signature is publicKeyHex's signature over message.
type Verifier interface {
	Verify(message, signature []byte, publicKeyHex string) bool
}

// Secp256k1 verifies 65-byte recoverable signatures over sha256(message).
type Secp256k1 struct{}

var _ Verifier = Secp256k1{}

func (Secp256k1) Verify(message, signature []byte, publicKeyHex string) bool {
	if len(signature) != SignatureLength {
		return false
	}
	expected, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	recovered, err := crypto.SigToPub(digest[:], normalizeSignature(signature))
	if err != nil || recovered == nil {
		return false
	}
	return crypto.PubkeyToAddress(*recovered) == crypto.PubkeyToAddress(*expected)
}

// VerifyHex is Verify for a hex-encoded signature; malformed hex never verifies.
func VerifyHex(v Verifier, message []byte, signatureHex, publicKeyHex string) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return false
	}
	return v.Verify(message, sig, publicKeyHex)
}

// ParsePublicKey accepts a compressed (33 byte) or uncompressed (65 byte) hex public key.
func ParsePublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	switch len(raw) {
	case 33:
		return crypto.DecompressPubkey(raw)
	case 65:
		return crypto.UnmarshalPubkey(raw)
	default:
		return nil, fmt.Errorf("public key has invalid length %d", len(raw))
	}
}

// Sign signs sha256(message) and returns the hex signature.
func Sign(priv *ecdsa.PrivateKey, message []byte) (string, error) {
	digest := sha256.Sum256(message)
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// PublicKeyHex returns the compressed hex encoding of priv's public key.
func PublicKeyHex(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.CompressPubkey(&priv.PublicKey))
}

// HashHex returns the hex sha256 digest of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalizeSignature converts the recovery ID (v) from Ethereum format (27/28)
// to raw format (0/1), which crypto.SigToPub expects.
func normalizeSignature(sig []byte) []byte {
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)

	switch normalized[recoveryIDIndex] {
	case 27:
		normalized[recoveryIDIndex] = 0
	case 28:
		normalized[recoveryIDIndex] = 1
	}
	return normalized
}
