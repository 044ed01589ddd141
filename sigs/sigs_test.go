package sigs

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := []byte(`{"cid":"c1","txid":1,"balances":[40,60]}`)
	sig, err := Sign(priv, msg)
	require.NoError(t, err)

	v := Secp256k1{}
	require.True(t, VerifyHex(v, msg, sig, PublicKeyHex(priv)))
	require.False(t, VerifyHex(v, msg, sig, PublicKeyHex(other)), "wrong key must not verify")
	require.False(t, VerifyHex(v, []byte("tampered"), sig, PublicKeyHex(priv)), "wrong message must not verify")
	require.False(t, VerifyHex(v, msg, "zz", PublicKeyHex(priv)), "malformed hex must not verify")
	require.False(t, VerifyHex(v, msg, sig, "00"), "malformed key must not verify")
}

func TestVerifyAcceptsEthereumRecoveryID(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := []byte("record digest")

	sigHex, err := Sign(priv, msg)
	require.NoError(t, err)
	sig, err := hex.DecodeString(sigHex)
	require.NoError(t, err)
	sig[recoveryIDIndex] += 27

	require.True(t, Secp256k1{}.Verify(msg, sig, PublicKeyHex(priv)))
}

func TestParsePublicKeyUncompressed(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	uncompressed := hex.EncodeToString(crypto.FromECDSAPub(&priv.PublicKey))
	pub, err := ParsePublicKey(uncompressed)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(priv.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestHashHex(t *testing.T) {
	// sha256("s")
	require.Equal(t, "043a718774c572bd8a25adbeb1bfcd5c0256ae11cecf9f9c3f925d0e52beaf89", HashHex([]byte("s")))
}
