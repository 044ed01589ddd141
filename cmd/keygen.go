package main

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"bridge-project/sigs"
)

// keygenCmd prints a fresh secp256k1 key pair for a participant or relayer.
// The public key is what PUT /accounts/{account}/public-key expects.
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private key: %s\n", hex.EncodeToString(crypto.FromECDSA(priv)))
			fmt.Fprintf(out, "public key:  %s\n", sigs.PublicKeyHex(priv))
			fmt.Fprintf(out, "address:     %s\n", crypto.PubkeyToAddress(priv.PublicKey).Hex())
			return nil
		},
	}
}
