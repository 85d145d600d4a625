package btcvault

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// GenerateKeyPair creates a fresh secp256k1 key pair and returns the
// (private, public) hex encodings, the public key compressed. Used
// only to populate demo key material at vault creation.
func GenerateKeyPair() (string, string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	return hex.EncodeToString(priv.Serialize()),
		hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		nil
}
