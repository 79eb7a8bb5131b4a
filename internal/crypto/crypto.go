// Package crypto provides the secp256k1 BIP-340 Schnorr primitives used to
// sign and verify events, plus hex keypair files on disk. Malformed key or
// signature material is data, not a programming error: Verify resolves every
// decode failure to false.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/chorus-relay/chorus/internal/event"
)

// GenerateKeypair returns a fresh secp256k1 private key.
func GenerateKeypair() (*btcec.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return priv, nil
}

// PubKeyHex returns the lowercase hex x-only public key for priv, the value
// that goes in an event's pubkey field.
func PubKeyHex(priv *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
}

// Sign produces the hex Schnorr signature over the event's id digest. The id
// must already be set to the canonical digest (see event.ComputeID).
func Sign(ev *event.Event, priv *btcec.PrivateKey) (string, error) {
	digest, err := hex.DecodeString(ev.ID)
	if err != nil {
		return "", fmt.Errorf("sign: id is not hex: %w", err)
	}
	if len(digest) != 32 {
		return "", fmt.Errorf("sign: id is %d bytes, need 32", len(digest))
	}
	sig, err := schnorr.Sign(priv, digest)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify reports whether the event's sig is a valid Schnorr signature over
// its id digest under its pubkey. Any malformed hex, wrong length, or
// invalid curve point yields false.
func Verify(ev *event.Event) bool {
	digest, err := hex.DecodeString(ev.ID)
	if err != nil || len(digest) != 32 {
		return false
	}
	pubBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(pubBytes) != schnorr.PubKeyBytesLen {
		return false
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub)
}

// SaveKeypair writes priv.hex and pub.hex into dir.
func SaveKeypair(dir string, priv *btcec.PrivateKey) error {
	if priv == nil {
		return errors.New("empty key")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	privHex := hex.EncodeToString(priv.Serialize())
	if err := os.WriteFile(filepath.Join(dir, "priv.hex"), []byte(privHex), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "pub.hex"), []byte(PubKeyHex(priv)), 0600)
}

// LoadKeypair reads a private key previously written by SaveKeypair.
func LoadKeypair(dir string) (*btcec.PrivateKey, error) {
	privHex, err := os.ReadFile(filepath.Join(dir, "priv.hex"))
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(string(privHex))
	if err != nil {
		return nil, fmt.Errorf("bad priv.hex")
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("bad priv.hex length")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}
