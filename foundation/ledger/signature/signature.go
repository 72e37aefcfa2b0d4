// Package signature provides support for producing and checking the
// canonical transaction signature.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature does not match the
// canonical payload and the signer's public key.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// Payload is the exact field set a transaction signature covers. The fields
// are declared in lexicographic json-key order so the marshaled form is the
// sorted, deterministic encoding both signing and verification depend on.
// Change this struct and every existing signature breaks.
type Payload struct {
	Amount      uint64 `json:"amount"`
	From        string `json:"from"`
	FromAddress string `json:"from_address"`
	ID          string `json:"id"`
	Nonce       uint64 `json:"nonce"`
	Timestamp   int64  `json:"timestamp"`
	To          string `json:"to"`
	ToAddress   string `json:"to_address"`
}

// Digest produces the 32 byte digest of the canonical payload encoding.
func Digest(payload Payload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	digest := sha256.Sum256(data)
	return digest[:], nil
}

// Sign signs the canonical payload with the specified private key and
// returns the hex encoded signature.
func Sign(payload Payload, privateKey *ecdsa.PrivateKey) (string, error) {
	digest, err := Digest(payload)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}

	return hexutil.Encode(sig), nil
}

// Verify checks the hex encoded signature covers the canonical payload and
// was produced by the private key behind the specified public key.
func Verify(payload Payload, publicKeyHex string, signatureHex string) error {
	digest, err := Digest(payload)
	if err != nil {
		return err
	}

	publicKey, err := hexutil.Decode(publicKeyHex)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}

	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	if len(sig) < crypto.RecoveryIDOffset {
		return ErrInvalidSignature
	}

	// The recovery id is not part of the curve check.
	if !crypto.VerifySignature(publicKey, digest, sig[:crypto.RecoveryIDOffset]) {
		return ErrInvalidSignature
	}

	return nil
}

// =============================================================================

// Hash returns a hex encoded sha256 hash for the value. This keeps a data
// length consistency for everything the chain hashes.
func Hash(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// PublicKeyString returns the hex encoding for the public key.
func PublicKeyString(publicKey ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.FromECDSAPub(&publicKey))
}
