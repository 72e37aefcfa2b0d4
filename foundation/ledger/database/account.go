package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"

	"github.com/trong0x/vanledger/foundation/ledger/signature"
)

// addressPrefix marks every derived account address so addresses are
// distinguishable from raw hashes in stored data.
const addressPrefix = "wallet_"

// saltLength is the number of random bytes mixed into the key derivation
// for each account.
const saltLength = 16

// Account represents information stored in the database for an individual
// account. The balance is in integer minor currency units and the nonce is
// the monotonic counter for transactions this account originates. Callers
// never assign these fields directly, the Database owns all mutation.
type Account struct {
	Name                string    `json:"name"`
	Address             string    `json:"address"`
	PublicKey           string    `json:"public_key"`
	EncryptedPrivateKey string    `json:"encrypted_private_key,omitempty"`
	Salt                string    `json:"salt,omitempty"`
	Balance             uint64    `json:"balance"`
	Nonce               uint64    `json:"nonce"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewAccount generates a fresh signing keypair, derives the account address
// from the public key, and encrypts the private key under the passphrase.
func NewAccount(name string, passphrase string, balance uint64, keyIterations int) (Account, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("generate key: %w", err)
	}

	publicKey := signature.PublicKeyString(privateKey.PublicKey)

	encKey, salt, err := encryptPrivateKey(privateKey, passphrase, keyIterations)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		Name:                name,
		Address:             DeriveAddress(publicKey),
		PublicKey:           publicKey,
		EncryptedPrivateKey: encKey,
		Salt:                salt,
		Balance:             balance,
		CreatedAt:           time.Now().UTC(),
	}

	return account, nil
}

// Public returns a redacted copy of the account with the key material
// removed. This is the only form public-facing queries may return.
func (a Account) Public() Account {
	a.EncryptedPrivateKey = ""
	a.Salt = ""
	return a
}

// PrivateKey decrypts the account's signing key using the passphrase. Any
// authentication failure is reported as ErrBadPassphrase.
func (a Account) PrivateKey(passphrase string, keyIterations int) (*ecdsa.PrivateKey, error) {
	salt, err := hex.DecodeString(a.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	sealed, err := hex.DecodeString(a.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted key: %w", err)
	}

	gcm, err := keyCipher(passphrase, salt, keyIterations)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, ErrBadPassphrase
	}

	keyBytes, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, ErrBadPassphrase
	}

	return privateKey, nil
}

// =============================================================================

// DeriveAddress produces the stable public address for a hex encoded
// public key.
func DeriveAddress(publicKeyHex string) string {
	hash := sha256.Sum256([]byte(publicKeyHex))
	return addressPrefix + hex.EncodeToString(hash[:])[:16]
}

// =============================================================================

// encryptPrivateKey seals the private key bytes with AES-GCM under a key
// derived from the passphrase and a fresh random salt.
func encryptPrivateKey(privateKey *ecdsa.PrivateKey, passphrase string, keyIterations int) (encKey string, saltHex string, err error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := keyCipher(passphrase, salt, keyIterations)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, crypto.FromECDSA(privateKey), nil)

	return hex.EncodeToString(sealed), hex.EncodeToString(salt), nil
}

// keyCipher derives the symmetric key for the passphrase and salt with a
// slow KDF and wraps it in an authenticated cipher.
func keyCipher(passphrase string, salt []byte, keyIterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, keyIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	return gcm, nil
}
