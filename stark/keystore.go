package stark

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptN     = 1 << 15
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = 32
	saltSize    = 32
)

// EncryptedKey is the server-stored, password-encrypted private key of a wallet.
type EncryptedKey struct {
	Salt                string `json:"salt"`
	IV                  string `json:"iv"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// EncryptPrivateKey encrypts a private key scalar with a password.
func EncryptPrivateKey(key *big.Int, password string) (*EncryptedKey, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if key.Sign() <= 0 || key.BitLen() > scalarSize*8 {
		return nil, fmt.Errorf("invalid private key: out of range")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	derived, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(derived)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, iv, key.FillBytes(make([]byte, scalarSize)), nil)

	return &EncryptedKey{
		Salt:                hexutil.Encode(salt),
		IV:                  hexutil.Encode(iv),
		EncryptedPrivateKey: hexutil.Encode(ciphertext),
	}, nil
}

// DecryptPrivateKey recovers the private key of an encrypted key record.
func DecryptPrivateKey(k *EncryptedKey, password string) (*big.Int, error) {
	if k == nil {
		return nil, fmt.Errorf("no private key found on current user")
	}

	salt, err := hexutil.Decode(k.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrDecode, err)
	}

	iv, err := hexutil.Decode(k.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrDecode, err)
	}

	ciphertext, err := hexutil.Decode(k.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted private key: %v", ErrDecode, err)
	}

	derived, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(derived)
	if err != nil {
		return nil, err
	}

	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrDecode, gcm.NonceSize())
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: wrong password or corrupted key")
	}

	if len(plaintext) != scalarSize {
		return nil, fmt.Errorf("invalid private key: %d bytes", len(plaintext))
	}

	return new(big.Int).SetBytes(plaintext), nil
}
