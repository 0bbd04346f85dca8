package stark

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	starkecdsa "github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const scalarSize = fr.Bytes

// Signer holds the key material of an account and signs transaction hashes.
type Signer interface {
	// PublicKey returns the signer public key as hex
	PublicKey() string

	// Sign signs a transaction hash felt and returns the signature felts
	Sign(ctx context.Context, hash string) ([]string, error)
}

// KeySigner signs with a Stark-curve private key, the scheme validated by Rules accounts.
type KeySigner struct {
	key *starkecdsa.PrivateKey
}

// Ensure *KeySigner implements Signer
var _ Signer = (*KeySigner)(nil)

// NewKeySigner wraps a private key scalar.
func NewKeySigner(scalar *big.Int) (*KeySigner, error) {
	if scalar == nil {
		return nil, fmt.Errorf("signer private key is nil")
	}
	if scalar.Sign() <= 0 || scalar.Cmp(fr.Modulus()) >= 0 {
		return nil, fmt.Errorf("invalid private key: out of stark curve order")
	}

	var pub starkcurve.G1Affine
	pub.ScalarMultiplicationBase(scalar)

	pubBytes := pub.Bytes()
	buf := make([]byte, 0, len(pubBytes)+scalarSize)
	buf = append(buf, pubBytes[:]...)
	buf = append(buf, scalar.FillBytes(make([]byte, scalarSize))...)

	key := new(starkecdsa.PrivateKey)
	if _, err := key.SetBytes(buf); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &KeySigner{key: key}, nil
}

// NewKeySignerFromHex parses a hex private key (with or without 0x prefix).
func NewKeySignerFromHex(privHex string) (*KeySigner, error) {
	scalar, ok := new(big.Int).SetString(strings.TrimPrefix(privHex, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("invalid private key: not hex")
	}

	return NewKeySigner(scalar)
}

// PublicKey is the x coordinate of the public point, the felt stored by the account contract.
func (s *KeySigner) PublicKey() string {
	return hexutil.EncodeBig(s.key.PublicKey.A.X.BigInt(new(big.Int)))
}

// Sign returns [r, s].
func (s *KeySigner) Sign(ctx context.Context, hash string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := ParseFelt(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hash: %w", err)
	}

	digest := f.Bytes()
	sig, err := s.key.Sign(digest[:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	r := new(big.Int).SetBytes(sig[:scalarSize])
	ss := new(big.Int).SetBytes(sig[scalarSize:])

	return []string{hexutil.EncodeBig(r), hexutil.EncodeBig(ss)}, nil
}
