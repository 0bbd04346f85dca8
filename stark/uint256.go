package stark

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var low128Mask = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// Uint256 is a Cairo u256 split into two 128-bit felts.
type Uint256 struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// Calldata returns the u256 as the [low, high] calldata pair.
func (u Uint256) Calldata() []string {
	return []string{u.Low, u.High}
}

func splitUint256(v *uint256.Int) Uint256 {
	low := new(uint256.Int).And(v, low128Mask)
	high := new(uint256.Int).Rsh(v, 128)

	return Uint256{Low: low.Hex(), High: high.Hex()}
}

// SplitUint256 parses a decimal or 0x-prefixed integer and splits it into low/high halves.
func SplitUint256(s string) (Uint256, error) {
	str := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str = str[2:]
		base = 16
	}

	n, ok := new(big.Int).SetString(str, base)
	if !ok || n.Sign() < 0 {
		return Uint256{}, fmt.Errorf("%w: invalid uint256 %q", ErrDecode, s)
	}

	v, overflow := uint256.FromBig(n)
	if overflow {
		return Uint256{}, fmt.Errorf("%w: %q overflows uint256", ErrDecode, s)
	}

	return splitUint256(v), nil
}

// JoinUint256 recombines low/high halves.
func JoinUint256(low, high string) (*big.Int, error) {
	l, err := ParseFelt(low)
	if err != nil {
		return nil, fmt.Errorf("uint256 low: %w", err)
	}

	h, err := ParseFelt(high)
	if err != nil {
		return nil, fmt.Errorf("uint256 high: %w", err)
	}

	n := h.BigInt(new(big.Int))
	n.Lsh(n, 128)

	return n.Add(n, l.BigInt(new(big.Int))), nil
}
