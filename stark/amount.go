package stark

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Denomination is a named unit with its number of decimals relative to wei.
type Denomination struct {
	Name     string
	Decimals int
}

var (
	Wei   = Denomination{Name: "wei", Decimals: 0}
	Gwei  = Denomination{Name: "gwei", Decimals: 9}
	Ether = Denomination{Name: "ether", Decimals: 18}
)

// Amount is a non-negative arbitrary-precision quantity of wei.
// The zero value is a valid zero amount. Amounts are immutable.
type Amount struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = Amount{}

var bigZero = new(big.Int)

func newAmount(v *big.Int) Amount {
	if v == nil || v.Sign() <= 0 {
		return Zero
	}

	return Amount{v: v}
}

// NewAmount copies a wei quantity into an Amount. Negative values fail.
func NewAmount(wei *big.Int) (Amount, error) {
	if wei == nil {
		return Zero, nil
	}

	if wei.Sign() < 0 {
		return Zero, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, wei.String())
	}

	return newAmount(new(big.Int).Set(wei)), nil
}

func unitOf(unit []Denomination, fallback Denomination) Denomination {
	if len(unit) > 0 {
		return unit[0]
	}

	return fallback
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FromRawAmount parses an integer quantity expressed in unit (wei by default).
// Both decimal and 0x-prefixed hexadecimal integers are accepted.
func FromRawAmount(raw string, unit ...Denomination) (Amount, error) {
	u := unitOf(unit, Wei)

	s := strings.TrimSpace(raw)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	if s == "" {
		return Zero, fmt.Errorf("%w: empty raw amount %q", ErrInvalidAmount, raw)
	}

	for _, r := range s {
		if !isDigit(r, base) {
			return Zero, fmt.Errorf("%w: invalid character %q in raw amount %q", ErrInvalidAmount, r, raw)
		}
	}

	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return Zero, fmt.Errorf("%w: cannot parse raw amount %q", ErrInvalidAmount, raw)
	}

	if u.Decimals > 0 {
		n.Mul(n, pow10(u.Decimals))
	}

	return newAmount(n), nil
}

// MustRawAmount is FromRawAmount for protocol constants. It panics on malformed input.
func MustRawAmount(raw string, unit ...Denomination) Amount {
	a, err := FromRawAmount(raw, unit...)
	if err != nil {
		panic(err)
	}

	return a
}

// FromDecimalAmount parses a human-entered decimal string expressed in unit (ether by default).
// Input with more than one separator, non-digit characters, or more fractional digits than
// the unit supports is rejected rather than truncated.
func FromDecimalAmount(s string, unit ...Denomination) (Amount, error) {
	u := unitOf(unit, Ether)

	if s == "" {
		return Zero, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}

	if strings.Count(s, ".") > 1 {
		return Zero, fmt.Errorf("%w: %q has more than one decimal separator", ErrInvalidAmount, s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Zero, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, s)
	}

	for _, r := range whole + frac {
		if !isDigit(r, 10) {
			return Zero, fmt.Errorf("%w: invalid character %q in %q", ErrInvalidAmount, r, s)
		}
	}

	if len(frac) > u.Decimals {
		return Zero, fmt.Errorf("%w: %q exceeds %d decimals of %s", ErrInvalidAmount, s, u.Decimals, u.Name)
	}

	digits := whole + frac + strings.Repeat("0", u.Decimals-len(frac))

	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Zero, fmt.Errorf("%w: cannot parse %q", ErrInvalidAmount, s)
	}

	return newAmount(n), nil
}

func isDigit(r rune, base int) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case base == 16 && r >= 'a' && r <= 'f':
		return true
	case base == 16 && r >= 'A' && r <= 'F':
		return true
	}

	return false
}

func (a Amount) raw() *big.Int {
	if a.v == nil {
		return bigZero
	}

	return a.v
}

// Raw returns a copy of the wei quantity.
func (a Amount) Raw() *big.Int {
	return new(big.Int).Set(a.raw())
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw().Sign() == 0
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return newAmount(new(big.Int).Add(a.raw(), b.raw()))
}

// Sub returns a - b, floored at zero.
func (a Amount) Sub(b Amount) Amount {
	return newAmount(new(big.Int).Sub(a.raw(), b.raw()))
}

// Multiply returns a * scalar. A nil or negative scalar yields Zero.
func (a Amount) Multiply(scalar *big.Int) Amount {
	if scalar == nil {
		return Zero
	}

	return newAmount(new(big.Int).Mul(a.raw(), scalar))
}

// MulRatio returns a * num / den rounded down. den must be positive.
func (a Amount) MulRatio(num, den int64) Amount {
	if den <= 0 {
		panic("stark: MulRatio with non-positive denominator")
	}

	n := new(big.Int).Mul(a.raw(), big.NewInt(num))

	return newAmount(n.Quo(n, big.NewInt(den)))
}

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int {
	return a.raw().Cmp(b.raw())
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.Cmp(b) < 0
}

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

func (a Amount) ether() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw(), -int32(Ether.Decimals))
}

// ToSignificant renders the amount in ether with at most maxDigits significant digits,
// rounding half away from zero and trimming trailing zeros.
func (a Amount) ToSignificant(maxDigits int) string {
	if a.IsZero() {
		return "0"
	}

	if maxDigits < 1 {
		maxDigits = 1
	}

	intDigits := len(a.raw().String()) - Ether.Decimals
	places := int32(maxDigits - intDigits)

	return a.ether().Round(places).String()
}

// ToFixed renders the amount in ether with exactly decimals fractional digits.
func (a Amount) ToFixed(decimals int) string {
	return a.ether().StringFixed(int32(decimals))
}

// ToFiat converts the amount with an ether price and renders it with 2 decimals.
func (a Amount) ToFiat(rate decimal.Decimal) string {
	return a.ether().Mul(rate).StringFixed(2)
}

// String returns the wei quantity in base 10.
func (a Amount) String() string {
	return a.raw().String()
}

// Hex returns the wei quantity as a 0x-prefixed felt.
func (a Amount) Hex() string {
	return hexutil.EncodeBig(a.raw())
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: amount must be a string: %v", ErrInvalidAmount, err)
	}

	parsed, err := FromRawAmount(s)
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}
