package stark

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TransactionVersion is the invoke transaction version signed by Rules accounts.
const TransactionVersion = "0x1"

var (
	// selectorMask keeps the low 250 bits of a keccak digest
	selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

	invokePrefix = new(felt.Felt).SetBytes([]byte("invoke"))
)

// ParseFelt parses a decimal or 0x-prefixed field element.
func ParseFelt(s string) (*felt.Felt, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty felt", ErrDecode)
	}

	f, err := new(felt.Felt).SetString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid felt %q: %v", ErrDecode, s, err)
	}

	return f, nil
}

// NormalizeFelt returns the canonical 0x-prefixed form of a felt.
func NormalizeFelt(s string) (string, error) {
	f, err := ParseFelt(s)
	if err != nil {
		return "", err
	}

	return f.String(), nil
}

// NormalizeCalldata canonicalises every element of a calldata array.
func NormalizeCalldata(calldata []string) ([]string, error) {
	out := make([]string, len(calldata))
	for i, v := range calldata {
		n, err := NormalizeFelt(v)
		if err != nil {
			return nil, fmt.Errorf("calldata[%d]: %w", i, err)
		}
		out[i] = n
	}

	return out, nil
}

// Selector returns the entry point selector of a function name (sn_keccak).
func Selector(name string) string {
	digest := new(big.Int).SetBytes(gethcrypto.Keccak256([]byte(name)))

	return hexutil.EncodeBig(digest.And(digest, selectorMask))
}

func feltFromInt(n int) string {
	return "0x" + strconv.FormatInt(int64(n), 16)
}

// ExecuteCalldata encodes a call batch into the account's __execute__ calldata:
// [n, (to, selector, offset, len) * n, total, data...]. Call order is preserved.
func ExecuteCalldata(calls []Call) ([]string, error) {
	out := []string{feltFromInt(len(calls))}
	var data []string

	for i, call := range calls {
		to, err := NormalizeFelt(call.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("call[%d] contract address: %w", i, err)
		}

		args, err := NormalizeCalldata(call.Calldata)
		if err != nil {
			return nil, fmt.Errorf("call[%d] %s: %w", i, call.Entrypoint, err)
		}

		out = append(out, to, Selector(call.Entrypoint), feltFromInt(len(data)), feltFromInt(len(args)))
		data = append(data, args...)
	}

	out = append(out, feltFromInt(len(data)))

	return append(out, data...), nil
}

// InvokeHash computes the v1 invoke transaction hash:
// pedersen("invoke", version, sender, 0, pedersen(calldata), max_fee, chain_id, nonce).
func InvokeHash(sender string, calldata []string, maxFee Amount, chainID, nonce string) (string, error) {
	elems := make([]*felt.Felt, 0, len(calldata))
	for i, v := range calldata {
		f, err := ParseFelt(v)
		if err != nil {
			return "", fmt.Errorf("calldata[%d]: %w", i, err)
		}
		elems = append(elems, f)
	}

	fields := map[string]string{
		"version":  TransactionVersion,
		"sender":   sender,
		"max_fee":  maxFee.Hex(),
		"chain_id": chainID,
		"nonce":    nonce,
	}

	parsed := make(map[string]*felt.Felt, len(fields))
	for name, v := range fields {
		f, err := ParseFelt(v)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		parsed[name] = f
	}

	hash := crypto.PedersenArray(
		invokePrefix,
		parsed["version"],
		parsed["sender"],
		new(felt.Felt),
		crypto.PedersenArray(elems...),
		parsed["max_fee"],
		parsed["chain_id"],
		parsed["nonce"],
	)

	return hash.String(), nil
}
