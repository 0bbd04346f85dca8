package marketplace

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nando-os/ghost-stark/stark"
)

const (
	starkGateABI = `[{"type":"function","name":"withdraw","inputs":[{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]}]`

	multicallABI = `[{"type":"function","name":"aggregate","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"blockNumber","type":"uint256"},{"name":"returnData","type":"bytes[]"}]}]`
)

var (
	starkGate = mustParseABI(starkGateABI)
	multicall = mustParseABI(multicallABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return parsed
}

// Withdrawal is a finalized L2 to L1 withdrawal claimable on the L1 bridge.
type Withdrawal struct {
	Amount      stark.Amount
	L1Recipient string
}

// L1Transaction is an Ethereum transaction submitted by the user's L1 wallet.
type L1Transaction struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type multicallCall struct {
	Target   common.Address
	CallData []byte
}

// RetrieveEthers builds the L1 multicall claiming every withdrawal from StarkGate in one
// transaction. Order is preserved.
func (b *Builder) RetrieveEthers(withdrawals []Withdrawal) (L1Transaction, error) {
	if len(withdrawals) == 0 {
		return L1Transaction{}, fmt.Errorf("no ethers to retrieve")
	}

	gate := common.HexToAddress(b.addrs.L1StarkGate)
	calls := make([]multicallCall, 0, len(withdrawals))

	for i, w := range withdrawals {
		if !common.IsHexAddress(w.L1Recipient) {
			return L1Transaction{}, fmt.Errorf("withdrawal %d: invalid L1 recipient %q", i, w.L1Recipient)
		}
		if w.Amount.IsZero() {
			return L1Transaction{}, fmt.Errorf("withdrawal %d: %w: zero amount", i, stark.ErrInvalidAmount)
		}

		data, err := starkGate.Pack("withdraw", w.Amount.Raw(), common.HexToAddress(w.L1Recipient))
		if err != nil {
			return L1Transaction{}, fmt.Errorf("withdrawal %d: %w", i, err)
		}

		calls = append(calls, multicallCall{Target: gate, CallData: data})
	}

	data, err := multicall.Pack("aggregate", calls)
	if err != nil {
		return L1Transaction{}, fmt.Errorf("failed to encode multicall: %w", err)
	}

	return L1Transaction{
		To:   common.HexToAddress(b.addrs.L1Multicall).Hex(),
		Data: hexutil.Encode(data),
	}, nil
}
