package stark

import (
	"context"
	"fmt"
)

// ETHTokenAddress is the L2 ETH ERC20 contract, identical on mainnet and goerli.
const ETHTokenAddress = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"

// BalanceOf returns the ERC20 balance of owner on token.
func BalanceOf(ctx context.Context, provider Provider, token, owner string) (Amount, error) {
	out, err := provider.Call(ctx, Call{
		ContractAddress: token,
		Entrypoint:      "balanceOf",
		Calldata:        []string{owner},
	})
	if err != nil {
		return Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	if len(out) < 2 {
		return Zero, fmt.Errorf("%w: balanceOf returned %d felts, want 2", ErrDecode, len(out))
	}

	n, err := JoinUint256(out[0], out[1])
	if err != nil {
		return Zero, err
	}

	return NewAmount(n)
}
