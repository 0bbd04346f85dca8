package marketplace

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nando-os/ghost-stark/stark"
)

// Builder builds the calls of marketplace operations on a network.
type Builder struct {
	addrs Addresses
}

// NewBuilder returns a builder for network.
func NewBuilder(network Network) (*Builder, error) {
	addrs, err := AddressesFor(network)
	if err != nil {
		return nil, err
	}

	return &Builder{addrs: addrs}, nil
}

// Addresses returns the contracts the builder targets.
func (b *Builder) Addresses() Addresses {
	return b.addrs
}

func uint256Of(a stark.Amount) (stark.Uint256, error) {
	return stark.SplitUint256(a.String())
}

func tokenIDOf(tokenID string) (stark.Uint256, error) {
	u, err := stark.SplitUint256(tokenID)
	if err != nil {
		return stark.Uint256{}, fmt.Errorf("invalid token id: %w", err)
	}

	return u, nil
}

// IncreaseAllowance lets spender move amount of ETH on behalf of the account.
func (b *Builder) IncreaseAllowance(spender string, amount stark.Amount) (stark.Call, error) {
	if spender == "" {
		return stark.Call{}, fmt.Errorf("allowance spender is not set")
	}

	u, err := uint256Of(amount)
	if err != nil {
		return stark.Call{}, err
	}

	return stark.Call{
		ContractAddress: b.addrs.ETH,
		Entrypoint:      "increaseAllowance",
		Calldata:        append([]string{spender}, u.Calldata()...),
	}, nil
}

// AcceptOffers buys the cards of tokenIDs for price, the total of the offers. The
// allowance to the marketplace comes first.
func (b *Builder) AcceptOffers(price stark.Amount, tokenIDs ...string) ([]stark.Call, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("no offer to accept")
	}

	if price.IsZero() {
		return nil, fmt.Errorf("%w: offer price must be positive", stark.ErrInvalidAmount)
	}

	allowance, err := b.IncreaseAllowance(b.addrs.Marketplace, price)
	if err != nil {
		return nil, err
	}

	calls := []stark.Call{allowance}
	for _, id := range tokenIDs {
		u, err := tokenIDOf(id)
		if err != nil {
			return nil, err
		}

		calls = append(calls, stark.Call{
			ContractAddress: b.addrs.Marketplace,
			Entrypoint:      "acceptOffer",
			Calldata:        u.Calldata(),
		})
	}

	return calls, nil
}

// CreateOffer puts a card on sale for price.
func (b *Builder) CreateOffer(tokenID string, price stark.Amount) (stark.Call, error) {
	u, err := tokenIDOf(tokenID)
	if err != nil {
		return stark.Call{}, err
	}

	if price.IsZero() {
		return stark.Call{}, fmt.Errorf("%w: offer price must be positive", stark.ErrInvalidAmount)
	}

	return stark.Call{
		ContractAddress: b.addrs.Marketplace,
		Entrypoint:      "createOffer",
		Calldata:        append(u.Calldata(), price.Hex()),
	}, nil
}

// CancelOffer removes a card from sale.
func (b *Builder) CancelOffer(tokenID string) (stark.Call, error) {
	u, err := tokenIDOf(tokenID)
	if err != nil {
		return stark.Call{}, err
	}

	return stark.Call{
		ContractAddress: b.addrs.Marketplace,
		Entrypoint:      "cancelOffer",
		Calldata:        u.Calldata(),
	}, nil
}

// TransferCard moves quantity cards of tokenID from one account to another.
func (b *Builder) TransferCard(from, to, tokenID string, quantity uint64) (stark.Call, error) {
	if from == "" || to == "" {
		return stark.Call{}, fmt.Errorf("transfer sender and recipient must be set")
	}

	if quantity == 0 {
		return stark.Call{}, fmt.Errorf("%w: transfer quantity must be positive", stark.ErrInvalidAmount)
	}

	u, err := tokenIDOf(tokenID)
	if err != nil {
		return stark.Call{}, err
	}

	amount, err := stark.SplitUint256(strconv.FormatUint(quantity, 10))
	if err != nil {
		return stark.Call{}, err
	}

	calldata := []string{from, to}
	calldata = append(calldata, u.Calldata()...)
	calldata = append(calldata, amount.Calldata()...)
	calldata = append(calldata, "0x0") // data_len

	return stark.Call{
		ContractAddress: b.addrs.RulesTokens,
		Entrypoint:      "safeTransferFrom",
		Calldata:        calldata,
	}, nil
}

// InitiateWithdraw bridges amount of ETH to l1Recipient through StarkGate.
func (b *Builder) InitiateWithdraw(l1Recipient string, amount stark.Amount) (stark.Call, error) {
	if !common.IsHexAddress(l1Recipient) {
		return stark.Call{}, fmt.Errorf("invalid L1 recipient %q", l1Recipient)
	}

	if amount.IsZero() {
		return stark.Call{}, fmt.Errorf("%w: withdraw amount must be positive", stark.ErrInvalidAmount)
	}

	u, err := uint256Of(amount)
	if err != nil {
		return stark.Call{}, err
	}

	return stark.Call{
		ContractAddress: b.addrs.L2StarkGate,
		Entrypoint:      "initiate_withdraw",
		Calldata:        append([]string{common.HexToAddress(l1Recipient).Hex()}, u.Calldata()...),
	}, nil
}
