// Package marketplace builds the contract calls of marketplace operations.
package marketplace

import (
	"fmt"

	"github.com/nando-os/ghost-stark/stark"
)

// Network is a supported Starknet network.
type Network string

const (
	Mainnet Network = "mainnet"
	Goerli  Network = "goerli"
)

// Starknet chain ids.
const (
	ChainIDMainnet = "0x534e5f4d41494e"
	ChainIDGoerli  = "0x534e5f474f45524c49"
)

// Addresses are the contracts of a network.
type Addresses struct {
	ETH         string
	Marketplace string
	RulesTokens string
	L2StarkGate string
	L2Multicall string
	PacksOpener string
	L1StarkGate string
	L1Multicall string
}

var addresses = map[Network]Addresses{
	Goerli: {
		ETH:         stark.ETHTokenAddress,
		Marketplace: "0x16a025e8c1f35f42e841cd8bff56f22ce706173cd044fffafdef5a355335219",
		RulesTokens: "0x7fa3f31baeba9ba94778e40c716486280023e89ae296b88d699337da08c682d",
		L2StarkGate: "0x73314940630fd6dcda0d772d4c972c4e0a9946bef9dabf4ef84eda8ef542b82",
		L2Multicall: "0x042a12c5a641619a6c58e623d5735273cdfb0e13df72c4bacb4e188892034bd6",
		PacksOpener: "0x2ab650f7b211fc81e592e2e82310009f30105321c71273f381cf177bda2b4e1",
		L1StarkGate: "0xc3511006C04EF1d78af4C8E0e74Ec18A6E64Ff9e",
		L1Multicall: "0x77dca2c955b15e9de4dbbcf1246b4b85b651e50e",
	},
	Mainnet: {
		ETH:         stark.ETHTokenAddress,
		Marketplace: "0x63a4b3b0122cdaa6ba244739add94aed1d31e3330458cda833a8d119f28cbe8",
		RulesTokens: "0x046bfa580e4fa55a38eaa7f51a3469f86b336eed59a6136a07b7adcd095b0eb2",
		L2StarkGate: "0x73314940630fd6dcda0d772d4c972c4e0a9946bef9dabf4ef84eda8ef542b82",
		L2Multicall: "0x0740a7a14618bb7e4688d10059bc42104d22c315bb647130630c77d3b6d3ee50",
		PacksOpener: "0x27fb5a7be4707e2b1fe653e7296ad30114596fafdd3fbc3f9b92a0551ff18ec",
		L1StarkGate: "0xae0Ee0A63A2cE6BaeEFFE56e7714FB4EFE48D419",
		L1Multicall: "0xeefba1e63905ef1d7acba5a8513c70307c1ce441",
	},
}

// AddressesFor returns the contracts of network.
func AddressesFor(network Network) (Addresses, error) {
	a, ok := addresses[network]
	if !ok {
		return Addresses{}, fmt.Errorf("unsupported network %q", network)
	}

	return a, nil
}

// ChainID returns the chain id of network.
func (n Network) ChainID() (string, error) {
	switch n {
	case Mainnet:
		return ChainIDMainnet, nil
	case Goerli:
		return ChainIDGoerli, nil
	}

	return "", fmt.Errorf("unsupported network %q", n)
}

// NetworkForChainID maps a chain id reported by a provider to its network.
func NetworkForChainID(chainID string) (Network, error) {
	normalized, err := stark.NormalizeFelt(chainID)
	if err != nil {
		return "", err
	}

	switch normalized {
	case ChainIDMainnet:
		return Mainnet, nil
	case ChainIDGoerli:
		return Goerli, nil
	}

	return "", fmt.Errorf("unsupported chain id %s", chainID)
}
