package stark

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Provider is the chain provider boundary. Wire values are 0x-prefixed felts.
type Provider interface {
	// ChainID returns the chain id felt, e.g. 0x534e5f4d41494e for SN_MAIN
	ChainID(ctx context.Context) (string, error)

	// Nonce returns the current nonce of an account
	Nonce(ctx context.Context, address string) (string, error)

	// EstimateFee dry-runs a signed invoke transaction
	EstimateFee(ctx context.Context, tx *InvokeTransaction) (*FeeEstimate, error)

	// AddInvokeTransaction submits a signed invoke transaction
	AddInvokeTransaction(ctx context.Context, tx *InvokeTransaction) (*InvokeResponse, error)

	// Call runs a read-only contract call against the latest block
	Call(ctx context.Context, call Call) ([]string, error)

	// IsDeployed reports whether a contract exists at address
	IsDeployed(ctx context.Context, address string) (bool, error)

	// TransactionStatus returns the finality and execution status of a transaction
	TransactionStatus(ctx context.Context, hash string) (*TransactionStatus, error)

	// Close closes the provider connection
	Close()
}

// InvokeTransaction is a broadcasted v1 invoke transaction.
type InvokeTransaction struct {
	Type          string   `json:"type"`
	SenderAddress string   `json:"sender_address"`
	Calldata      []string `json:"calldata"`
	MaxFee        string   `json:"max_fee"`
	Version       string   `json:"version"`
	Signature     []string `json:"signature"`
	Nonce         string   `json:"nonce"`
}

// FeeEstimate is the raw provider fee estimation.
type FeeEstimate struct {
	GasConsumed string `json:"gas_consumed"`
	GasPrice    string `json:"gas_price"`
	OverallFee  string `json:"overall_fee"`
}

type functionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

type invokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

const (
	blockPending = "pending"
	blockLatest  = "latest"

	// contractNotFoundCode is the Starknet JSON-RPC CONTRACT_NOT_FOUND error code
	contractNotFoundCode = 20
)

// RPCClient is the subset of *rpc.Client used by RPCProvider.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Ensure *rpc.Client implements RPCClient
var _ RPCClient = (*rpc.Client)(nil)

// Ensure *RPCProvider implements Provider
var _ Provider = (*RPCProvider)(nil)

// RPCProvider talks to a Starknet JSON-RPC node.
type RPCProvider struct {
	client RPCClient
	log    logrus.FieldLogger
}

// NewRPCProvider dials a Starknet JSON-RPC endpoint.
// HTTP_PROXY and HTTPS_PROXY environment variables are honored by the HTTP transport.
func NewRPCProvider(ctx context.Context, url string, log logrus.FieldLogger) (*RPCProvider, error) {
	if url == "" {
		return nil, fmt.Errorf("provider url is not set")
	}

	log = log.WithField("component", "stark_provider")
	log.WithField("url", url).Info("Connecting to Starknet RPC")

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Starknet network: %w", err)
	}

	return NewRPCProviderWithClient(client, log), nil
}

// NewRPCProviderWithClient wraps an existing JSON-RPC client.
func NewRPCProviderWithClient(client RPCClient, log logrus.FieldLogger) *RPCProvider {
	return &RPCProvider{client: client, log: log}
}

func (p *RPCProvider) ChainID(ctx context.Context) (string, error) {
	var chainID string
	if err := p.client.CallContext(ctx, &chainID, "starknet_chainId"); err != nil {
		return "", fmt.Errorf("failed to get chain ID: %w", err)
	}

	return chainID, nil
}

func (p *RPCProvider) Nonce(ctx context.Context, address string) (string, error) {
	var nonce string
	if err := p.client.CallContext(ctx, &nonce, "starknet_getNonce", blockPending, address); err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	return nonce, nil
}

func (p *RPCProvider) EstimateFee(ctx context.Context, tx *InvokeTransaction) (*FeeEstimate, error) {
	var estimates []FeeEstimate
	if err := p.client.CallContext(ctx, &estimates, "starknet_estimateFee", []*InvokeTransaction{tx}, blockPending); err != nil {
		return nil, fmt.Errorf("failed to estimate fee: %w", err)
	}

	if len(estimates) == 0 {
		return nil, fmt.Errorf("%w: empty fee estimation", ErrDecode)
	}

	return &estimates[0], nil
}

func (p *RPCProvider) AddInvokeTransaction(ctx context.Context, tx *InvokeTransaction) (*InvokeResponse, error) {
	p.log.WithFields(logrus.Fields{
		"sender": tx.SenderAddress,
		"nonce":  tx.Nonce,
	}).Info("Sending invoke transaction to network")

	var res invokeResult
	if err := p.client.CallContext(ctx, &res, "starknet_addInvokeTransaction", tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.log.WithField("hash", res.TransactionHash).Info("Transaction sent successfully")

	return &InvokeResponse{TransactionHash: res.TransactionHash}, nil
}

func (p *RPCProvider) Call(ctx context.Context, call Call) ([]string, error) {
	calldata, err := NormalizeCalldata(call.Calldata)
	if err != nil {
		return nil, err
	}

	req := functionCall{
		ContractAddress:    call.ContractAddress,
		EntryPointSelector: Selector(call.Entrypoint),
		Calldata:           calldata,
	}

	var out []string
	if err := p.client.CallContext(ctx, &out, "starknet_call", req, blockLatest); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call.Entrypoint, err)
	}

	return out, nil
}

func (p *RPCProvider) IsDeployed(ctx context.Context, address string) (bool, error) {
	var classHash string
	err := p.client.CallContext(ctx, &classHash, "starknet_getClassHashAt", blockLatest, address)
	if err == nil {
		return classHash != "", nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == contractNotFoundCode {
		return false, nil
	}

	return false, fmt.Errorf("failed to get class hash: %w", err)
}

func (p *RPCProvider) TransactionStatus(ctx context.Context, hash string) (*TransactionStatus, error) {
	status := &TransactionStatus{}
	if err := p.client.CallContext(ctx, status, "starknet_getTransactionStatus", hash); err != nil {
		return nil, fmt.Errorf("transaction not found or pending: %w", err)
	}

	if status.FinalityStatus == "" {
		return nil, fmt.Errorf("%w: missing finality status for %s", ErrDecode, hash)
	}

	status.Hash = hash

	return status, nil
}

// Close closes the JSON-RPC connection
func (p *RPCProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
