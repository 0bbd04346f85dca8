package stark

// Call is a single contract invocation. Order inside a batch is significant.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// Clone returns a deep copy of the call.
func (c Call) Clone() Call {
	data := make([]string, len(c.Calldata))
	copy(data, c.Calldata)

	return Call{ContractAddress: c.ContractAddress, Entrypoint: c.Entrypoint, Calldata: data}
}

// CloneCalls deep-copies a batch, preserving order.
func CloneCalls(calls []Call) []Call {
	if calls == nil {
		return nil
	}

	out := make([]Call, len(calls))
	for i, c := range calls {
		out[i] = c.Clone()
	}

	return out
}

// NetworkFee is the user-facing fee cap and the provider's overall estimate.
type NetworkFee struct {
	MaxFee Amount `json:"maxFee"`
	Fee    Amount `json:"fee"`
}

// Valid reports whether both fees are strictly positive.
func (f NetworkFee) Valid() bool {
	return !f.MaxFee.IsZero() && !f.Fee.IsZero()
}

// TotalCost is the transaction value plus fees.
type TotalCost struct {
	Cost    Amount `json:"cost"`
	MaxCost Amount `json:"maxCost"`
}

// InvokeFeeEstimate is the adapter's result for a fee dry-run.
type InvokeFeeEstimate struct {
	SuggestedMaxFee Amount `json:"suggestedMaxFee"`
	OverallFee      Amount `json:"overallFee"`
	GasConsumed     string `json:"gasConsumed,omitempty"`
	GasPrice        string `json:"gasPrice,omitempty"`
}

// InvokeResponse is the result of a submitted invoke transaction.
type InvokeResponse struct {
	TransactionHash string `json:"transactionHash"`
}

// Transaction finality and execution statuses reported by the provider.
const (
	StatusReceived     = "RECEIVED"
	StatusRejected     = "REJECTED"
	StatusAcceptedOnL2 = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 = "ACCEPTED_ON_L1"
	ExecutionSucceeded = "SUCCEEDED"
	ExecutionReverted  = "REVERTED"
)

// TransactionStatus is the provider's view of a submitted transaction.
type TransactionStatus struct {
	Hash            string `json:"hash"`
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status,omitempty"`
}

// Final reports whether the status will not change anymore for the UI.
func (s TransactionStatus) Final() bool {
	switch s.FinalityStatus {
	case StatusRejected, StatusAcceptedOnL2, StatusAcceptedOnL1:
		return true
	}

	return false
}

// Succeeded reports whether the transaction was accepted and not reverted.
func (s TransactionStatus) Succeeded() bool {
	return (s.FinalityStatus == StatusAcceptedOnL2 || s.FinalityStatus == StatusAcceptedOnL1) &&
		s.ExecutionStatus != ExecutionReverted
}

// PendingTransaction is the server-tracked in-flight transaction of an account.
type PendingTransaction struct {
	Hash string `json:"hash"`
}
