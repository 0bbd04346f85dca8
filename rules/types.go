package rules

import (
	"fmt"
	"time"

	"github.com/nando-os/ghost-stark/stark"
)

// RetrievableEther is a finalized L2 to L1 withdrawal waiting to be claimed on L1.
type RetrievableEther struct {
	Amount      string `json:"amount"`
	L1Recipient string `json:"l1Recipient"`
}

// StarknetWallet is the server record of the custodial account of a user.
type StarknetWallet struct {
	Address                    string              `json:"address"`
	OldAddress                 string              `json:"oldAddress,omitempty"`
	PublicKey                  string              `json:"publicKey"`
	SignerEscapeTriggeredAt    *time.Time          `json:"signerEscapeTriggeredAt,omitempty"`
	LockingReason              stark.LockingReason `json:"lockingReason,omitempty"`
	NeedsUpgrade               bool                `json:"needsUpgrade"`
	NeedsSignerPublicKeyUpdate bool                `json:"needsSignerPublicKeyUpdate"`
	RulesPrivateKey            *stark.EncryptedKey `json:"rulesPrivateKey,omitempty"`
}

// CurrentUser is the authenticated user.
type CurrentUser struct {
	ID                string             `json:"id"`
	Username          string             `json:"username"`
	Slug              string             `json:"slug"`
	RetrievableEthers []RetrievableEther `json:"retrievableEthers"`
	StarknetWallet    *StarknetWallet    `json:"starknetWallet"`
}

func (u *CurrentUser) validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: current user without id", stark.ErrDecode)
	}

	if u.StarknetWallet == nil {
		return fmt.Errorf("%w: current user %s has no starknet wallet", stark.ErrDecode, u.ID)
	}

	if u.StarknetWallet.Address == "" {
		return fmt.Errorf("%w: starknet wallet of %s has no address", stark.ErrDecode, u.ID)
	}

	for i, r := range u.RetrievableEthers {
		if r.Amount == "" || r.L1Recipient == "" {
			return fmt.Errorf("%w: retrievable ether %d is incomplete", stark.ErrDecode, i)
		}
	}

	return nil
}

// Operation is a marketplace operation recorded once its transaction is submitted.
type Operation string

const (
	OperationOfferAcceptance  Operation = "offerAcceptance"
	OperationOfferCreation    Operation = "offerCreation"
	OperationOfferCancelation Operation = "offerCancelation"
	OperationTransfer         Operation = "transfer"
	OperationWithdraw         Operation = "withdraw"
	OperationEtherRetrieve    Operation = "etherRetrieve"
)

// Record is the bookkeeping payload of a submitted transaction.
type Record struct {
	Operation Operation          `json:"operation"`
	Hash      string             `json:"hash"`
	MaxFee    string             `json:"maxFee,omitempty"`
	TokenIDs  []string           `json:"tokenIds,omitempty"`
	Price     string             `json:"price,omitempty"`
	Recipient string             `json:"recipient,omitempty"`
	Amount    string             `json:"amount,omitempty"`
	Withdraws []RetrievableEther `json:"withdraws,omitempty"`
}
