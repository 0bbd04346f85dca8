package rules

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a record misses a field its operation requires.
var ErrInvalidRecord = errors.New("invalid transaction record")

type mutation struct {
	field     string
	query     string
	variables map[string]interface{}
}

const (
	acceptOffersMutation = `
mutation AcceptOffers($hash: String!, $tokenIds: [String!]!, $maxFee: String!) {
  acceptOffers(input: { hash: $hash, tokenIds: $tokenIds, maxFee: $maxFee }) {
    hash
  }
}`

	createOfferMutation = `
mutation CreateOffer($hash: String!, $tokenId: String!, $price: String!, $maxFee: String!) {
  createOffer(input: { hash: $hash, tokenId: $tokenId, price: $price, maxFee: $maxFee }) {
    hash
  }
}`

	cancelOfferMutation = `
mutation CancelOffer($hash: String!, $tokenId: String!, $maxFee: String!) {
  cancelOffer(input: { hash: $hash, tokenId: $tokenId, maxFee: $maxFee }) {
    hash
  }
}`

	transferCardMutation = `
mutation TransferCard($hash: String!, $tokenId: String!, $recipient: String!, $maxFee: String!) {
  transferCard(input: { hash: $hash, tokenId: $tokenId, recipient: $recipient, maxFee: $maxFee }) {
    hash
  }
}`

	withdrawEtherMutation = `
mutation WithdrawEther($hash: String!, $amount: String!, $l1Recipient: String!, $maxFee: String!) {
  withdrawEther(input: { hash: $hash, amount: $amount, l1Recipient: $l1Recipient, maxFee: $maxFee }) {
    hash
  }
}`

	retrieveEtherMutation = `
mutation RetrieveEther($hash: String!, $withdraws: [RetrieveEtherWithdrawInput!]!) {
  retrieveEther(input: { hash: $hash, withdraws: $withdraws }) {
    hash
  }
}`
)

func requireFields(record Record, fields map[string]bool) error {
	for name, ok := range fields {
		if !ok {
			return fmt.Errorf("%w: %s without %s", ErrInvalidRecord, record.Operation, name)
		}
	}

	return nil
}

// mutationFor maps a record to the mutation of its operation.
func mutationFor(record Record) (*mutation, error) {
	if record.Hash == "" {
		return nil, fmt.Errorf("%w: %s without hash", ErrInvalidRecord, record.Operation)
	}

	hasToken := len(record.TokenIDs) > 0
	tokenID := ""
	if hasToken {
		tokenID = record.TokenIDs[0]
	}

	switch record.Operation {
	case OperationOfferAcceptance:
		if err := requireFields(record, map[string]bool{"tokenIds": hasToken}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "acceptOffers",
			query: acceptOffersMutation,
			variables: map[string]interface{}{
				"hash":     record.Hash,
				"tokenIds": record.TokenIDs,
				"maxFee":   record.MaxFee,
			},
		}, nil

	case OperationOfferCreation:
		if err := requireFields(record, map[string]bool{"tokenIds": hasToken, "price": record.Price != ""}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "createOffer",
			query: createOfferMutation,
			variables: map[string]interface{}{
				"hash":    record.Hash,
				"tokenId": tokenID,
				"price":   record.Price,
				"maxFee":  record.MaxFee,
			},
		}, nil

	case OperationOfferCancelation:
		if err := requireFields(record, map[string]bool{"tokenIds": hasToken}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "cancelOffer",
			query: cancelOfferMutation,
			variables: map[string]interface{}{
				"hash":    record.Hash,
				"tokenId": tokenID,
				"maxFee":  record.MaxFee,
			},
		}, nil

	case OperationTransfer:
		if err := requireFields(record, map[string]bool{"tokenIds": hasToken, "recipient": record.Recipient != ""}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "transferCard",
			query: transferCardMutation,
			variables: map[string]interface{}{
				"hash":      record.Hash,
				"tokenId":   tokenID,
				"recipient": record.Recipient,
				"maxFee":    record.MaxFee,
			},
		}, nil

	case OperationWithdraw:
		if err := requireFields(record, map[string]bool{"amount": record.Amount != "", "recipient": record.Recipient != ""}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "withdrawEther",
			query: withdrawEtherMutation,
			variables: map[string]interface{}{
				"hash":        record.Hash,
				"amount":      record.Amount,
				"l1Recipient": record.Recipient,
				"maxFee":      record.MaxFee,
			},
		}, nil

	case OperationEtherRetrieve:
		if err := requireFields(record, map[string]bool{"withdraws": len(record.Withdraws) > 0}); err != nil {
			return nil, err
		}

		return &mutation{
			field: "retrieveEther",
			query: retrieveEtherMutation,
			variables: map[string]interface{}{
				"hash":      record.Hash,
				"withdraws": record.Withdraws,
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidRecord, record.Operation)
}
