// Package rules is the client of the marketplace GraphQL API.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBodySize   = 4 << 10

	// prefix of the errors the graphql client builds from the response errors
	graphQLErrorPrefix = "graphql: "
)

// ErrNotAuthenticated is returned when the API has no current user for the access token.
var ErrNotAuthenticated = errors.New("not authenticated")

// GraphQLError carries the errors of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql error"
	}

	return e.Messages[0]
}

// statusTransport fails non-2xx responses before the graphql client decodes them.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))

		return nil, fmt.Errorf("rules api returned %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	return res, nil
}

// Client talks to the GraphQL API with a bearer token.
type Client struct {
	gql   *graphql.Client
	token string
	log   logrus.FieldLogger
}

// NewClient creates a client. A nil httpClient uses a client with a 30s timeout.
func NewClient(endpoint, token string, httpClient *http.Client, log logrus.FieldLogger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("rules api url is not set")
	}

	checked := &http.Client{Timeout: defaultHTTPTimeout}
	if httpClient != nil {
		*checked = *httpClient
	}

	base := checked.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	checked.Transport = &statusTransport{base: base}

	return &Client{
		gql:   graphql.NewClient(endpoint, graphql.WithHTTPClient(checked)),
		token: token,
		log:   log.WithField("component", "rules_client"),
	}, nil
}

// do runs a GraphQL document and decodes the data object into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	req := graphql.NewRequest(query)
	for k, v := range variables {
		req.Var(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var data json.RawMessage
	if err := c.gql.Run(ctx, req, &data); err != nil {
		return classify(err)
	}

	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: response without data", stark.ErrDecode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", stark.ErrDecode, err)
	}

	return nil
}

// classify maps the graphql client errors onto transport, GraphQL and decode errors.
func classify(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to reach rules api: %w", err)
	}

	if msg, ok := strings.CutPrefix(err.Error(), graphQLErrorPrefix); ok {
		return &GraphQLError{Messages: []string{msg}}
	}

	return fmt.Errorf("%w: malformed response: %v", stark.ErrDecode, err)
}

const currentUserQuery = `
query CurrentUser {
  currentUser {
    id
    username
    slug
    retrievableEthers {
      amount
      l1Recipient
    }
    starknetWallet {
      address
      oldAddress
      publicKey
      signerEscapeTriggeredAt
      lockingReason
      needsUpgrade
      needsSignerPublicKeyUpdate
      rulesPrivateKey {
        salt
        iv
        encryptedPrivateKey
      }
    }
  }
}`

// CurrentUser returns the user bound to the access token.
func (c *Client) CurrentUser(ctx context.Context) (*CurrentUser, error) {
	var data struct {
		CurrentUser *CurrentUser `json:"currentUser"`
	}

	if err := c.do(ctx, currentUserQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	if data.CurrentUser == nil {
		return nil, ErrNotAuthenticated
	}

	if err := data.CurrentUser.validate(); err != nil {
		return nil, err
	}

	return data.CurrentUser, nil
}

const waitingTransactionQuery = `
query WaitingTransaction {
  waitingTransaction {
    hash
  }
}`

// WaitingTransaction returns the in-flight transaction of the current user, or nil.
func (c *Client) WaitingTransaction(ctx context.Context) (*stark.PendingTransaction, error) {
	var data struct {
		WaitingTransaction *stark.PendingTransaction `json:"waitingTransaction"`
	}

	if err := c.do(ctx, waitingTransactionQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to get waiting transaction: %w", err)
	}

	if data.WaitingTransaction == nil {
		return nil, nil
	}

	if data.WaitingTransaction.Hash == "" {
		return nil, fmt.Errorf("%w: waiting transaction without hash", stark.ErrDecode)
	}

	return data.WaitingTransaction, nil
}

// RecordTransaction records a submitted transaction with the mutation of its operation.
func (c *Client) RecordTransaction(ctx context.Context, record Record) error {
	m, err := mutationFor(record)
	if err != nil {
		return err
	}

	var data map[string]*struct {
		Hash string `json:"hash"`
	}

	if err := c.do(ctx, m.query, m.variables, &data); err != nil {
		return fmt.Errorf("failed to record %s: %w", record.Operation, err)
	}

	res := data[m.field]
	if res == nil || res.Hash == "" {
		return fmt.Errorf("%w: %s returned no hash", stark.ErrDecode, m.field)
	}

	c.log.WithFields(logrus.Fields{
		"operation": record.Operation,
		"hash":      res.Hash,
	}).Info("Recorded transaction")

	return nil
}
