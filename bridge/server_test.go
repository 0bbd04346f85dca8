package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/nando-os/ghost-stark/internal/mocks"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSender = "0x123"

func init() {
	gin.SetMode(gin.TestMode)
}

type stateAccount struct {
	*mocks.Account
	escape *stark.EscapeStatus
}

func (a *stateAccount) SetEscapeStatus(status *stark.EscapeStatus) {
	a.escape = status
}

// SenderFor accepts the session sender only, like an account locked on testSender.
func (a *stateAccount) SenderFor(target string) (string, error) {
	if target == "" {
		return testSender, nil
	}

	normalized, err := stark.NormalizeFelt(target)
	if err != nil {
		return "", fmt.Errorf("invalid target address: %w", err)
	}

	if normalized != testSender {
		return "", fmt.Errorf("%w: address %s is not active", stark.ErrAccountLocked, normalized)
	}

	return normalized, nil
}

type staticUsers struct {
	user     *rules.CurrentUser
	err      error
	recorded []rules.Record
}

func (u *staticUsers) CurrentUser(context.Context) (*rules.CurrentUser, error) {
	return u.user, u.err
}

func (u *staticUsers) RecordTransaction(_ context.Context, record rules.Record) error {
	u.recorded = append(u.recorded, record)

	return u.err
}

type bridgeFixture struct {
	server   *Server
	account  *stateAccount
	rules    *mocks.Server
	provider *mocks.Provider
	users    *staticUsers
	hook     *test.Hook
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()

	log, hook := test.NewNullLogger()

	f := &bridgeFixture{
		account:  &stateAccount{Account: new(mocks.Account)},
		rules:    new(mocks.Server),
		provider: new(mocks.Provider),
		users:    &staticUsers{},
		hook:     hook,
	}
	f.account.On("SenderAddress").Return(testSender)

	session, err := txflow.NewSession(txflow.SessionConfig{Account: f.account, Server: f.rules}, log)
	require.NoError(t, err)
	t.Cleanup(session.Shutdown)

	builder, err := marketplace.NewBuilder(marketplace.Goerli)
	require.NoError(t, err)

	f.server, err = NewServer(Config{
		Session: session,
		Account: f.account,
		Users:   f.users,
		Monitor: stark.NewEscapeMonitor(f.provider, "", stark.DefaultEscapeParams(), log),
		Builder: builder,
	}, log)
	require.NoError(t, err)

	return f
}

func amountOf(wei string) interface{} {
	return mock.MatchedBy(func(a stark.Amount) bool { return a.String() == wei })
}

func (f *bridgeFixture) do(t *testing.T, method, path string, body interface{}) (int, Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())

	return rec.Code, resp
}

func dataOf(t *testing.T, resp Response, out interface{}) {
	t.Helper()

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func (f *bridgeFixture) begin(t *testing.T) {
	t.Helper()

	f.rules.On("WaitingTransaction", mock.Anything).Return(nil, nil).Once()

	code, resp := f.do(t, http.MethodPost, "/v1/session/begin", nil)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Verdict txflow.Verdict `json:"verdict"`
	}
	dataOf(t, resp, &out)
	require.False(t, out.Verdict.Blocked)
}

func TestNewServer_Validation(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewServer(Config{}, log)
	assert.Error(t, err)
}

func TestBridge_AcceptOfferFlow(t *testing.T) {
	f := newBridgeFixture(t)

	code, resp := f.do(t, http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, code)
	var view txflow.View
	dataOf(t, resp, &view)
	assert.Equal(t, txflow.ViewIdle, view.State)

	f.begin(t)

	code, resp = f.do(t, http.MethodPost, "/v1/marketplace/offerAcceptance", map[string]interface{}{
		"tokenIds": []string{"7"},
		"price":    "1000",
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	dataOf(t, resp, &view)
	require.Len(t, view.Calls, 2)
	assert.Equal(t, "increaseAllowance", view.Calls[0].Entrypoint)
	assert.Equal(t, "acceptOffer", view.Calls[1].Entrypoint)
	assert.Equal(t, "1000", view.Value.String())

	f.account.On("EstimateInvokeFee", mock.Anything, view.Calls).Return(&stark.InvokeFeeEstimate{
		SuggestedMaxFee: stark.MustRawAmount("1500"),
		OverallFee:      stark.MustRawAmount("1000"),
	}, nil).Once()

	code, resp = f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	require.Equal(t, http.StatusOK, code)
	dataOf(t, resp, &view)
	assert.Equal(t, txflow.ViewAwaitingConfirmation, view.State)
	require.NotNil(t, view.TotalCost)
	assert.Equal(t, "2500", view.TotalCost.MaxCost.String())

	f.account.On("Execute", mock.Anything, view.Calls, amountOf("1500")).
		Return(&stark.InvokeResponse{TransactionHash: "0xabc"}, nil).Once()
	f.rules.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(r rules.Record) bool {
		return r.Operation == rules.OperationOfferAcceptance && r.Hash == "0xabc" && r.MaxFee == "1500" && r.Price == "1000"
	})).Return(nil).Once()

	code, resp = f.do(t, http.MethodPost, "/v1/session/confirm", map[string]interface{}{})
	require.Equal(t, http.StatusOK, code, resp.Message)

	var confirmed confirmResponse
	dataOf(t, resp, &confirmed)
	assert.Equal(t, "0xabc", confirmed.TransactionHash)
	assert.False(t, confirmed.Rejected)
	assert.Equal(t, txflow.ViewSubmitted, confirmed.View.State)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.Estimations.WithLabelValues(outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.Executions.WithLabelValues(outcomeSubmitted)))
	assert.Equal(t, 1, testutil.CollectAndCount(f.server.metrics.EstimationDuration))

	f.account.AssertExpectations(t)
	f.rules.AssertExpectations(t)
}

func TestBridge_RawCallsAndClose(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	call := stark.Call{ContractAddress: "0x1", Entrypoint: "transfer", Calldata: []string{"0x2"}}

	code, resp := f.do(t, http.MethodPost, "/v1/session/calls", callsRequest{Calls: []stark.Call{call}})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = f.do(t, http.MethodPost, "/v1/session/calls", callsRequest{Calls: []stark.Call{call}, Append: true})
	require.Equal(t, http.StatusOK, code, resp.Message)

	var view txflow.View
	dataOf(t, resp, &view)
	assert.Len(t, view.Calls, 2)

	code, resp = f.do(t, http.MethodPost, "/v1/session/value", map[string]interface{}{"value": "25"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	dataOf(t, resp, &view)
	assert.Equal(t, "25", view.Value.String())

	code, _ = f.do(t, http.MethodPost, "/v1/session/value", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = f.do(t, http.MethodDelete, "/v1/session", nil)
	require.Equal(t, http.StatusOK, code)
	dataOf(t, resp, &view)
	assert.Empty(t, view.Calls)

	// closed sessions refuse calls until the next begin
	code, _ = f.do(t, http.MethodPost, "/v1/session/calls", callsRequest{Calls: []stark.Call{call}})
	assert.Equal(t, http.StatusConflict, code)
}

func TestBridge_BadRequests(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	cases := map[string]struct {
		path string
		body interface{}
	}{
		"missing calls":         {"/v1/session/calls", map[string]interface{}{}},
		"unknown operation":     {"/v1/marketplace/mint", map[string]interface{}{}},
		"accept without tokens": {"/v1/marketplace/offerAcceptance", map[string]interface{}{"price": "1"}},
		"create two tokens":     {"/v1/marketplace/offerCreation", map[string]interface{}{"tokenIds": []string{"1", "2"}, "price": "1"}},
		"bad withdraw address":  {"/v1/marketplace/withdraw", map[string]interface{}{"recipient": "0x1", "amount": "1"}},
		"malformed amount":      {"/v1/marketplace/offerAcceptance", map[string]interface{}{"tokenIds": []string{"1"}, "price": "1.5"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			code, resp := f.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestBridge_Blocked(t *testing.T) {
	f := newBridgeFixture(t)

	f.rules.On("WaitingTransaction", mock.Anything).Return(&stark.PendingTransaction{Hash: "0xdead"}, nil).Once()

	code, resp := f.do(t, http.MethodPost, "/v1/session/begin", nil)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Verdict txflow.Verdict `json:"verdict"`
		View    txflow.View    `json:"view"`
	}
	dataOf(t, resp, &out)
	assert.True(t, out.Verdict.Blocked)
	assert.Equal(t, "0xdead", out.Verdict.Hash)
	assert.Equal(t, txflow.ViewBlocked, out.View.State)

	code, _ = f.do(t, http.MethodPost, "/v1/marketplace/offerCancelation", map[string]interface{}{"tokenIds": []string{"1"}})
	assert.Equal(t, http.StatusLocked, code)

	code, _ = f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	assert.Equal(t, http.StatusLocked, code)
}

func TestBridge_EstimateFailureIsInView(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	code, _ := f.do(t, http.MethodPost, "/v1/marketplace/offerCancelation", map[string]interface{}{"tokenIds": []string{"1"}})
	require.Equal(t, http.StatusOK, code)

	f.account.On("EstimateInvokeFee", mock.Anything, mock.Anything).
		Return(nil, stark.ErrEstimationFailed).Once()

	code, resp := f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	require.Equal(t, http.StatusOK, code)

	var view txflow.View
	dataOf(t, resp, &view)
	assert.Equal(t, txflow.ViewError, view.State)
	assert.Equal(t, "Failed to estimate fees", view.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.Estimations.WithLabelValues(outcomeZeroFee)))

	// no valid estimate to confirm against
	code, _ = f.do(t, http.MethodPost, "/v1/session/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestBridge_ConfirmRejected(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	code, _ := f.do(t, http.MethodPost, "/v1/marketplace/transfer", map[string]interface{}{
		"tokenIds":  []string{"9"},
		"recipient": "0x456",
	})
	require.Equal(t, http.StatusOK, code)

	f.account.On("EstimateInvokeFee", mock.Anything, mock.MatchedBy(func(calls []stark.Call) bool {
		return len(calls) == 1 && calls[0].Calldata[0] == testSender && calls[0].Calldata[4] == "0x1"
	})).Return(&stark.InvokeFeeEstimate{
		SuggestedMaxFee: stark.MustRawAmount("30"),
		OverallFee:      stark.MustRawAmount("20"),
	}, nil).Once()

	code, _ = f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	require.Equal(t, http.StatusOK, code)

	f.account.On("Execute", mock.Anything, mock.Anything, amountOf("40")).
		Return(nil, stark.ErrSubmissionRejected).Once()

	code, resp := f.do(t, http.MethodPost, "/v1/session/confirm", map[string]interface{}{"maxFee": "40"})
	require.Equal(t, http.StatusOK, code)

	var confirmed confirmResponse
	dataOf(t, resp, &confirmed)
	assert.True(t, confirmed.Rejected)
	assert.Empty(t, confirmed.TransactionHash)
	assert.Equal(t, txflow.ViewAwaitingConfirmation, confirmed.View.State)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.Rejections))
	f.rules.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
}

func TestBridge_ConfirmProviderError(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	code, _ := f.do(t, http.MethodPost, "/v1/marketplace/offerCreation", map[string]interface{}{
		"tokenIds": []string{"9"},
		"price":    "100",
	})
	require.Equal(t, http.StatusOK, code)

	f.account.On("EstimateInvokeFee", mock.Anything, mock.Anything).Return(&stark.InvokeFeeEstimate{
		SuggestedMaxFee: stark.MustRawAmount("30"),
		OverallFee:      stark.MustRawAmount("20"),
	}, nil).Once()

	code, _ = f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	require.Equal(t, http.StatusOK, code)

	f.account.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &stark.ProviderError{Op: "execute", Message: "Failed to push transaction on starknet"}).Once()

	code, resp := f.do(t, http.MethodPost, "/v1/session/confirm", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Failed to push transaction on starknet", resp.Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.Executions.WithLabelValues(outcomeError)))
}

func TestBridge_WalletLock(t *testing.T) {
	f := newBridgeFixture(t)

	triggered := time.Now().Add(-3 * 24 * time.Hour)
	f.users.user = &rules.CurrentUser{
		ID: "1",
		StarknetWallet: &rules.StarknetWallet{
			Address:                 "0x5678",
			LockingReason:           stark.LockingReasonSignerEscape,
			SignerEscapeTriggeredAt: &triggered,
		},
	}

	f.provider.On("Call", mock.Anything, mock.Anything).Return([]string{"0x470de4df820000", "0x0"}, nil).Once()
	f.provider.On("IsDeployed", mock.Anything, "0x5678").Return(true, nil).Once()

	code, resp := f.do(t, http.MethodGet, "/v1/wallet/lock", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	var out lockResponse
	dataOf(t, resp, &out)
	assert.True(t, out.Locked)
	require.NotNil(t, out.Lock.Escape)
	assert.Equal(t, stark.EscapeLockedWaitingPeriod, out.Lock.Escape.State)
	assert.Equal(t, 4, out.Lock.Escape.DaysRemaining)

	require.NotNil(t, f.account.escape)
	assert.Equal(t, stark.EscapeLockedWaitingPeriod, f.account.escape.State)
}

func TestBridge_WalletLockErrors(t *testing.T) {
	f := newBridgeFixture(t)

	f.users.err = rules.ErrNotAuthenticated
	code, _ := f.do(t, http.MethodGet, "/v1/wallet/lock", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	f.users.err = nil
	f.users.user = &rules.CurrentUser{ID: "1", StarknetWallet: &rules.StarknetWallet{Address: "0x5678", NeedsUpgrade: true}}
	f.provider.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("node down")).Once()
	f.provider.On("IsDeployed", mock.Anything, "0x5678").Return(true, nil).Maybe()

	code, resp := f.do(t, http.MethodGet, "/v1/wallet/lock", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.True(t, strings.Contains(resp.Message, "node down"), resp.Message)
}

func TestBridge_Metrics(t *testing.T) {
	f := newBridgeFixture(t)

	f.do(t, http.MethodGet, "/v1/session", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ghost_stark_http_requests_total{method="GET",path="/v1/session",status="200"} 1`)
}

func TestBridge_ConfirmOnce(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	code, _ := f.do(t, http.MethodPost, "/v1/marketplace/offerCancelation", map[string]interface{}{"tokenIds": []string{"1"}})
	require.Equal(t, http.StatusOK, code)

	f.account.On("EstimateInvokeFee", mock.Anything, mock.Anything).Return(&stark.InvokeFeeEstimate{
		SuggestedMaxFee: stark.MustRawAmount("30"),
		OverallFee:      stark.MustRawAmount("20"),
	}, nil).Once()
	f.account.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&stark.InvokeResponse{TransactionHash: "0xabc"}, nil).Once()
	f.rules.On("RecordTransaction", mock.Anything, mock.Anything).Return(nil).Once()

	code, _ = f.do(t, http.MethodPost, "/v1/session/estimate", nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := f.do(t, http.MethodPost, "/v1/session/confirm", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	// the submitted draft cannot be sent again
	code, _ = f.do(t, http.MethodPost, "/v1/session/confirm", nil)
	assert.Equal(t, http.StatusLocked, code)

	f.account.AssertNumberOfCalls(t, "Execute", 1)
}

func TestBridge_SenderValidation(t *testing.T) {
	f := newBridgeFixture(t)
	f.begin(t)

	code, resp := f.do(t, http.MethodPost, "/v1/marketplace/transfer", map[string]interface{}{
		"tokenIds":  []string{"9"},
		"recipient": "0x456",
		"from":      "0x0123",
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	var view txflow.View
	dataOf(t, resp, &view)
	require.Len(t, view.Calls, 1)
	assert.Equal(t, testSender, view.Calls[0].Calldata[0])

	code, _ = f.do(t, http.MethodPost, "/v1/marketplace/transfer", map[string]interface{}{
		"tokenIds":  []string{"9"},
		"recipient": "0x456",
		"from":      "0x5678",
	})
	assert.Equal(t, http.StatusLocked, code)

	code, _ = f.do(t, http.MethodPost, "/v1/marketplace/transfer", map[string]interface{}{
		"tokenIds":  []string{"9"},
		"recipient": "0x456",
		"from":      "0xzz",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	call := stark.Call{ContractAddress: "0x1", Entrypoint: "transfer", Calldata: []string{"0x2"}}
	code, _ = f.do(t, http.MethodPost, "/v1/session/calls", callsRequest{Calls: []stark.Call{call}, From: "0x5678"})
	assert.Equal(t, http.StatusLocked, code)

	// rejected requests leave the draft untouched
	code, resp = f.do(t, http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, code)
	dataOf(t, resp, &view)
	require.Len(t, view.Calls, 1)
	assert.Equal(t, "safeTransferFrom", view.Calls[0].Entrypoint)
}

func TestBridge_WalletLockPreviousAddress(t *testing.T) {
	f := newBridgeFixture(t)

	triggered := time.Now().Add(-3 * 24 * time.Hour)
	f.users.user = &rules.CurrentUser{
		ID: "1",
		StarknetWallet: &rules.StarknetWallet{
			Address:                 "0x5678",
			OldAddress:              "0x1234",
			LockingReason:           stark.LockingReasonSignerEscape,
			SignerEscapeTriggeredAt: &triggered,
		},
	}

	balanceOf := func(owner string) interface{} {
		return mock.MatchedBy(func(call stark.Call) bool { return call.Calldata[0] == owner })
	}

	f.provider.On("Call", mock.Anything, balanceOf("0x5678")).Return([]string{"0x470de4df820000", "0x0"}, nil).Once()
	f.provider.On("IsDeployed", mock.Anything, "0x5678").Return(true, nil).Once()
	f.provider.On("Call", mock.Anything, balanceOf("0x1234")).Return([]string{"0x0", "0x0"}, nil).Once()
	f.provider.On("IsDeployed", mock.Anything, "0x1234").Return(false, nil).Once()

	code, resp := f.do(t, http.MethodGet, "/v1/wallet/lock", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	var out lockResponse
	dataOf(t, resp, &out)
	assert.True(t, out.Locked)
	require.NotNil(t, out.Lock)
	assert.Equal(t, "0x5678", out.Lock.Address)
	require.NotNil(t, out.PreviousLock)
	assert.Equal(t, "0x1234", out.PreviousLock.Address)
	assert.False(t, out.PreviousLock.Deployed)
	assert.True(t, out.PreviousLock.Balance.IsZero())

	// the current address drives the migration phase
	require.NotNil(t, f.account.escape)
	assert.Equal(t, stark.EscapeLockedWaitingPeriod, f.account.escape.State)

	f.provider.AssertExpectations(t)
}

func TestBridge_RetrieveEthers(t *testing.T) {
	f := newBridgeFixture(t)

	const recipient = "0x1111111111111111111111111111111111111111"
	f.users.user = &rules.CurrentUser{
		ID:             "1",
		StarknetWallet: &rules.StarknetWallet{Address: "0x5678"},
		RetrievableEthers: []rules.RetrievableEther{
			{Amount: "1000", L1Recipient: recipient},
			{Amount: "500", L1Recipient: recipient},
		},
	}

	code, resp := f.do(t, http.MethodGet, "/v1/retrieve", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	var out retrieveResponse
	dataOf(t, resp, &out)
	assert.Equal(t, "1500", out.Total.String())
	assert.Len(t, out.Withdraws, 2)
	assert.Equal(t, common.HexToAddress(f.server.builder.Addresses().L1Multicall).Hex(), out.Transaction.To)
	assert.True(t, strings.HasPrefix(out.Transaction.Data, "0x252dba42"), out.Transaction.Data)

	code, resp = f.do(t, http.MethodPost, "/v1/retrieve", map[string]interface{}{"hash": "0xfeed"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	require.Len(t, f.users.recorded, 1)
	assert.Equal(t, rules.OperationEtherRetrieve, f.users.recorded[0].Operation)
	assert.Equal(t, "0xfeed", f.users.recorded[0].Hash)
	assert.Equal(t, f.users.user.RetrievableEthers, f.users.recorded[0].Withdraws)

	// the session cannot prepare an L1 transaction
	f.begin(t)
	code, resp = f.do(t, http.MethodPost, "/v1/marketplace/etherRetrieve", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Message, "/v1/retrieve")

	f.users.user.RetrievableEthers = nil
	code, _ = f.do(t, http.MethodGet, "/v1/retrieve", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
