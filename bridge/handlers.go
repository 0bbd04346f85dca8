package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
)

type callsRequest struct {
	Calls  []stark.Call  `json:"calls" binding:"required"`
	Value  *stark.Amount `json:"value"`
	Append bool          `json:"append"`
	Record *rules.Record `json:"record"`
	From   string        `json:"from"`
}

type valueRequest struct {
	Value *stark.Amount `json:"value" binding:"required"`
}

type operationRequest struct {
	TokenIDs  []string      `json:"tokenIds"`
	Price     *stark.Amount `json:"price"`
	Recipient string        `json:"recipient"`
	Amount    *stark.Amount `json:"amount"`
	Quantity  uint64        `json:"quantity"`
	From      string        `json:"from"`
}

type retrieveResponse struct {
	Transaction marketplace.L1Transaction `json:"transaction"`
	Withdraws   []rules.RetrievableEther  `json:"withdraws"`
	Total       stark.Amount              `json:"total"`
}

type recordRetrieveRequest struct {
	Hash string `json:"hash" binding:"required"`
}

type confirmRequest struct {
	MaxFee *stark.Amount `json:"maxFee"`
}

type confirmResponse struct {
	TransactionHash string      `json:"transactionHash,omitempty"`
	Rejected        bool        `json:"rejected"`
	Stale           bool        `json:"stale"`
	View            txflow.View `json:"view"`
}

type lockResponse struct {
	Locked       bool              `json:"locked"`
	Lock         *stark.WalletLock `json:"lock"`
	PreviousLock *stark.WalletLock `json:"previousLock,omitempty"`
}

func amountOrZero(a *stark.Amount) stark.Amount {
	if a == nil {
		return stark.Zero
	}

	return *a
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		failure(c, fmt.Errorf("%w: %v", errBadRequest, err))

		return false
	}

	return true
}

// senderOf resolves the address an operation is sent from. An explicit address must be
// active in the current migration phase.
func (s *Server) senderOf(from string) (string, error) {
	sender, err := s.account.SenderFor(from)
	if err != nil && !errors.Is(err, stark.ErrAccountLocked) {
		return "", fmt.Errorf("%w: %w", errBadRequest, err)
	}

	return sender, err
}

func (s *Server) getSession(c *gin.Context) {
	success(c, s.session.View())
}

func (s *Server) begin(c *gin.Context) {
	verdict := s.session.Begin(c.Request.Context())

	success(c, gin.H{"verdict": verdict, "view": s.session.View()})
}

func (s *Server) setCalls(c *gin.Context) {
	var req callsRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := s.senderOf(req.From); err != nil {
		failure(c, err)

		return
	}

	var err error
	if req.Append {
		_, err = s.session.Append(req.Calls, amountOrZero(req.Value))
	} else {
		var record rules.Record
		if req.Record != nil {
			record = *req.Record
		}
		_, err = s.session.Prepare(req.Calls, amountOrZero(req.Value), record)
	}

	if err != nil {
		failure(c, err)

		return
	}

	success(c, s.session.View())
}

func (s *Server) increaseValue(c *gin.Context) {
	var req valueRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.session.IncreaseValue(*req.Value); err != nil {
		failure(c, err)

		return
	}

	success(c, s.session.View())
}

func (s *Server) prepareOperation(c *gin.Context) {
	if s.builder == nil {
		failure(c, fmt.Errorf("%w: marketplace operations are disabled", errBadRequest))

		return
	}

	var req operationRequest
	if !bindJSON(c, &req) {
		return
	}

	sender, err := s.senderOf(req.From)
	if err != nil {
		failure(c, err)

		return
	}

	calls, value, record, err := s.buildOperation(rules.Operation(c.Param("operation")), sender, req)
	if err != nil {
		failure(c, fmt.Errorf("%w: %w", errBadRequest, err))

		return
	}

	if _, err := s.session.Prepare(calls, value, record); err != nil {
		failure(c, err)

		return
	}

	success(c, s.session.View())
}

// buildOperation turns a marketplace request sent from sender into calls, the spent value
// and the record.
func (s *Server) buildOperation(op rules.Operation, sender string, req operationRequest) ([]stark.Call, stark.Amount, rules.Record, error) {
	record := rules.Record{Operation: op, TokenIDs: req.TokenIDs, Recipient: req.Recipient}
	price := amountOrZero(req.Price)
	amount := amountOrZero(req.Amount)

	firstToken := func() (string, error) {
		if len(req.TokenIDs) != 1 {
			return "", fmt.Errorf("%s takes exactly one token id", op)
		}
		return req.TokenIDs[0], nil
	}

	single := func(call stark.Call, err error) ([]stark.Call, error) {
		if err != nil {
			return nil, err
		}
		return []stark.Call{call}, nil
	}

	switch op {
	case rules.OperationOfferAcceptance:
		calls, err := s.builder.AcceptOffers(price, req.TokenIDs...)
		record.Price = price.String()

		return calls, price, record, err

	case rules.OperationOfferCreation:
		tokenID, err := firstToken()
		if err != nil {
			return nil, stark.Zero, record, err
		}

		calls, err := single(s.builder.CreateOffer(tokenID, price))
		record.Price = price.String()

		return calls, stark.Zero, record, err

	case rules.OperationOfferCancelation:
		tokenID, err := firstToken()
		if err != nil {
			return nil, stark.Zero, record, err
		}

		calls, err := single(s.builder.CancelOffer(tokenID))

		return calls, stark.Zero, record, err

	case rules.OperationTransfer:
		tokenID, err := firstToken()
		if err != nil {
			return nil, stark.Zero, record, err
		}

		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}

		calls, err := single(s.builder.TransferCard(sender, req.Recipient, tokenID, quantity))

		return calls, stark.Zero, record, err

	case rules.OperationWithdraw:
		calls, err := single(s.builder.InitiateWithdraw(req.Recipient, amount))
		record.Amount = amount.String()

		return calls, amount, record, err

	case rules.OperationEtherRetrieve:
		return nil, stark.Zero, record, fmt.Errorf("%s is an L1 transaction, build it with GET /v1/retrieve", op)
	}

	return nil, stark.Zero, record, fmt.Errorf("unsupported operation %q", op)
}

func (s *Server) estimate(c *gin.Context) {
	start := time.Now()
	err := s.session.Estimate(c.Request.Context())

	if errors.Is(err, txflow.ErrNotStarted) || errors.Is(err, txflow.ErrBlocked) {
		failure(c, err)

		return
	}

	switch {
	case err == nil:
		s.metrics.observeEstimation(outcomeSuccess, start)
	case errors.Is(err, txflow.ErrStaleResult):
		s.metrics.observeEstimation(outcomeStale, start)
	case txflow.IsEstimationFailure(err):
		s.metrics.observeEstimation(outcomeZeroFee, start)
	default:
		s.metrics.observeEstimation(outcomeError, start)
	}

	// estimation failures are part of the view
	success(c, s.session.View())
}

func (s *Server) confirm(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	hash, err := s.session.Confirm(c.Request.Context(), amountOrZero(req.MaxFee))

	switch {
	case errors.Is(err, stark.ErrSubmissionRejected):
		s.metrics.Rejections.Inc()
		s.metrics.Executions.WithLabelValues(outcomeRejected).Inc()

		success(c, confirmResponse{Rejected: true, View: s.session.View()})

		return

	case hash != "":
		outcome := outcomeSubmitted
		if errors.Is(err, txflow.ErrStaleResult) {
			outcome = outcomeStale
		}
		s.metrics.Executions.WithLabelValues(outcome).Inc()

		success(c, confirmResponse{
			TransactionHash: hash,
			Stale:           outcome == outcomeStale,
			View:            s.session.View(),
		})

		return
	}

	if errors.Is(err, txflow.ErrStaleResult) {
		s.metrics.Executions.WithLabelValues(outcomeStale).Inc()
	} else {
		s.metrics.Executions.WithLabelValues(outcomeError).Inc()
	}

	failure(c, err)
}

func (s *Server) closeSession(c *gin.Context) {
	s.session.Close()

	success(c, s.session.View())
}

func (s *Server) walletLock(c *gin.Context) {
	if s.users == nil || s.monitor == nil {
		failure(c, fmt.Errorf("%w: wallet lock inspection is disabled", errBadRequest))

		return
	}

	ctx := c.Request.Context()

	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to get current user")
		failure(c, err)

		return
	}

	wallet := user.StarknetWallet
	if wallet == nil {
		failure(c, fmt.Errorf("%w: user has no starknet wallet", stark.ErrDecode))

		return
	}

	reason := wallet.LockingReason
	if reason == stark.LockingReasonNone && wallet.NeedsUpgrade {
		reason = stark.LockingReasonForcedUpgrade
	}

	lock, err := s.monitor.Inspect(ctx, wallet.Address, reason, wallet.SignerEscapeTriggeredAt)
	if err != nil {
		failure(c, err)

		return
	}

	resp := lockResponse{Locked: lock.Locked(), Lock: lock}

	if wallet.OldAddress != "" && wallet.OldAddress != wallet.Address {
		previous, err := s.monitor.Inspect(ctx, wallet.OldAddress, reason, wallet.SignerEscapeTriggeredAt)
		if err != nil {
			failure(c, err)

			return
		}

		resp.PreviousLock = previous
		resp.Locked = resp.Locked || previous.Locked()
	}

	s.account.SetEscapeStatus(lock.Escape)

	success(c, resp)
}

func (s *Server) pendingWithdrawals(c *gin.Context) ([]rules.RetrievableEther, []marketplace.Withdrawal, stark.Amount, bool) {
	if s.users == nil || s.builder == nil {
		failure(c, fmt.Errorf("%w: ether retrieval is disabled", errBadRequest))

		return nil, nil, stark.Zero, false
	}

	user, err := s.users.CurrentUser(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to get current user")
		failure(c, err)

		return nil, nil, stark.Zero, false
	}

	if len(user.RetrievableEthers) == 0 {
		failure(c, fmt.Errorf("%w: no ethers to retrieve", errBadRequest))

		return nil, nil, stark.Zero, false
	}

	total := stark.Zero
	withdrawals := make([]marketplace.Withdrawal, len(user.RetrievableEthers))

	for i, r := range user.RetrievableEthers {
		amount, err := stark.FromRawAmount(r.Amount)
		if err != nil {
			failure(c, fmt.Errorf("%w: retrievable ether %d: %v", stark.ErrDecode, i, err))

			return nil, nil, stark.Zero, false
		}

		withdrawals[i] = marketplace.Withdrawal{Amount: amount, L1Recipient: r.L1Recipient}
		total = total.Add(amount)
	}

	return user.RetrievableEthers, withdrawals, total, true
}

// retrieveEthers returns the L1 transaction claiming the finalized withdrawals of the user.
func (s *Server) retrieveEthers(c *gin.Context) {
	withdraws, withdrawals, total, ok := s.pendingWithdrawals(c)
	if !ok {
		return
	}

	tx, err := s.builder.RetrieveEthers(withdrawals)
	if err != nil {
		failure(c, fmt.Errorf("%w: %w", errBadRequest, err))

		return
	}

	success(c, retrieveResponse{Transaction: tx, Withdraws: withdraws, Total: total})
}

// recordRetrieve records the hash of a submitted retrieval on the server.
func (s *Server) recordRetrieve(c *gin.Context) {
	var req recordRetrieveRequest
	if !bindJSON(c, &req) {
		return
	}

	withdraws, _, _, ok := s.pendingWithdrawals(c)
	if !ok {
		return
	}

	record := rules.Record{Operation: rules.OperationEtherRetrieve, Hash: req.Hash, Withdraws: withdraws}
	if err := s.users.RecordTransaction(c.Request.Context(), record); err != nil {
		s.log.WithError(fmt.Errorf("%w: %w", stark.ErrServerSync, err)).
			WithField("hash", req.Hash).
			Error("Failed to record ether retrieval")
		failure(c, err)

		return
	}

	success(c, gin.H{"hash": req.Hash})
}
