package stark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Default transaction monitoring settings.
const (
	DefaultTransactionTimeout  = 300 * time.Second
	DefaultTransactionInterval = 3 * time.Second
)

var errNotFinal = errors.New("transaction not final yet")

// PollOptions configures WaitForTransaction.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForTransaction polls the provider until the transaction reaches a final status,
// the timeout elapses or ctx is done.
func WaitForTransaction(ctx context.Context, provider Provider, hash string, opts PollOptions, log logrus.FieldLogger) (*TransactionStatus, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTransactionTimeout
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultTransactionInterval
	}

	log = log.WithFields(logrus.Fields{"component": "tx_poller", "hash": hash})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.Interval
	b.MaxInterval = 4 * opts.Interval
	b.MaxElapsedTime = opts.Timeout

	var status *TransactionStatus

	operation := func() error {
		s, err := provider.TransactionStatus(ctx, hash)
		if err != nil {
			log.WithError(err).Debug("Transaction status unavailable, will retry")

			return err
		}

		if !s.Final() {
			log.WithField("finality_status", s.FinalityStatus).Trace("Transaction not final yet")

			return errNotFinal
		}

		status = s

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("transaction timeout: %s: %w", hash, err)
	}

	log.WithFields(logrus.Fields{
		"finality_status":  status.FinalityStatus,
		"execution_status": status.ExecutionStatus,
	}).Info("Transaction confirmed")

	return status, nil
}
