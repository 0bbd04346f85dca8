package txflow

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultPendingTTL bounds how long a slot stays taken if the daemon dies mid-flight.
const DefaultPendingTTL = 30 * time.Minute

const reservationPrefix = "reserved:"

// ErrAlreadyPending is returned when reserving a slot that is already taken.
var ErrAlreadyPending = errors.New("transaction already pending for account")

// PendingTracker records the in-flight transaction of each account in Redis.
type PendingTracker struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	log    logrus.FieldLogger
}

// Ensure *PendingTracker implements PendingStore
var _ PendingStore = (*PendingTracker)(nil)

// NewPendingTracker creates a new PendingTracker.
func NewPendingTracker(redisClient *redis.Client, prefix string, ttl time.Duration, log logrus.FieldLogger) *PendingTracker {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}

	return &PendingTracker{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		log:    log.WithField("component", "pending_tracker"),
	}
}

// accountKey returns the Redis key of an account slot.
// Key pattern: {prefix}:pending:{address}.
func (t *PendingTracker) accountKey(address string) string {
	if t.prefix == "" {
		return "pending:" + address
	}

	return fmt.Sprintf("%s:pending:%s", t.prefix, address)
}

// Reserve claims the slot of address before a submission.
// Uses SetNX so that only one session can submit at a time.
func (t *PendingTracker) Reserve(ctx context.Context, address string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reservation token: %w", err)
	}

	token := reservationPrefix + hexutil.Encode(buf)
	key := t.accountKey(address)

	wasSet, err := t.redis.SetNX(ctx, key, token, t.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to reserve pending slot: %w", err)
	}

	if !wasSet {
		t.log.WithFields(logrus.Fields{
			"address": address,
			"key":     key,
		}).Debug("Account already has a pending transaction")

		return "", ErrAlreadyPending
	}

	t.log.WithField("address", address).Debug("Reserved pending slot")

	return token, nil
}

// Attach replaces the reservation with the transaction hash and refreshes the TTL.
func (t *PendingTracker) Attach(ctx context.Context, address, token, hash string) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("set", KEYS[1], ARGV[2], "PX", ARGV[3])
		end
		return nil
	`

	err := t.redis.Eval(ctx, script, []string{t.accountKey(address)}, token, hash, t.ttl.Milliseconds()).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("pending slot of %s lost before attaching %s", address, hash)
	}

	if err != nil {
		return fmt.Errorf("failed to attach pending transaction: %w", err)
	}

	t.log.WithFields(logrus.Fields{"address": address, "hash": hash}).Debug("Attached pending transaction")

	return nil
}

// Pending returns the hash held by the slot of address. The hash is empty while the
// slot is only reserved.
func (t *PendingTracker) Pending(ctx context.Context, address string) (string, bool, error) {
	val, err := t.redis.Get(ctx, t.accountKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get pending transaction: %w", err)
	}

	if strings.HasPrefix(val, reservationPrefix) {
		return "", true, nil
	}

	return val, true, nil
}

// Release frees the slot of address if it still holds value (a token or a hash).
func (t *PendingTracker) Release(ctx context.Context, address, value string) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`

	released, err := t.redis.Eval(ctx, script, []string{t.accountKey(address)}, value).Int()
	if err != nil {
		return fmt.Errorf("failed to release pending slot: %w", err)
	}

	t.log.WithFields(logrus.Fields{
		"address":  address,
		"released": released == 1,
	}).Debug("Released pending slot")

	return nil
}
