// Package config reads the ghost-stark configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	envRPCURL  = "STARK_RPC_URL"
	envNetwork = "STARK_NETWORK"

	// -- account and key material
	envAccountAddress         = "STARK_ACCOUNT_ADDRESS"
	envAccountPreviousAddress = "STARK_ACCOUNT_PREVIOUS_ADDRESS"
	envAccountVersion         = "STARK_ACCOUNT_VERSION"
	envPrivateKey             = "STARK_PRIVATE_KEY"

	// encrypted key as the JSON {salt, iv, encryptedPrivateKey} object
	envEncryptedKey = "STARK_ENCRYPTED_KEY"
	envKeyPassword  = "STARK_KEY_PASSWORD"

	// -- rules API
	envRulesAPIURL      = "RULES_API_URL"
	envRulesAccessToken = "RULES_ACCESS_TOKEN"

	// -- pending transaction tracker
	envRedisAddress = "REDIS_ADDRESS"
	envRedisPrefix  = "REDIS_PREFIX"

	envBridgeAddr = "BRIDGE_ADDR"

	// -- fees
	// Multiplier applied to the estimated overall fee to get the suggested max fee.
	// Accepted range is 1.0 to 3.0.
	envMaxFeeOverhead = "STARK_MAX_FEE_OVERHEAD"

	// -- transaction monitoring
	envTransactionTimeoutSeconds = "STARK_TRANSACTION_TIMEOUT_SECONDS"
	envTransactionTickerSeconds  = "STARK_TRANSACTION_TICKER_SECONDS"

	// -- signer escape
	envEscapeMinimumBalance        = "STARK_ESCAPE_MINIMUM_BALANCE"
	envEscapeSecurityPeriodSeconds = "STARK_ESCAPE_SECURITY_PERIOD_SECONDS"

	envLogLevel = "GHOST_LOG_LEVEL"

	// --- defaults ---
	DEFAULT_NETWORK                     = marketplace.Mainnet
	DEFAULT_ACCOUNT_VERSION             = "1"
	DEFAULT_REDIS_ADDRESS               = "localhost:6379"
	DEFAULT_REDIS_PREFIX                = "ghost-stark"
	DEFAULT_BRIDGE_ADDR                 = ":8080"
	DEFAULT_MAX_FEE_OVERHEAD            = "1.5"
	DEFAULT_TRANSACTION_TIMEOUT_SECONDS = 300 // 5 minutes
	DEFAULT_TRANSACTION_TICKER_SECONDS  = 3
	DEFAULT_ESCAPE_MINIMUM_BALANCE      = "0.02" // ETH
	DEFAULT_ESCAPE_SECURITY_PERIOD      = 7 * 24 * 60 * 60
)

type config struct {
	rpcURL          string
	network         marketplace.Network
	address         string
	previousAddress string
}

// NewConfiguration reads the required variables. Optional ones are read on access.
func NewConfiguration() (*config, error) {
	rpcURL := os.Getenv(envRPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf(envRPCURL + " environment variable is not set")
	}

	address := os.Getenv(envAccountAddress)
	if address == "" {
		return nil, fmt.Errorf(envAccountAddress + " environment variable is not set")
	}

	if _, err := stark.NormalizeFelt(address); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envAccountAddress, err)
	}

	previous := os.Getenv(envAccountPreviousAddress)
	if previous != "" {
		if _, err := stark.NormalizeFelt(previous); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envAccountPreviousAddress, err)
		}
	}

	network := DEFAULT_NETWORK
	if v := os.Getenv(envNetwork); v != "" {
		network = marketplace.Network(v)
	}

	if _, err := marketplace.AddressesFor(network); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envNetwork, err)
	}

	return &config{
		rpcURL:          rpcURL,
		network:         network,
		address:         address,
		previousAddress: previous,
	}, nil
}

func (c *config) RPCURL() string {
	return c.rpcURL
}

func (c *config) Network() marketplace.Network {
	return c.network
}

func (c *config) AccountAddress() string {
	return c.address
}

func (c *config) PreviousAccountAddress() string {
	return c.previousAddress
}

// AccountVersion returns the account contract version (default: 1)
func (c *config) AccountVersion() string {
	if v := os.Getenv(envAccountVersion); v != "" {
		return v
	}
	return DEFAULT_ACCOUNT_VERSION
}

// Signer builds the account signer from a plain private key, or from the encrypted key
// and its password.
func (c *config) Signer() (*stark.KeySigner, error) {
	if privHex := os.Getenv(envPrivateKey); privHex != "" {
		return stark.NewKeySignerFromHex(privHex)
	}

	raw := os.Getenv(envEncryptedKey)
	if raw == "" {
		return nil, fmt.Errorf("neither %s nor %s environment variable is set", envPrivateKey, envEncryptedKey)
	}

	var encrypted stark.EncryptedKey
	if err := json.Unmarshal([]byte(raw), &encrypted); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envEncryptedKey, err)
	}

	key, err := stark.DecryptPrivateKey(&encrypted, os.Getenv(envKeyPassword))
	if err != nil {
		return nil, err
	}

	return stark.NewKeySigner(key)
}

// RulesAPI returns the rules API url and access token. Both are required by the bridge.
func (c *config) RulesAPI() (string, string, error) {
	url := os.Getenv(envRulesAPIURL)
	if url == "" {
		return "", "", fmt.Errorf(envRulesAPIURL + " environment variable is not set")
	}
	return url, os.Getenv(envRulesAccessToken), nil
}

// RedisAddress returns the pending tracker Redis address (default: localhost:6379)
func (c *config) RedisAddress() string {
	if v := os.Getenv(envRedisAddress); v != "" {
		return v
	}
	return DEFAULT_REDIS_ADDRESS
}

// RedisPrefix returns the pending tracker key prefix (default: ghost-stark)
func (c *config) RedisPrefix() string {
	if v := os.Getenv(envRedisPrefix); v != "" {
		return v
	}
	return DEFAULT_REDIS_PREFIX
}

// BridgeAddr returns the bridge listen address (default: :8080)
func (c *config) BridgeAddr() string {
	if v := os.Getenv(envBridgeAddr); v != "" {
		return v
	}
	return DEFAULT_BRIDGE_ADDR
}

// MaxFeeOverhead returns the max fee multiplier as a num/den ratio (default: 3/2)
func (c *config) MaxFeeOverhead() (int64, int64) {
	overhead, err := decimal.NewFromString(os.Getenv(envMaxFeeOverhead))
	if err != nil || overhead.LessThan(decimal.NewFromInt(1)) || overhead.GreaterThan(decimal.NewFromInt(3)) {
		overhead = decimal.RequireFromString(DEFAULT_MAX_FEE_OVERHEAD)
	}

	// two decimals of precision are enough for a fee multiplier
	return overhead.Shift(2).IntPart(), 100
}

// TransactionTimeoutSeconds returns the confirmation timeout in seconds (default: 300)
func (c *config) TransactionTimeoutSeconds() int {
	return positiveInt(envTransactionTimeoutSeconds, DEFAULT_TRANSACTION_TIMEOUT_SECONDS)
}

// TransactionTickerSeconds returns the confirmation polling interval in seconds (default: 3)
func (c *config) TransactionTickerSeconds() int {
	return positiveInt(envTransactionTickerSeconds, DEFAULT_TRANSACTION_TICKER_SECONDS)
}

// PollOptions returns the confirmation polling settings.
func (c *config) PollOptions() stark.PollOptions {
	return stark.PollOptions{
		Timeout:  time.Duration(c.TransactionTimeoutSeconds()) * time.Second,
		Interval: time.Duration(c.TransactionTickerSeconds()) * time.Second,
	}
}

// EscapeParams returns the signer escape constants (default: 0.02 ETH, 7 days)
func (c *config) EscapeParams() stark.EscapeParams {
	params := stark.DefaultEscapeParams()

	if v := os.Getenv(envEscapeMinimumBalance); v != "" {
		if balance, err := stark.FromDecimalAmount(v); err == nil {
			params.MinimumBalance = balance
		}
	}

	params.SecurityPeriod = time.Duration(positiveInt(envEscapeSecurityPeriodSeconds, DEFAULT_ESCAPE_SECURITY_PERIOD)) * time.Second

	return params
}

// LogLevel returns the configured log level. An invalid value falls back to info and is
// returned as an error so the caller can report it.
func (c *config) LogLevel() (logrus.Level, error) {
	return LogLevel()
}

// LogLevel reads GHOST_LOG_LEVEL without requiring the rest of the configuration.
func LogLevel() (logrus.Level, error) {
	return ParseLogLevel(os.Getenv(envLogLevel))
}

// ParseLogLevel parses a log level, defaulting to info.
func ParseLogLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}

	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid %s: %w", envLogLevel, err)
	}

	return level, nil
}

func positiveInt(env string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(env))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
