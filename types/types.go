package types

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// StroopsPerUnit is the fixed scale between the ledger's smallest unit and
// the human-facing native asset unit (7 decimal places).
const StroopsPerUnit = 10_000_000

// UserProfile is the on-chain record binding a username to an account.
type UserProfile struct {
	Address   string `json:"address"`
	Username  string `json:"username"`
	CreatedAt uint64 `json:"created_at"`
}

// CreatedTime returns CreatedAt as a UTC time.
func (p *UserProfile) CreatedTime() time.Time {
	return time.Unix(int64(p.CreatedAt), 0).UTC()
}

// Payment is an escrowed transfer addressed to a username.
type Payment struct {
	PaymentID         uint64   `json:"payment_id"`
	RecipientUsername string   `json:"recipient_username"`
	Sender            string   `json:"sender"`
	Token             string   `json:"token"`
	Amount            *big.Int `json:"amount"`
	Message           string   `json:"message"`
	Timestamp         uint64   `json:"timestamp"`
	Claimed           bool     `json:"claimed"`
}

// Receipt describes the outcome of a broadcast state-changing call.
type Receipt struct {
	Method       string    `json:"method"`
	TxHash       string    `json:"txHash"`
	Status       string    `json:"status"`
	Ledger       uint32    `json:"ledger,omitempty"`
	Fee          int64     `json:"fee,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
	ReturnValue  string    `json:"returnValue,omitempty"`
	ResultDetail string    `json:"resultDetail,omitempty"`
}

// Config contains global configuration for the handlepay library.
type Config struct {
	RPCUrl            string        `json:"rpcUrl"            yaml:"rpc_url"            env:"HANDLEPAY_RPC_URL"            env-default:"https://soroban-testnet.stellar.org" validate:"required,url"`
	NetworkPassphrase string        `json:"networkPassphrase" yaml:"network_passphrase" env:"HANDLEPAY_NETWORK_PASSPHRASE" env-default:"Test SDF Network ; September 2015" validate:"required"`
	ContractID        string        `json:"contractId"        yaml:"contract_id"        env:"HANDLEPAY_CONTRACT_ID"        env-default:"CC6THIWIYPXPQEZJ7WJSBD4DNG4HBALIVKDF53E3GS46BYFFIHUH34QV" validate:"required,strkey"`
	NativeTokenID     string        `json:"nativeTokenId"     yaml:"native_token_id"    env:"HANDLEPAY_NATIVE_TOKEN_ID"    env-default:"CDLZFC3SYJYDZT7K67VZ75HPJVIEUVNIXF47ZG2FB2RMQQVU2HHGCYSC" validate:"omitempty,strkey"`
	DefaultTimeout    time.Duration `json:"defaultTimeout"    yaml:"timeout"            env:"HANDLEPAY_TIMEOUT"            env-default:"30s"`
	FetchConcurrency  int           `json:"fetchConcurrency"  yaml:"fetch_concurrency"  env:"HANDLEPAY_FETCH_CONCURRENCY"  env-default:"8"  validate:"gte=0,lte=16"`
	CallsPerSecond    float64       `json:"callsPerSecond"    yaml:"calls_per_second"   env:"HANDLEPAY_CALLS_PER_SECOND"   env-default:"20" validate:"gte=0"`
	CallBurst         int           `json:"callBurst"         yaml:"call_burst"         env:"HANDLEPAY_CALL_BURST"         env-default:"5"  validate:"gte=0"`
	StateDir          string        `json:"stateDir,omitempty" yaml:"state_dir"         env:"HANDLEPAY_STATE_DIR"`
	LogLevel          string        `json:"logLevel,omitempty" yaml:"log_level"         env:"HANDLEPAY_LOG_LEVEL"          env-default:"info" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics     bool          `json:"enableMetrics,omitempty" yaml:"enable_metrics" env:"HANDLEPAY_ENABLE_METRICS"`
}

// Defaults for the public testnet deployment.
const (
	DefaultRPCUrl         = "https://soroban-testnet.stellar.org"
	DefaultContractID     = "CC6THIWIYPXPQEZJ7WJSBD4DNG4HBALIVKDF53E3GS46BYFFIHUH34QV"
	DefaultNativeTokenID  = "CDLZFC3SYJYDZT7K67VZ75HPJVIEUVNIXF47ZG2FB2RMQQVU2HHGCYSC"
	DefaultCallTimeout    = 30 * time.Second
	DefaultFetchFanOut    = 8
	DefaultCallsPerSecond = 20
	DefaultCallBurst      = 5
)

// DefaultConfig returns the testnet configuration.
func DefaultConfig() *Config {
	return &Config{
		RPCUrl:            DefaultRPCUrl,
		NetworkPassphrase: string(NetworkTestnet),
		ContractID:        DefaultContractID,
		NativeTokenID:     DefaultNativeTokenID,
		DefaultTimeout:    DefaultCallTimeout,
		FetchConcurrency:  DefaultFetchFanOut,
		CallsPerSecond:    DefaultCallsPerSecond,
		CallBurst:         DefaultCallBurst,
		LogLevel:          "info",
	}
}

// Error types
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Cause   error       `json:"-"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) Unwrap() error {
	return e.Cause
}

// FieldMismatch is attached to TYPE_MISMATCH errors.
type FieldMismatch struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Common error codes
const (
	ErrUnsupportedValueShape = "UNSUPPORTED_VALUE_SHAPE"
	ErrValueOutOfRange       = "VALUE_OUT_OF_RANGE"
	ErrMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	ErrTypeMismatch          = "TYPE_MISMATCH"
	ErrTransientIO           = "TRANSIENT_IO"
	ErrSignerRejected        = "SIGNER_REJECTED"
	ErrContractFailed        = "CONTRACT_FAILED"
	ErrInvalidInput          = "INVALID_INPUT"
	ErrConfigError           = "CONFIG_ERROR"
	ErrStaleRequest          = "STALE_REQUEST"
)

// NewError builds an *Error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around cause, appending the cause to the message.
func WrapError(code string, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
