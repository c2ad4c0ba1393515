package domain

import (
	"errors"
	"fmt"
)

// Category sentinels for the client core. Transport-level failures (not ready,
// timeout, payload decode) are surfaced to the immediate caller and never retried.
var (
	ErrNotReady      = fmt.Errorf("invalid state: connection not open")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrPayloadDecode = fmt.Errorf("payload decode failed")
	ErrDisconnected  = fmt.Errorf("connection closed")
	ErrInvalidInput  = fmt.Errorf("invalid input")
)

// Sentinel errors for the supporting layers.
var (
	ErrConfigLoad  = fmt.Errorf("failed to load configuration")
	ErrDecryption  = fmt.Errorf("decryption failed")
	ErrEncryption  = fmt.Errorf("encryption operation failed")
	ErrStatsStore  = fmt.Errorf("stats store operation failed")
	ErrNotFound    = fmt.Errorf("not found")
	ErrJoinRefused = fmt.Errorf("join refused by server")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Client.JoinLobby")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and metrics labels.
type ErrorCode string

const (
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeNotReady      ErrorCode = "NOT_READY"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodePayloadDecode ErrorCode = "PAYLOAD_DECODE"
	CodeDisconnected  ErrorCode = "DISCONNECTED"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	CodeDecryption    ErrorCode = "DECRYPTION"
	CodeEncryption    ErrorCode = "ENCRYPTION"
	CodeStatsStore    ErrorCode = "STATS_STORE"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeJoinRefused   ErrorCode = "JOIN_REFUSED"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
// Order of lookup in ErrorCodeOf is by errorCodeOrder so results are stable.
var errorCodeMap = map[error]ErrorCode{
	ErrNotReady:      CodeNotReady,
	ErrTimeout:       CodeTimeout,
	ErrPayloadDecode: CodePayloadDecode,
	ErrDisconnected:  CodeDisconnected,
	ErrInvalidInput:  CodeInvalidInput,
	ErrConfigLoad:    CodeConfigLoad,
	ErrDecryption:    CodeDecryption,
	ErrEncryption:    CodeEncryption,
	ErrStatsStore:    CodeStatsStore,
	ErrNotFound:      CodeNotFound,
	ErrJoinRefused:   CodeJoinRefused,
}

var errorCodeOrder = []error{
	ErrNotReady, ErrTimeout, ErrPayloadDecode, ErrDisconnected, ErrInvalidInput,
	ErrConfigLoad, ErrDecryption, ErrEncryption, ErrStatsStore, ErrNotFound, ErrJoinRefused,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for _, sentinel := range errorCodeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}

