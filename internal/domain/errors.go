package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicate        = fmt.Errorf("duplicate")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLimitReached     = fmt.Errorf("limit reached")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrDisabled         = fmt.Errorf("disabled")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrProviderError    = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")
	ErrDecryption       = fmt.Errorf("decryption failed")
	ErrEncryption       = fmt.Errorf("encryption operation failed")

	// Stream protocol errors.
	ErrMalformedFrame       = fmt.Errorf("malformed frame")
	ErrUnknownEvent         = fmt.Errorf("unknown event type")
	ErrInvalidTransition    = fmt.Errorf("invalid phase transition")
	ErrSessionClosed        = fmt.Errorf("session closed")
	ErrGenerationIncomplete = fmt.Errorf("generation incomplete")
	ErrGenerationFailed     = fmt.Errorf("generation failed")
	ErrMissingCredential    = fmt.Errorf("missing credential")

	// Generation pipeline errors.
	ErrPresentationNotFound = fmt.Errorf("presentation not found")
	ErrPlanLimit            = fmt.Errorf("plan limit exceeded")
	ErrSearchFailed         = fmt.Errorf("web search failed")
	ErrInvalidModelOutput   = fmt.Errorf("invalid model output")
	ErrStore                = fmt.Errorf("presentation store failed")

	// Gateway errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)

	// RBAC errors.
	ErrForbidden = fmt.Errorf("forbidden: insufficient permissions")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrCircuitOpen     = fmt.Errorf("circuit open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Store.Get")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "search", "store"); used for ErrorCode dispatch
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

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderError)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown              ErrorCode = "UNKNOWN"
	CodeProviderNotFound     ErrorCode = "PROVIDER_NOT_FOUND"
	CodeConfigLoad           ErrorCode = "CONFIG_LOAD"
	CodeEncryption           ErrorCode = "ENCRYPTION"
	CodeDecryption           ErrorCode = "DECRYPTION"
	CodeMalformedFrame       ErrorCode = "MALFORMED_FRAME"
	CodeUnknownEvent         ErrorCode = "UNKNOWN_EVENT"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	CodeSessionClosed        ErrorCode = "SESSION_CLOSED"
	CodeGenerationIncomplete ErrorCode = "GENERATION_INCOMPLETE"
	CodeGenerationFailed     ErrorCode = "GENERATION_FAILED"
	CodeMissingCredential    ErrorCode = "MISSING_CREDENTIAL"
	CodePresentationNotFound ErrorCode = "PRESENTATION_NOT_FOUND"
	CodePlanLimit            ErrorCode = "PLAN_LIMIT"
	CodeSearchFailed         ErrorCode = "SEARCH_FAILED"
	CodeInvalidModelOutput   ErrorCode = "INVALID_MODEL_OUTPUT"
	CodeStore                ErrorCode = "STORE"
	CodeGatewayAuth          ErrorCode = "GATEWAY_AUTH"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeContextOverflow      ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit            ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid          ErrorCode = "AUTH_INVALID"
	CodeCircuitOpen          ErrorCode = "CIRCUIT_OPEN"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeSearchDisabled  ErrorCode = "SEARCH_DISABLED"
	CodeSearchTimeout   ErrorCode = "SEARCH_TIMEOUT"
	CodeLLMTimeout      ErrorCode = "LLM_TIMEOUT"
	CodeStoreDuplicate  ErrorCode = "STORE_DUPLICATE"
	CodePlanUnknown     ErrorCode = "PLAN_UNKNOWN"
	CodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"

	// Category error codes. Fallback codes when no subsystem-specific code matches.
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeLimitReached     ErrorCode = "LIMIT_REACHED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeDisabled         ErrorCode = "DISABLED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrDuplicate:        CodeDuplicate,
	ErrTimeout:          CodeTimeout,
	ErrLimitReached:     CodeLimitReached,
	ErrPermissionDenied: CodePermissionDenied,
	ErrDisabled:         CodeDisabled,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderError:    CodeProviderError,

	ErrProviderNotFound:     CodeProviderNotFound,
	ErrConfigLoad:           CodeConfigLoad,
	ErrDecryption:           CodeDecryption,
	ErrEncryption:           CodeEncryption,
	ErrMalformedFrame:       CodeMalformedFrame,
	ErrUnknownEvent:         CodeUnknownEvent,
	ErrInvalidTransition:    CodeInvalidTransition,
	ErrSessionClosed:        CodeSessionClosed,
	ErrGenerationIncomplete: CodeGenerationIncomplete,
	ErrGenerationFailed:     CodeGenerationFailed,
	ErrMissingCredential:    CodeMissingCredential,
	ErrPresentationNotFound: CodePresentationNotFound,
	ErrPlanLimit:            CodePlanLimit,
	ErrSearchFailed:         CodeSearchFailed,
	ErrInvalidModelOutput:   CodeInvalidModelOutput,
	ErrStore:                CodeStore,
	ErrGatewayAuthFailed:    CodeGatewayAuth,
	ErrForbidden:            CodeForbidden,
	ErrContextOverflow:      CodeContextOverflow,
	ErrRateLimit:            CodeRateLimit,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrCircuitOpen:          CodeCircuitOpen,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrDisabled: {
		"search": CodeSearchDisabled,
	},
	ErrTimeout: {
		"search": CodeSearchTimeout,
		"llm":    CodeLLMTimeout,
	},
	ErrDuplicate: {
		"store": CodeStoreDuplicate,
	},
	ErrNotFound: {
		"plan":  CodePlanUnknown,
		"store": CodePresentationNotFound,
	},
	ErrLimitReached: {
		"plan":    CodePlanLimit,
		"gateway": CodeRequestTooLarge,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and GenerationError and uses errors.Is to match
// sentinel errors. Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Specific sentinels are checked before category ones so that
	// ErrGatewayAuthFailed wins over the ErrAuthInvalid it wraps.
	for _, sentinel := range codeSearchOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// codeSearchOrder fixes the errors.Is walk order for ErrorCodeOf.
var codeSearchOrder = []error{
	ErrGatewayAuthFailed,
	ErrGenerationIncomplete,
	ErrGenerationFailed,
	ErrMissingCredential,
	ErrMalformedFrame,
	ErrUnknownEvent,
	ErrInvalidTransition,
	ErrSessionClosed,
	ErrPresentationNotFound,
	ErrPlanLimit,
	ErrSearchFailed,
	ErrInvalidModelOutput,
	ErrStore,
	ErrCircuitOpen,
	ErrProviderNotFound,
	ErrConfigLoad,
	ErrDecryption,
	ErrEncryption,
	ErrForbidden,
	ErrContextOverflow,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrNotFound,
	ErrDuplicate,
	ErrTimeout,
	ErrLimitReached,
	ErrPermissionDenied,
	ErrDisabled,
	ErrInvalidInput,
	ErrProviderError,
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}

// ErrorKind classifies a terminal generation failure.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindCredential ErrorKind = "credential"
	KindProtocol   ErrorKind = "protocol"
	KindIncomplete ErrorKind = "incomplete"
	KindCancelled  ErrorKind = "cancelled"
)

// GenerationError is the single terminal failure surfaced by a generation
// session. Error returns Message unchanged so callers can display it as-is.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " failure"
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError creates a GenerationError of the given kind.
func NewGenerationError(kind ErrorKind, message string, err error) *GenerationError {
	return &GenerationError{Kind: kind, Message: message, Err: err}
}

// IncompleteError returns the failure reported when a stream ends without a
// usable completion.
func IncompleteError() *GenerationError {
	return &GenerationError{Kind: KindIncomplete, Message: ErrGenerationIncomplete.Error(), Err: ErrGenerationIncomplete}
}

// KindOf returns the ErrorKind of err, or "" if err is not a GenerationError.
func KindOf(err error) ErrorKind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
