package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Store.Get", ErrPresentationNotFound, "id '01H'")
	want := "Store.Get: id '01H': presentation not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Generator.Run", ErrInvalidModelOutput, "")
	want := "Generator.Run: invalid model output"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Search.Query", ErrSearchFailed, "searxng")
	if !errors.Is(err, ErrSearchFailed) {
		t.Error("errors.Is should match ErrSearchFailed")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := NewDomainError("LLM.Chat", ErrProviderNotFound, "groq")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	if de.Op != "LLM.Chat" {
		t.Errorf("Op = %q, want %q", de.Op, "LLM.Chat")
	}
}

// --- ErrorCode tests ---

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeMalformedFrame, ErrorCodeOf(ErrMalformedFrame))
	assert.Equal(t, CodeSessionClosed, ErrorCodeOf(ErrSessionClosed))
	assert.Equal(t, CodeRateLimit, ErrorCodeOf(ErrRateLimit))
	assert.Equal(t, CodeForbidden, ErrorCodeOf(ErrForbidden))
}

func TestErrorCodeOf_DomainError(t *testing.T) {
	err := NewDomainError("Dispatcher.Dispatch", ErrUnknownEvent, "warning")
	assert.Equal(t, CodeUnknownEvent, ErrorCodeOf(err))
}

func TestErrorCodeOf_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrInvalidTransition)
	assert.Equal(t, CodeInvalidTransition, ErrorCodeOf(wrapped))
}

func TestErrorCodeOf_GenerationError(t *testing.T) {
	assert.Equal(t, CodeGenerationIncomplete, ErrorCodeOf(IncompleteError()))
	err := NewGenerationError(KindTransport, "slow down", fmt.Errorf("%w: 429", ErrRateLimit))
	assert.Equal(t, CodeRateLimit, ErrorCodeOf(err))
}

func TestErrorCodeOf_UnknownError(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(fmt.Errorf("some random error")))
}

func TestErrorCodeOf_Nil(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestDomainError_Code(t *testing.T) {
	err := NewDomainError("Store.Get", ErrPresentationNotFound, "01H")
	assert.Equal(t, CodePresentationNotFound, err.Code())
}

func TestDomainError_CodeUnknownSentinel(t *testing.T) {
	err := NewDomainError("Op", fmt.Errorf("custom"), "detail")
	assert.Equal(t, CodeUnknown, err.Code())
}

func TestAllSentinelsHaveCodes(t *testing.T) {
	require.NotEmpty(t, errorCodeMap)
	for sentinel, code := range errorCodeMap {
		assert.NotEmpty(t, code, "sentinel %v has empty code", sentinel)
		assert.NotEqual(t, CodeUnknown, code, "sentinel %v maps to UNKNOWN", sentinel)
	}
}

func TestCodeSearchOrderCoversAllSentinels(t *testing.T) {
	assert.Len(t, codeSearchOrder, len(errorCodeMap))
	for _, sentinel := range codeSearchOrder {
		_, ok := errorCodeMap[sentinel]
		assert.True(t, ok, "sentinel %v missing from errorCodeMap", sentinel)
	}
}

// --- NewSubSystemError tests ---

func TestNewSubSystemError_Format(t *testing.T) {
	err := NewSubSystemError("store", "Get", ErrNotFound, "01H")
	assert.Equal(t, "Get: 01H: not found", err.Error())
	assert.Equal(t, "store", err.SubSystem)
}

func TestNewSubSystemError_Unwrap(t *testing.T) {
	err := NewSubSystemError("search", "Query", ErrTimeout, "")
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestErrorCodeOf_SubSystem(t *testing.T) {
	assert.Equal(t, CodeSearchTimeout, ErrorCodeOf(NewSubSystemError("search", "Query", ErrTimeout, "")))
	assert.Equal(t, CodePlanLimit, ErrorCodeOf(NewSubSystemError("plan", "Check", ErrLimitReached, "")))
	assert.Equal(t, CodePresentationNotFound, ErrorCodeOf(NewSubSystemError("store", "Get", ErrNotFound, "")))
}

func TestErrorCodeOf_SubSystemFallback(t *testing.T) {
	err := NewSubSystemError("unknown-subsystem", "Op", ErrNotFound, "")
	assert.Equal(t, CodeNotFound, ErrorCodeOf(err))
}

func TestAuthSentinel_GatewayWrapsAuthInvalid(t *testing.T) {
	assert.True(t, errors.Is(ErrGatewayAuthFailed, ErrAuthInvalid))
	assert.Equal(t, CodeGatewayAuth, ErrorCodeOf(ErrGatewayAuthFailed))
	assert.Equal(t, CodeGatewayAuth, ErrorCodeOf(fmt.Errorf("wrap: %w", ErrGatewayAuthFailed)))
}

// --- WrapOp tests ---

func TestWrapOp_Nil(t *testing.T) {
	assert.Nil(t, WrapOp("anything", nil))
}

func TestWrapOp_Chain(t *testing.T) {
	inner := WrapOp("inner", ErrStore)
	outer := WrapOp("outer", inner)
	assert.Equal(t, "outer: inner: presentation store failed", outer.Error())
	assert.True(t, errors.Is(outer, ErrStore))
	assert.Equal(t, CodeStore, ErrorCodeOf(outer))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(ErrRateLimit))
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrProviderError)))
	assert.False(t, IsRetryableError(ErrAuthInvalid))
}

// --- GenerationError tests ---

func TestGenerationError_MessageIsVerbatim(t *testing.T) {
	err := NewGenerationError(KindProtocol, "quota exceeded", ErrGenerationFailed)
	assert.Equal(t, "quota exceeded", err.Error())
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestGenerationError_Incomplete(t *testing.T) {
	err := IncompleteError()
	assert.Equal(t, "generation incomplete", err.Error())
	assert.True(t, errors.Is(err, ErrGenerationIncomplete))
	assert.Equal(t, KindIncomplete, KindOf(fmt.Errorf("wrapped: %w", err)))
}

func TestGenerationError_FallbackMessage(t *testing.T) {
	err := NewGenerationError(KindCancelled, "", context.Canceled)
	assert.Equal(t, "context canceled", err.Error())
	assert.True(t, errors.Is(err, context.Canceled))

	bare := &GenerationError{Kind: KindTransport}
	assert.Equal(t, "transport failure", bare.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
