package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"invalid input", errors.ErrCodeInvalidInput, "yPred must have exactly 5 elements"},
		{"ambiguous type", errors.ErrCodeAmbiguousType, "unknown entity type"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	ae := errors.New(errors.ErrCodeInvalidInput, "bad lexicon")
	assert.Equal(t, "[MENTION_001] bad lexicon", ae.Error())

	withDetail := ae.WithDetail("abbr.txt")
	assert.Equal(t, "[MENTION_001] bad lexicon: abbr.txt", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	wrapped := errors.Wrap(stderrors.New("eof"), errors.ErrCodeCorpusParse, "decode corpus")
	assert.Equal(t, "[CORPUS_002] decode corpus: eof", wrapped.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "x"))
	assert.Nil(t, errors.Wrapf(nil, errors.ErrCodeInternal, "x %d", 1))
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	inner := errors.New(errors.ErrCodeModelNotFound, "no artifact")
	outer := errors.Wrap(inner, errors.CodeUnknown, "load model")
	assert.Equal(t, errors.ErrCodeModelNotFound, outer.Code)
}

func TestWrap_UnwrapChain(t *testing.T) {
	root := stderrors.New("disk full")
	ae := errors.Wrap(root, errors.ErrCodeStorageError, "put object")
	assert.True(t, stderrors.Is(ae, root))

	var target *errors.AppError
	require.True(t, stderrors.As(fmt.Errorf("ctx: %w", ae), &target))
	assert.Equal(t, errors.ErrCodeStorageError, target.Code)
}

func TestSentinelComparison(t *testing.T) {
	sentinel := errors.New(errors.ErrCodeNotFound, "cache miss")
	wrapped := errors.Wrap(sentinel, errors.ErrCodeCacheError, "lookup")
	assert.True(t, stderrors.Is(wrapped, sentinel))
	assert.False(t, stderrors.Is(wrapped, errors.New(errors.ErrCodeNotFound, "other")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_And_GetCode(t *testing.T) {
	ae := errors.NewInvalidInput("empty ground truth")
	chained := fmt.Errorf("evaluate: %w", ae)

	assert.True(t, errors.IsCode(chained, errors.ErrCodeInvalidInput))
	assert.True(t, errors.IsInvalidInput(chained))
	assert.False(t, errors.IsNotFound(chained))
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(chained))
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, errors.IsNotFound(errors.NotFound("run")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeModelNotFound, "model")))
	assert.False(t, errors.IsNotFound(errors.Internal("boom")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Codes
// ─────────────────────────────────────────────────────────────────────────────

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusForCode(errors.ErrCodeInvalidInput))
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatusForCode(errors.ErrCodeModelNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, errors.HTTPStatusForCode(errors.ErrCodeModelNotLoaded))
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatusForCode("NOPE_999"))
	assert.True(t, errors.IsClientError(errors.ErrCodeAmbiguousType))
	assert.False(t, errors.IsClientError(errors.ErrCodeDatabaseError))
}

func TestDefaultMessageAndModule(t *testing.T) {
	assert.Equal(t, "invalid input", errors.DefaultMessageForCode(errors.ErrCodeInvalidInput))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode("X"))
	assert.Equal(t, "CORPUS", errors.ModuleForCode(errors.ErrCodeAmbiguousType))
	assert.Equal(t, "MENTION", errors.ModuleForCode(errors.ErrCodeInvalidInput))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode("OK"))
}

func TestEveryCodeHasStatusAndMessage(t *testing.T) {
	for code := range errors.ErrorCodeHTTPStatus {
		_, ok := errors.ErrorCodeMessage[code]
		assert.True(t, ok, "missing message for %s", code)
	}
}
