package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by a module prefix ("COMMON", "MENTION", "MODEL", "CORPUS").
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeStorageError       ErrorCode = "COMMON_014"
	ErrCodeMessagingError     ErrorCode = "COMMON_015"
	ErrCodeSearchError        ErrorCode = "COMMON_016"
	ErrCodeRateLimited        ErrorCode = "COMMON_017"
)

// Mention extraction and evaluation codes.
const (
	// ErrCodeInvalidInput covers malformed evaluator arguments and unreadable
	// lexicon or document files. It is always surfaced to the caller.
	ErrCodeInvalidInput      ErrorCode = "MENTION_001"
	ErrCodeLexiconEmpty      ErrorCode = "MENTION_002"
	ErrCodeSegmenterFailed   ErrorCode = "MENTION_003"
	ErrCodeEvaluationInvalid ErrorCode = "MENTION_004"
)

// Co-occurrence model codes.
const (
	ErrCodeModelNotLoaded ErrorCode = "MODEL_001"
	ErrCodeModelNotFound  ErrorCode = "MODEL_002"
	ErrCodeModelCorrupt   ErrorCode = "MODEL_003"
	ErrCodeTrainingEmpty  ErrorCode = "MODEL_004"
)

// Corpus acquisition codes.
const (
	// ErrCodeAmbiguousType is raised when a corpus entity carries an unknown
	// @type. It aborts the whole load.
	ErrCodeAmbiguousType    ErrorCode = "CORPUS_001"
	ErrCodeCorpusParse      ErrorCode = "CORPUS_002"
	ErrCodeConversionFailed ErrorCode = "CORPUS_003"
	ErrCodeDocumentEmpty    ErrorCode = "CORPUS_004"
	ErrCodeDownloadFailed   ErrorCode = "CORPUS_005"
	ErrCodeInvalidPDF       ErrorCode = "CORPUS_006"
)

// CodeOK is returned by GetCode for a nil error; CodeUnknown for a foreign error.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// ErrorCodeHTTPStatus maps codes to the status the HTTP layer answers with.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusBadRequest,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeSearchError:        http.StatusInternalServerError,
	ErrCodeRateLimited:        http.StatusTooManyRequests,

	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeLexiconEmpty:      http.StatusBadRequest,
	ErrCodeSegmenterFailed:   http.StatusInternalServerError,
	ErrCodeEvaluationInvalid: http.StatusBadRequest,

	ErrCodeModelNotLoaded: http.StatusServiceUnavailable,
	ErrCodeModelNotFound:  http.StatusNotFound,
	ErrCodeModelCorrupt:   http.StatusInternalServerError,
	ErrCodeTrainingEmpty:  http.StatusBadRequest,

	ErrCodeAmbiguousType:    http.StatusUnprocessableEntity,
	ErrCodeCorpusParse:      http.StatusBadRequest,
	ErrCodeConversionFailed: http.StatusUnprocessableEntity,
	ErrCodeDocumentEmpty:    http.StatusUnprocessableEntity,
	ErrCodeDownloadFailed:   http.StatusBadGateway,
	ErrCodeInvalidPDF:       http.StatusUnprocessableEntity,
}

// ErrorCodeMessage holds the default message per code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "messaging error",
	ErrCodeSearchError:        "search backend error",
	ErrCodeRateLimited:        "rate limit exceeded",

	ErrCodeInvalidInput:      "invalid input",
	ErrCodeLexiconEmpty:      "lexicon is empty",
	ErrCodeSegmenterFailed:   "sentence segmenter unavailable",
	ErrCodeEvaluationInvalid: "invalid evaluation arguments",

	ErrCodeModelNotLoaded: "co-occurrence model not loaded",
	ErrCodeModelNotFound:  "co-occurrence model not found",
	ErrCodeModelCorrupt:   "co-occurrence model artifact corrupt",
	ErrCodeTrainingEmpty:  "no training examples",

	ErrCodeAmbiguousType:    "ambiguous entity type in corpus",
	ErrCodeCorpusParse:      "failed to parse corpus",
	ErrCodeConversionFailed: "document conversion failed",
	ErrCodeDocumentEmpty:    "document has no text",
	ErrCodeDownloadFailed:   "resource download failed",
	ErrCodeInvalidPDF:       "not a valid PDF file",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) == 2 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
