package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesFieldsFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeFileNotFound, CategoryIO, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidInput, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing config", nil)
	assert.Equal(t, "[ERR_201_FILE_NOT_FOUND] missing config", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeStoreFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, "disk on fire", err.Message)
	assert.Same(t, cause, stderrors.Unwrap(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeQueryEmpty, "empty query", nil)
	b := New(ErrCodeQueryEmpty, "different message", nil)
	c := New(ErrCodeInvalidInput, "bad input", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWithDetailAndSuggestionChain(t *testing.T) {
	err := New(ErrCodeEmbeddingFailed, "embed failed", nil).
		WithDetail("provider", "ollama").
		WithDetail("batch_size", "32").
		WithSuggestion("check that the Ollama server is running")

	assert.Equal(t, "ollama", err.Details["provider"])
	assert.Equal(t, "32", err.Details["batch_size"])
	assert.Equal(t, "check that the Ollama server is running", err.Suggestion)
}

func TestIsRetryableAndIsFatal(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "timeout", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))

	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "corrupt", nil)))
	assert.False(t, IsFatal(New(ErrCodeNetworkTimeout, "timeout", nil)))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeSearchFailed, GetCode(New(ErrCodeSearchFailed, "x", nil)))
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeConfigNotFound, "config file not found", nil).
		WithSuggestion("run 'codeatlas init' to create one")

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: config file not found")
	assert.Contains(t, out, "Hint: run 'codeatlas init' to create one")
	assert.Contains(t, out, "Code: "+ErrCodeConfigNotFound)
}

func TestFormatForCLIWrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(fmt.Errorf("something broke"))
	assert.Contains(t, out, "Error: something broke")
	assert.Contains(t, out, "Code: "+ErrCodeInternal)
}

func TestFormatJSONRoundTrip(t *testing.T) {
	err := New(ErrCodeIndexFailed, "index write failed", fmt.Errorf("io: short write")).
		WithDetail("path", "/tmp/atlas.db")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeIndexFailed, decoded["code"])
	assert.Equal(t, "index write failed", decoded["message"])
	assert.Equal(t, "io: short write", decoded["cause"])
}

func TestFormatForLog(t *testing.T) {
	err := New(ErrCodeNetworkUnavailable, "embedder unreachable", nil).
		WithDetail("host", "http://localhost:11434")

	attrs := FormatForLog(err)
	assert.Equal(t, ErrCodeNetworkUnavailable, attrs["error_code"])
	assert.Equal(t, true, attrs["retryable"])
	assert.Equal(t, "http://localhost:11434", attrs["detail_host"])

	plain := FormatForLog(fmt.Errorf("plain"))
	assert.Equal(t, "plain", plain["error"])

	assert.Nil(t, FormatForLog(nil))
}
