// Package mcp implements the Model Context Protocol server for
// codeatlas. It exposes the semantic index to AI clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	atlaserrors "github.com/codeatlas/codeatlas/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotReady indicates the index has not been built yet.
	ErrCodeIndexNotReady = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ae *atlaserrors.AtlasError
	if errors.As(err, &ae) {
		return mapAtlasError(ae)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func mapAtlasError(ae *atlaserrors.AtlasError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Category {
	case atlaserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case atlaserrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case atlaserrors.CategoryIO:
		if ae.Code == atlaserrors.ErrCodeCorruptIndex {
			return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		if ae.Code == atlaserrors.ErrCodeEmbeddingFailed {
			return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
