// License: Apache-2.0
//
// Package jsonrpc is an optional helper layer above a plain
// evloop.Connection: JSON-RPC 2.0 request/response framing over newline-
// delimited JSON, encoded and decoded with sugawarayuuta/sonnet rather
// than the standard library's encoding/json.
package jsonrpc

import (
	"encoding/json"

	"github.com/sugawarayuuta/sonnet"
)

// Request is a JSON-RPC 2.0 request or notification (ID omitted/nil for
// a notification). Params/Result stay as json.RawMessage views rather
// than decoded values, since sonnet's Marshal/Unmarshal honor the same
// RawMessage contract as encoding/json (both implement
// Marshaler/Unmarshaler over the raw bytes).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response: exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      any             `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// NewRequest builds a Request with params marshaled via sonnet.
func NewRequest(id any, method string, params any) (Request, error) {
	p, err := sonnet.Marshal(params)
	if err != nil {
		return Request{}, err
	}
	return Request{JSONRPC: Version, Method: method, Params: json.RawMessage(p), ID: id}, nil
}

// NewResult builds a success Response with result marshaled via sonnet.
func NewResult(id any, result any) (Response, error) {
	r, err := sonnet.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: Version, Result: json.RawMessage(r), ID: id}, nil
}

// NewError builds a failure Response.
func NewError(id any, code int, message string) Response {
	return Response{JSONRPC: Version, Error: &Error{Code: code, Message: message}, ID: id}
}
