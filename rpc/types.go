// Package rpc exposes the game ledger via a JSON-RPC 2.0 HTTP endpoint and a
// websocket event feed.
package rpc

import "encoding/json"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object. Data is set for game rule
// rejections and carries the machine-readable code.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData is the structured part of a game error.
type ErrorData struct {
	Code string         `json:"code"`
	Meta map[string]any `json:"meta,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return e.Data.Code + ": " + e.Message
	}
	return e.Message
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeGameError      = -32001
	CodeTxRejected     = -32002
)

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errResponse(id, CodeInternalError, "encode result: "+err.Error())
	}
	return Response{JSONRPC: "2.0", ID: id, Result: data}
}
