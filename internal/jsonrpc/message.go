// Package jsonrpc implements the bidirectional JSON-RPC 2.0 session core:
// frame parsing/serialization, message typing, the initialize handshake,
// capability/version negotiation, method dispatch, and cancellation.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC version this server speaks.
const Version = "2.0"

// Kind classifies a parsed Message.
type Kind int

// Message kinds. A message is exactly one of these.
const (
	KindInvalid Kind = iota
	KindRequest
	KindNotification
	KindResponse
	KindErrorResponse
)

// ID is a JSON-RPC request identifier, either a string or a number on the
// wire. It round-trips through json.Marshal/Unmarshal without losing its
// original representation.
type ID struct {
	raw json.RawMessage
}

// NewStringID builds an ID from a string.
func NewStringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: raw}
}

// NewIntID builds an ID from an integer.
func NewIntID(n int64) ID {
	raw, _ := json.Marshal(n)
	return ID{raw: raw}
}

// IsZero reports whether the ID was never set.
func (id ID) IsZero() bool {
	return len(id.raw) == 0
}

// String returns a canonical string form, used as an in-flight table key.
func (id ID) String() string {
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	id.raw = append([]byte(nil), data...)
	return nil
}

// Error is the JSON-RPC error object carried in an error-response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface so an *Error can be returned directly
// by a handler.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Message is the JSON-RPC 2.0 envelope.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind classifies the message: exactly one of {method+id = request,
// method w/o id = notification, result+id = response,
// error+id = error-response}.
func (m *Message) Kind() Kind {
	hasMethod := m.Method != ""
	hasID := m.ID != nil
	hasResult := m.Result != nil
	hasError := m.Error != nil

	switch {
	case hasMethod && hasID && !hasResult && !hasError:
		return KindRequest
	case hasMethod && !hasID:
		return KindNotification
	case !hasMethod && hasID && hasResult && !hasError:
		return KindResponse
	case !hasMethod && hasID && hasError && !hasResult:
		return KindErrorResponse
	default:
		return KindInvalid
	}
}

// ParseMessage decodes a single JSON document into a Message, rejecting
// anything that doesn't satisfy the JSON-RPC envelope invariant.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", m.JSONRPC)
	}
	if m.Kind() == KindInvalid {
		return nil, fmt.Errorf("message is not a valid request, notification, response, or error-response")
	}
	return &m, nil
}

// NewRequest builds a request Message.
func NewRequest(id ID, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification Message.
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResponse builds a success response Message.
func NewResponse(id ID, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, ID: &id, Result: raw}, nil
}

// NewErrorResponse builds an error-response Message.
func NewErrorResponse(id ID, rpcErr *Error) *Message {
	return &Message{JSONRPC: Version, ID: &id, Error: rpcErr}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
