package jsonrpc

import (
	pmerrors "github.com/pmbridge/mediation-server/pkg/errors"
)

// JSON-RPC reserved error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Domain error codes, carried in Error.Data.Code for kinds that don't have a
// reserved JSON-RPC slot.
const (
	DomainNotFound     = "NOT_FOUND"
	DomainUpstream     = "UPSTREAM_ERROR"
	DomainRateLimited  = "RATE_LIMITED"
	DomainTimeout      = "TIMEOUT"
	DomainCancelled    = "CANCELLED"
	DomainUnauthorized = "UNAUTHORIZED"
)

// ErrorData is the optional structured payload attached to domain errors.
type ErrorData struct {
	Code string `json:"code"`
}

// InvalidParamsData carries the JSON-Pointer-like path to the offending
// field.
type InvalidParamsData struct {
	Path string `json:"path"`
}

// ToRPCError translates an application error into a wire Error using the
// reserved JSON-RPC codes plus a domain code in Data where one applies.
// Unrecognized errors fall through to InternalError.
func ToRPCError(err error) *Error {
	if err == nil {
		return nil
	}

	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}

	switch pmerrors.Code(err) {
	case pmerrors.EValidation:
		return &Error{Code: CodeInvalidParams, Message: pmerrors.Message(err)}
	case pmerrors.EUnauthorized:
		return &Error{Code: CodeInvalidRequest, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainUnauthorized}}
	case pmerrors.ENotFound:
		return &Error{Code: CodeInternalError, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainNotFound}}
	case pmerrors.EUpstream:
		return &Error{Code: CodeInternalError, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainUpstream}}
	case pmerrors.ERateLimited:
		return &Error{Code: CodeInternalError, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainRateLimited}}
	case pmerrors.ETimeout:
		return &Error{Code: CodeInternalError, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainTimeout}}
	case pmerrors.ECancelled:
		return &Error{Code: CodeInternalError, Message: pmerrors.Message(err), Data: ErrorData{Code: DomainCancelled}}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// InvalidParamsError builds the InvalidParams error with a JSON-Pointer-like path.
func InvalidParamsError(path, message string) *Error {
	return &Error{Code: CodeInvalidParams, Message: message, Data: InvalidParamsData{Path: path}}
}
