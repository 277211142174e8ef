package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pmerrors "github.com/pmbridge/mediation-server/pkg/errors"
)

func TestToRPCError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
		wantData any
	}{
		{
			name:     "validation error maps to invalid params",
			err:      pmerrors.New(pmerrors.EValidation, "limit must be positive"),
			wantCode: CodeInvalidParams,
		},
		{
			name:     "not found error carries domain code",
			err:      pmerrors.New(pmerrors.ENotFound, "issue ENG-1 not found"),
			wantCode: CodeInternalError,
			wantData: ErrorData{Code: DomainNotFound},
		},
		{
			name:     "rate limited error carries domain code",
			err:      pmerrors.New(pmerrors.ERateLimited, "upstream quota exhausted"),
			wantCode: CodeInternalError,
			wantData: ErrorData{Code: DomainRateLimited},
		},
		{
			name:     "unrecognized error falls through to internal error",
			err:      assertErr{},
			wantCode: CodeInternalError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rpcErr := ToRPCError(tc.err)
			assert.Equal(t, tc.wantCode, rpcErr.Code)
			if tc.wantData != nil {
				assert.Equal(t, tc.wantData, rpcErr.Data)
			}
		})
	}
}

func TestToRPCErrorPassesThroughExistingRPCError(t *testing.T) {
	original := &Error{Code: CodeMethodNotFound, Message: "nope"}
	assert.Same(t, original, ToRPCError(original))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
