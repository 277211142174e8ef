package jsonrpc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []Message
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) last() Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func newTestSession(t *testing.T) (*Session, *fakeTransport, *MethodRegistry) {
	t.Helper()
	caps := capability.NewRegistry()
	caps.Register(capability.Capability{Name: "issue", Kind: capability.KindResource, SupportedOps: []capability.ResourceOp{capability.OpList}})

	registry := NewMethodRegistry(caps)
	transport := &fakeTransport{}
	log, _ := logger.NewForTest()
	sess := NewSession(registry, transport, ServerInfo{Name: "test-server"}, log)
	return sess, transport, registry
}

func initSession(t *testing.T, sess *Session, transport *fakeTransport) {
	t.Helper()
	params, err := json.Marshal(InitializeParams{
		ClientInfo:   ClientInfo{Name: "test-client"},
		Capabilities: []capability.ClientCapability{{Name: "issue", Kind: capability.KindResource}},
	})
	require.NoError(t, err)

	msg, err := NewRequest(NewIntID(1), "initialize", json.RawMessage(params))
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
	assert.Equal(t, StateReady, sess.State())
}

func TestSessionInitializeHandshake(t *testing.T) {
	sess, transport, _ := newTestSession(t)
	initSession(t, sess, transport)

	var result InitializeResult
	require.NoError(t, json.Unmarshal(transport.last().Result, &result))
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	require.Len(t, result.Capabilities, 1)
	assert.Equal(t, "issue", result.Capabilities[0].Name)
}

func TestSessionRejectsRequestsBeforeReady(t *testing.T) {
	sess, transport, registry := newTestSession(t)
	registry.Register("issue.list", func(context.Context, *Session, json.RawMessage) (any, error) {
		return map[string]any{"items": []any{}}, nil
	})

	msg, err := NewRequest(NewIntID(2), "issue.list", map[string]any{})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestSessionDispatchesAfterReady(t *testing.T) {
	sess, transport, registry := newTestSession(t)
	registry.Register("issue.list", func(context.Context, *Session, json.RawMessage) (any, error) {
		return map[string]any{"items": []any{}}, nil
	})
	initSession(t, sess, transport)

	msg, err := NewRequest(NewIntID(2), "issue.list", map[string]any{})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestSessionUnknownMethod(t *testing.T) {
	sess, transport, _ := newTestSession(t)
	initSession(t, sess, transport)

	msg, err := NewRequest(NewIntID(3), "issue.explode", map[string]any{})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestSessionHandlerErrorTranslatesToRPCError(t *testing.T) {
	sess, transport, registry := newTestSession(t)
	registry.Register("issue.get", func(context.Context, *Session, json.RawMessage) (any, error) {
		return nil, errors.New(errors.ENotFound, "issue ENG-1 not found")
	})
	initSession(t, sess, transport)

	msg, err := NewRequest(NewIntID(4), "issue.get", map[string]any{"id": "ENG-1"})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestSessionCancelRequest(t *testing.T) {
	sess, transport, registry := newTestSession(t)
	started := make(chan struct{})
	registry.Register("issue.slow", func(ctx context.Context, _ *Session, _ json.RawMessage) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	initSession(t, sess, transport)

	reqMsg, err := NewRequest(NewIntID(5), "issue.slow", map[string]any{})
	require.NoError(t, err)
	reqData, err := json.Marshal(reqMsg)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sess.Handle(context.Background(), reqData)
		close(done)
	}()
	<-started

	cancelMsg, err := NewNotification("$/cancelRequest", map[string]any{"id": 5})
	require.NoError(t, err)
	cancelData, err := json.Marshal(cancelMsg)
	require.NoError(t, err)
	sess.Handle(context.Background(), cancelData)

	<-done
	resp := transport.last()
	require.NotNil(t, resp.Error)
}

func TestSessionPingBeforeReady(t *testing.T) {
	sess, transport, _ := newTestSession(t)

	msg, err := NewRequest(NewIntID(6), "$/ping", nil)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	sess.Handle(context.Background(), data)
	resp := transport.last()
	require.Nil(t, resp.Error)
}
