package jsonrpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pmbridge/mediation-server/internal/audit"
	"github.com/pmbridge/mediation-server/internal/capability"
	"github.com/pmbridge/mediation-server/internal/metrics"
	"github.com/pmbridge/mediation-server/pkg/errors"
	"github.com/pmbridge/mediation-server/pkg/logger"
)

// State is a Session's position in its lifecycle.
type State int

// Session states, in the order a well-behaved client walks through them.
const (
	StateNew State = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MinProtocolVersion and MaxProtocolVersion bound the range of protocol
// versions this server will negotiate.
const (
	MinProtocolVersion = "2024-01-01"
	MaxProtocolVersion = "2024-01-01"
)

// ClientInfo identifies the connecting client during initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies this server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Vendor  string `json:"vendor,omitempty"`
	Version string `json:"version,omitempty"`
}

// TraceLevel controls how much diagnostic detail the session emits.
type TraceLevel string

// Supported trace levels.
const (
	TraceOff      TraceLevel = "off"
	TraceMessages TraceLevel = "messages"
	TraceVerbose  TraceLevel = "verbose"
)

func validTraceLevel(t TraceLevel) bool {
	switch t {
	case "", TraceOff, TraceMessages, TraceVerbose:
		return true
	default:
		return false
	}
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string                        `json:"protocolVersion"`
	ClientInfo      ClientInfo                    `json:"clientInfo"`
	Capabilities    []capability.ClientCapability `json:"capabilities"`
	Trace           TraceLevel                    `json:"trace,omitempty"`
}

// InitializeResult is the payload returned from a successful initialize.
type InitializeResult struct {
	ProtocolVersion string                  `json:"protocolVersion"`
	ServerInfo      ServerInfo              `json:"serverInfo"`
	Capabilities    []capability.Capability `json:"capabilities"`
}

// Handler processes one request or notification's params and returns a
// result to be marshaled into the response (ignored for notifications).
type Handler func(ctx context.Context, s *Session, params json.RawMessage) (any, error)

// Registry looks up method handlers and exposes the server's capability set
// for negotiation during initialize.
type Registry interface {
	Lookup(method string) (Handler, bool)
	Capabilities() *capability.Registry
}

// Transport is the minimal framing abstraction a Session writes responses
// and notifications through. Reading is driven by the caller via Handle.
type Transport interface {
	Send(ctx context.Context, data []byte) error
}

// inFlight tracks one outstanding request so it can be cancelled.
type inFlight struct {
	cancel context.CancelFunc
}

// Session is one client connection's JSON-RPC state machine: initialize
// handshake, capability/version negotiation, request dispatch, and
// cancellation bookkeeping.
type Session struct {
	mu    sync.Mutex
	state State

	registry  Registry
	transport Transport
	log       logger.Logger

	serverInfo ServerInfo

	negotiatedVersion string
	clientInfo        ClientInfo
	trace             TraceLevel

	requests map[string]*inFlight

	auditSink   audit.Sink
	metricsSink metrics.Sink
}

// NewSession creates a Session in StateNew, bound to the given registry,
// transport, and server identity. It reports to no-op audit/metrics sinks
// until SetAuditSink/SetMetricsSink are called.
func NewSession(registry Registry, transport Transport, serverInfo ServerInfo, log logger.Logger) *Session {
	return &Session{
		state:       StateNew,
		registry:    registry,
		transport:   transport,
		serverInfo:  serverInfo,
		log:         log,
		requests:    make(map[string]*inFlight),
		auditSink:   audit.NoopSink{},
		metricsSink: metrics.NoopSink{},
	}
}

// SetAuditSink replaces the session's audit sink.
func (s *Session) SetAuditSink(sink audit.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditSink = sink
}

// SetMetricsSink replaces the session's metrics sink.
func (s *Session) SetMetricsSink(sink metrics.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsSink = sink
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ClientInfo returns the client identity captured at initialize. Zero value
// before initialize completes.
func (s *Session) ClientInfo() ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

// Handle processes one incoming frame: parses it, routes it by kind, and
// writes back a response for requests. Notifications and responses produce
// no reply frame.
func (s *Session) Handle(ctx context.Context, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		s.writeError(ctx, ID{}, &Error{Code: CodeParseError, Message: err.Error()})
		return
	}

	switch msg.Kind() {
	case KindRequest:
		s.handleRequest(ctx, msg)
	case KindNotification:
		s.handleNotification(ctx, msg)
	case KindResponse, KindErrorResponse:
		// This server does not issue outbound requests of its own in the
		// current scope, so inbound responses have nothing to correlate
		// against; they're logged and dropped.
		s.log.Debugw("dropping unsolicited response", "id", msg.ID)
	default:
		s.writeError(ctx, ID{}, &Error{Code: CodeInvalidRequest, Message: "malformed message"})
	}
}

func (s *Session) handleRequest(ctx context.Context, msg *Message) {
	id := *msg.ID

	if msg.Method == "initialize" {
		s.handleInitialize(ctx, id, msg.Params)
		return
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateReady && msg.Method != "$/ping" {
		s.writeError(ctx, id, &Error{Code: CodeInvalidRequest, Message: "session is not ready; call initialize first"})
		return
	}

	if msg.Method == "$/ping" {
		s.writeResult(ctx, id, map[string]any{"ok": true})
		return
	}

	handler, ok := s.registry.Lookup(msg.Method)
	if !ok {
		s.writeError(ctx, id, &Error{Code: CodeMethodNotFound, Message: "unknown method " + msg.Method})
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	key := id.String()
	s.mu.Lock()
	s.requests[key] = &inFlight{cancel: cancel}
	inFlightCount := len(s.requests)
	sink := s.metricsSink
	s.mu.Unlock()

	sink.IncRequestCount(msg.Method)
	sink.SetInFlight(msg.Method, inFlightCount)
	start := time.Now()

	defer func() {
		s.mu.Lock()
		delete(s.requests, key)
		s.mu.Unlock()
		cancel()
		sink.ObserveRequestDuration(msg.Method, time.Since(start))
	}()

	result, err := s.invoke(reqCtx, handler, msg.Params)
	if err != nil {
		if errors.Code(err) == errors.EUnauthorized {
			s.auditSink.Record(audit.Event{
				EventType: "rpc.unauthorized",
				Severity:  audit.SeverityWarning,
				Subject:   s.ClientInfo().Name,
				Action:    msg.Method,
				Timestamp: time.Now(),
			})
		}
		if errors.IsContextCanceledError(err) {
			s.writeError(ctx, id, &Error{Code: CodeInternalError, Message: "request cancelled", Data: ErrorData{Code: DomainCancelled}})
			return
		}
		s.writeError(ctx, id, ToRPCError(err))
		return
	}
	s.writeResult(ctx, id, result)
}

func (s *Session) handleNotification(ctx context.Context, msg *Message) {
	switch msg.Method {
	case "$/cancelRequest":
		s.handleCancel(msg.Params)
		return
	case "$/close":
		s.mu.Lock()
		s.state = StateClosing
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateReady {
		return
	}

	handler, ok := s.registry.Lookup(msg.Method)
	if !ok {
		return
	}
	if _, err := s.invoke(ctx, handler, msg.Params); err != nil {
		s.log.Warnw("notification handler failed", "method", msg.Method, "error", err)
	}
}

func (s *Session) handleCancel(params json.RawMessage) {
	var p struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[p.ID.String()]; ok {
		req.cancel()
	}
}

// handleInitialize validates the handshake, negotiates protocol version and
// capabilities, and transitions the session to StateReady.
func (s *Session) handleInitialize(ctx context.Context, id ID, params json.RawMessage) {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		s.writeError(ctx, id, &Error{Code: CodeInvalidRequest, Message: "session already initialized"})
		return
	}
	s.state = StateInitializing
	s.mu.Unlock()

	var p InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.writeError(ctx, id, InvalidParamsError("", "params must be an initialize request object"))
		return
	}
	if p.ClientInfo.Name == "" {
		s.writeError(ctx, id, InvalidParamsError("/clientInfo/name", "clientInfo.name is required"))
		return
	}
	if !validTraceLevel(p.Trace) {
		s.writeError(ctx, id, InvalidParamsError("/trace", "trace must be one of off, messages, verbose"))
		return
	}

	version, err := negotiateVersion(p.ProtocolVersion)
	if err != nil {
		s.writeError(ctx, id, InvalidParamsError("/protocolVersion", err.Error()))
		return
	}

	negotiated := s.registry.Capabilities().Negotiate(p.Capabilities)

	s.mu.Lock()
	s.clientInfo = p.ClientInfo
	s.trace = p.Trace
	s.negotiatedVersion = version
	s.state = StateReady
	s.mu.Unlock()

	s.writeResult(ctx, id, InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      s.serverInfo,
		Capabilities:    negotiated,
	})
}

// negotiateVersion picks the highest version both client and server support.
// A client requesting a version outside [MinProtocolVersion,
// MaxProtocolVersion] is rejected rather than silently downgraded.
func negotiateVersion(requested string) (string, error) {
	if requested == "" {
		return MaxProtocolVersion, nil
	}
	if requested < MinProtocolVersion || requested > MaxProtocolVersion {
		return "", errors.New(errors.EValidation, "unsupported protocolVersion %q", requested)
	}
	return requested, nil
}

func (s *Session) invoke(ctx context.Context, h Handler, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.EInternal, "handler panic: %v", r)
		}
	}()
	return h(ctx, s, params)
}

func (s *Session) writeResult(ctx context.Context, id ID, result any) {
	msg, err := NewResponse(id, result)
	if err != nil {
		s.writeError(ctx, id, &Error{Code: CodeInternalError, Message: "failed to encode result"})
		return
	}
	s.send(ctx, msg)
}

func (s *Session) writeError(ctx context.Context, id ID, rpcErr *Error) {
	s.send(ctx, NewErrorResponse(id, rpcErr))
}

func (s *Session) send(ctx context.Context, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Errorw("failed to marshal outgoing message", "error", err)
		return
	}
	if err := s.transport.Send(ctx, data); err != nil {
		s.log.Warnw("failed to send message", "error", err)
	}
}
