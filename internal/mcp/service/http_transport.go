package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/platform/timeouts"
)

// sessionHeader carries the session identifier between bridge and
// client. The first response to a session-less request sets it.
const sessionHeader = "X-MCP-Session-ID"

// HTTPTransport serves MCP over HTTP: JSON-RPC messages arrive as POST
// bodies and responses return inline or over a Server-Sent Events
// stream. Each session gets its own connection and its own MCP server
// loop.
type HTTPTransport struct {
	addr       string
	server     *mcp.Server
	httpServer *http.Server

	sessions   map[string]*httpSession
	sessionsMu sync.RWMutex

	serveCtx    context.Context
	serveCancel context.CancelFunc
}

// httpSession binds one client session to its connection. The MCP
// server loop for the session starts on first use.
type httpSession struct {
	id      string
	conn    *httpConnection
	runOnce sync.Once
}

// httpConnection implements mcp.Connection over channel pairs fed by
// the HTTP handlers.
type httpConnection struct {
	sessionID string
	reqChan   chan jsonrpc.Message
	respChan  chan jsonrpc.Message
	closed    chan struct{}

	mu         sync.Mutex
	closedFlag bool
}

// NewHTTPTransport builds an HTTP transport for the given MCP server.
/// An empty addr binds to localhost:8081; the bridge carries a service
// token for the ERP, so it stays off non-loopback interfaces unless
// deployed behind something that authenticates.
func NewHTTPTransport(addr string, server *mcp.Server) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	return &HTTPTransport{
		addr:     addr,
		server:   server,
		sessions: make(map[string]*httpSession),
	}
}

// Start runs the HTTP listener until the context ends, then shuts the
// listener and every session loop down.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serveCtx, t.serveCancel = context.WithCancel(ctx)
	defer t.serveCancel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp/messages", t.handleMessages)
	mux.HandleFunc("GET /mcp/sse", t.handleSSE)
	mux.HandleFunc("GET /mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:              t.addr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	log.Printf("serving MCP over http on %s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Stop session loops and SSE streams first so Shutdown is not
		// stuck waiting on open streams.
		t.serveCancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP http server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("serve MCP over http: %w", err)
	}
}

// openSession registers a new session and its connection.
func (t *HTTPTransport) openSession() (*httpSession, error) {
	sessionID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &httpSession{
		id: sessionID,
		conn: &httpConnection{
			sessionID: sessionID,
			reqChan:   make(chan jsonrpc.Message, 10),
			respChan:  make(chan jsonrpc.Message, 10),
			closed:    make(chan struct{}),
		},
	}

	t.sessionsMu.Lock()
	t.sessions[sessionID] = session
	t.sessionsMu.Unlock()

	return session, nil
}

// session resolves an existing session, or opens one when the
// identifier is empty or unknown.
func (t *HTTPTransport) session(sessionID string) (*httpSession, error) {
	if sessionID != "" {
		t.sessionsMu.RLock()
		session := t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		if session != nil {
			return session, nil
		}
	}
	return t.openSession()
}

// ensureServerRunning starts the session's MCP server loop on first
// use. The loop runs against the transport-wide context so it stops
// when Start returns.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}
	session.runOnce.Do(func() {
		transport := &sessionTransport{conn: session.conn}
		go func() {
			_ = t.server.Run(t.serveCtx, transport)
		}()
	})
}

// handleMessages accepts one JSON-RPC message. Requests block until the
// session's server loop answers; notifications return immediately.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	session, err := t.session(r.Header.Get(sessionHeader))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(sessionHeader, session.id)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("read request: %v", err), http.StatusBadRequest)
		return
	}
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode JSON-RPC message: %v", err), http.StatusBadRequest)
		return
	}

	expectsReply := false
	switch v := msg.(type) {
	case *jsonrpc.Request:
		expectsReply = v.ID != (jsonrpc.ID{})
	case *jsonrpc.Response:
		http.Error(w, "response messages are not accepted", http.StatusBadRequest)
		return
	}

	t.ensureServerRunning(session)

	select {
	case session.conn.reqChan <- msg:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	if !expectsReply {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case resp := <-session.conn.respChan:
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("write MCP response: %v", err)
		}
	case <-t.serveCtx.Done():
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	}
}

// handleSSE streams the session's outbound messages as Server-Sent
// Events.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	session, err := t.session(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(sessionHeader, session.id)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	t.ensureServerRunning(session)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-t.serveCtx.Done():
			return
		case <-session.conn.closed:
			return
		case msg := <-session.conn.respChan:
			data, err := jsonrpc.EncodeMessage(msg)
			if err != nil {
				log.Printf("encode SSE message: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// handleHealth reports listener liveness.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Read implements mcp.Connection. It delivers messages posted by HTTP
// clients to the session's server loop.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection. It queues messages for the waiting
// HTTP request or the SSE stream.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	c.mu.Lock()
	closed := c.closedFlag
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("connection closed")
	}

	select {
	case c.respChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements mcp.Connection.
func (c *httpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closedFlag {
		return nil
	}
	c.closedFlag = true
	close(c.closed)
	return nil
}

// SessionID implements mcp.Connection.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}

// sessionTransport hands a pre-opened connection to mcp.Server.Run.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.
func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}
