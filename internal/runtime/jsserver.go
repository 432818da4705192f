// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package runtime implements the Worker Runtime (C6): the worker
// process's main transaction loop, get_cells multiplexer, and the
// persistent JavaScript sub-server.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

var jsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only; bound to 127.0.0.1 below
}

// jsWireMessage is one frame of the sub-server's wire protocol, in
// either direction: a request to run code, a request to resolve
// get_cells, or the corresponding replies.
type jsWireMessage struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"` // "execute" | "execute_result" | "get_cells" | "get_cells_result"
	Code     string          `json:"code,omitempty"`
	A1       string          `json:"a1,omitempty"`
	Value    string          `json:"value,omitempty"`
	StdOut   string          `json:"std_out,omitempty"`
	StdErr   string          `json:"std_err,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`
	Accessed json.RawMessage `json:"accessed,omitempty"`
}

// JSServer is a single persistent JavaScript sub-server: one
// TCP/websocket listener the worker opens once at startup and keeps
// alive across every transaction, matching spec.md §4.6 step 2's "opens
// a single persistent JavaScript TCP sub-server for the life of the
// process (reused across transactions)". Exactly one JS sub-process is
// ever expected to connect, since one worker owns exactly one sheet.
type JSServer struct {
	listener net.Listener
	httpSrv  *http.Server

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan jsWireMessage
}

// NewJSServer binds a loopback listener; the caller then launches the
// JS sub-process pointed at Addr() before the first Execute call.
func NewJSServer() (*JSServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("runtime: bind js sub-server: %w", err)
	}
	s := &JSServer{listener: ln, pending: make(map[string]chan jsWireMessage)}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		_ = s.httpSrv.Serve(ln)
	}()
	return s, nil
}

// Addr is the ws://... URL the JS sub-process should dial.
func (s *JSServer) Addr() string {
	return fmt.Sprintf("ws://%s/ws", s.listener.Addr().String())
}

func (s *JSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := jsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg jsWireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		s.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

func (s *JSServer) send(msg jsWireMessage) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("runtime: js sub-process not connected")
	}
	return conn.WriteJSON(msg)
}

// Execute implements runners.JSServer: it ships code to the connected
// JS sub-process and blocks until either an execute_result arrives or
// the sub-process round-trips one or more get_cells requests through
// getCells first.
func (s *JSServer) Execute(ctx context.Context, code string, getCells engine.GetCellsFunc) (*grid.CodeRun, error) {
	reqID := uuid.NewString()
	replies := make(chan jsWireMessage, 4)
	s.mu.Lock()
	s.pending[reqID] = replies
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
	}()

	if err := s.send(jsWireMessage{ID: reqID, Type: "execute", Code: code}); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-replies:
			switch msg.Type {
			case "get_cells":
				v, _, err := getCells(msg.A1)
				reply := jsWireMessage{ID: reqID, Type: "get_cells_result"}
				if err != nil {
					reply.ErrorMsg = err.Error()
				} else {
					reply.Value = v.Single.String()
				}
				if err := s.send(reply); err != nil {
					return nil, err
				}
			case "execute_result":
				if msg.ErrorMsg != "" {
					return &grid.CodeRun{
						Language: grid.LanguageJavascript,
						Code:     code,
						Err:      &grid.RunError{Msg: msg.ErrorMsg},
						StdErr:   msg.StdErr,
					}, nil
				}
				return &grid.CodeRun{
					Language:     grid.LanguageJavascript,
					Code:         code,
					Value:        grid.Value{Single: grid.NewText(msg.Value)},
					StdOut:       msg.StdOut,
					LastModified: time.Now(),
				}, nil
			}
		}
	}
}

// Shutdown gracefully closes the sub-server's HTTP listener and, if
// connected, asks the JS sub-process to exit.
func (s *JSServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.WriteJSON(jsWireMessage{ID: "shutdown", Type: "shutdown"})
		_ = conn.Close()
	}
	return s.httpSrv.Shutdown(ctx)
}
