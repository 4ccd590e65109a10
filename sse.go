package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

var errSSEClosed = errors.New("sse stream closed")

// sseConn writes ServerToClient frames as server-sent events. Close ends the
// request that owns it.
type sseConn struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	cancel  context.CancelFunc
	done    bool
}

func (c *sseConn) Write(_ context.Context, msg ServerToClient) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return errSSEClosed
	}
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *sseConn) Close(_ websocket.StatusCode, _ string) error {
	c.cancel()
	return nil
}

func (c *sseConn) finish() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
}

// sseHandler streams a view of one stream, one "window" event per publish.
func sseHandler(sm *StreamsManager, w http.ResponseWriter, r *http.Request, name string) {
	opts, err := viewOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := &sseConn{w: w, flusher: flusher, cancel: cancel}
	defer conn.finish()

	sub, err := sm.Subscribe(name, r.URL.Query().Get("client_id"), opts, conn)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer sm.detach(name, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = conn.Write(ctx, ServerToClient{Type: "info", Stream: name, ClientID: sub.ID(), Msg: "connected"})

	log.Printf("SSE client %s connected to %s", sub.ID(), name)
	if err := sub.writeLoop(ctx, name); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("SSE client %s on %s: %v", sub.ID(), name, err)
	}
	log.Printf("SSE client %s disconnected from %s", sub.ID(), name)
}
