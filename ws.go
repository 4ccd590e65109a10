package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tusharrohilla/streamwindow/internal/window"
)

// WSConn abstracts read, write & close for testability
type WSConn interface {
	Read(ctx context.Context) (ClientToServer, error)
	Write(ctx context.Context, msg ServerToClient) error
	Close(status websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

type nhooyrConn struct {
	c *websocket.Conn
}

func (n *nhooyrConn) Read(ctx context.Context) (ClientToServer, error) {
	var m ClientToServer
	if err := wsjson.Read(ctx, n.c, &m); err != nil {
		return m, err
	}
	return m, nil
}

func (n *nhooyrConn) Write(ctx context.Context, msg ServerToClient) error {
	return wsjson.Write(ctx, n.c, msg)
}

func (n *nhooyrConn) Close(status websocket.StatusCode, reason string) error {
	return n.c.Close(status, reason)
}

func (n *nhooyrConn) SetReadLimit(nbytes int64) {
	n.c.SetReadLimit(nbytes)
}

const readLimitBytes = 1 << 20 // 1MB

type subKey struct {
	stream string
	id     string
}

func wsHandler(sm *StreamsManager, heartbeat time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In real-world, set Origin checks / subprotocols
		})
		if err != nil {
			log.Printf("accept err: %v", err)
			return
		}
		conn := &nhooyrConn{c: c}
		conn.SetReadLimit(readLimitBytes)
		serveWS(r.Context(), sm, conn, heartbeat)
	}
}

// serveWS runs one connection until the client goes away.
func serveWS(ctx context.Context, sm *StreamsManager, conn WSConn, heartbeat time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = conn.Write(ctx, ServerToClient{Type: "info", Msg: "ping", TS: time.Now().UTC()})
			}
		}
	}()

	// per-connection state: subscriptions this socket opened
	subs := map[subKey]*Subscriber{}
	reply := func(m ServerToClient) {
		m.TS = time.Now().UTC()
		_ = conn.Write(ctx, m)
	}
	fail := func(in ClientToServer, code, msg string) {
		reply(ServerToClient{Type: "error", RequestID: in.RequestID, Error: &ErrObj{Code: code, Message: msg}})
	}

	for {
		in, err := conn.Read(ctx)
		if err != nil {
			// connection closed or error
			break
		}
		if in.Type != "ping" && in.Stream == "" {
			fail(in, "BAD_REQUEST", "stream required")
			continue
		}
		switch in.Type {
		case "ping":
			reply(ServerToClient{Type: "pong", RequestID: in.RequestID})
		case "subscribe":
			size := in.Size
			if size == 0 {
				size = defaultViewSize
			}
			sub, err := sm.Subscribe(in.Stream, in.ClientID, window.ViewOptions{Size: size, Start: in.Start}, conn)
			if err != nil {
				code, msg := errorCode(err)
				fail(in, code, msg)
				continue
			}
			subs[subKey{in.Stream, sub.ID()}] = sub
			reply(ServerToClient{Type: "ack", RequestID: in.RequestID, Stream: in.Stream, ClientID: sub.ID(), Status: "ok"})
			go func(s *Subscriber, stream string) {
				if err := s.writeLoop(ctx, stream); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("subscriber %s on %s: %v", s.ID(), stream, err)
				}
			}(sub, in.Stream)
		case "resize", "reposition":
			if in.ClientID == "" {
				fail(in, "BAD_REQUEST", "client_id required")
				continue
			}
			if in.Type == "resize" {
				err = sm.Resize(in.Stream, in.ClientID, in.Size)
			} else if in.Start == nil {
				fail(in, "BAD_REQUEST", "start required")
				continue
			} else {
				err = sm.Reposition(in.Stream, in.ClientID, *in.Start)
			}
			if err != nil {
				code, msg := errorCode(err)
				fail(in, code, msg)
				continue
			}
			reply(ServerToClient{Type: "ack", RequestID: in.RequestID, Stream: in.Stream, ClientID: in.ClientID, Status: "ok"})
		case "unsubscribe":
			if in.ClientID == "" {
				fail(in, "BAD_REQUEST", "client_id required")
				continue
			}
			if err := sm.Unsubscribe(in.Stream, in.ClientID); err != nil {
				code, msg := errorCode(err)
				fail(in, code, msg)
				continue
			}
			delete(subs, subKey{in.Stream, in.ClientID})
			reply(ServerToClient{Type: "ack", RequestID: in.RequestID, Stream: in.Stream, ClientID: in.ClientID, Status: "ok"})
		case "publish":
			if in.Record == nil {
				fail(in, "BAD_REQUEST", "record required")
				continue
			}
			if _, err := sm.Publish(in.Stream, *in.Record); err != nil {
				code, msg := errorCode(err)
				fail(in, code, msg)
				continue
			}
			reply(ServerToClient{Type: "ack", RequestID: in.RequestID, Stream: in.Stream, Status: "ok"})
		default:
			fail(in, "BAD_REQUEST", "unknown type")
		}
	}

	// cleanup: unsubscribe all
	for k, sub := range subs {
		sm.detach(k.stream, sub)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}
