package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tusharrohilla/streamwindow/internal/window"
)

const defaultViewSize = 10

func setupRouter(sm *StreamsManager, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", wsHandler(sm, cfg.Streams.HeartbeatInterval.Duration))

	// REST endpoints
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sm.Health())
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sm.Stats())
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/streams", streamsCollectionHandler(sm)) // POST /streams, GET /streams
	mux.HandleFunc("/streams/", streamsItemHandler(sm))      // /streams/{name}[/...]

	// default
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	protected := requireAPIKey(cfg.Server.APIKey, mux)
	return loggingMiddleware(corsMiddleware(protected))
}

func streamsCollectionHandler(sm *StreamsManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Name     string `json:"name"`
				Capacity int    `json:"capacity"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
				return
			}
			if err := sm.CreateStream(req.Name, req.Capacity); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "stream": req.Name})
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"streams": sm.ListStreams()})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func streamsItemHandler(sm *StreamsManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// /streams/{name}[/{action}]
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/streams/"), "/")
		if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "stream name required")
			return
		}
		name, action := parts[0], ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch {
		case action == "" && r.Method == http.MethodDelete:
			if err := sm.DeleteStream(name); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "stream": name})
		case action == "records" && r.Method == http.MethodPost:
			recordsHandler(sm, w, r, name)
		case action == "window" && r.Method == http.MethodGet:
			opts, err := viewOptionsFromQuery(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
				return
			}
			snap, err := sm.Window(name, opts)
			if err != nil {
				writeErr(w, err)
				return
			}
			windowReads.WithLabelValues("http").Inc()
			writeJSON(w, http.StatusOK, snap)
		case action == "clusters" && r.Method == http.MethodGet:
			state, err := sm.Clusters(name)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, state)
		case action == "select" && (r.Method == http.MethodPost || r.Method == http.MethodDelete):
			var req struct {
				Cluster string `json:"cluster"`
			}
			if r.Method == http.MethodPost {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "BAD_REQUEST", "cluster is required")
					return
				}
			}
			selected, err := sm.Select(name, req.Cluster)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"stream": name, "selected": selected})
		case action == "events" && r.Method == http.MethodGet:
			sseHandler(sm, w, r, name)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// recordsHandler accepts either one record or an array of them.
func recordsHandler(sm *StreamsManager, w http.ResponseWriter, r *http.Request, name string) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "record body required")
		return
	}
	var recs []Record
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid records")
			return
		}
	} else {
		var rec Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid record")
			return
		}
		recs = append(recs, rec)
	}
	stored, err := sm.Publish(name, recs...)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "appended", "stream": name, "records": stored})
}

func viewOptionsFromQuery(r *http.Request) (window.ViewOptions, error) {
	q := r.URL.Query()
	opts := window.ViewOptions{Size: defaultViewSize}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid size %q", v)
		}
		opts.Size = n
	}
	if v := q.Get("start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid start %q", v)
		}
		opts.Start = &n
	}
	if opts.Size < 1 {
		return opts, window.ErrInvalidSize
	}
	if opts.Start != nil && *opts.Start < 0 {
		return opts, window.ErrInvalidStart
	}
	return opts, nil
}

func requireAPIKey(expected string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Allow unauthenticated health, metrics & root requests
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" || r.URL.Path == "/" {
			next.ServeHTTP(w, r)
			return
		}

		if expected != "" && r.Header.Get("X-API-Key") != expected {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
