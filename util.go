package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tusharrohilla/streamwindow/internal/window"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"type": "error", "error": map[string]string{"code": code, "message": msg}})
}

// errorCode maps an error to the code clients see in error frames.
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, ErrStreamNotFound):
		return "STREAM_NOT_FOUND", err.Error()
	case errors.Is(err, ErrStreamExists):
		return "CONFLICT", err.Error()
	case errors.Is(err, ErrSubscriberAbsent):
		return "SUBSCRIBER_NOT_FOUND", err.Error()
	case errors.Is(err, window.ErrInvalidCapacity),
		errors.Is(err, window.ErrInvalidSize),
		errors.Is(err, window.ErrInvalidStart):
		return "BAD_REQUEST", err.Error()
	default:
		return "INTERNAL", err.Error()
	}
}

func writeErr(w http.ResponseWriter, err error) {
	code, msg := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "STREAM_NOT_FOUND", "SUBSCRIBER_NOT_FOUND":
		status = http.StatusNotFound
	case "CONFLICT":
		status = http.StatusConflict
	case "BAD_REQUEST":
		status = http.StatusBadRequest
	}
	writeError(w, status, code, msg)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
