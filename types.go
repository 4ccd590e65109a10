package main

import (
	"time"

	"github.com/tusharrohilla/streamwindow/internal/window"
)

type ClientToServer struct {
	Type      string  `json:"type"`
	Stream    string  `json:"stream,omitempty"`
	Record    *Record `json:"record,omitempty"`
	ClientID  string  `json:"client_id,omitempty"`
	Size      int     `json:"size,omitempty"`
	Start     *int    `json:"start,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

type ServerToClient struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Stream    string        `json:"stream,omitempty"`
	ClientID  string        `json:"client_id,omitempty"`
	Window    *WindowUpdate `json:"window,omitempty"`
	Error     *ErrObj       `json:"error,omitempty"`
	TS        time.Time     `json:"ts,omitempty"`
	Status    string        `json:"status,omitempty"` // for ack
	Msg       string        `json:"msg,omitempty"`    // for info
}

type ErrObj struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Record struct {
	ID        string `json:"id"`
	Cluster   string `json:"cluster,omitempty"`
	Anomalous bool   `json:"anomalous,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WindowUpdate is a view snapshot as it goes over the wire.
type WindowUpdate = window.Snapshot[Record]
