// Package extractor drives the external invoice extraction program.
//
// The program receives one JSON request line on stdin and answers with
// newline-delimited JSON frames on stdout:
//
//	{"type":"log","level":"info","message":"reading page 1"}
//	{"type":"result","data":{"success":true,"invoices":[...]}}
//	{"type":"error","message":"model quota exhausted","retryable":true}
//
// Any number of log frames may precede exactly one result or error frame.
package extractor

import "encoding/json"

// ProtocolVersion is sent in every request.
const ProtocolVersion = 1

const (
	FrameLog    = "log"
	FrameResult = "result"
	FrameError  = "error"
)

// Request is written to the program's stdin as a single line.
type Request struct {
	Version int      `json:"version"`
	Files   []string `json:"files"`
}

// Frame is one stdout line.
type Frame struct {
	Type      string          `json:"type"`
	Level     string          `json:"level,omitempty"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Retryable *bool           `json:"retryable,omitempty"`
}

// Result is the payload of a result frame.
type Result struct {
	Success       bool             `json:"success"`
	InvoicesCount int              `json:"invoices_count"`
	Invoices      []map[string]any `json:"invoices"`
	Message       string           `json:"message,omitempty"`

	// Raw is the data object exactly as received.
	Raw json.RawMessage `json:"-"`
}
