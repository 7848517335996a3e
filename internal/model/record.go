// Package model defines the domain types shared across the service.
package model

import "time"

// ConnectionRecord is the audit trail entry for one managed WebSocket
// connection: when it opened, how it closed, and how much traffic it carried.
type ConnectionRecord struct {
	ID          string     `json:"id"`
	Route       string     `json:"route"`
	RemoteAddr  string     `json:"remote_addr"`
	ConnectedAt time.Time  `json:"connected_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseCode   int        `json:"close_code,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	MessagesIn  int64      `json:"messages_in"`
	MessagesOut int64      `json:"messages_out"`
	// HandlerError holds the handler's failure message, if any. The error
	// itself still propagates through the pipeline's error reporting; this
	// field only preserves it alongside the connection for later inspection.
	HandlerError string `json:"handler_error,omitempty"`
}
