package model

import "errors"

var (
	// ErrRecordNotFound is returned when a connection record is not found.
	ErrRecordNotFound = errors.New("connection record not found")

	// ErrAuditDisabled is returned when audit operations are invoked while
	// auditing is turned off in the configuration.
	ErrAuditDisabled = errors.New("audit is disabled")
)
