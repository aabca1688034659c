// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Transform fields
	FieldMethod    = "method"
	FieldDirection = "direction"
	FieldBasisKey  = "basis_key"
	FieldSize      = "size"

	// Path fields
	FieldPath = "path"
)
