package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldCycleID identifies one scheduler cycle (scan or sweep)
	FieldCycleID = "cycle_id"

	// FieldIntegrationID is the platform integration being scanned
	FieldIntegrationID = "integration_id"

	// FieldProjectID is the owning project
	FieldProjectID = "project_id"

	// FieldPlatform is the platform type tag (forum, appstore, ...)
	FieldPlatform = "platform"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, attached at the log site for aggregation/alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
