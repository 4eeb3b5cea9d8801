package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldJobID is the stable print job identity
	FieldJobID = "job_id"

	// FieldRowID is the jobs table row id (the poller's watermark unit)
	FieldRowID = "row_id"

	// FieldFilename is the print's display name (subtask_name)
	FieldFilename = "filename"

	// FieldState is the printer-reported gcode state
	FieldState = "state"

	// FieldSerial is the printer serial number
	FieldSerial = "serial"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldDurationMin is the print duration in minutes
	FieldDurationMin = "duration_minutes"
)
