package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies a single invocation of the harness.
	FieldRunID = "run_id"
	// FieldCamera names the rig side (left or right) a record concerns.
	FieldCamera = "camera"
	// FieldIteration is the 1-based acquisition iteration number.
	FieldIteration = "iteration"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
