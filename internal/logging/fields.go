package logging

// Canonical attribute keys shared across components so log lines stay
// greppable regardless of which part of the pipeline emitted them.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldDataset   = "dataset"
	FieldJobID     = "job_id"
	FieldWorkerID  = "worker_id"
	FieldAttempt   = "attempt"
)
