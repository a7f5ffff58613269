package log

const (
	FieldKeyAction    = "action"
	FieldKeyRun       = "run"
	FieldKeyWorker    = "worker"
	FieldKeyIsolation = "isolation"
)

// Fields type, used to pass to `WithFields`.
type Fields map[string]any
