package logger

// Field keys shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldUID       = "uid"
	FieldMessageID = "message_id"
	FieldChunk     = "chunk"
	FieldPart      = "part"
	FieldAttempt   = "attempt"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a map from alternating key-value pairs.
// A trailing key without a value is dropped.
//
//	log.Info("sent", logger.Fields("part", 1, "attempt", 2))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
