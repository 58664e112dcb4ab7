package logger

import "fmt"

// Field keys shared across the worker's log lines.
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldMessageID   = "message_id"
	FieldUserID      = "user_id"
	FieldDeviceID    = "device_id"
	FieldRecordingID = "recording_id"
	FieldObjectKey   = "object_key"
	FieldState       = "state"
	FieldStage       = "stage"
	FieldSpeakerID   = "speaker_id"
	FieldLabel       = "label"
)

// Fields pairs up alternating keys and values:
//
//	log.Info("persisted", logger.Fields(logger.FieldObjectKey, key, "bytes", n))
//
// A non-string key is formatted with %v. A trailing key without a value is
// dropped.
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		key, ok := kvs[i-1].(string)
		if !ok {
			key = fmt.Sprint(kvs[i-1])
		}
		m[key] = kvs[i]
	}
	return m
}

// ErrorFields names the operation that failed with err.
func ErrorFields(op string, err error) map[string]interface{} {
	return MergeWithError(map[string]interface{}{FieldOperation: op}, err)
}

// MergeWithError sets the error field on fields, allocating when nil.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	if err != nil {
		fields[FieldError] = err.Error()
	}
	return fields
}
