// Package validation checks decoded messages against their struct tags
// with go-playground/validator.
//
//	job, err := validation.Decode[recording.Job](msg.Body)
package validation
