// Package logger provides structured logging for the recording worker
// using zerolog.
//
// Loggers carry a service tag and an optional component tag. Fields are
// passed as maps so call sites stay uniform across packages:
//
//	log := logger.WithComponent("resolver")
//	log.Info("profile matched", logger.Fields("speaker_id", id, "similarity", sim))
package logger
