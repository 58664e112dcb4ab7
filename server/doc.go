// Package server is the worker's ops HTTP endpoint on gin: liveness and
// readiness probes, read access to processing results and speaker
// profiles, and a job endpoint for the in-memory queue.
package server
