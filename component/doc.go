// Package component defines the lifecycle contract for long-lived
// infrastructure held by the worker: queue sources, profile and status
// stores, object storage clients and the health server.
//
// Components are registered in dependency order, started in that order
// and stopped in reverse.
package component
