// Package resilience provides retry with exponential backoff, a reusable
// backoff schedule for supervised loops, and a circuit breaker for remote
// capabilities that may go away for a while.
package resilience
