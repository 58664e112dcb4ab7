// Package errors provides the structured error type used across the worker.
//
// An AppError carries a machine-readable code, a retryable flag and an
// optional cause. Pipeline stages that must abort a job attempt return an
// AppError with one of the stage codes so the poll loop can log and leave
// the message for redelivery.
package errors
