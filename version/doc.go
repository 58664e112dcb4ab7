// Package version reports the worker's build identity. Version and
// GitCommit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/remworker/version.Version=1.4.0" ./cmd/remworker
//
// Otherwise the VCS stamp embedded by the Go toolchain is used.
package version
