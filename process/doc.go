// Package process runs external tools such as local speech-to-text
// binaries, capturing their output and killing the whole process group on
// cancellation.
package process
