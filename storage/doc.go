// Package storage reads recordings and writes transcripts through a
// bucket/key object store. A backend package links itself in with Register
// from its init function; New then opens whichever one storage.provider
// names.
//
// Linked backends are s3 (aws-sdk-go-v2), minio (minio-go) and local (one
// directory per bucket).
package storage
