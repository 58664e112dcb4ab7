// Package recording holds the data model shared by every pipeline stage:
// the queue job, the recording it describes, transcript segments as they
// pass through alignment and speaker resolution, the enriched transcript
// written to object storage, and the per-recording status record.
package recording
