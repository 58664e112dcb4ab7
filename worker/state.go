package worker

import "time"

// State is a job's position in the processing pipeline.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateDownloaded   State = "DOWNLOADED"
	StateTranscribed  State = "TRANSCRIBED"
	StateDiarized     State = "DIARIZED"
	StateResolved     State = "RESOLVED"
	StateEnriched     State = "ENRICHED"
	StatePersisted    State = "PERSISTED"
	StateAcknowledged State = "ACKNOWLEDGED"
	StateFailed       State = "FAILED"
)

// Stage names used for spans, metrics and degraded markers.
const (
	StageDecode           = "decode"
	StageDownload         = "download"
	StageTranscribe       = "transcribe"
	StageDiarize          = "diarize"
	StageResolve          = "resolve"
	StageEmbed            = "embed"
	StageSummarize        = "summarize"
	StageTopics           = "topics"
	StageSegmentEmbedding = "segment_embedding"
	StagePersist          = "persist"
	StageAck              = "ack"
)

// Outcome describes how one delivery was handled.
type Outcome struct {
	RecordingID string
	State       State
	// FailedAt is the last state reached before a fatal error.
	FailedAt State
	Err      error
	// Degraded lists the optional stages that failed or were skipped.
	Degraded      []string
	Created       []string
	Matched       []string
	TranscriptKey string
	Duration      time.Duration
}

func (o *Outcome) advance(s State) { o.State = s }

func (o *Outcome) fail(err error) {
	o.FailedAt = o.State
	o.State = StateFailed
	o.Err = err
}

func (o *Outcome) degrade(stage string) { o.Degraded = append(o.Degraded, stage) }

// Succeeded reports whether the transcript was durably written.
func (o *Outcome) Succeeded() bool {
	return o.State == StatePersisted || o.State == StateAcknowledged
}
