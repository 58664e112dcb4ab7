// Package worker turns recording jobs into enriched, speaker-attributed
// transcripts.
//
// A Processor runs one job through download, transcription, diarization,
// speaker resolution, enrichment and persistence. Download, transcription
// and the durable writes are fatal; every other stage degrades. The Worker
// polls a queue.Source and acks only after the writes succeed, so a crash
// at any point leaves the job for redelivery, and reprocessing overwrites
// the same keys.
package worker

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/remworker/align"
	"github.com/kbukum/remworker/diarization"
	"github.com/kbukum/remworker/enrichment"
	"github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/speaker"
	"github.com/kbukum/remworker/storage"
	"github.com/kbukum/remworker/transcription"
)

// Deps are the collaborators a Processor drives. Storage, Transcriber and
// Status are required; the capabilities may be unavailable.
type Deps struct {
	Storage     storage.Storage
	Transcriber transcription.Provider
	Diarizer    provider.Capability[diarization.Provider]
	Resolver    provider.Capability[*speaker.Resolver]
	Enricher    provider.Capability[*enrichment.Enricher]
	Status      recording.StatusStore
	Metrics     *observability.PipelineMetrics
	Log         *logger.Logger
	Now         func() time.Time
}

// Processor runs the per-job pipeline.
type Processor struct {
	cfg Config
	Deps
}

// NewProcessor validates cfg and fills defaults for optional deps.
func NewProcessor(cfg Config, deps Deps) (*Processor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Storage == nil || deps.Transcriber == nil || deps.Status == nil {
		return nil, errors.New(errors.ErrCodeInternal, "worker: storage, transcriber and status store are required")
	}
	if deps.Log == nil {
		deps.Log = logger.WithComponent("worker")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Processor{cfg: cfg, Deps: deps}, nil
}

// Process runs job through PERSISTED. It never acks; the caller does that
// when the outcome succeeded.
func (p *Processor) Process(ctx context.Context, job recording.Job) *Outcome {
	start := time.Now()
	rec := job.Recording()
	out := &Outcome{RecordingID: rec.RecordingID, State: StateReceived}
	log := p.Log.WithFields(logger.Fields(
		logger.FieldRecordingID, rec.RecordingID,
		logger.FieldUserID, rec.UserID,
		logger.FieldDeviceID, rec.DeviceID,
	))

	ctx, span := observability.StartSpan(ctx, "recording.process")
	span.SetAttributes(
		attribute.String(observability.AttrRecordingID, rec.RecordingID),
		attribute.String(observability.AttrUserID, rec.UserID),
	)
	defer func() {
		out.Duration = time.Since(start)
		span.SetAttributes(attribute.String(observability.AttrOutcome, string(out.State)))
		observability.EndSpan(span, out.Err)
	}()

	log.Info("processing recording", logger.Fields("audio", rec.Audio.String()))

	audioPath, err := p.download(ctx, rec)
	if err != nil {
		out.fail(err)
		log.Error("download failed", logger.MergeWithError(logger.Fields(logger.FieldState, out.FailedAt), err))
		return out
	}
	defer p.removeScratch(audioPath, log)
	out.advance(StateDownloaded)

	result, err := p.transcribe(ctx, audioPath)
	if err != nil {
		out.fail(err)
		log.Error("transcription failed", logger.MergeWithError(logger.Fields(logger.FieldState, out.FailedAt), err))
		return out
	}
	out.advance(StateTranscribed)
	log.Info("transcribed", logger.Fields(
		"language", result.Language,
		"segments", len(result.Segments),
		"duration_seconds", result.DurationSeconds,
	))

	turns := p.diarize(ctx, audioPath, out, log)
	out.advance(StateDiarized)

	segments := p.resolve(ctx, rec, audioPath, result.Segments, turns, out)
	out.advance(StateResolved)

	t := &recording.Transcript{
		RecordingID:         rec.RecordingID,
		UserID:              rec.UserID,
		DeviceID:            rec.DeviceID,
		StartedAt:           rec.StartedAt,
		EndedAt:             rec.EndedAt,
		Language:            result.Language,
		LanguageProbability: result.LanguageProbability,
		DurationSeconds:     result.DurationSeconds,
		Segments:            segments,
		FullText:            result.FullText,
		TranscriptionModel:  result.Model,
	}
	t.SetSpeakers()

	p.enrich(ctx, t, out, log)
	out.advance(StateEnriched)

	t.TranscribedAt = p.Now().UTC().Format(time.RFC3339)
	if err := p.persist(ctx, rec, t); err != nil {
		out.fail(err)
		log.Error("persist failed", logger.MergeWithError(logger.Fields(logger.FieldState, out.FailedAt), err))
		return out
	}
	out.TranscriptKey = rec.TranscriptKey()
	out.advance(StatePersisted)

	log.Info("recording persisted", logger.Fields(
		logger.FieldObjectKey, out.TranscriptKey,
		"speakers", t.SpeakerCount,
		"degraded", out.Degraded,
	))
	return out
}

func (p *Processor) download(ctx context.Context, rec recording.Recording) (string, error) {
	var path string
	err := observability.Stage(ctx, p.Metrics, StageDownload, func(ctx context.Context) error {
		var err error
		path, err = storage.DownloadFile(ctx, p.Storage, rec.Audio.Bucket, rec.Audio.Key, p.cfg.ScratchDir)
		return err
	})
	if err != nil {
		return "", errors.DownloadFailed(rec.Audio.String(), err)
	}
	return path, nil
}

func (p *Processor) removeScratch(path string, log *logger.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("scratch file not removed", logger.MergeWithError(logger.Fields("path", path), err))
	}
}

func (p *Processor) transcribe(ctx context.Context, audioPath string) (*transcription.Result, error) {
	var result *transcription.Result
	err := observability.Stage(ctx, p.Metrics, StageTranscribe, func(ctx context.Context) error {
		var err error
		result, err = p.Transcriber.Transcribe(ctx, transcription.Request{AudioPath: audioPath, Language: p.cfg.Language})
		if err != nil {
			return err
		}
		if result == nil {
			return errors.New(errors.ErrCodeInternal, "transcriber returned no result")
		}
		return result.Normalize()
	})
	if err != nil {
		return nil, errors.TranscriptionFailed(err)
	}
	return result, nil
}

// diarize returns nil when diarization is unavailable, fails, or finds no
// speech turns.
func (p *Processor) diarize(ctx context.Context, audioPath string, out *Outcome, log *logger.Logger) []recording.Turn {
	d, ok := p.Diarizer.Get()
	if !ok {
		log.Debug("diarization unavailable", logger.Fields("reason", p.Diarizer.Reason()))
		out.degrade(StageDiarize)
		return nil
	}

	var res *diarization.Result
	err := observability.Stage(ctx, p.Metrics, StageDiarize, func(ctx context.Context) error {
		var err error
		res, err = d.Diarize(ctx, diarization.Request{
			AudioPath:   audioPath,
			NumSpeakers: p.cfg.NumSpeakers,
			MinSpeakers: p.cfg.MinSpeakers,
			MaxSpeakers: p.cfg.MaxSpeakers,
		})
		return err
	})
	if err != nil {
		log.Warn("diarization failed, segments left unattributed", logger.ErrorFields(StageDiarize, err))
		out.degrade(StageDiarize)
		return nil
	}
	if res == nil || len(res.Turns) == 0 {
		log.Info("diarization found no speaker turns")
		return nil
	}
	return res.Turns
}

// resolve attributes segments. Without turns they carry no speaker; with
// turns but no resolver they keep the raw diarization labels.
func (p *Processor) resolve(ctx context.Context, rec recording.Recording, audioPath string, segments []recording.Segment, turns []recording.Turn, out *Outcome) []recording.AttributedSegment {
	if len(turns) == 0 {
		return recording.Unattributed(segments)
	}
	labeled := align.Assign(segments, turns)

	r, ok := p.Resolver.Get()
	if !ok {
		out.degrade(StageResolve)
		return speaker.Attribute(labeled, nil)
	}

	var res speaker.Resolution
	_ = observability.Stage(ctx, p.Metrics, StageResolve, func(ctx context.Context) error {
		res = r.Resolve(ctx, rec.UserID, audioPath, turns, labeled)
		return nil
	})
	out.Created = res.Created
	out.Matched = res.Matched
	p.Metrics.RecordSpeakers(ctx, len(res.Created), len(res.Matched))
	return res.Segments
}
