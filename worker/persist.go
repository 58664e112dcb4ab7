package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/resilience"
	"github.com/kbukum/remworker/storage"
)

// persist writes the JSON transcript, its plain-text sibling and the status
// record, in that order. Keys are deterministic, so a redelivered job
// overwrites the previous attempt.
func (p *Processor) persist(ctx context.Context, rec recording.Recording, t *recording.Transcript) error {
	body, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.PersistFailed("transcript", err)
	}

	return observability.Stage(ctx, p.Metrics, StagePersist, func(ctx context.Context) error {
		key := rec.TranscriptKey()
		if err := p.write(ctx, "transcript", func() error {
			return storage.UploadBytes(ctx, p.Storage, p.cfg.TranscriptsBucket, key, body, storage.ContentTypeJSON)
		}); err != nil {
			return err
		}
		if err := p.write(ctx, "text", func() error {
			return storage.UploadBytes(ctx, p.Storage, p.cfg.TranscriptsBucket, rec.TextKey(), []byte(t.FullText), storage.ContentTypeText)
		}); err != nil {
			return err
		}
		return p.write(ctx, "status", func() error {
			return p.Status.Update(ctx, recording.NewStatusRecord(t, key, p.Now()))
		})
	})
}

func (p *Processor) write(ctx context.Context, target string, fn func() error) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = p.cfg.WriteAttempts
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		p.Log.Warn("write failed, retrying", logger.MergeWithError(logger.Fields("target", target, "attempt", attempt), err))
	}
	if err := resilience.RetryFunc(ctx, cfg, fn); err != nil {
		return errors.PersistFailed(target, err)
	}
	return nil
}
