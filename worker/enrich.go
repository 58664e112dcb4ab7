package worker

import (
	"context"
	stderrors "errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/remworker/enrichment"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/recording"
)

// enrich fills the optional transcript fields. Each call is independent;
// a failure leaves its field empty and marks the stage degraded.
func (p *Processor) enrich(ctx context.Context, t *recording.Transcript, out *Outcome, log *logger.Logger) {
	e, ok := p.Enricher.Get()
	if !ok {
		log.Debug("enrichment unavailable", logger.Fields("reason", p.Enricher.Reason()))
		out.degrade(StageEmbed)
		out.degrade(StageSummarize)
		out.degrade(StageTopics)
		return
	}

	var mu sync.Mutex
	skip := func(stage string, err error) {
		if stderrors.Is(err, enrichment.ErrEmptyInput) {
			return
		}
		log.Warn("enrichment step failed", logger.ErrorFields(stage, err))
		mu.Lock()
		out.degrade(stage)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EnrichConcurrency)

	g.Go(func() error {
		err := observability.Stage(gctx, p.Metrics, StageEmbed, func(ctx context.Context) error {
			v, err := e.Embed(ctx, t.FullText)
			if err == nil {
				t.Embedding = v
			}
			return err
		})
		if err != nil {
			skip(StageEmbed, err)
		}
		return nil
	})
	g.Go(func() error {
		err := observability.Stage(gctx, p.Metrics, StageSummarize, func(ctx context.Context) error {
			s, err := e.Summarize(ctx, t.FullText)
			if err == nil {
				t.Summary = s
			}
			return err
		})
		if err != nil {
			skip(StageSummarize, err)
		}
		return nil
	})
	g.Go(func() error {
		err := observability.Stage(gctx, p.Metrics, StageTopics, func(ctx context.Context) error {
			topics, err := e.ExtractTopics(ctx, t.FullText)
			if err == nil {
				t.Topics = topics
			}
			return err
		})
		if err != nil {
			skip(StageTopics, err)
		}
		return nil
	})

	if e.Config().SegmentEmbeddings {
		// Each goroutine writes only its own segment.
		var failed bool
		for i := range t.Segments {
			seg := &t.Segments[i]
			g.Go(func() error {
				v, err := e.Embed(gctx, seg.Text)
				if err != nil {
					if !stderrors.Is(err, enrichment.ErrEmptyInput) {
						mu.Lock()
						failed = true
						mu.Unlock()
					}
					return nil
				}
				seg.Embedding = v
				return nil
			})
		}
		_ = g.Wait()
		if failed {
			log.Warn("some segment embeddings failed")
			out.degrade(StageSegmentEmbedding)
		}
		return
	}
	_ = g.Wait()
}
