package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Evaluator scores and flags stored blows.
type Evaluator interface {
	EvaluateBlow(ctx context.Context, id uint64) (uint64, bool, error)
	FlagBlow(ctx context.Context, id uint64) (bool, error)
}

// Evaluation outcomes, used as metric labels.
const (
	outcomeScored  = "scored"
	outcomeFlagged = "flagged"
	outcomeSkipped = "skipped"
	outcomeMissing = "missing"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// Pipeline runs the moderation loop: it consumes lifecycle events, scores
// every newly submitted blow and flags those scoring below the threshold.
type Pipeline struct {
	extractor     BatchExtractor
	evaluator     Evaluator
	logger        *slog.Logger
	metrics       *observability.Metrics
	ready         atomic.Bool
	batchSize     int
	flagThreshold uint64
}

// New creates a Pipeline. Blows scoring strictly below flagThreshold are flagged.
func New(e BatchExtractor, ev Evaluator, logger *slog.Logger, metrics *observability.Metrics, batchSize int, flagThreshold uint64) *Pipeline {
	return &Pipeline{
		extractor:     e,
		evaluator:     ev,
		logger:        logger,
		metrics:       metrics,
		batchSize:     batchSize,
		flagThreshold: flagThreshold,
	}
}

// CheckReadiness returns nil once the pipeline has processed a batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("moderation pipeline has not processed any events yet")
	}
	return nil
}

// Ready reports whether a batch has been processed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the moderation loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("moderation pipeline started", "batch_size", p.batchSize, "flag_threshold", p.flagThreshold)
	p.metrics.ModerationRunning.Set(1)
	defer p.metrics.ModerationRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("moderation pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-evaluate-commit cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil && len(rawBatch) == 0 {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	if err != nil {
		p.logger.Warn("extract batch ended early", "error", err, "batch_size", len(rawBatch))
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.ModerationConsumed.Add(float64(len(rawBatch)))
	p.metrics.ModerationBatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	for _, raw := range rawBatch {
		if ctx.Err() != nil {
			// Uncommitted events are redelivered after restart.
			return false
		}
		outcome := p.moderate(ctx, raw)
		p.metrics.ModerationEvaluations.WithLabelValues(outcome).Inc()
		p.commitOffset(ctx, raw)
	}

	p.ready.Store(true)
	return true
}

// moderate handles one event and returns its outcome label. Failures are
// logged and the event is skipped; no partial score is stored.
func (p *Pipeline) moderate(ctx context.Context, raw domain.RawEvent) string {
	event, err := domain.ParseBlowEvent(raw)
	if err != nil {
		p.logger.Warn("parse event failed, skipping message",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		return outcomeInvalid
	}
	if event.Type != domain.EventSubmitted {
		return outcomeSkipped
	}

	score, found, err := p.evaluator.EvaluateBlow(ctx, event.BlowID)
	if err != nil {
		p.logger.Warn("evaluate blow failed, skipping message",
			"error", err,
			"blow_id", event.BlowID,
			"offset", raw.Offset,
		)
		return outcomeError
	}
	if !found {
		p.logger.Warn("submitted blow not found", "blow_id", event.BlowID, "offset", raw.Offset)
		return outcomeMissing
	}

	if score >= p.flagThreshold {
		return outcomeScored
	}
	if _, err := p.evaluator.FlagBlow(ctx, event.BlowID); err != nil {
		p.logger.Warn("flag blow failed", "error", err, "blow_id", event.BlowID, "trust_score", score)
		return outcomeError
	}
	p.logger.Info("blow auto-flagged", "blow_id", event.BlowID, "trust_score", score)
	return outcomeFlagged
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
