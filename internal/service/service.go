// Package service exposes the blow operation contract on top of the store and
// a trust judge. Transports (HTTP, the moderation pipeline, the CLI) call this
// package rather than the store directly.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/store"
)

// Service implements the blow operations.
type Service struct {
	store  *store.Store
	judge  domain.Judge
	logger *slog.Logger
}

// New creates a Service. A nil judge falls back to the offline rule engine.
func New(st *store.Store, judge domain.Judge, logger *slog.Logger) *Service {
	if judge == nil {
		judge = domain.RuleJudge{}
	}
	return &Service{store: st, judge: judge, logger: logger}
}

// SubmitBlow stores a new report and returns its id.
func (s *Service) SubmitBlow(ctx context.Context, description string, files []domain.File, tags []string) (uint64, error) {
	id, err := s.store.Submit(ctx, domain.Submission{
		Description: description,
		Files:       files,
		Tags:        tags,
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("blow submitted", "blow_id", id, "tags", tags, "files", len(files))
	return id, nil
}

// GetBlow returns the full record, or false if the id is unknown.
func (s *Service) GetBlow(id uint64) (domain.Blow, bool) {
	return s.store.Get(id)
}

// GetBlows returns every record in creation order.
func (s *Service) GetBlows() []domain.Blow {
	return s.store.All()
}

// ListBlows runs a filtered, ordered feed query.
func (s *Service) ListBlows(opts store.ListOptions) []domain.Blow {
	return s.store.List(opts)
}

// GetPublicBlow returns the public projection of a record.
func (s *Service) GetPublicBlow(id uint64) (domain.PublicBlow, bool) {
	b, ok := s.store.Get(id)
	if !ok {
		return domain.PublicBlow{}, false
	}
	return b.Public(), true
}

// GetPublicBlows returns the public projection of the feed. Flagged blows are
// left out of the public feed.
func (s *Service) GetPublicBlows(opts store.ListOptions) []domain.PublicBlow {
	opts.ExcludeFlagged = true
	blows := s.store.List(opts)
	out := make([]domain.PublicBlow, 0, len(blows))
	for _, b := range blows {
		out = append(out, b.Public())
	}
	return out
}

// UpvoteBlow records an upvote. voter may be empty for anonymous votes.
func (s *Service) UpvoteBlow(ctx context.Context, id uint64, voter string) (bool, error) {
	if voter == "" {
		return s.store.Upvote(ctx, id)
	}
	return s.store.UpvoteAs(ctx, id, voter)
}

// DownvoteBlow records a downvote. voter may be empty for anonymous votes.
func (s *Service) DownvoteBlow(ctx context.Context, id uint64, voter string) (bool, error) {
	if voter == "" {
		return s.store.Downvote(ctx, id)
	}
	return s.store.DownvoteAs(ctx, id, voter)
}

// SetTrustScore stores a moderator-assigned trust score.
func (s *Service) SetTrustScore(ctx context.Context, id, score uint64) (bool, error) {
	return s.store.SetTrustScore(ctx, id, score, store.SourceModerator)
}

// FlagBlow marks a blow as flagged.
func (s *Service) FlagBlow(ctx context.Context, id uint64) (bool, error) {
	ok, err := s.store.Flag(ctx, id)
	if ok && err == nil {
		s.logger.Info("blow flagged", "blow_id", id)
	}
	return ok, err
}

// SetVisibility pins the feed weight of a blow.
func (s *Service) SetVisibility(ctx context.Context, id, weight uint64) (bool, error) {
	return s.store.SetVisibility(ctx, id, weight)
}

// ClassifyTags runs the deterministic keyword classifier.
func (s *Service) ClassifyTags(text string) []string {
	return domain.Classify(text)
}

// GenerateTagsLLM asks the judge for tag suggestions. The result is
// normalized; when the judge proposes nothing usable the keyword classifier
// answers instead.
func (s *Service) GenerateTagsLLM(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is blank", domain.ErrInvalidInput)
	}
	raw, err := s.judge.SuggestTags(ctx, text)
	if err != nil {
		return nil, err
	}
	tags := domain.NormalizeTags(raw)
	if len(tags) == 0 {
		return domain.Classify(text), nil
	}
	return tags, nil
}

// TrustScoreLLM computes an advisory trust score. It never changes stored state.
func (s *Service) TrustScoreLLM(ctx context.Context, text string, tags []string) (uint64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: text is blank", domain.ErrInvalidInput)
	}
	score, err := s.judge.ScoreTrust(ctx, text, domain.NormalizeTags(tags))
	if err != nil {
		return 0, err
	}
	return min(score, domain.MaxTrustScore), nil
}

// EvaluateBlow scores a stored blow with the judge and persists the result.
// It returns false if the id is unknown. A judge failure leaves the blow untouched.
func (s *Service) EvaluateBlow(ctx context.Context, id uint64) (uint64, bool, error) {
	b, ok := s.store.Get(id)
	if !ok {
		return 0, false, nil
	}

	score, err := s.TrustScoreLLM(ctx, b.Description, b.Tags)
	if err != nil {
		return 0, true, fmt.Errorf("evaluate blow %d: %w", id, err)
	}

	ok, err = s.store.SetTrustScore(ctx, id, score, store.SourcePipeline)
	if err != nil {
		return 0, true, fmt.Errorf("evaluate blow %d: %w", id, err)
	}
	if ok {
		s.logger.Debug("blow evaluated", "blow_id", id, "trust_score", score)
	}
	return score, ok, nil
}
