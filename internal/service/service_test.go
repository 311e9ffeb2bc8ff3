package service_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
	"github.com/couchcryptid/blow-storage/internal/service"
	"github.com/couchcryptid/blow-storage/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJudge struct {
	tags  []string
	score uint64
	err   error
	calls int
}

func (j *stubJudge) SuggestTags(context.Context, string) ([]string, error) {
	j.calls++
	return j.tags, j.err
}

func (j *stubJudge) ScoreTrust(context.Context, string, []string) (uint64, error) {
	j.calls++
	return j.score, j.err
}

func newService(judge domain.Judge) *service.Service {
	st := store.New(slog.Default(), observability.NewMetricsForTesting())
	return service.New(st, judge, slog.Default())
}

func TestSubmitAndGetRoundTrip(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()
	files := []domain.File{{Name: "receipt.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}}

	id, err := svc.SubmitBlow(ctx, "Officer demanded a bribe", files, []string{"police", "corruption"})
	require.NoError(t, err)

	b, ok := svc.GetBlow(id)
	require.True(t, ok)
	assert.Equal(t, "Officer demanded a bribe", b.Description)
	assert.Equal(t, files, b.Files)
	assert.Equal(t, []string{"police", "corruption"}, b.Tags)
	assert.Zero(t, b.Upvotes)
	assert.Zero(t, b.Downvotes)
	assert.Nil(t, b.TrustScore)
	assert.False(t, b.Flagged)
}

func TestSubmitBlow_BlankDescription(t *testing.T) {
	svc := newService(nil)

	_, err := svc.SubmitBlow(context.Background(), "", nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, svc.GetBlows())
}

func TestVotes_AnonymousAndAttributed(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()
	id, err := svc.SubmitBlow(ctx, "report", nil, nil)
	require.NoError(t, err)

	ok, err := svc.UpvoteBlow(ctx, id, "")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.UpvoteBlow(ctx, id, "voter-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.DownvoteBlow(ctx, id, "voter-1")
	require.NoError(t, err)
	assert.True(t, ok)

	b, _ := svc.GetBlow(id)
	assert.Equal(t, uint64(2), b.Upvotes)
	assert.Equal(t, uint64(1), b.Downvotes)

	ok, err = svc.UpvoteBlow(ctx, 999, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublicProjection(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()
	visible, err := svc.SubmitBlow(ctx, "visible", nil, nil)
	require.NoError(t, err)
	hidden, err := svc.SubmitBlow(ctx, "hidden", nil, nil)
	require.NoError(t, err)
	_, err = svc.FlagBlow(ctx, hidden)
	require.NoError(t, err)

	pub, ok := svc.GetPublicBlow(visible)
	require.True(t, ok)
	assert.Equal(t, visible, pub.ID)

	// A flagged blow stays addressable but leaves the public feed.
	_, ok = svc.GetPublicBlow(hidden)
	assert.True(t, ok)

	feed := svc.GetPublicBlows(store.ListOptions{})
	require.Len(t, feed, 1)
	assert.Equal(t, visible, feed[0].ID)

	_, ok = svc.GetPublicBlow(12345)
	assert.False(t, ok)
}

func TestGenerateTagsLLM_NormalizesJudgeOutput(t *testing.T) {
	judge := &stubJudge{tags: []string{" Corruption ", "#police", "corruption", "", "Nairobi."}}
	svc := newService(judge)

	tags, err := svc.GenerateTagsLLM(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"corruption", "police", "nairobi"}, tags)
}

func TestGenerateTagsLLM_EmptySuggestionFallsBackToClassifier(t *testing.T) {
	svc := newService(&stubJudge{tags: []string{"  "}})

	tags, err := svc.GenerateTagsLLM(context.Background(), "The clinic in Mombasa has no doctors")
	require.NoError(t, err)
	assert.Equal(t, domain.Classify("The clinic in Mombasa has no doctors"), tags)
}

func TestGenerateTagsLLM_Errors(t *testing.T) {
	judge := &stubJudge{err: fmt.Errorf("%w: model offline", domain.ErrEvaluation)}
	svc := newService(judge)

	_, err := svc.GenerateTagsLLM(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, judge.calls)

	_, err = svc.GenerateTagsLLM(context.Background(), "report")
	require.ErrorIs(t, err, domain.ErrEvaluation)
}

func TestTrustScoreLLM_DoesNotMutate(t *testing.T) {
	svc := newService(&stubJudge{score: 77})
	ctx := context.Background()
	id, err := svc.SubmitBlow(ctx, "report", nil, nil)
	require.NoError(t, err)

	score, err := svc.TrustScoreLLM(ctx, "report", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), score)

	b, _ := svc.GetBlow(id)
	assert.Nil(t, b.TrustScore)
}

func TestTrustScoreLLM_BoundsJudgeOutput(t *testing.T) {
	svc := newService(&stubJudge{score: 250})

	score, err := svc.TrustScoreLLM(context.Background(), "report", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(domain.MaxTrustScore), score)
}

func TestTrustScoreLLM_DefaultsToRuleJudge(t *testing.T) {
	svc := newService(nil)

	score, err := svc.TrustScoreLLM(context.Background(), "Illegal dumping of medical waste near Kibera", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(57), score)
}

func TestEvaluateBlow(t *testing.T) {
	svc := newService(&stubJudge{score: 64})
	ctx := context.Background()
	id, err := svc.SubmitBlow(ctx, "report", nil, nil)
	require.NoError(t, err)

	score, ok, err := svc.EvaluateBlow(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(64), score)

	b, _ := svc.GetBlow(id)
	require.NotNil(t, b.TrustScore)
	assert.Equal(t, uint64(64), *b.TrustScore)
}

func TestEvaluateBlow_UnknownID(t *testing.T) {
	judge := &stubJudge{score: 64}
	svc := newService(judge)

	_, ok, err := svc.EvaluateBlow(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, judge.calls)
}

func TestEvaluateBlow_JudgeFailureLeavesBlowUnscored(t *testing.T) {
	svc := newService(&stubJudge{err: errors.Join(domain.ErrEvaluation, errors.New("timeout"))})
	ctx := context.Background()
	id, err := svc.SubmitBlow(ctx, "report", nil, nil)
	require.NoError(t, err)

	_, ok, err := svc.EvaluateBlow(ctx, id)
	require.ErrorIs(t, err, domain.ErrEvaluation)
	assert.True(t, ok)

	b, _ := svc.GetBlow(id)
	assert.Nil(t, b.TrustScore)
}

func TestModeratorOperations(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()
	id, err := svc.SubmitBlow(ctx, "report", nil, nil)
	require.NoError(t, err)

	ok, err := svc.SetTrustScore(ctx, id, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.SetTrustScore(ctx, id, 101)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	ok, err = svc.SetVisibility(ctx, id, 33)
	require.NoError(t, err)
	assert.True(t, ok)

	b, _ := svc.GetBlow(id)
	assert.Equal(t, uint64(100), *b.TrustScore)
	assert.Equal(t, uint64(33), b.Visibility)

	ok, err = svc.FlagBlow(ctx, 777)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyTags(t *testing.T) {
	svc := newService(nil)
	assert.Equal(t, []string{domain.TagGeneral, domain.TagPublicInterest}, svc.ClassifyTags("hello"))
}
