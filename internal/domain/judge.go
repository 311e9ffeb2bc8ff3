package domain

import (
	"context"
	"slices"
	"strings"
)

// Judge is the external judgment process behind generate_tags_llm and
// trust_score_llm. Implementations may be non-deterministic and may fail; a
// failure must be reported as an error wrapping ErrEvaluation.
type Judge interface {
	// SuggestTags proposes topic tags for free text.
	SuggestTags(ctx context.Context, text string) ([]string, error)

	// ScoreTrust rates how credible a report looks, bounded to 0-MaxTrustScore.
	ScoreTrust(ctx context.Context, text string, tags []string) (uint64, error)
}

// RuleJudge is a deterministic Judge used when no model is configured.
// Tags come from Classify; the trust score rewards detailed, specific reports.
type RuleJudge struct{}

// SuggestTags returns Classify(text).
func (RuleJudge) SuggestTags(_ context.Context, text string) ([]string, error) {
	return Classify(text), nil
}

// ScoreTrust scores a report from its length and the specificity of its tags:
//
//	base 30
//	+ 1 per 5 words of description, up to +20
//	+ 8 per topic tag, up to 4 topics
//	+ 10 when a known location is tagged
//	- 20 when the description has fewer than 5 words
//
// When tags is empty the description is classified first.
func (RuleJudge) ScoreTrust(_ context.Context, text string, tags []string) (uint64, error) {
	if len(tags) == 0 {
		tags = Classify(text)
	}

	words := len(strings.Fields(text))
	score := int64(30) + int64(min(words, 100)/5)
	if words < 5 {
		score -= 20
	}

	var topicCount int
	var located bool
	for _, t := range NormalizeTags(tags) {
		switch {
		case slices.Contains(locations, t):
			located = true
		case isTopic(t):
			topicCount++
		}
	}
	score += int64(min(topicCount, 4) * 8)
	if located {
		score += 10
	}

	return BoundScore(score), nil
}

// BoundScore clamps an arbitrary integer into [0, MaxTrustScore].
func BoundScore(v int64) uint64 {
	switch {
	case v < 0:
		return 0
	case v > MaxTrustScore:
		return MaxTrustScore
	default:
		return uint64(v)
	}
}

func isTopic(tag string) bool {
	for _, t := range topics {
		if t.tag == tag {
			return true
		}
	}
	return false
}
