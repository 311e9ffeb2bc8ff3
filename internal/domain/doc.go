// Package domain models anonymous reports ("blows") and the rules applied to them.
//
// # Records
//
// A [Blow] is created once from a [Submission] and never deleted. Its description,
// files, tags and timestamp are immutable. Everything else is moderation state:
//
//	Upvotes, Downvotes   forward-only counters, no undo
//	TrustScore           absent until first assigned, 0-100, overwritable, never unset
//	Visibility           0-100 feed weight, derived by ComputeVisibility unless pinned
//	Flagged              one-way moderation switch; caps visibility at FlaggedFloor
//
// Two read shapes exist for two audiences. Moderators see the full [Blow]; public
// readers get a [PublicBlow] without counters or moderation state. Both are
// projections of the same stored record.
//
// # Tagging
//
// [Classify] is the deterministic client-side tagger. It lowercases the text and
// runs three substring passes over fixed dictionaries:
//
//	locations  nairobi, mombasa, kisumu, ... (tag = place name)
//	topics     corruption, education, healthcare, ... (tag = topic name)
//	urgency    urgent, emergency, immediate, crisis, critical (tag = "urgent")
//
// With no match the result is ["general", "public-interest"]. Output keeps first
// occurrences only and is capped at [MaxTags].
//
// A [Judge] is the store-side, possibly model-backed counterpart used by
// generate_tags_llm and trust_score_llm. [RuleJudge] is the offline fallback.
//
// # Visibility
//
// Visibility blends the trust score (60%) with a saturating vote term (40%), see
// [ComputeVisibility]. Unscored blows contribute no trust and net-negative votes
// contribute nothing, so a fresh blow derives 0. The curve is monotone:
// more trust or upvotes never lower visibility, more downvotes never raise it.
package domain
