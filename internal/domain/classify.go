package domain

import "strings"

// MaxTags caps the number of tags a classification may produce.
const MaxTags = 6

// Fallback tags are emitted when no dictionary entry matches.
const (
	TagGeneral        = "general"
	TagPublicInterest = "public-interest"
	TagUrgent         = "urgent"
)

type topic struct {
	tag      string
	keywords []string
}

// locations are matched first, in this order.
var locations = []string{
	"nairobi", "mombasa", "kisumu", "nakuru", "eldoret", "thika", "machakos", "kibera", "kawangware",
}

// topics are matched second; slice order determines output order.
var topics = []topic{
	{"corruption", []string{"corruption", "bribe", "kickback", "embezzlement", "fraud", "misappropriation", "illegal payment"}},
	{"education", []string{"school", "student", "teacher", "university", "education", "learning", "academic", "classroom"}},
	{"healthcare", []string{"hospital", "doctor", "medical", "health", "patient", "clinic", "medicine", "treatment"}},
	{"police", []string{"police", "officer", "law enforcement", "arrest", "harassment", "brutality", "checkpoint"}},
	{"environment", []string{"pollution", "waste", "dumping", "water", "air quality", "toxic", "environmental", "contamination"}},
	{"government", []string{"government", "official", "ministry", "county", "public office", "civil servant", "administration"}},
	{"transport", []string{"matatu", "road", "transport", "traffic", "vehicle", "driving", "highway"}},
	{"infrastructure", []string{"construction", "building", "road work", "infrastructure", "public works", "maintenance"}},
	{"accountability", []string{"accountability", "transparency", "oversight", "public funds", "taxpayer"}},
	{"abuse", []string{"abuse", "harassment", "mistreatment", "discrimination", "violence"}},
}

var urgencyWords = []string{"urgent", "emergency", "immediate", "crisis", "critical"}

// Classify maps free text to at most MaxTags distinct tags using fixed keyword
// dictionaries. Matching is case-insensitive substring search in three passes:
// locations, topics, then urgency. When nothing matches the result is
// ["general", "public-interest"]. Classify is pure and deterministic.
func Classify(text string) []string {
	normalized := strings.ToLower(text)
	var tags []string

	for _, place := range locations {
		if strings.Contains(normalized, place) {
			tags = append(tags, place)
		}
	}

	for _, t := range topics {
		if containsAny(normalized, t.keywords) {
			tags = append(tags, t.tag)
		}
	}

	if containsAny(normalized, urgencyWords) {
		tags = append(tags, TagUrgent)
	}

	if len(tags) == 0 {
		tags = append(tags, TagGeneral, TagPublicInterest)
	}

	return dedupeLimit(tags, MaxTags)
}

// NormalizeTags lowercases and trims free-form tags (e.g. model output), drops
// blanks, removes duplicates keeping first occurrence and truncates to MaxTags.
func NormalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.Trim(t, "#\"'`.")
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return dedupeLimit(out, MaxTags)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func dedupeLimit(tags []string, limit int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, min(len(tags), limit))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}
