package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"location then topics", "Illegal dumping of medical waste near Kibera", []string{"kibera", "healthcare", "environment"}},
		{"case insensitive", "BRIBE demanded at the NAIROBI county office", []string{"nairobi", "corruption", "government"}},
		{"shared keyword fires both topics", "Police harassment at the market", []string{"police", "abuse"}},
		{"urgency pass", "Emergency: hospital out of medicine", []string{"healthcare", "urgent"}},
		{"multi word keyword", "Where did the public funds go?", []string{"accountability"}},
		{"fallback", "Hello world", []string{TagGeneral, TagPublicInterest}},
		{"empty text", "", []string{TagGeneral, TagPublicInterest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.text))
		})
	}
}

func TestClassify_CappedAtMaxTags(t *testing.T) {
	tags := Classify("nairobi mombasa kisumu nakuru eldoret thika machakos kibera, urgent bribe")

	assert.Len(t, tags, MaxTags)
	assert.Equal(t, []string{"nairobi", "mombasa", "kisumu", "nakuru", "eldoret", "thika"}, tags)
}

func TestClassify_DistinctAndDeterministic(t *testing.T) {
	texts := []string{
		"Urgent crisis: police officer took a bribe at a Thika road checkpoint, violence followed",
		"Teacher abuse reported at a Kisumu school; the county ministry ignored it",
		"Toxic water contamination in Kawangware, critical for patients at the clinic",
		"nothing relevant at all",
	}

	for _, text := range texts {
		first := Classify(text)
		second := Classify(text)
		assert.Equal(t, first, second, "classification must be stable for %q", text)
		assert.LessOrEqual(t, len(first), MaxTags)

		seen := map[string]bool{}
		for _, tag := range first {
			assert.False(t, seen[tag], "duplicate tag %q for %q", tag, text)
			seen[tag] = true
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Corruption ", "#nairobi", "corruption", "", "  ", "\"urgent\"", "a", "b", "c", "d"})
	assert.Equal(t, []string{"corruption", "nairobi", "urgent", "a", "b", "c"}, got)
}
