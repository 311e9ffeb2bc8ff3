package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v uint64) *uint64 { return &v }

func TestComputeVisibility(t *testing.T) {
	tests := []struct {
		name     string
		trust    *uint64
		up, down uint64
		flagged  bool
		expected uint64
	}{
		{"unscored, no votes", nil, 0, 0, false, 0},
		{"unscored, downvoted", nil, 0, 1, false, 0},
		{"unscored, one upvote", nil, 1, 0, false, 3},
		{"unscored, many upvotes", nil, 90, 0, false, 36},
		{"full trust, no votes", ptr(100), 0, 0, false, 60},
		{"zero trust, no votes", ptr(0), 0, 0, false, 0},
		{"full trust, net negative", ptr(100), 2, 8, false, 60},
		{"out of range trust is capped", ptr(500), 0, 0, false, 60},
		{"flagged is floored", ptr(100), 1000, 0, true, FlaggedFloor},
		{"flagged low stays low", ptr(0), 0, 1000, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeVisibility(tt.trust, tt.up, tt.down, tt.flagged))
		})
	}
}

func TestComputeVisibility_Monotonic(t *testing.T) {
	for trust := uint64(0); trust <= MaxTrustScore; trust += 10 {
		prev := ComputeVisibility(ptr(trust), 0, 3, false)
		for up := uint64(1); up <= 200; up++ {
			v := ComputeVisibility(ptr(trust), up, 3, false)
			assert.GreaterOrEqual(t, v, prev, "upvotes must not lower visibility (trust=%d up=%d)", trust, up)
			prev = v
		}

		prev = ComputeVisibility(ptr(trust), 3, 0, false)
		for down := uint64(1); down <= 200; down++ {
			v := ComputeVisibility(ptr(trust), 3, down, false)
			assert.LessOrEqual(t, v, prev, "downvotes must not raise visibility (trust=%d down=%d)", trust, down)
			prev = v
		}
	}

	for up := uint64(0); up <= 50; up += 5 {
		prev := ComputeVisibility(ptr(0), up, 2, false)
		for trust := uint64(1); trust <= MaxTrustScore; trust++ {
			v := ComputeVisibility(ptr(trust), up, 2, false)
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
	}
}

func TestComputeVisibility_NothingLiftsAFreshBlowExceptTrustOrUpvotes(t *testing.T) {
	fresh := ComputeVisibility(nil, 0, 0, false)
	assert.Equal(t, uint64(0), fresh)

	for down := uint64(1); down <= 50; down++ {
		assert.Equal(t, fresh, ComputeVisibility(nil, 0, down, false), "down=%d", down)
	}
	assert.Equal(t, fresh, ComputeVisibility(ptr(0), 0, 0, false))
	assert.Equal(t, fresh, ComputeVisibility(nil, 0, 0, true))
}

func TestComputeVisibility_UnscoredIsLowestTrust(t *testing.T) {
	for up := uint64(0); up <= 20; up += 4 {
		for down := uint64(0); down <= 20; down += 4 {
			unscored := ComputeVisibility(nil, up, down, false)
			for trust := uint64(0); trust <= MaxTrustScore; trust += 25 {
				assert.LessOrEqual(t, unscored, ComputeVisibility(ptr(trust), up, down, false))
			}
		}
	}
}

func TestComputeVisibility_FlagFloorHoldsForAnyVotes(t *testing.T) {
	for up := uint64(0); up <= 10_000; up += 997 {
		assert.LessOrEqual(t, ComputeVisibility(ptr(MaxTrustScore), up, 0, true), uint64(FlaggedFloor))
	}
}

func TestCapVisibility(t *testing.T) {
	assert.Equal(t, uint64(70), CapVisibility(70, false))
	assert.Equal(t, uint64(FlaggedFloor), CapVisibility(70, true))
	assert.Equal(t, uint64(3), CapVisibility(3, true))
	assert.Equal(t, uint64(MaxTrustScore), CapVisibility(400, false))
}
