package domain

// FlaggedFloor is the highest visibility a flagged blow may ever have.
const FlaggedFloor = 5

// ComputeVisibility derives the visibility weight (0-100) of a blow.
//
// The weight blends the trust score (60%) with a vote component (40%):
//
//	votePart = max(0, 100 * (up - down) / (up + down + 10))
//
// An unscored blow contributes no trust, so a fresh submission derives 0, the
// weight it is stored with. The result is non-decreasing in trust and upvotes
// and non-increasing in downvotes. A flagged blow never exceeds FlaggedFloor.
func ComputeVisibility(trust *uint64, upvotes, downvotes uint64, flagged bool) uint64 {
	var trustPart int64
	if trust != nil {
		trustPart = int64(min(*trust, MaxTrustScore))
	}

	// Integer form of 0.6*trust + 0.4*votePart, floored.
	up, down := int64(upvotes), int64(downvotes)
	den := up + down + 10
	num := 6*trustPart*den + 4*max(0, 100*(up-down))

	v := uint64(min(num/(10*den), MaxTrustScore))
	if flagged {
		return min(v, FlaggedFloor)
	}
	return v
}

// CapVisibility applies the flag floor to a moderator-pinned weight.
func CapVisibility(v uint64, flagged bool) uint64 {
	v = min(v, MaxTrustScore)
	if flagged {
		return min(v, FlaggedFloor)
	}
	return v
}
