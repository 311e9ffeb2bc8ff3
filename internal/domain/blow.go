package domain

import "slices"

// MaxTrustScore is the upper bound of the trust score and visibility ranges.
const MaxTrustScore = 100

// File is an attachment submitted alongside a blow.
type File struct {
	Name        string `json:"name" validate:"notblank"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data" validate:"required,min=1"`
}

// Submission is the input of a new blow.
type Submission struct {
	Description string   `validate:"notblank"`
	Files       []File   `validate:"dive"`
	Tags        []string `validate:"dive,notblank"`
}

// Blow is the canonical stored record, as seen by moderators.
type Blow struct {
	ID               uint64   `json:"id"`
	Description      string   `json:"description"`
	Files            []File   `json:"files"`
	Tags             []string `json:"tags"`
	TrustScore       *uint64  `json:"trustScore,omitempty"`
	Timestamp        int64    `json:"timestamp"` // nanoseconds since epoch
	Upvotes          uint64   `json:"upvotes"`
	Downvotes        uint64   `json:"downvotes"`
	Visibility       uint64   `json:"visibility"`
	VisibilityPinned bool     `json:"visibilityPinned,omitempty"`
	Flagged          bool     `json:"flagged"`
}

// PublicBlow is the trimmed projection served to lower-privilege readers.
// It omits vote counters and moderation state.
type PublicBlow struct {
	ID          uint64   `json:"id"`
	Description string   `json:"description"`
	Files       []File   `json:"files"`
	Tags        []string `json:"tags"`
	TrustScore  *uint64  `json:"trustScore,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// Public projects the record onto the public read shape.
func (b Blow) Public() PublicBlow {
	c := b.Clone()
	return PublicBlow{
		ID:          c.ID,
		Description: c.Description,
		Files:       c.Files,
		Tags:        c.Tags,
		TrustScore:  c.TrustScore,
		Timestamp:   c.Timestamp,
	}
}

// Clone returns a deep copy so callers can never alias stored state.
func (b Blow) Clone() Blow {
	out := b
	if b.Files != nil {
		out.Files = make([]File, len(b.Files))
		for i, f := range b.Files {
			f.Data = slices.Clone(f.Data)
			out.Files[i] = f
		}
	}
	out.Tags = slices.Clone(b.Tags)
	if b.TrustScore != nil {
		v := *b.TrustScore
		out.TrustScore = &v
	}
	return out
}

// NetVotes returns upvotes minus downvotes.
func (b Blow) NetVotes() int64 {
	return int64(b.Upvotes) - int64(b.Downvotes)
}
