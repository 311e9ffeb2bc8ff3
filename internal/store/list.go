package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/blow-storage/internal/domain"
)

// SortOrder selects the ordering of List results.
type SortOrder string

const (
	SortCreated    SortOrder = ""
	SortNewest     SortOrder = "newest"
	SortTrust      SortOrder = "trust"
	SortVotes      SortOrder = "votes"
	SortVisibility SortOrder = "visibility"
)

// ParseSortOrder accepts the empty string and the named orders.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortCreated, SortNewest, SortTrust, SortVotes, SortVisibility:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", domain.ErrInvalidInput, s)
	}
}

// ListOptions filters and orders a feed query. The zero value returns every
// blow in creation order.
type ListOptions struct {
	Query          string
	Tag            string
	Sort           SortOrder
	ExcludeFlagged bool
}

// List returns the blows matching opts. Query matches case-insensitively
// against the description and tags; Tag must match one tag exactly.
func (s *Store) List(opts ListOptions) []domain.Blow {
	q := strings.ToLower(strings.TrimSpace(opts.Query))
	tag := strings.ToLower(strings.TrimSpace(opts.Tag))

	out := s.All()
	out = slices.DeleteFunc(out, func(b domain.Blow) bool {
		if opts.ExcludeFlagged && b.Flagged {
			return true
		}
		if tag != "" && !slices.ContainsFunc(b.Tags, func(t string) bool { return strings.EqualFold(t, tag) }) {
			return true
		}
		return q != "" && !matches(b, q)
	})

	// Stable sorts keep creation order among equal keys.
	switch opts.Sort {
	case SortNewest:
		slices.SortStableFunc(out, func(a, b domain.Blow) int {
			if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
	case SortTrust:
		slices.SortStableFunc(out, func(a, b domain.Blow) int {
			return cmp.Compare(trustKey(b), trustKey(a))
		})
	case SortVotes:
		slices.SortStableFunc(out, func(a, b domain.Blow) int {
			return cmp.Compare(b.NetVotes(), a.NetVotes())
		})
	case SortVisibility:
		slices.SortStableFunc(out, func(a, b domain.Blow) int {
			return cmp.Compare(b.Visibility, a.Visibility)
		})
	}
	return out
}

func matches(b domain.Blow, q string) bool {
	if strings.Contains(strings.ToLower(b.Description), q) {
		return true
	}
	for _, t := range b.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// trustKey orders unscored blows after every scored one.
func trustKey(b domain.Blow) int64 {
	if b.TrustScore == nil {
		return -1
	}
	return int64(*b.TrustScore)
}
