package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
)

// Persister durably stores blow snapshots. SaveBlow is called with the full
// record after every mutation, under that record's lock.
type Persister interface {
	SaveBlow(ctx context.Context, b domain.Blow) error
	LoadBlows(ctx context.Context) ([]domain.Blow, error)
}

// EventPublisher receives lifecycle events after a mutation is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.BlowEvent) error
}

// Trust score sources, used as metric labels.
const (
	SourceModerator = "moderator"
	SourcePipeline  = "pipeline"
)

type direction string

const (
	up   direction = "up"
	down direction = "down"
)

type voteKey struct {
	voter string
	dir   direction
}

// record owns one blow. Its lock serializes every mutation of that blow.
type record struct {
	mu     sync.RWMutex
	blow   domain.Blow
	voters map[voteKey]struct{}
}

// Store is the in-memory blow repository. It is safe for concurrent use.
//
// The store lock guards only the id index and creation order; each record
// has its own lock, so writes to unrelated blows never contend. Submissions
// are serialized by submitMu, so ids are committed in sequence and creation
// order is id order.
type Store struct {
	mu       sync.RWMutex
	submitMu sync.Mutex
	records  map[uint64]*record
	order    []uint64
	lastID   atomic.Uint64

	persister Persister
	events    EventPublisher
	dedup     bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithPersister writes every mutation through p before committing it.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithEventPublisher emits a lifecycle event after each committed mutation.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Store) { s.events = p }
}

// WithVoterDedup makes UpvoteAs/DownvoteAs reject repeated votes by the same voter.
func WithVoterDedup() Option {
	return func(s *Store) { s.dedup = true }
}

// New creates an empty Store.
func New(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Store {
	s := &Store{
		records: make(map[uint64]*record),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores all blows from the persister and advances the id sequence
// past the highest stored id. It must be called before serving traffic.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	blows, err := s.persister.LoadBlows(ctx)
	if err != nil {
		return fmt.Errorf("load blows: %w", err)
	}
	slices.SortFunc(blows, func(a, b domain.Blow) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blows {
		if _, ok := s.records[b.ID]; ok {
			continue
		}
		s.records[b.ID] = &record{blow: b}
		s.order = append(s.order, b.ID)
		if b.ID > s.lastID.Load() {
			s.lastID.Store(b.ID)
		}
	}
	s.metrics.BlowsStored.Set(float64(len(s.records)))
	s.logger.Info("blows restored", "count", len(blows), "last_id", s.lastID.Load())
	return nil
}

// Submit validates and stores a new blow, returning its id. The record starts
// with zero votes, no trust score, visibility 0 and not flagged. A failed
// write consumes no id.
func (s *Store) Submit(ctx context.Context, sub domain.Submission) (uint64, error) {
	if err := domain.ValidateSubmission(sub); err != nil {
		return 0, err
	}

	s.submitMu.Lock()
	b := domain.Blow{
		ID:          s.lastID.Load() + 1,
		Description: sub.Description,
		Files:       cloneFiles(sub.Files),
		Tags:        slices.Clone(sub.Tags),
		Timestamp:   domain.Now(),
	}
	if b.Files == nil {
		b.Files = []domain.File{}
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}

	if s.persister != nil {
		if err := s.persister.SaveBlow(ctx, b); err != nil {
			s.submitMu.Unlock()
			s.metrics.MutationErrors.WithLabelValues("submit").Inc()
			return 0, fmt.Errorf("persist blow %d: %w", b.ID, err)
		}
	}

	s.mu.Lock()
	s.records[b.ID] = &record{blow: b}
	s.order = append(s.order, b.ID)
	stored := len(s.records)
	s.mu.Unlock()
	s.lastID.Store(b.ID)
	s.submitMu.Unlock()

	s.metrics.BlowsSubmitted.Inc()
	s.metrics.BlowsStored.Set(float64(stored))
	s.publish(ctx, domain.EventSubmitted, b)
	return b.ID, nil
}

// Get returns a snapshot of the blow, or false if the id is unknown.
func (s *Store) Get(id uint64) (domain.Blow, bool) {
	r := s.lookup(id)
	if r == nil {
		return domain.Blow{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blow.Clone(), true
}

// All returns snapshots of every blow in creation order.
func (s *Store) All() []domain.Blow {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.order))
	for _, id := range s.order {
		recs = append(recs, s.records[id])
	}
	s.mu.RUnlock()

	out := make([]domain.Blow, 0, len(recs))
	for _, r := range recs {
		r.mu.RLock()
		out = append(out, r.blow.Clone())
		r.mu.RUnlock()
	}
	return out
}

// Len returns the number of stored blows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upvote adds one upvote. It returns false without side effects if the id is unknown.
func (s *Store) Upvote(ctx context.Context, id uint64) (bool, error) {
	return s.vote(ctx, id, "", up)
}

// Downvote adds one downvote. It returns false without side effects if the id is unknown.
func (s *Store) Downvote(ctx context.Context, id uint64) (bool, error) {
	return s.vote(ctx, id, "", down)
}

// UpvoteAs is Upvote attributed to an opaque voter id. With voter dedup
// enabled a repeated vote returns false and ErrDuplicateVote.
func (s *Store) UpvoteAs(ctx context.Context, id uint64, voter string) (bool, error) {
	return s.vote(ctx, id, voter, up)
}

// DownvoteAs is the downvote counterpart of UpvoteAs.
func (s *Store) DownvoteAs(ctx context.Context, id uint64, voter string) (bool, error) {
	return s.vote(ctx, id, voter, down)
}

func (s *Store) vote(ctx context.Context, id uint64, voter string, dir direction) (bool, error) {
	track := s.dedup && voter != ""
	key := voteKey{voter: voter, dir: dir}

	event := domain.EventUpvoted
	op := "upvote"
	if dir == down {
		event = domain.EventDownvoted
		op = "downvote"
	}

	ok, err := s.mutate(ctx, id, op, event, func(b *domain.Blow, r *record) error {
		if track {
			if _, seen := r.voters[key]; seen {
				return domain.ErrDuplicateVote
			}
		}
		if dir == up {
			b.Upvotes++
		} else {
			b.Downvotes++
		}
		return nil
	}, func(r *record) {
		if !track {
			return
		}
		if r.voters == nil {
			r.voters = make(map[voteKey]struct{})
		}
		r.voters[key] = struct{}{}
	})
	if ok && err == nil {
		s.metrics.Votes.WithLabelValues(string(dir)).Inc()
	}
	return ok && err == nil, err
}

// SetTrustScore overwrites the trust score of a blow. An out-of-range score
// fails with ErrInvalidInput and leaves the record unchanged.
func (s *Store) SetTrustScore(ctx context.Context, id, score uint64, source string) (bool, error) {
	if err := domain.ValidateScore("trust score", score); err != nil {
		return false, err
	}
	ok, err := s.mutate(ctx, id, "set_trust_score", domain.EventTrustScored, func(b *domain.Blow, _ *record) error {
		v := score
		b.TrustScore = &v
		return nil
	}, nil)
	if ok && err == nil {
		s.metrics.TrustScores.WithLabelValues(source).Inc()
	}
	return ok && err == nil, err
}

// Flag moves a blow to the flagged state, capping its visibility at
// domain.FlaggedFloor from then on. Flagging is one-way and idempotent.
func (s *Store) Flag(ctx context.Context, id uint64) (bool, error) {
	var changed bool
	ok, err := s.mutate(ctx, id, "flag", domain.EventFlagged, func(b *domain.Blow, _ *record) error {
		if b.Flagged {
			return errUnchanged
		}
		b.Flagged = true
		changed = true
		return nil
	}, nil)
	if ok && err == nil && changed {
		s.metrics.BlowsFlagged.Inc()
	}
	return ok && err == nil, err
}

// SetVisibility pins the visibility weight of a blow, overriding the derived
// value. The pin is still capped at domain.FlaggedFloor for flagged blows.
func (s *Store) SetVisibility(ctx context.Context, id, weight uint64) (bool, error) {
	if err := domain.ValidateScore("visibility", weight); err != nil {
		return false, err
	}
	ok, err := s.mutate(ctx, id, "set_visibility", domain.EventVisibilitySet, func(b *domain.Blow, _ *record) error {
		b.Visibility = weight
		b.VisibilityPinned = true
		return nil
	}, nil)
	return ok && err == nil, err
}

// errUnchanged aborts a mutation that would be a no-op; mutate reports success.
var errUnchanged = errors.New("unchanged")

// mutate applies fn to a copy of the record under its exclusive lock, re-derives
// visibility, persists the copy and only then commits it. Any failure leaves the
// stored record untouched. commit runs after a successful write, still under the lock.
func (s *Store) mutate(
	ctx context.Context,
	id uint64,
	op string,
	event domain.EventType,
	fn func(b *domain.Blow, r *record) error,
	commit func(r *record),
) (bool, error) {
	r := s.lookup(id)
	if r == nil {
		return false, nil
	}

	r.mu.Lock()
	// Files and tags are immutable, so a shallow copy is a safe scratch value.
	next := r.blow
	if err := fn(&next, r); err != nil {
		r.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return true, nil
		}
		return false, err
	}

	if next.VisibilityPinned {
		next.Visibility = domain.CapVisibility(next.Visibility, next.Flagged)
	} else {
		next.Visibility = domain.ComputeVisibility(next.TrustScore, next.Upvotes, next.Downvotes, next.Flagged)
	}

	if s.persister != nil {
		if err := s.persister.SaveBlow(ctx, next); err != nil {
			r.mu.Unlock()
			s.metrics.MutationErrors.WithLabelValues(op).Inc()
			return false, fmt.Errorf("persist blow %d: %w", id, err)
		}
	}

	r.blow = next
	if commit != nil {
		commit(r)
	}
	r.mu.Unlock()

	s.publish(ctx, event, next)
	return true, nil
}

func (s *Store) lookup(id uint64) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// publish hands an event to the publisher. Failures are logged and counted but
// never undo the committed mutation.
func (s *Store) publish(ctx context.Context, t domain.EventType, b domain.Blow) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, domain.NewBlowEvent(t, b)); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish blow event failed", "blow_id", b.ID, "event_type", t, "error", err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues("success").Inc()
}

func cloneFiles(files []domain.File) []domain.File {
	if files == nil {
		return nil
	}
	out := make([]domain.File, len(files))
	for i, f := range files {
		f.Data = slices.Clone(f.Data)
		out[i] = f
	}
	return out
}
