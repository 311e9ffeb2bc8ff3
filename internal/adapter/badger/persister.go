// Package badger persists blows in an embedded Badger key-value store.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/couchcryptid/blow-storage/internal/domain"
)

var blowPrefix = []byte("blow/")

// Config configures the Badger database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval controls value log garbage collection. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns settings for an on-disk database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway database, used in tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Persister implements store.Persister on Badger. Each blow is one key
// holding its JSON snapshot.
type Persister struct {
	db     *badger.DB
	logger *slog.Logger

	stop chan struct{}
	done sync.WaitGroup
}

// Open opens (or creates) the database and starts value log GC if configured.
func Open(cfg Config, logger *slog.Logger) (*Persister, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	p := &Persister{db: db, logger: logger, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		p.done.Add(1)
		go p.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return p, nil
}

// SaveBlow writes the full snapshot of b, replacing any previous version.
func (p *Persister) SaveBlow(_ context.Context, b domain.Blow) error {
	val, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("badger encode blow %d: %w", b.ID, err)
	}
	if err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blowKey(b.ID), val)
	}); err != nil {
		return fmt.Errorf("badger save blow %d: %w", b.ID, err)
	}
	return nil
}

// LoadBlows returns every stored blow in id order.
func (p *Persister) LoadBlows(ctx context.Context) ([]domain.Blow, error) {
	var blows []domain.Blow
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = blowPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var b domain.Blow
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			blows = append(blows, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger load blows: %w", err)
	}
	return blows, nil
}

// Close stops GC and closes the database.
func (p *Persister) Close() error {
	close(p.stop)
	p.done.Wait()
	return p.db.Close()
}

func (p *Persister) runGC(interval time.Duration, ratio float64) {
	defer p.done.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			err := p.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				p.logger.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// blowKey is the prefix followed by the big-endian id, so keys iterate in id order.
func blowKey(id uint64) []byte {
	key := make([]byte, len(blowPrefix)+8)
	copy(key, blowPrefix)
	binary.BigEndian.PutUint64(key[len(blowPrefix):], id)
	return key
}

// badgerLogger routes Badger's internal logging through slog. Info is demoted
// to debug; Badger is chatty at startup.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
