// Package blobstore persists content-addressed blobs in a directory tree.
//
// Every blob lives in {root}/{key}/{created}, where key is the content key
// and created is the RFC3339 creation time. The key directory holds exactly
// one file. Payloads are staged under {root}/.incoming and renamed into
// place, so a reader never sees a partial payload.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"floppy/internal/keys"
	"floppy/internal/observability"
	"floppy/internal/retention"
)

const (
	// DefaultMaxBlobBytes is the largest payload accepted for storage.
	DefaultMaxBlobBytes int64 = 150_000_000

	defaultStatCacheSize = 1024
)

// Store is a BlobStore backed by the local filesystem.
type Store struct {
	resolver  keys.Resolver
	publicURL string
	maxBytes  int64
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	sink      EventSink
	locks     *keyedMutex
	cache     *lru.Cache[string, Stat]
	cacheSize int
}

var _ BlobStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for creation times and retention.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records operation metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithMaxBlobBytes overrides the upload size ceiling.
func WithMaxBlobBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// WithEventSink forwards stored and deleted events to sink.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithStatCacheSize bounds the number of cached blob stats. Zero disables
// the cache.
func WithStatCacheSize(n int) Option {
	return func(s *Store) { s.cacheSize = n }
}

// New creates a Store rooted at root. publicURL is the base URL printed in
// upload reports.
func New(root, publicURL string, opts ...Option) (*Store, error) {
	s := &Store{
		resolver:  keys.NewResolver(strings.TrimSpace(root)),
		publicURL: publicURL,
		maxBytes:  DefaultMaxBlobBytes,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		locks:     newKeyedMutex(),
		cacheSize: defaultStatCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, Stat](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create stat cache: %w", err)
		}
		s.cache = cache
	}
	if err := os.MkdirAll(s.resolver.Root(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.resolver.Root() }

// PublicURL returns the base URL used in reports.
func (s *Store) PublicURL() string { return s.publicURL }

// Put stores content under its content key.
func (s *Store) Put(ctx context.Context, content []byte) (_ PutResult, err error) {
	key := keys.Derive(content)
	op, ctx := observability.StartOperation(ctx, s.metrics, "blobstore.put",
		attribute.String("key", key), attribute.Int("size", len(content)))
	defer func() { op.End(err) }()

	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}
	loc, err := s.resolver.Resolve(key)
	if err != nil {
		return PutResult{}, internal("resolve key", err)
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	entries, err := os.ReadDir(loc.Dir)
	switch {
	case err == nil && len(entries) > 0:
		st, err := s.statLocation(loc)
		if err != nil {
			return PutResult{}, err
		}
		now := s.clock.Now()
		if !retention.Expired(st.SizeBytes, st.CreatedAt, now) {
			days := retention.RemainingDays(st.SizeBytes, st.CreatedAt, now)
			s.countUpload(StatusDuplicate)
			return PutResult{
				Key:           key,
				Status:        StatusDuplicate,
				SizeBytes:     st.SizeBytes,
				RemainingDays: days,
				Text:          duplicateNotice + infoText(s.publicURL, key, st.SizeBytes, days),
			}, nil
		}
		// Expired but not yet swept: replace it with a fresh copy.
		s.logger.InfoContext(ctx, "replacing expired blob", "key", key, "created_at", st.CreatedAt)
		if _, err := s.removeLocked(ctx, loc); err != nil {
			return PutResult{}, err
		}
	case err == nil:
		// Left behind by an interrupted writer.
		s.logger.WarnContext(ctx, "removing empty key directory", "key", key)
		if err := os.Remove(loc.Dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return PutResult{}, internal("remove empty key directory", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return PutResult{}, internal("read key directory", err)
	}

	size := int64(len(content))
	if size > s.maxBytes {
		s.countUpload(StatusTooLarge)
		return PutResult{
			Key:       key,
			Status:    StatusTooLarge,
			SizeBytes: size,
			Text:      tooLargeNotice(s.maxBytes),
		}, nil
	}

	createdAt := s.clock.Now().UTC().Truncate(time.Second)
	if err := s.write(loc, fileName(createdAt), content); err != nil {
		return PutResult{}, err
	}

	st := Stat{Key: key, Name: fileName(createdAt), SizeBytes: size, CreatedAt: createdAt}
	s.cacheAdd(st)
	s.countUpload(StatusStored)
	if s.metrics != nil {
		s.metrics.BytesProcessed.WithLabelValues("in").Add(float64(size))
	}
	s.emit(ctx, Event{Kind: EventStored, Key: key, SizeBytes: size, At: createdAt})
	s.logger.InfoContext(ctx, "blob stored", "key", key, "size", size)

	days := retention.RemainingDays(size, createdAt, s.clock.Now())
	return PutResult{
		Key:           key,
		Status:        StatusStored,
		SizeBytes:     size,
		RemainingDays: days,
		Text:          infoText(s.publicURL, key, size, days),
	}, nil
}

// write stages content and renames it into loc. The caller holds the key
// lock.
func (s *Store) write(loc keys.Location, name string, content []byte) error {
	staging := s.resolver.StagingDir()
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return internal("create staging directory", err)
	}
	tmp, err := os.CreateTemp(staging, loc.Key+"-*")
	if err != nil {
		return internal("create staging file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return internal("write payload", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return internal("close payload", err)
	}
	if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
		cleanup()
		return internal("create key directory", err)
	}
	if err := os.Rename(tmpPath, loc.File(name)); err != nil {
		cleanup()
		_ = os.Remove(loc.Dir)
		return internal("move payload into place", err)
	}
	return nil
}

// Blob is an open payload together with its stat.
type Blob struct {
	Stat
	io.ReadSeekCloser
}

// Open validates a client-supplied key and opens its payload. Blobs whose
// retention has run out are reported as expired even before a sweep has
// removed them.
func (s *Store) Open(ctx context.Context, key string) (_ *Blob, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "blobstore.open", attribute.String("key", key))
	defer func() { op.End(err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := s.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if retention.Expired(st.SizeBytes, st.CreatedAt, s.clock.Now()) {
		return nil, &Error{Kind: KindExpired}
	}

	loc, err := s.resolver.Resolve(key)
	if err != nil {
		return nil, notFound(err)
	}
	f, err := os.Open(loc.File(st.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Swept or removed behind our back.
			s.cacheRemove(key)
			return nil, notFound(err)
		}
		return nil, internal("open payload", err)
	}
	if s.metrics != nil {
		s.metrics.BytesProcessed.WithLabelValues("out").Add(float64(st.SizeBytes))
	}
	return &Blob{Stat: st, ReadSeekCloser: f}, nil
}

// Delete removes the key directory and everything in it. Deleting a key
// that is not stored is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.Remove(ctx, key)
	return err
}

// Remove is Delete that also reports whether a key directory was removed.
func (s *Store) Remove(ctx context.Context, key string) (_ bool, err error) {
	op, ctx := observability.StartOperation(ctx, s.metrics, "blobstore.delete", attribute.String("key", key))
	defer func() { op.End(err) }()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc, err := s.resolver.Resolve(key)
	if err != nil {
		return false, notFound(err)
	}
	if loc.Dir == s.resolver.Root() {
		return false, notFound(fmt.Errorf("key %q resolves to the storage root", key))
	}

	unlock := s.locks.Lock(key)
	defer unlock()
	return s.removeLocked(ctx, loc)
}

// removeLocked deletes loc.Dir. The caller holds the key lock.
func (s *Store) removeLocked(ctx context.Context, loc keys.Location) (bool, error) {
	if _, err := os.Stat(loc.Dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.cacheRemove(loc.Key)
			return false, nil
		}
		return false, internal("stat key directory", err)
	}

	var size int64
	if st, err := s.statLocation(loc); err == nil {
		size = st.SizeBytes
	}
	if err := os.RemoveAll(loc.Dir); err != nil {
		return false, internal("remove key directory", err)
	}
	s.cacheRemove(loc.Key)
	s.emit(ctx, Event{Kind: EventDeleted, Key: loc.Key, SizeBytes: size, At: s.clock.Now().UTC()})
	s.logger.InfoContext(ctx, "blob deleted", "key", loc.Key, "size", size)
	return true, nil
}

// PruneStaging removes staging files older than maxAge, which are left
// behind by writers that crashed between staging and rename. It returns
// how many files were removed.
func (s *Store) PruneStaging(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.resolver.StagingDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, internal("read staging directory", err)
	}

	cutoff := s.clock.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.resolver.StagingDir(), entry.Name())
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, internal("remove staging file", err)
		}
		removed++
		s.logger.DebugContext(ctx, "removed stale staging file", "name", entry.Name(), "modified", info.ModTime())
	}
	return removed, nil
}

// Info returns the upload report for a stored blob.
func (s *Store) Info(ctx context.Context, key string) (string, error) {
	st, err := s.Stat(ctx, key)
	if err != nil {
		return "", err
	}
	days := retention.RemainingDays(st.SizeBytes, st.CreatedAt, s.clock.Now())
	return infoText(s.publicURL, key, st.SizeBytes, days), nil
}

// SizeBytes returns the payload length of a stored blob.
func (s *Store) SizeBytes(ctx context.Context, key string) (int64, error) {
	st, err := s.Stat(ctx, key)
	if err != nil {
		return 0, err
	}
	return st.SizeBytes, nil
}

// CreatedAt returns when a blob was first stored.
func (s *Store) CreatedAt(ctx context.Context, key string) (time.Time, error) {
	st, err := s.Stat(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	return st.CreatedAt, nil
}

// RemainingDays returns the retention left for a stored blob.
func (s *Store) RemainingDays(ctx context.Context, key string) (float64, error) {
	st, err := s.Stat(ctx, key)
	if err != nil {
		return 0, err
	}
	return retention.RemainingDays(st.SizeBytes, st.CreatedAt, s.clock.Now()), nil
}

// Stat returns size and creation time for key. Blobs written by this
// process are answered from memory.
func (s *Store) Stat(ctx context.Context, key string) (Stat, error) {
	if err := ctx.Err(); err != nil {
		return Stat{}, err
	}
	loc, err := s.resolver.Resolve(key)
	if err != nil {
		return Stat{}, notFound(err)
	}
	if s.cache != nil {
		if st, ok := s.cache.Get(key); ok {
			return st, nil
		}
	}
	st, err := s.statLocation(loc)
	if err != nil {
		return Stat{}, err
	}
	s.cacheAdd(st)
	return st, nil
}

// statLocation reads the payload entry of a key directory from disk.
func (s *Store) statLocation(loc keys.Location) (Stat, error) {
	entries, err := os.ReadDir(loc.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stat{}, notFound(err)
		}
		return Stat{}, internal("read key directory", err)
	}
	if len(entries) == 0 {
		return Stat{}, notFound(fmt.Errorf("key directory %s is empty", loc.Dir))
	}

	entry := entries[0]
	info, err := entry.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stat{}, notFound(err)
		}
		return Stat{}, internal("stat payload", err)
	}
	createdAt, err := parseFileName(entry.Name())
	if err != nil {
		return Stat{}, internal("parse creation time", err)
	}
	return Stat{
		Key:       loc.Key,
		Name:      entry.Name(),
		SizeBytes: info.Size(),
		CreatedAt: createdAt,
	}, nil
}

// Keys lists the key directories under the storage root. Anything whose
// name is not a key, such as the staging directory, is skipped.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.resolver.Root())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, internal("list storage root", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && keys.IsKey(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Usage summarizes what is currently stored.
type Usage struct {
	Blobs int
	Bytes int64
}

// Usage scans the storage root. Entries that cannot be read are skipped.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	ks, err := s.Keys(ctx)
	if err != nil {
		return Usage{}, err
	}
	var u Usage
	for _, k := range ks {
		st, err := s.Stat(ctx, k)
		if err != nil {
			continue
		}
		u.Blobs++
		u.Bytes += st.SizeBytes
	}
	return u, nil
}

func (s *Store) cacheAdd(st Stat) {
	if s.cache != nil {
		s.cache.Add(st.Key, st)
	}
}

func (s *Store) cacheRemove(key string) {
	if s.cache != nil {
		s.cache.Remove(key)
	}
}

func (s *Store) countUpload(status PutStatus) {
	if s.metrics != nil {
		s.metrics.Uploads.WithLabelValues(string(status)).Inc()
	}
}

func (s *Store) emit(ctx context.Context, ev Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "record storage event", "kind", ev.Kind, "key", ev.Key, "error", err)
	}
}
