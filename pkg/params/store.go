package params

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
)

// InitialDataSource seeds a freshly created record.
type InitialDataSource func(r *Record) error

// InitialMap returns a source that copies m into the record.
func InitialMap(m map[string]any) InitialDataSource {
	return func(r *Record) error {
		return r.Merge(m, true)
	}
}

// Store holds one Record per type name for the process lifetime.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	sources map[string]InitialDataSource

	logger *slog.Logger
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithInitialData registers the initial data source of a type.
func WithInitialData(typeName string, src InitialDataSource) StoreOption {
	return func(s *Store) {
		s.sources[typeName] = src
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		records: make(map[string]*Record),
		sources: make(map[string]InitialDataSource),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInitialData associates an initial data source with a type.
// It only affects records created afterwards.
func (s *Store) RegisterInitialData(typeName string, src InitialDataSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[typeName] = src
}

// Has reports whether a record of the given type was already created.
func (s *Store) Has(typeName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[typeName]
	return ok
}

// GetOrCreate returns the record of a type, creating and seeding it on first demand.
func (s *Store) GetOrCreate(typeName string) (*Record, error) {
	rec, created, err := s.lookup(typeName)
	if err != nil || !created {
		return rec, err
	}
	return s.insert(rec), nil
}

// UpdateFor merges src into the record of its type.
// A record created for the merge is only kept when the merge succeeds.
func (s *Store) UpdateFor(src domain.ParameterSource, overwrite bool) error {
	if src == nil || src.TypeName() == "" {
		return nil
	}
	rec, created, err := s.lookup(src.TypeName())
	if err != nil {
		return err
	}
	if err := rec.Merge(src.Snapshot(), overwrite); err != nil {
		return err
	}
	if created {
		if winner := s.insert(rec); winner != rec {
			return winner.Merge(src.Snapshot(), overwrite)
		}
	}
	return nil
}

// lookup returns the stored record, or a freshly seeded one that is not stored yet.
func (s *Store) lookup(typeName string) (rec *Record, created bool, err error) {
	if typeName == "" {
		return nil, false, fmt.Errorf("%w: empty parameter type", domain.ErrInvalidParameter)
	}

	s.mu.RLock()
	rec, ok := s.records[typeName]
	src := s.sources[typeName]
	s.mu.RUnlock()
	if ok {
		return rec, false, nil
	}

	// Seed outside the lock: a source may read other records.
	fresh := New(typeName)
	if src != nil {
		s.logger.Debug("seeding parameter record", "type", typeName)
		if err := src(fresh); err != nil {
			return nil, false, fmt.Errorf("failed to seed %s: %w", typeName, err)
		}
	}
	return fresh, true, nil
}

// insert stores fresh unless another record of its type got there first, which is returned instead.
func (s *Store) insert(fresh *Record) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[fresh.TypeName()]; ok {
		return rec
	}
	s.records[fresh.TypeName()] = fresh
	return fresh
}

// Types returns the type names of the created records in lexical order.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.records))
	for t := range s.records {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Snapshot copies the data of every record.
func (s *Store) Snapshot() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]any, len(s.records))
	for t, rec := range s.records {
		out[t] = rec.Snapshot()
	}
	return out
}

// Restore merges previously snapshotted data back into the store.
func (s *Store) Restore(snap map[string]map[string]any, overwrite bool) error {
	for typeName, data := range snap {
		rec, err := s.GetOrCreate(typeName)
		if err != nil {
			return err
		}
		if err := rec.Merge(data, overwrite); err != nil {
			return err
		}
	}
	return nil
}
