package namespace

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/rmacdonaldsmith/meshbroker/internal/metrics"
	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

// ErrNoPolicyKey is returned when a policy file has no "namespaces" list
var ErrNoPolicyKey = errors.New("policy file has no namespaces key")

// PolicyKey is the configuration key holding the record list.
const PolicyKey = "namespaces"

// Store holds the active trie. Lookups read the current trie without
// locking; Load builds a complete replacement and swaps it in atomically.
type Store struct {
	current  atomic.Pointer[Filters]
	compiler selector.Compiler
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex // serializes loads and listener registration
	onReload []func(*Filters)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records reloads and dropped entries.
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a store holding an empty trie. compiler compiles the
// selectors of loaded records.
func NewStore(compiler selector.Compiler, opts ...StoreOption) *Store {
	s := &Store{
		compiler: compiler,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "namespace")
	s.current.Store(NewFilters())
	return s
}

// Current returns the active trie.
func (s *Store) Current() *Filters {
	return s.current.Load()
}

// FindMatch looks topic up in the active trie.
func (s *Store) FindMatch(topic string) (namespace.Policy, bool) {
	return s.Current().FindMatch(topic)
}

// Match looks topic up in the active trie.
func (s *Store) Match(topic string) (*Filter, bool) {
	return s.Current().Match(topic)
}

// Len returns the number of filters in the active trie.
func (s *Store) Len() int {
	return s.Current().Len()
}

// OnReload registers fn to be called with every newly swapped-in trie.
func (s *Store) OnReload(fn func(*Filters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Load builds a trie from records and makes it the active one. The
// returned errors describe skipped records; the load itself never fails.
func (s *Store) Load(records []namespace.Record) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, errs := Build(records, s.compiler, s.logger)
	s.current.Store(t)
	s.metrics.NamespaceReloaded(t.Len(), len(errs))
	s.logger.Info("namespace policy loaded", "entries", t.Len(), "dropped", len(errs))

	for _, fn := range s.onReload {
		fn(t)
	}
	return errs
}

// LoadFile reads a YAML, JSON or TOML policy file and loads its
// "namespaces" list. A file that cannot be read or decoded returns an
// error and leaves the active trie untouched.
func (s *Store) LoadFile(path string) ([]error, error) {
	records, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Load(records), nil
}

// ReadFile decodes the "namespaces" list of a policy file.
func ReadFile(path string) ([]namespace.Record, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading namespace policy %s: %w", path, err)
	}
	if !v.IsSet(PolicyKey) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPolicyKey)
	}
	var records []namespace.Record
	if err := v.UnmarshalKey(PolicyKey, &records); err != nil {
		return nil, fmt.Errorf("decoding namespace policy %s: %w", path, err)
	}
	return records, nil
}
