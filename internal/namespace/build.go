package namespace

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rmacdonaldsmith/meshbroker/pkg/namespace"
	"github.com/rmacdonaldsmith/meshbroker/pkg/selector"
)

var (
	// ErrNoCompiler is returned for a record with a selector when no compiler is available
	ErrNoCompiler = errors.New("no selector compiler configured")

	// ErrNegativeDepth is returned for a record with a negative depth
	ErrNegativeDepth = errors.New("depth cannot be negative")
)

// LoadError describes one record skipped while building a trie.
type LoadError struct {
	Index     int
	Namespace string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("namespace entry %d (%s): %v", e.Index, e.Namespace, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Build compiles records into a new trie. A record that cannot be
// compiled is skipped with a warning and reported as a *LoadError; the
// remaining records are still loaded. A later record for the same
// namespace replaces an earlier one.
func Build(records []namespace.Record, compiler selector.Compiler, logger *slog.Logger) (*Filters, []error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := NewFilters()
	var errs []error
	for i, rec := range records {
		if rec.Depth < 0 {
			errs = append(errs, dropped(logger, i, rec, ErrNegativeDepth))
			continue
		}
		f, err := NewFilter(rec, compiler)
		if err != nil {
			errs = append(errs, dropped(logger, i, rec, err))
			continue
		}
		if t.Add(f) {
			logger.Warn("namespace entry replaces an earlier entry", "index", i, "namespace", f.namespace)
		}
	}
	return t, errs
}

func dropped(logger *slog.Logger, index int, rec namespace.Record, err error) error {
	logger.Warn("dropping namespace entry", "index", index, "namespace", rec.Namespace, "error", err)
	return &LoadError{Index: index, Namespace: rec.Namespace, Err: err}
}
