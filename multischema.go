package heroparser

// DiscriminatorFunc extracts the routing key from the current row (e.g. the
// raw bytes of its first column) without requiring the dispatcher to know
// anything about field semantics.
type DiscriminatorFunc func(r *Reader) ([]byte, bool)

// FirstColumnDiscriminator is the common case: route on column 0's content.
func FirstColumnDiscriminator(r *Reader) ([]byte, bool) {
	if _, _, ok := r.TryColumnSpan(0); !ok {
		return nil, false
	}
	raw, err := r.Column(0)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// UnmatchedRowBehavior controls what the dispatcher does with a row whose
// discriminator does not resolve to any registered binder.
type UnmatchedRowBehavior int

const (
	// UnmatchedSkip silently drops the row.
	UnmatchedSkip UnmatchedRowBehavior = iota
	// UnmatchedError aborts with HeaderNotFound-style error.
	UnmatchedError
	// UnmatchedCustomFactory invokes Dispatcher.CustomFactory to resolve
	// a binder for the unknown discriminator, caching the result like any
	// registered route.
	UnmatchedCustomFactory
)

// RowBinder is the type-erased shape every concrete Binder[T]/ReflectBinder[T]
// is adapted to so the dispatcher can hold heterogeneous binders in one table.
type RowBinder interface {
	BindAny(r *Reader) (interface{}, error)
}

// binderFunc adapts a closure to RowBinder.
type binderFunc func(r *Reader) (interface{}, error)

func (f binderFunc) BindAny(r *Reader) (interface{}, error) { return f(r) }

// AdaptBinder wraps a Binder[T] as a RowBinder for registration with a Dispatcher.
func AdaptBinder[T any](b *Binder[T]) RowBinder {
	return binderFunc(func(r *Reader) (interface{}, error) { return b.BindRow(r) })
}

// CustomFactory builds a RowBinder for a discriminator the Dispatcher's
// static route table does not recognize.
type CustomFactory func(discriminator []byte) (RowBinder, error)

// Dispatcher routes each row to one of several registered binders based on
// a discriminator extracted from the row itself, memoizing the last
// resolution in a single unsynchronized slot. The slot is intentionally not
// safe for concurrent use by design: a Dispatcher is bound to one Reader's
// single-threaded row stream, the same way the rest of this module's core
// is single-threaded.
type Dispatcher struct {
	Discriminate  DiscriminatorFunc
	Routes        map[string]RowBinder
	Unmatched     UnmatchedRowBehavior
	CustomFactory CustomFactory

	stickyKey    string
	stickyBinder RowBinder
	stickyValid  bool
}

// NewDispatcher constructs a Dispatcher with the given static routes, keyed
// by the exact discriminator bytes (as a string) each route matches.
func NewDispatcher(discriminate DiscriminatorFunc, routes map[string]RowBinder) *Dispatcher {
	return &Dispatcher{Discriminate: discriminate, Routes: routes}
}

// BindCurrentRow resolves a binder for the Reader's current row and binds
// it, returning ErrUnmatchedSkip's row as (nil, nil) under UnmatchedSkip so
// callers can simply continue their loop.
func (d *Dispatcher) BindCurrentRow(r *Reader) (interface{}, error) {
	disc, ok := d.Discriminate(r)
	if !ok {
		return nil, ErrNilBinder
	}
	key := string(disc)

	if d.stickyValid && d.stickyKey == key {
		return d.stickyBinder.BindAny(r)
	}

	if b, ok := d.Routes[key]; ok {
		d.stickyKey, d.stickyBinder, d.stickyValid = key, b, true
		return b.BindAny(r)
	}

	switch d.Unmatched {
	case UnmatchedCustomFactory:
		if d.CustomFactory == nil {
			return nil, ErrUnmatchedSkip
		}
		b, err := d.CustomFactory(disc)
		if err != nil {
			return nil, err
		}
		d.stickyKey, d.stickyBinder, d.stickyValid = key, b, true
		return b.BindAny(r)
	case UnmatchedError:
		return nil, &ParseError{Code: ErrCodeHeaderNotFound, FieldValue: truncateFieldValue(disc), Err: ErrUnmatchedSkip}
	default: // UnmatchedSkip
		return nil, nil
	}
}
