package invoice

import "encoding/json"

// FieldState tells whether an optional on-chain value has been read
type FieldState int

const (
	// FieldPending means the read has not completed yet (the zero value)
	FieldPending FieldState = iota
	// FieldLoaded means the value was read successfully
	FieldLoaded
	// FieldUnavailable means the read failed; the value must not be treated as zero
	FieldUnavailable
)

func (s FieldState) String() string {
	switch s {
	case FieldLoaded:
		return "loaded"
	case FieldUnavailable:
		return "unavailable"
	default:
		return "pending"
	}
}

// Field is a value read from chain that may be pending or unavailable
type Field[T any] struct {
	state FieldState
	value T
	err   error
}

// Loaded wraps a successfully read value
func Loaded[T any](v T) Field[T] {
	return Field[T]{state: FieldLoaded, value: v}
}

// Pending returns a field whose read has not completed
func Pending[T any]() Field[T] {
	return Field[T]{}
}

// Unavailable records a failed read
func Unavailable[T any](err error) Field[T] {
	return Field[T]{state: FieldUnavailable, err: err}
}

// State returns the field state
func (f Field[T]) State() FieldState {
	return f.state
}

// Get returns the value and whether it was loaded
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == FieldLoaded
}

// IsLoaded reports whether the value was read successfully
func (f Field[T]) IsLoaded() bool {
	return f.state == FieldLoaded
}

// OrElse returns the value if loaded, def otherwise
func (f Field[T]) OrElse(def T) T {
	if f.state == FieldLoaded {
		return f.value
	}
	return def
}

// Err returns the read failure, if any
func (f Field[T]) Err() error {
	return f.err
}

// MarshalJSON renders loaded values as themselves and anything else as null
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != FieldLoaded {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
