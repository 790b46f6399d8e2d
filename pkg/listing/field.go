package listing

// fieldState tracks which of the three optional-field states a Field is in.
type fieldState uint8

const (
	stateAbsent fieldState = iota
	stateNull
	stateValue
)

// Field is an explicit three-state optional: absent, explicitly null, or a
// present value. The zero value is absent.
//
// Merge semantics per field, applied by the reconciliation engine:
//
//	incoming state | effect on stored value
//	---------------+-----------------------
//	value          | overwrite
//	absent         | preserve
//	null           | preserve (never null out previously known data)
type Field[T any] struct {
	state fieldState
	value T
}

// Value creates a present Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{state: stateValue, value: v}
}

// Null creates an explicitly-null Field.
func Null[T any]() Field[T] {
	return Field[T]{state: stateNull}
}

// Absent creates an absent Field. Equivalent to the zero value.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// IsValue returns true when the field carries a value.
func (f Field[T]) IsValue() bool {
	return f.state == stateValue
}

// IsNull returns true when the field was explicitly reported as null.
func (f Field[T]) IsNull() bool {
	return f.state == stateNull
}

// IsAbsent returns true when the source did not report the field at all.
func (f Field[T]) IsAbsent() bool {
	return f.state == stateAbsent
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == stateValue
}

// Or returns the value if present, otherwise fallback.
func (f Field[T]) Or(fallback T) T {
	if f.state == stateValue {
		return f.value
	}
	return fallback
}

// Merge applies the documented merge table: a present incoming field
// overwrites stored; absent and null both preserve stored.
func Merge[T any](stored T, incoming Field[T]) T {
	if incoming.state == stateValue {
		return incoming.value
	}
	return stored
}

// MergeField is Merge when the stored side is itself an optional column: a
// present incoming field replaces it, anything else keeps it.
func MergeField[T any](stored, incoming Field[T]) Field[T] {
	if incoming.state == stateValue {
		return incoming
	}
	return stored
}

// MergePtr is Merge over a nullable stored column: a present incoming field
// replaces the pointer, anything else keeps it.
func MergePtr[T any](stored *T, incoming Field[T]) *T {
	if incoming.state == stateValue {
		v := incoming.value
		return &v
	}
	return stored
}

// FromPtr converts a nullable value into a Field: nil maps to absent.
func FromPtr[T any](p *T) Field[T] {
	if p == nil {
		return Field[T]{}
	}
	return Value(*p)
}

// Ptr returns a pointer to the value when present, nil otherwise.
func (f Field[T]) Ptr() *T {
	if f.state != stateValue {
		return nil
	}
	v := f.value
	return &v
}
