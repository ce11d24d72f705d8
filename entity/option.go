package entity

// Option is a typed view on a draft property: Valid is false when the
// property is unloaded. A loaded nil is Valid with the zero Value and Null set.
type Option[T any] struct {
	Value T
	Valid bool
	Null  bool
}

// Get returns the value and whether it is loaded.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// OrElse returns the value if loaded and non-null, or v.
func (o Option[T]) OrElse(v T) T {
	if o.Valid && !o.Null {
		return o.Value
	}
	return v
}

// Lookup returns the named property of d as an Option[T]. It panics if the
// loaded value is not a T.
func Lookup[T any](d *Draft, name string) Option[T] {
	v, ok := d.Get(name)
	if !ok {
		return Option[T]{}
	}
	if v == nil {
		return Option[T]{Valid: true, Null: true}
	}
	return Option[T]{Value: v.(T), Valid: true}
}
