package maybe

import (
	"encoding/json"
)

type Maybe[T any] struct {
	value T
	valid bool
}

func Some[T any](value T) Maybe[T] {
	return Maybe[T]{
		value: value,
		valid: true,
	}
}

func None[T any]() Maybe[T] {
	return Maybe[T]{
		valid: false,
	}
}

func SqlNull[T any](value T, valid bool) Maybe[T] {
	return Maybe[T]{
		value: value,
		valid: valid,
	}
}

func FromPtr[T any](p *T) Maybe[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

func (m Maybe[T]) IsValid() bool {
	return m.valid
}

func (m Maybe[T]) Value() T {
	return m.value
}

func (m Maybe[T]) ValueOrDefault(defaultValue T) T {
	if m.valid {
		return m.value
	}
	return defaultValue
}

// Ptr returns nil for None, handy as a nullable SQL argument.
func (m Maybe[T]) Ptr() *T {
	if !m.valid {
		return nil
	}
	v := m.value
	return &v
}

func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

func (m *Maybe[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}
