package models

// Outcome is the result of one pipeline stage: a value or the failure that
// replaced it.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful stage value
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fail wraps a stage failure
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// OrDefault returns the value, or def when the stage failed
func (o Outcome[T]) OrDefault(def T) T {
	if o.Err != nil {
		return def
	}
	return o.Value
}

// Failed reports whether the stage failed
func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}
