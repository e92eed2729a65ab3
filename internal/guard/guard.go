// Package guard confines the effects of panics to an error result.
package guard

import "fmt"

// Resolve runs fn in the current goroutine and returns its results. If fn
// panics, Resolve recovers and returns the panic as an error instead of
// letting it unwind the caller.
func Resolve[T any](fn func() (T, error)) (value T, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("recovered from panic: %v", rv)
		}
	}()
	value, err = fn()
	return
}
